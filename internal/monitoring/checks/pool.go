package checks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charlesng35/filebridge/internal/monitoring"
	"github.com/charlesng35/filebridge/internal/pool"
)

// PoolObserver exposes the supervision state required to evaluate session health.
type PoolObserver interface {
	Snapshot() []pool.Status
}

// Sessions evaluates the session pool: down when no member is connected,
// degraded when some members are restarting or parked.
func Sessions(observer PoolObserver) monitoring.Check {
	return monitoring.NewCheck("sessions", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if observer == nil {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusDegraded,
				Details:  "session pool unavailable",
				Duration: time.Since(start),
			}
		}

		snapshot := observer.Snapshot()
		if len(snapshot) == 0 {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusDegraded,
				Details:  "no sessions configured",
				Duration: time.Since(start),
			}
		}

		running := 0
		var troubled []string
		for _, st := range snapshot {
			if st.State == pool.StateRunning {
				running++
				continue
			}
			troubled = append(troubled, fmt.Sprintf("%s: %s", st.Name, st.State))
		}

		status := monitoring.StatusUp
		if running == 0 {
			status = monitoring.StatusDown
		} else if len(troubled) > 0 {
			status = monitoring.StatusDegraded
		}

		return monitoring.ProbeResult{
			Status:   status,
			Details:  strings.Join(troubled, "; "),
			Duration: time.Since(start),
		}
	})
}
