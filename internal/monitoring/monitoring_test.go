package monitoring_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/filebridge/internal/database"
	"github.com/charlesng35/filebridge/internal/monitoring"
	"github.com/charlesng35/filebridge/internal/monitoring/checks"
	"github.com/charlesng35/filebridge/internal/pool"
)

func TestHealthManagerEvaluate(t *testing.T) {
	t.Parallel()

	manager := monitoring.NewHealthManager()
	manager.RegisterReadiness(monitoring.NewCheck("database", func(ctx context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	}))
	manager.RegisterReadiness(monitoring.NewCheck("redis", func(ctx context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "connection refused"}
	}))

	report := manager.EvaluateReadiness(context.Background())
	require.False(t, report.Success)
	require.Equal(t, monitoring.StatusDown, report.Status)
	require.Len(t, report.Checks, 2)
}

func TestHealthManagerEmptyChecksReportUp(t *testing.T) {
	t.Parallel()

	manager := monitoring.NewHealthManager()
	report := manager.EvaluateLiveness(context.Background())
	require.True(t, report.Success)
	require.Equal(t, monitoring.StatusUp, report.Status)
	require.Empty(t, report.Checks)
}

func TestHealthManagerRecoversPanickingCheck(t *testing.T) {
	t.Parallel()

	manager := monitoring.NewHealthManager()
	manager.RegisterReadiness(monitoring.NewCheck("flaky", func(ctx context.Context) monitoring.ProbeResult {
		panic("probe exploded")
	}))

	report := manager.EvaluateReadiness(context.Background())
	require.False(t, report.Success)
	require.Len(t, report.Checks, 1)
	require.Equal(t, monitoring.StatusDown, report.Checks[0].Status)
	require.Equal(t, "probe exploded", report.Checks[0].Details)
	require.Equal(t, "flaky", report.Checks[0].Component)
}

func TestResultFromError(t *testing.T) {
	t.Parallel()

	up := monitoring.ResultFromError("database", nil, time.Millisecond)
	require.Equal(t, monitoring.StatusUp, up.Status)

	down := monitoring.ResultFromError("database", errors.New("boom"), time.Millisecond)
	require.Equal(t, monitoring.StatusDown, down.Status)
	require.Equal(t, "boom", down.Details)

	degraded := monitoring.ResultFromError("database", context.DeadlineExceeded, time.Millisecond)
	require.Equal(t, monitoring.StatusDegraded, degraded.Status)
}

func TestDatabaseCheck(t *testing.T) {
	t.Parallel()

	db, err := database.Open(database.Config{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)

	result := checks.Database(db, 0).Run(context.Background())
	require.Equal(t, monitoring.StatusUp, result.Status)

	missing := checks.Database(nil, 0).Run(context.Background())
	require.Equal(t, monitoring.StatusDown, missing.Status)
	require.Equal(t, "database not configured", missing.Details)
}

func TestRedisCheckDisabled(t *testing.T) {
	t.Parallel()

	result := checks.Redis(nil, false, 0).Run(context.Background())
	require.Equal(t, monitoring.StatusUp, result.Status)
	require.Equal(t, "redis disabled", result.Details)

	unavailable := checks.Redis(nil, true, 0).Run(context.Background())
	require.Equal(t, monitoring.StatusDegraded, unavailable.Status)
}

type staticPool struct {
	statuses []pool.Status
}

func (s staticPool) Snapshot() []pool.Status { return s.statuses }

func TestSessionsCheck(t *testing.T) {
	t.Parallel()

	allUp := staticPool{statuses: []pool.Status{
		{Name: "alpha", State: pool.StateRunning},
		{Name: "beta", State: pool.StateRunning},
	}}
	result := checks.Sessions(allUp).Run(context.Background())
	require.Equal(t, monitoring.StatusUp, result.Status)
	require.Empty(t, result.Details)

	partial := staticPool{statuses: []pool.Status{
		{Name: "alpha", State: pool.StateRunning},
		{Name: "beta", State: pool.StateRestarting},
	}}
	result = checks.Sessions(partial).Run(context.Background())
	require.Equal(t, monitoring.StatusDegraded, result.Status)
	require.Contains(t, result.Details, "beta: restarting")

	dark := staticPool{statuses: []pool.Status{
		{Name: "alpha", State: pool.StateFailed},
	}}
	result = checks.Sessions(dark).Run(context.Background())
	require.Equal(t, monitoring.StatusDown, result.Status)
	require.Contains(t, result.Details, "alpha: failed")

	empty := checks.Sessions(staticPool{}).Run(context.Background())
	require.Equal(t, monitoring.StatusDegraded, empty.Status)
	require.Equal(t, "no sessions configured", empty.Details)

	missing := checks.Sessions(nil).Run(context.Background())
	require.Equal(t, monitoring.StatusDegraded, missing.Status)
}
