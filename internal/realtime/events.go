package realtime

import (
	"github.com/charlesng35/filebridge/internal/pool"
)

// Named realtime streams used across the gateway.
const (
	StreamSessions  = "sessions"
	StreamTransfers = "transfers"
)

// Session lifecycle events published on StreamSessions.
const (
	EventSessionStarting   = "session.starting"
	EventSessionConnected  = "session.connected"
	EventSessionDown       = "session.down"
	EventSessionRestarting = "session.restarting"
	EventSessionFailed     = "session.failed"
	EventSessionStopped    = "session.stopped"
)

// Transfer events published on StreamTransfers.
const (
	EventTransferCompleted = "transfer.completed"
	EventTransferFailed    = "transfer.failed"
)

// PoolEvents adapts the hub into a pool event sink. A member that dies with
// an error produces a session.down message before the supervisor's own
// transition so subscribers see the loss and the response as separate events.
func PoolEvents(hub *Hub) pool.EventSink {
	return func(evt pool.Event) {
		if hub == nil {
			return
		}
		for _, name := range sessionEventNames(evt) {
			hub.BroadcastStream(StreamSessions, Message{Event: name, Data: evt})
		}
	}
}

func sessionEventNames(evt pool.Event) []string {
	switch evt.State {
	case pool.StateStarting:
		return []string{EventSessionStarting}
	case pool.StateRunning:
		return []string{EventSessionConnected}
	case pool.StateRestarting:
		if evt.Error != "" {
			return []string{EventSessionDown, EventSessionRestarting}
		}
		return []string{EventSessionRestarting}
	case pool.StateFailed:
		if evt.Error != "" {
			return []string{EventSessionDown, EventSessionFailed}
		}
		return []string{EventSessionFailed}
	case pool.StateStopped:
		return []string{EventSessionStopped}
	}
	return nil
}
