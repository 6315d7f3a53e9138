package pool

import "time"

// EventSink receives member lifecycle transitions. Sinks run on supervision
// goroutines and must hand work off instead of blocking.
type EventSink func(Event)

// Event records one state transition of one pool member.
type Event struct {
	Session  string      `json:"session"`
	Endpoint string      `json:"endpoint"`
	State    MemberState `json:"state"`
	Restarts int         `json:"restarts"`
	Error    string      `json:"error,omitempty"`
	At       time.Time   `json:"at"`
}
