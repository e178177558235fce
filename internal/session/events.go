package session

import (
	"context"
	"time"
)

// EventType names a session transition
type EventType string

const (
	EventRestored    EventType = "restored"
	EventLogin       EventType = "login"
	EventLoginFailed EventType = "login_failed"
	EventLogout      EventType = "logout"
	// EventPurged is emitted when partial or corrupt state was removed at startup
	EventPurged EventType = "purged"
)

// Event describes one session transition
type Event struct {
	Type     EventType `json:"type"`
	Profile  string    `json:"profile"`
	UserID   ID        `json:"user_id,omitempty"`
	Username string    `json:"username,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	At       time.Time `json:"at"`
}

// EventSink receives session events. Implementations must not block.
type EventSink interface {
	HandleSessionEvent(ctx context.Context, ev Event)
}

// EventSinkFunc adapts a function to EventSink
type EventSinkFunc func(ctx context.Context, ev Event)

func (f EventSinkFunc) HandleSessionEvent(ctx context.Context, ev Event) {
	f(ctx, ev)
}

// subscribers fans snapshots out to view-layer listeners
type subscriber struct {
	ch chan Snapshot
}

// offer delivers snap, replacing an unread older snapshot if the buffer is full
func (s subscriber) offer(snap Snapshot) {
	for {
		select {
		case s.ch <- snap:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}
