package kafka

import (
	"context"
	"log/slog"

	"essence/internal/session"
)

// Publisher queues a JSON event on a topic
type Publisher interface {
	Publish(topic string, key []byte, event any) error
}

// SessionSink forwards session events to a topic, keyed by profile so one
// profile's events stay ordered within a partition.
type SessionSink struct {
	publisher Publisher
	topic     string
	logger    *slog.Logger
}

// NewSessionSink creates a sink publishing to topic
func NewSessionSink(publisher Publisher, topic string, logger *slog.Logger) *SessionSink {
	return &SessionSink{publisher: publisher, topic: topic, logger: logger}
}

// HandleSessionEvent implements session.EventSink. Publish failures are
// logged and never reach the session.
func (s *SessionSink) HandleSessionEvent(_ context.Context, ev session.Event) {
	if err := s.publisher.Publish(s.topic, []byte(ev.Profile), ev); err != nil {
		s.logger.Warn("Failed to publish session event",
			"type", ev.Type,
			"profile", ev.Profile,
			"error", err)
	}
}
