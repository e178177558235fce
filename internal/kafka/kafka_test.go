package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"essence/internal/session"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("KAFKA_TOPIC_SESSION_EVENTS", "")
	t.Setenv("ENABLE_KAFKA", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.SessionEventsTopic != "session-events" {
		t.Errorf("Expected default topic, got %q", cfg.SessionEventsTopic)
	}
	if cfg.Acks != "all" || !cfg.EnableIdempotence {
		t.Errorf("Unexpected delivery settings %+v", cfg)
	}
	brokers := cfg.GetBrokersList()
	if len(brokers) != 2 || brokers[1] != "k2:9092" {
		t.Errorf("Unexpected brokers %v", brokers)
	}
}

func TestLoadConfig_Disabled(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "")
	if _, err := LoadConfig(); !errors.Is(err, ErrDisabled) {
		t.Errorf("Expected ErrDisabled without brokers, got %v", err)
	}

	t.Setenv("KAFKA_BROKERS", "k1:9092")
	t.Setenv("ENABLE_KAFKA", "false")
	if _, err := LoadConfig(); !errors.Is(err, ErrDisabled) {
		t.Errorf("Expected ErrDisabled with ENABLE_KAFKA=false, got %v", err)
	}
}

type fakePublisher struct {
	publishFunc func(topic string, key []byte, event any) error
}

func (f *fakePublisher) Publish(topic string, key []byte, event any) error {
	return f.publishFunc(topic, key, event)
}

func TestSessionSink(t *testing.T) {
	var gotTopic, gotKey string
	var gotEvent session.Event
	pub := &fakePublisher{publishFunc: func(topic string, key []byte, event any) error {
		gotTopic, gotKey = topic, string(key)
		gotEvent = event.(session.Event)
		return nil
	}}
	sink := NewSessionSink(pub, "session-events", slog.New(slog.NewTextHandler(io.Discard, nil)))

	ev := session.Event{Type: session.EventLogin, Profile: "work", UserID: "1", At: time.Now()}
	sink.HandleSessionEvent(context.Background(), ev)

	if gotTopic != "session-events" || gotKey != "work" {
		t.Errorf("Unexpected topic/key %s/%s", gotTopic, gotKey)
	}
	if gotEvent.Type != session.EventLogin || gotEvent.UserID != "1" {
		t.Errorf("Unexpected event %+v", gotEvent)
	}
}

func TestSessionSink_PublishErrorSwallowed(t *testing.T) {
	pub := &fakePublisher{publishFunc: func(string, []byte, any) error { return errors.New("queue full") }}
	sink := NewSessionSink(pub, "t", slog.New(slog.NewTextHandler(io.Discard, nil)))

	// must not panic or block
	sink.HandleSessionEvent(context.Background(), session.Event{Type: session.EventLogout})
}
