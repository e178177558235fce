package kafka

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

// ErrDisabled is returned by LoadConfig when event publishing is turned off
var ErrDisabled = errors.New("kafka publishing disabled")

// Config holds Kafka configuration
type Config struct {
	Brokers            string
	SessionEventsTopic string
	EnableIdempotence  bool
	Acks               string
}

// LoadConfig loads Kafka configuration from environment variables.
// Publishing is off when KAFKA_BROKERS is unset or ENABLE_KAFKA is false.
func LoadConfig() (*Config, error) {
	if enabled, err := strconv.ParseBool(os.Getenv("ENABLE_KAFKA")); err == nil && !enabled {
		return nil, ErrDisabled
	}

	brokers := strings.TrimSpace(os.Getenv("KAFKA_BROKERS"))
	if brokers == "" {
		return nil, ErrDisabled
	}

	topic := os.Getenv("KAFKA_TOPIC_SESSION_EVENTS")
	if topic == "" {
		topic = "session-events"
	}

	acks := os.Getenv("KAFKA_ACKS")
	if acks == "" {
		acks = "all"
	}

	return &Config{
		Brokers:            brokers,
		SessionEventsTopic: topic,
		EnableIdempotence:  true,
		Acks:               acks,
	}, nil
}

// GetBrokersList returns brokers as a slice
func (c *Config) GetBrokersList() []string {
	parts := strings.Split(c.Brokers, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
