package kafkaevents

import (
	"os"
	"strings"
)

type Config struct {
	Brokers []string
	Topic   string
	Enabled bool
}

// FromEnv mirrors internal/core/config's env-var defaults so a single
// KAFKA_BROKERS/KAFKA_ALERT_TOPIC/KAFKA_ENABLED triplet drives both the
// process config and this package when used standalone (e.g. from a test
// harness that doesn't want to build a full config.Config).
func FromEnv() Config {
	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		brokers = "localhost:9092"
	}
	topic := os.Getenv("KAFKA_ALERT_TOPIC")
	if topic == "" {
		topic = "ssa-alerts"
	}
	return Config{
		Brokers: splitCSV(brokers),
		Topic:   topic,
		Enabled: os.Getenv("KAFKA_ENABLED") == "true",
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
