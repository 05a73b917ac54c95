// Package config loads runtime configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr     string
	LogLevel string

	RiskModelPath string

	RefreshInterval time.Duration
	DefaultGroups   []string

	RedisAddr    string
	RedisCacheTTL time.Duration

	KafkaBrokers   string
	KafkaTopic     string
	KafkaEnabled   bool

	AnalysisHorizon          time.Duration
	AnalysisScreeningKm      float64
	AnalysisProbabilityThresh float64
	CoarseStep               time.Duration
	FineStep                 time.Duration
	FineWindow               time.Duration

	RiskLearningRate float64
	RiskL2Penalty    float64
}

func FromEnv() Config {
	return Config{
		Addr:     getenv("ADDR", ":8090"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		RiskModelPath: getenv("RISK_MODEL_PATH", "data/risk_model_state.json"),

		RefreshInterval: getduration("REFRESH_INTERVAL", 6*time.Hour),
		DefaultGroups:   splitCSV(getenv("CATALOG_GROUPS", "active,stations")),

		RedisAddr:     getenv("REDIS_ADDR", ""),
		RedisCacheTTL: getduration("REDIS_CACHE_TTL", 5*time.Minute),

		KafkaBrokers: getenv("KAFKA_BROKERS", "localhost:9092"),
		KafkaTopic:   getenv("KAFKA_ALERT_TOPIC", "ssa-alerts"),
		KafkaEnabled: getbool("KAFKA_ENABLED", false),

		AnalysisHorizon:           getduration("ANALYSIS_HORIZON", 48*time.Hour),
		AnalysisScreeningKm:       getfloat("ANALYSIS_SCREENING_KM", 100.0),
		AnalysisProbabilityThresh: getfloat("ANALYSIS_PROBABILITY_THRESHOLD", 1e-4),
		CoarseStep:                getduration("ANALYSIS_COARSE_STEP", 300*time.Second),
		FineStep:                  getduration("ANALYSIS_FINE_STEP", 30*time.Second),
		FineWindow:                getduration("ANALYSIS_FINE_WINDOW", 30*time.Minute),

		RiskLearningRate: getfloat("RISK_LEARNING_RATE", 5e-3),
		RiskL2Penalty:    getfloat("RISK_L2_PENALTY", 5e-4),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			part := trimSpace(s[start:i])
			if part != "" {
				out = append(out, part)
			}
			start = i + 1
		}
	}
	return out
}

func trimSpace(s string) string {
	i, j := 0, len(s)
	for i < j && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	for j > i && (s[j-1] == ' ' || s[j-1] == '\t') {
		j--
	}
	return s[i:j]
}
