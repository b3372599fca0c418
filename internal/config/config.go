package config

import (
	"os"
	"strconv"
	"time"
)

// Collector holds the remote endpoint settings. Both paths share the same
// base URL; the debug path returns validation diagnostics instead of
// accepting events.
type Collector struct {
	BaseURL        string        // e.g. https://collector.example.com
	ProductionPath string        // /mp/collect
	DebugPath      string        // /debug/mp/collect
	MeasurementID  string        // stream identifier, query param
	APISecret      string        // shared secret, query param
	Timeout        time.Duration // per-attempt HTTP timeout
}

// Retry tunes the backoff schedule around failed attempts.
type Retry struct {
	MaxRetries int           // retries after the initial attempt
	BaseDelay  time.Duration // first retry delay, doubled per retry
}

// Queue tunes the offline delivery queue and its optional durable spool.
type Queue struct {
	Capacity    int
	SpoolPath   string // JSON spool file; empty disables file persistence
	PostgresDSN string // Postgres spool; empty disables it
}

type Config struct {
	AppName            string
	Enabled            bool
	EngagementTimeMsec int64  // default engagement time substituted by assembly
	IdentityStatePath  string // client/session id state file
	SchemaRulesPath    string // YAML event schema rules; empty disables them
	Collector          Collector
	Retry              Retry
	Queue              Queue
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getenvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// FromEnv reads the pipeline configuration from environment variables,
// falling back to defaults that work against a locally running
// fake-collector.
func FromEnv() Config {
	return Config{
		AppName:            getenv("APP_NAME", "beacon"),
		Enabled:            getenvBool("BEACON_ENABLED", true),
		EngagementTimeMsec: getenvInt64("ENGAGEMENT_TIME_MSEC", 100),
		IdentityStatePath:  getenv("IDENTITY_STATE_PATH", ""),
		SchemaRulesPath:    getenv("SCHEMA_RULES_PATH", ""),
		Collector: Collector{
			BaseURL:        getenv("COLLECTOR_BASE_URL", "http://localhost:8084"),
			ProductionPath: getenv("COLLECTOR_PRODUCTION_PATH", "/mp/collect"),
			DebugPath:      getenv("COLLECTOR_DEBUG_PATH", "/debug/mp/collect"),
			MeasurementID:  getenv("MEASUREMENT_ID", ""),
			APISecret:      getenv("API_SECRET", ""),
			Timeout:        getenvDuration("COLLECTOR_TIMEOUT", 15*time.Second),
		},
		Retry: Retry{
			MaxRetries: getenvInt("MAX_RETRIES", 3),
			BaseDelay:  getenvDuration("RETRY_BASE_DELAY", time.Second),
		},
		Queue: Queue{
			Capacity:    getenvInt("QUEUE_CAPACITY", 100),
			SpoolPath:   getenv("QUEUE_SPOOL_PATH", ""),
			PostgresDSN: getenv("QUEUE_POSTGRES_DSN", ""),
		},
	}
}

// IsConfigured reports whether the collector credentials are present. An
// unconfigured pipeline silently drops sends instead of erroring.
func (c Config) IsConfigured() bool {
	return c.Collector.MeasurementID != "" && c.Collector.APISecret != ""
}
