package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration derived from environment variables.
type Config struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	ServiceName  string
	// Run mirror configuration
	RedisEnabled bool
	RedisAddr    string
	RunTTL       time.Duration
	// Tracing configuration
	TracingEnabled    bool
	TempoEndpoint     string
	TracingSampleRate float64
	// Admission policy. Strategy picks a preset; the remaining fields
	// override individual knobs of that preset when set. The threshold and
	// scale are nil when unset so that 0 stays a valid override.
	Strategy           string
	AdmissionThreshold *float64
	AdmissionScale     *float64
	RankingWeight      string
	Protection         string
	DegenerateFallback string
	MinimalSpendCap    float64
	// Segment controller configuration
	Movement          float64
	SeedFractionBroad float64
	SeedFractionPart  float64
	SeedFractionFull  float64
	SeedJitter        float64
	BroadMinCapacity  int
	PricePrecision    int
	RandomSeed        int64
}

// Strategy presets understood by Load.
const (
	StrategyNaive    = "naive"
	StrategyCapacity = "capacity"
	StrategyDemand   = "demand"
)

// Load parses environment variables and returns a Config populated with
// defaults when variables are absent.
func Load() Config {
	cfg := Config{}

	cfg.Port = getenv("PORT", "8788")
	cfg.ReadTimeout = envDuration("READ_TIMEOUT", 5*time.Second)
	cfg.WriteTimeout = envDuration("WRITE_TIMEOUT", 10*time.Second)
	cfg.ServiceName = getenv("SERVICE_NAME", "openbidder")

	cfg.RedisEnabled = envBool("REDIS_ENABLED", false)
	cfg.RedisAddr = getenv("REDIS_ADDR", "localhost:6379")
	// a simulated run rarely lasts longer than a few hours
	cfg.RunTTL = envDuration("RUN_TTL", 6*time.Hour)

	cfg.TracingEnabled = envBool("TRACING_ENABLED", false)
	cfg.TempoEndpoint = getenv("TEMPO_ENDPOINT", "tempo:4317")
	cfg.TracingSampleRate = envFloat("TRACING_SAMPLE_RATE", 1.0)

	cfg.Strategy = getenv("BID_STRATEGY", StrategyDemand)
	cfg.AdmissionThreshold = envFloatPtr("ADMISSION_THRESHOLD")
	cfg.AdmissionScale = envFloatPtr("ADMISSION_SCALE")
	cfg.RankingWeight = getenv("RANKING_WEIGHT", "")
	cfg.Protection = getenv("PROTECTION", "")
	cfg.DegenerateFallback = getenv("DEGENERATE_FALLBACK", "")
	cfg.MinimalSpendCap = envFloat("MINIMAL_SPEND_CAP", 1)

	// Hill-climbing defaults follow the tuned values of the production agent
	cfg.Movement = envFloat("MOVEMENT", 0.05)
	cfg.SeedFractionBroad = envFloat("SEED_FRACTION_BROAD", 0.05)
	cfg.SeedFractionPart = envFloat("SEED_FRACTION_PARTIAL", 0.06)
	cfg.SeedFractionFull = envFloat("SEED_FRACTION_FULL", 0.11)
	cfg.SeedJitter = envFloat("SEED_JITTER", 0)
	cfg.BroadMinCapacity = envInt("BROAD_MIN_CAPACITY", 0)
	cfg.PricePrecision = envInt("PRICE_PRECISION", 3)
	cfg.RandomSeed = int64(envInt("RANDOM_SEED", 1))

	return cfg
}

// getenv returns the value of the environment variable if set, otherwise def.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envDuration parses an environment variable into a time.Duration.
// The value can be a duration string (e.g. "5s") or a number of seconds.
// If the variable is unset or invalid, def is returned.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}

// envBool parses a boolean environment variable. Accepted values are those
// supported by strconv.ParseBool. When unset or invalid, def is returned.
func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return def
}

// envInt parses an integer environment variable. When unset or invalid, def is returned.
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if i, err := strconv.Atoi(v); err == nil {
		return i
	}
	return def
}

// envFloat parses a float64 environment variable. When unset or invalid, def is returned.
func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return def
}

// envFloatPtr parses an optional float64 environment variable. It returns nil
// when the variable is unset or invalid.
func envFloatPtr(key string) *float64 {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	return &f
}
