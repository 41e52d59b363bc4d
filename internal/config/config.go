package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/example/last-mile-dispatch/internal/policy"
)

// ServerConfig captures all tunable parameters for the API process.
// Values are primarily loaded from environment variables with sane defaults
// so the binary can run locally without excessive setup.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	RedisGeoKey   string

	KafkaBrokers       []string
	KafkaOrderTopic    string
	KafkaLocationTopic string

	PGDSN string

	OSRMEndpoint    string
	DefaultSpeedMps float64

	TickInterval  time.Duration
	DriverTopN    int
	FCMEndpoint   string
	FCMKey        string
	PolicyProfile string

	LogLevel      string
	RunMigrations bool
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:           ":8080",
		ReadTimeout:        5 * time.Second,
		WriteTimeout:       10 * time.Second,
		IdleTimeout:        120 * time.Second,
		ShutdownTimeout:    15 * time.Second,
		RedisGeoKey:        "drivers_geo",
		KafkaOrderTopic:    "raw-orders",
		KafkaLocationTopic: "driver-locations",
		DefaultSpeedMps:    10,
		TickInterval:       30 * time.Second,
		DriverTopN:         64,
		PolicyProfile:      "default",
		LogLevel:           "info",
	}
}

func LoadServerConfig() (ServerConfig, error) {
	cfg := defaultServerConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.RedisGeoKey, "REDIS_GEO_KEY")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaOrderTopic, "KAFKA_ORDER_TOPIC")
	setStringFromEnv(&cfg.KafkaLocationTopic, "KAFKA_LOCATION_TOPIC")

	cfg.PGDSN = os.Getenv("PG_DSN")

	cfg.OSRMEndpoint = strings.TrimSpace(os.Getenv("OSRM_ENDPOINT"))
	setFloatFromEnv(&cfg.DefaultSpeedMps, "DEFAULT_SPEED_MPS", &errs)

	setDurationFromEnv(&cfg.TickInterval, "HORIZON_TICK_INTERVAL", &errs)
	setIntFromEnv(&cfg.DriverTopN, "DRIVER_TOP_N", &errs)
	setStringFromEnv(&cfg.FCMEndpoint, "FCM_ENDPOINT")
	cfg.FCMKey = os.Getenv("FCM_KEY")
	setStringFromEnv(&cfg.PolicyProfile, "POLICY_PROFILE")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")

	if cfg.DriverTopN <= 0 {
		errs = append(errs, fmt.Errorf("DRIVER_TOP_N must be > 0"))
	}
	if cfg.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("HORIZON_TICK_INTERVAL must be > 0"))
	}

	return cfg, errors.Join(errs...)
}

// LoadPolicy resolves the named profile and layers per-option env overrides
// on top, so a single knob can be tuned without redefining the profile.
func LoadPolicy(profile string) (policy.Policy, error) {
	var pol policy.Policy
	switch strings.ToLower(strings.TrimSpace(profile)) {
	case "", "default":
		pol = policy.Default()
	case "peak":
		pol = policy.Peak()
	case "offpeak":
		pol = policy.Offpeak()
	default:
		return policy.Policy{}, fmt.Errorf("unknown POLICY_PROFILE %q", profile)
	}

	var errs []error
	setIntFromEnv(&pol.MaxBatchSize, "POLICY_MAX_BATCH_SIZE", &errs)
	setIntFromEnv(&pol.MaxClusterCandidates, "POLICY_MAX_CLUSTER_CANDIDATES", &errs)
	setFloatFromEnv(&pol.PairDetourCap, "POLICY_PAIR_DETOUR_CAP", &errs)
	setFloatFromEnv(&pol.MultiDetourCap, "POLICY_MULTI_DETOUR_CAP", &errs)
	setBoolFromEnv(&pol.EnableContinuousChaining, "POLICY_CONTINUOUS_CHAINING", &errs)
	setBoolFromEnv(&pol.EnableRollingHorizon, "POLICY_ROLLING_HORIZON", &errs)
	setDurationFromEnv(&pol.MaxWaitTime, "POLICY_MAX_WAIT_TIME", &errs)
	setIntFromEnv(&pol.WaveSize, "POLICY_WAVE_SIZE", &errs)
	setIntFromEnv(&pol.WaveCount, "POLICY_WAVE_COUNT", &errs)
	setDurationFromEnv(&pol.WaveInterval, "POLICY_WAVE_INTERVAL", &errs)
	setDurationFromEnv(&pol.AcceptanceDeadline, "POLICY_ACCEPTANCE_DEADLINE", &errs)

	if err := pol.Validate(); err != nil {
		errs = append(errs, err)
	}
	return pol, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setFloatFromEnv(target *float64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = f
	}
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setBoolFromEnv(target *bool, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = b
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
