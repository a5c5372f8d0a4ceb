package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"swiftroute/internal/auth"
	"swiftroute/internal/forecast"
	"swiftroute/internal/motion"
	"swiftroute/internal/sim"
)

type Config struct {
	BusName         string
	RouteFile       string
	ListenAddr      string
	Tick            time.Duration
	Transit         time.Duration
	Halt            time.Duration
	MaxCapacity     int
	SpeedMultiplier float64
	PublishInterval time.Duration
	SinkBuffer      int
	SessionTTL      time.Duration

	NATSURL           string
	NATSSubjectPrefix string
	LogNATSSubjects   bool

	DatabaseURL string
	MetricsAddr string

	GeminiAPIKey    string
	GeminiModel     string
	ForecastTimeout time.Duration
}

// Motion returns the clock settings.
func (c *Config) Motion() motion.Config {
	return motion.Config{Tick: c.Tick, Transit: c.Transit, Halt: c.Halt}
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{
		BusName:           getenvDefault("BUS_NAME", "Swift-Kerala Express"),
		RouteFile:         os.Getenv("ROUTE_FILE"),
		ListenAddr:        getenvDefault("LISTEN_ADDR", ":8080"),
		NATSURL:           os.Getenv("NATS_URL"),
		NATSSubjectPrefix: getenvDefault("NATS_SUBJECT_PREFIX", "swiftroute"),
		LogNATSSubjects:   parseBool(os.Getenv("LOG_NATS_SUBJECTS")),
		// Metrics listen address (e.g., ":9102"). Empty disables the metrics server.
		MetricsAddr:  os.Getenv("METRICS_ADDR"),
		GeminiAPIKey: firstNonEmpty(os.Getenv("GEMINI_API_KEY"), os.Getenv("API_KEY")),
		GeminiModel:  getenvDefault("GEMINI_MODEL", forecast.DefaultModel),
	}

	var err error
	if cfg.Tick, err = durationMS("TICK_INTERVAL_MS", motion.DefaultTick, false); err != nil {
		return nil, err
	}
	if cfg.Transit, err = durationMS("TRANSIT_DURATION_MS", motion.DefaultTransit, false); err != nil {
		return nil, err
	}
	if cfg.Halt, err = durationMS("HALT_DURATION_MS", motion.DefaultHalt, true); err != nil {
		return nil, err
	}
	// Zero publishes every tick.
	if cfg.PublishInterval, err = durationMS("PUBLISH_INTERVAL_MS", time.Second, true); err != nil {
		return nil, err
	}
	if cfg.ForecastTimeout, err = durationMS("FORECAST_TIMEOUT_MS", forecast.DefaultTimeout, false); err != nil {
		return nil, err
	}

	if v := os.Getenv("MAX_CAPACITY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid MAX_CAPACITY: %q", v)
		}
		cfg.MaxCapacity = n
	} else {
		cfg.MaxCapacity = 55
	}

	if v := os.Getenv("SPEED_MULTIPLIER"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return nil, fmt.Errorf("invalid SPEED_MULTIPLIER: %q", v)
		}
		cfg.SpeedMultiplier = f
	} else {
		cfg.SpeedMultiplier = 1.0
	}

	// Event queue between the bus and NATS/journal. Zero delivers inline.
	if v := os.Getenv("SINK_BUFFER"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid SINK_BUFFER: %q", v)
		}
		cfg.SinkBuffer = n
	} else {
		cfg.SinkBuffer = sim.DefaultSinkBuffer
	}

	// Session lifetime (minutes)
	if v := os.Getenv("SESSION_TTL_MINUTES"); v != "" {
		min, err := strconv.Atoi(v)
		if err != nil || min <= 0 {
			return nil, fmt.Errorf("invalid SESSION_TTL_MINUTES: %q", v)
		}
		cfg.SessionTTL = time.Duration(min) * time.Minute
	} else {
		cfg.SessionTTL = auth.DefaultTTL
	}

	// Journal DSN: prefer DATABASE_URL / PG_DSN, else build from PG* vars when
	// PGDATABASE is set. Empty disables the journal.
	cfg.DatabaseURL = firstNonEmpty(os.Getenv("DATABASE_URL"), os.Getenv("PG_DSN"))
	if cfg.DatabaseURL == "" {
		if db := os.Getenv("PGDATABASE"); db != "" {
			host := getenvDefault("PGHOST", "127.0.0.1")
			port := getenvDefault("PGPORT", "5432")
			user := getenvDefault("PGUSER", "postgres")
			pass := os.Getenv("PGPASSWORD")
			sslmode := getenvDefault("PGSSLMODE", "disable")
			if pass != "" {
				cfg.DatabaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode)
			} else {
				cfg.DatabaseURL = fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode)
			}
		}
	}

	return cfg, nil
}

func durationMS(key string, def time.Duration, allowZero bool) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms < 0 || (ms == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
