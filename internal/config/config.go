package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"route-navigator/internal/nav"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL     string
	NATSURL         string
	SubjectPrefix   string
	RouterSubject   string
	RouterTimeout   time.Duration
	PublishInterval time.Duration
	FixQueueSize    int
	RouteCacheSize  int
	LogNATSSubjects bool
	MetricsAddr     string
	LogLevel        string
	LogFile         string

	MinimumFixDistance float64
	DistanceTolerance  float64
	TimeTolerance      time.Duration
	AutoReRoute        bool
	WrongWayAngle      float64
	ArrivalDistance    float64
	TurnAlertDistance  float64
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{}

	// Database URL: prefer DATABASE_URL / PG_DSN, else build from PG* vars.
	// Stored routes are optional, so an unset database is not an error.
	dsn := firstNonEmpty(
		os.Getenv("DATABASE_URL"),
		os.Getenv("PG_DSN"),
	)
	if dsn == "" && os.Getenv("PGDATABASE") != "" {
		host := getenvDefault("PGHOST", "127.0.0.1")
		port := getenvDefault("PGPORT", "5432")
		user := getenvDefault("PGUSER", "postgres")
		pass := os.Getenv("PGPASSWORD")
		db := os.Getenv("PGDATABASE")
		sslmode := getenvDefault("PGSSLMODE", "disable")
		if pass != "" {
			dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode)
		} else {
			dsn = fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode)
		}
	}
	cfg.DatabaseURL = dsn

	cfg.NATSURL = getenvDefault("NATS_URL", "nats://127.0.0.1:4222")
	cfg.SubjectPrefix = strings.TrimSuffix(getenvDefault("NATS_SUBJECT_PREFIX", "nav"), ".")
	cfg.RouterSubject = getenvDefault("ROUTER_SUBJECT", "router.compute")

	var err error
	if cfg.RouterTimeout, err = millis("ROUTER_TIMEOUT_MS", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.PublishInterval, err = millis("PUBLISH_INTERVAL_MS", time.Second); err != nil {
		return nil, err
	}
	if cfg.FixQueueSize, err = positiveInt("FIX_QUEUE_SIZE", 16); err != nil {
		return nil, err
	}
	if cfg.RouteCacheSize, err = positiveInt("ROUTE_CACHE_SIZE", 128); err != nil {
		return nil, err
	}

	// Navigator tuning
	def := nav.DefaultConfig()
	if cfg.MinimumFixDistance, err = nonNegative("MIN_FIX_DISTANCE_M", def.MinimumFixDistance); err != nil {
		return nil, err
	}
	if cfg.DistanceTolerance, err = nonNegative("DISTANCE_TOLERANCE_M", def.DistanceTolerance); err != nil {
		return nil, err
	}
	if v := os.Getenv("TIME_TOLERANCE_SEC"); v != "" {
		sec, err := strconv.ParseFloat(v, 64)
		if err != nil || sec < 0 {
			return nil, fmt.Errorf("invalid TIME_TOLERANCE_SEC: %q", v)
		}
		cfg.TimeTolerance = time.Duration(sec * float64(time.Second))
	} else {
		cfg.TimeTolerance = def.TimeTolerance
	}
	cfg.AutoReRoute = def.AutoReRoute
	if v := os.Getenv("AUTO_REROUTE"); v != "" {
		cfg.AutoReRoute = truthy(v)
	}
	if cfg.WrongWayAngle, err = nonNegative("WRONG_WAY_ANGLE_DEG", def.WrongWayAngle); err != nil {
		return nil, err
	}
	if cfg.WrongWayAngle > 180 {
		return nil, fmt.Errorf("invalid WRONG_WAY_ANGLE_DEG: %v", cfg.WrongWayAngle)
	}
	if cfg.ArrivalDistance, err = nonNegative("ARRIVAL_DISTANCE_M", def.ArrivalDistance); err != nil {
		return nil, err
	}
	if cfg.TurnAlertDistance, err = nonNegative("TURN_ALERT_DISTANCE_M", def.TurnAlertDistance); err != nil {
		return nil, err
	}

	// Debug logging for NATS subjects
	if v := os.Getenv("LOG_NATS_SUBJECTS"); v != "" {
		cfg.LogNATSSubjects = truthy(v)
	}

	// Metrics listen address (e.g., ":9102"). Empty disables the metrics server.
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")

	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.LogFile = os.Getenv("LOG_FILE")

	return cfg, nil
}

// Navigator returns the engine configuration.
func (c *Config) Navigator() nav.Config {
	n := nav.DefaultConfig()
	n.MinimumFixDistance = c.MinimumFixDistance
	n.DistanceTolerance = c.DistanceTolerance
	n.TimeTolerance = c.TimeTolerance
	n.AutoReRoute = c.AutoReRoute
	n.WrongWayAngle = c.WrongWayAngle
	n.ArrivalDistance = c.ArrivalDistance
	n.TurnAlertDistance = c.TurnAlertDistance
	n.ReRouteTimeout = c.RouterTimeout
	return n
}

var errNegative = errors.New("must not be negative")

func millis(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", k, v)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func positiveInt(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", k, v)
	}
	return n, nil
}

func nonNegative(k string, def float64) (float64, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", k, v)
	}
	if f < 0 {
		return 0, fmt.Errorf("invalid %s: %w", k, errNegative)
	}
	return f, nil
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	}
	return false
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
