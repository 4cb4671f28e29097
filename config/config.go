package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries every tunable the server needs. It is loaded once at
// startup and passed by value to the components that need it.
type Config struct {
	Listen       string
	BaseURL      string
	DataDir      string
	DownloadsDir string

	// Token signing
	SignSecret string // optional; falls back to the key file under DataDir
	BindIP     bool
	TTLDefault time.Duration
	TTLMin     time.Duration
	TTLMax     time.Duration

	// Burst detection
	BurstWindow    time.Duration
	BurstThreshold int
	BurstCooldown  time.Duration

	// Alerting
	WebhookURL     string
	WebhookTimeout time.Duration

	// Operator access
	AdminToken string

	// Persistence
	DBDriver string // "sqlite" or "mysql"
	DBDSN    string

	// Optional GeoIP database for alert enrichment
	MMDBPath string

	// Soft per-IP rate limit on public endpoints, requests per minute.
	// Zero disables the limiter.
	PublicRatePerMin int
}

// Load reads MIRRORGATE_* environment variables, applying defaults for
// anything unset. Malformed numeric values fall back to the default
// with a warning instead of failing startup.
func Load() Config {
	cfg := Config{
		Listen:           envStr("MIRRORGATE_LISTEN", ":8090"),
		BaseURL:          strings.TrimRight(envStr("MIRRORGATE_BASE_URL", "http://localhost:8090"), "/"),
		DataDir:          envStr("MIRRORGATE_DATA_DIR", "./data"),
		DownloadsDir:     envStr("MIRRORGATE_DOWNLOADS_DIR", "./data/files"),
		SignSecret:       os.Getenv("MIRRORGATE_SIGN_SECRET"),
		BindIP:           envBool("MIRRORGATE_BIND_IP", false),
		TTLDefault:       envDuration("MIRRORGATE_TTL_DEFAULT", 24*time.Hour),
		TTLMin:           envDuration("MIRRORGATE_TTL_MIN", time.Minute),
		TTLMax:           envDuration("MIRRORGATE_TTL_MAX", 7*24*time.Hour),
		BurstWindow:      envDuration("MIRRORGATE_BURST_WINDOW", time.Minute),
		BurstThreshold:   envInt("MIRRORGATE_BURST_THRESHOLD", 20),
		BurstCooldown:    envDuration("MIRRORGATE_BURST_COOLDOWN", 10*time.Minute),
		WebhookURL:       os.Getenv("MIRRORGATE_WEBHOOK_URL"),
		WebhookTimeout:   envDuration("MIRRORGATE_WEBHOOK_TIMEOUT", 5*time.Second),
		AdminToken:       os.Getenv("MIRRORGATE_ADMIN_TOKEN"),
		DBDriver:         envStr("MIRRORGATE_DB_DRIVER", "sqlite"),
		DBDSN:            os.Getenv("MIRRORGATE_DB_DSN"),
		MMDBPath:         os.Getenv("MIRRORGATE_MMDB_PATH"),
		PublicRatePerMin: envInt("MIRRORGATE_PUBLIC_RATE_PER_MIN", 120),
	}
	if cfg.TTLMin <= 0 {
		cfg.TTLMin = time.Minute
	}
	if cfg.TTLMax < cfg.TTLMin {
		cfg.TTLMax = cfg.TTLMin
	}
	if cfg.BurstThreshold < 1 {
		cfg.BurstThreshold = 1
	}
	return cfg
}

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid integer in environment, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("invalid boolean in environment, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

// envDuration accepts either a Go duration string ("90s", "10m") or a
// bare number of seconds.
func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	slog.Warn("invalid duration in environment, using default", "key", key, "value", v, "default", def)
	return def
}
