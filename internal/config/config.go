package config

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/netip"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Application
	AppName string
	AppEnv  string
	AppURL  string // base URL for OAuth redirects
	Host    string
	Port    string

	// Data
	DataDir       string
	ConfigPath    string // first-run setup file
	ImagesDir     string
	IndexPath     string
	MaxUploadSize int64

	// Sessions
	SessionSecret string
	SessionExpiry time.Duration

	// OAuth
	GoogleClientID     string
	GoogleClientSecret string
	DevLogin           bool

	// Observability (optional)
	SentryDSN      string
	MetricsEnabled bool
	MetricsPort    string

	// File store: "local" or "s3"
	StorageDriver string
	S3Region      string
	S3Bucket      string
	S3AccessKey   string
	S3SecretKey   string
	S3Endpoint    string // Optional: for S3-compatible services (MinIO, R2, etc.)

	// Metadata index: "json" (default), "sqlite", "pgx" or "mysql"
	IndexDriver  string
	DBConnection string

	// Orphan sweeper (0 disables the background loop)
	SweepInterval time.Duration
	SweepGrace    time.Duration

	// Auth rate limiting per client IP
	AuthRateLimit  int
	AuthRateWindow time.Duration

	// Reverse proxies whose X-Forwarded-For / X-Real-IP headers are honoured
	TrustedProxies []netip.Prefix
}

func Load() *Config {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	dataDir := envString("DATA_DIR", "app_data")
	absDataDir, err := filepath.Abs(dataDir)
	if err == nil {
		dataDir = absDataDir
	}
	imagesDir := filepath.Join(dataDir, "images")

	cfg := &Config{
		AppName: envString("APP_NAME", "ImageVault"),
		AppEnv:  envString("APP_ENV", "production"),
		AppURL:  envString("APP_URL", "http://localhost:5080"),
		Host:    envString("HOST", "0.0.0.0"), // all interfaces for LAN access
		Port:    envString("PORT", "5080"),

		DataDir:       dataDir,
		ConfigPath:    filepath.Join(dataDir, "config.json"),
		ImagesDir:     imagesDir,
		IndexPath:     filepath.Join(imagesDir, "index.json"),
		MaxUploadSize: envInt64("MAX_UPLOAD_SIZE", 32<<20),

		SessionSecret: envString("SESSION_SECRET", ""),
		SessionExpiry: envDuration("SESSION_EXPIRY", 14*24*time.Hour),

		GoogleClientID:     envString("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: envString("GOOGLE_CLIENT_SECRET", ""),
		DevLogin:           envBool("DEV_LOGIN", false),

		SentryDSN:      envString("SENTRY_DSN", ""),
		MetricsEnabled: envBool("METRICS_ENABLED", true),
		MetricsPort:    envString("METRICS_PORT", "9090"),

		StorageDriver: envString("STORAGE_DRIVER", "local"),
		S3Region:      envString("S3_REGION", "us-east-1"),
		S3Bucket:      envString("S3_BUCKET", ""),
		S3AccessKey:   envString("S3_ACCESS_KEY", ""),
		S3SecretKey:   envString("S3_SECRET_KEY", ""),
		S3Endpoint:    envString("S3_ENDPOINT", ""),

		IndexDriver:  envString("INDEX_DRIVER", "json"),
		DBConnection: envString("DB_CONNECTION", ""),

		SweepInterval: envDuration("SWEEP_INTERVAL", 0),
		SweepGrace:    envDuration("SWEEP_GRACE", time.Hour),

		AuthRateLimit:  envInt("AUTH_RATE_LIMIT", 20),
		AuthRateWindow: envDuration("AUTH_RATE_WINDOW", 15*time.Minute),

		TrustedProxies: envPrefixes("TRUSTED_PROXIES"),
	}

	if cfg.SessionSecret == "" {
		cfg.SessionSecret = randomSecret()
		slog.Warn("SESSION_SECRET not set, using a random secret",
			"hint", "sessions will not survive a restart")
	}

	if cfg.StorageDriver == "s3" && cfg.S3Bucket == "" {
		slog.Error("config required env var missing", "key", "S3_BUCKET", "storage_driver", cfg.StorageDriver)
		os.Exit(1)
	}

	return cfg
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("config invalid bool, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("config invalid int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func envInt64(key string, def int64) int64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		slog.Warn("config invalid int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

// envPrefixes parses a comma separated list of IPs and CIDRs. Bare IPs
// become single-address prefixes; invalid entries are skipped.
func envPrefixes(key string) []netip.Prefix {
	var prefixes []netip.Prefix
	for _, v := range strings.Split(os.Getenv(key), ",") {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if strings.Contains(v, "/") {
			prefix, err := netip.ParsePrefix(v)
			if err != nil {
				slog.Warn("config invalid CIDR, skipping", "key", key, "value", v)
				continue
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(v)
		if err != nil {
			slog.Warn("config invalid IP, skipping", "key", key, "value", v)
			continue
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes
}

func randomSecret() string {
	b := make([]byte, 32)
	_, err := rand.Read(b)
	if err != nil {
		panic("failed to generate session secret: " + err.Error())
	}
	return hex.EncodeToString(b)
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GoogleConfigured reports whether both Google OAuth credentials are present.
func (c *Config) GoogleConfigured() bool {
	return strings.TrimSpace(c.GoogleClientID) != "" && strings.TrimSpace(c.GoogleClientSecret) != ""
}

// DevLoginEnabled reports whether the development sign-in bypass is exposed.
// It is on in development, when Google OAuth is not configured, or when forced.
func (c *Config) DevLoginEnabled() bool {
	return c.DevLogin || c.IsDevelopment() || !c.GoogleConfigured()
}

// Addr is the listen address of the main HTTP server.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

// SecureCookies reports whether cookies should carry the Secure flag.
// It follows the public URL so plain-HTTP LAN installs keep working.
func (c *Config) SecureCookies() bool {
	return strings.HasPrefix(c.AppURL, "https://")
}
