package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const devSigningKey = "dev-signing-secret-change"

// App holds the runtime configuration. Values come from defaults, then an
// optional YAML file named by CONFIG_FILE, then environment variables.
type App struct {
	Env      string `yaml:"env"`
	HTTPPort string `yaml:"httpPort"`

	UpstreamURL     string        `yaml:"upstreamUrl"`
	UpstreamTimeout time.Duration `yaml:"upstreamTimeout"`

	DatabaseURL string `yaml:"databaseUrl"`
	RedisAddr   string `yaml:"redisAddr"`

	JWTIssuer     string        `yaml:"jwtIssuer"`
	JWTSigningKey string        `yaml:"jwtSigningKey"`
	AccessTTL     time.Duration `yaml:"accessTtl"`
	RefreshTTL    time.Duration `yaml:"refreshTtl"`
	SessionTTL    time.Duration `yaml:"sessionTtl"`

	CacheBackend   string        `yaml:"cacheBackend"`
	CacheTTL       time.Duration `yaml:"cacheTtl"`
	CacheRefresh   bool          `yaml:"cacheRefresh"`
	SessionBackend string        `yaml:"sessionBackend"`
	QueueBackend   string        `yaml:"queueBackend"`

	RateLimitPerMin int      `yaml:"rateLimitPerMin"`
	CORSOrigins     []string `yaml:"corsOrigins"`

	Timezone         string        `yaml:"timezone"`
	RefreshInterval  time.Duration `yaml:"refreshInterval"`
	SnapshotSchedule string        `yaml:"snapshotSchedule"`
	SnapshotPeriods  []string      `yaml:"snapshotPeriods"`
	WorkerUsername   string        `yaml:"workerUsername"`
	WorkerPassword   string        `yaml:"workerPassword"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() App {
	return App{
		Env:              "dev",
		HTTPPort:         "8081",
		UpstreamURL:      "https://dogerek-server.vercel.app/api",
		UpstreamTimeout:  15 * time.Second,
		JWTIssuer:        "clubadmin",
		JWTSigningKey:    devSigningKey,
		AccessTTL:        15 * time.Minute,
		RefreshTTL:       24 * time.Hour,
		SessionTTL:       12 * time.Hour,
		CacheBackend:     "memory",
		CacheTTL:         5 * time.Minute,
		CacheRefresh:     true,
		SessionBackend:   "memory",
		QueueBackend:     "memory",
		RateLimitPerMin:  120,
		CORSOrigins:      []string{"http://localhost:5173"},
		Timezone:         "Asia/Tashkent",
		RefreshInterval:  30 * time.Second,
		SnapshotSchedule: "15 2 * * *",
		SnapshotPeriods:  []string{"week", "month"},
	}
}

// Load reads .env (if present), the optional YAML file and the environment.
func Load() (App, error) {
	if err := godotenv.Load(); err == nil {
		log.Println("loaded .env file")
	}
	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return App{}, err
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return App{}, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML file at path onto cfg.
func LoadFile(path string, cfg *App) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *App) {
	cfg.Env = getEnv("APP_ENV", cfg.Env)
	cfg.HTTPPort = getEnv("HTTP_PORT", cfg.HTTPPort)
	cfg.UpstreamURL = getEnv("UPSTREAM_URL", cfg.UpstreamURL)
	cfg.UpstreamTimeout = durationEnv("UPSTREAM_TIMEOUT", cfg.UpstreamTimeout)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.JWTIssuer = getEnv("JWT_ISSUER", cfg.JWTIssuer)
	cfg.JWTSigningKey = getEnv("JWT_SIGNING_KEY", cfg.JWTSigningKey)
	cfg.AccessTTL = durationEnv("ACCESS_TTL", cfg.AccessTTL)
	cfg.RefreshTTL = durationEnv("REFRESH_TTL", cfg.RefreshTTL)
	cfg.SessionTTL = durationEnv("SESSION_TTL", cfg.SessionTTL)
	cfg.CacheBackend = getEnv("CACHE_BACKEND", cfg.CacheBackend)
	cfg.CacheTTL = durationEnv("CACHE_TTL", cfg.CacheTTL)
	cfg.CacheRefresh = boolEnv("CACHE_REFRESH", cfg.CacheRefresh)
	cfg.SessionBackend = getEnv("SESSION_BACKEND", cfg.SessionBackend)
	cfg.QueueBackend = getEnv("QUEUE_BACKEND", cfg.QueueBackend)
	cfg.RateLimitPerMin = intEnv("RATE_LIMIT_PER_MIN", cfg.RateLimitPerMin)
	cfg.CORSOrigins = listEnv("CORS_ORIGINS", cfg.CORSOrigins)
	cfg.Timezone = getEnv("TIMEZONE", cfg.Timezone)
	cfg.RefreshInterval = durationEnv("REFRESH_INTERVAL", cfg.RefreshInterval)
	cfg.SnapshotSchedule = getEnv("SNAPSHOT_SCHEDULE", cfg.SnapshotSchedule)
	cfg.SnapshotPeriods = listEnv("SNAPSHOT_PERIODS", cfg.SnapshotPeriods)
	cfg.WorkerUsername = getEnv("WORKER_USERNAME", cfg.WorkerUsername)
	cfg.WorkerPassword = getEnv("WORKER_PASSWORD", cfg.WorkerPassword)
}

// Production reports whether the app runs in a production environment.
func (a App) Production() bool {
	return a.Env == "production" || a.Env == "prod"
}

// Location loads the timezone periods are resolved in.
func (a App) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", a.Timezone, err)
	}
	return loc, nil
}

// Validate rejects configurations the services cannot start with.
func (a App) Validate() error {
	var errs []error
	if a.UpstreamURL == "" {
		errs = append(errs, errors.New("UPSTREAM_URL is required"))
	}
	if a.JWTSigningKey == "" {
		errs = append(errs, errors.New("JWT_SIGNING_KEY is required"))
	} else if a.Production() && a.JWTSigningKey == devSigningKey {
		errs = append(errs, errors.New("JWT_SIGNING_KEY must be changed in production"))
	}
	for name, backend := range map[string]string{
		"CACHE_BACKEND":   a.CacheBackend,
		"SESSION_BACKEND": a.SessionBackend,
		"QUEUE_BACKEND":   a.QueueBackend,
	} {
		switch backend {
		case "memory":
		case "redis":
			if a.RedisAddr == "" {
				errs = append(errs, fmt.Errorf("%s=redis needs REDIS_ADDR", name))
			}
		default:
			errs = append(errs, fmt.Errorf("%s must be memory or redis, got %q", name, backend))
		}
	}
	if _, err := a.Location(); err != nil {
		errs = append(errs, err)
	}
	if a.RefreshInterval <= 0 {
		errs = append(errs, errors.New("REFRESH_INTERVAL must be positive"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			log.Printf("invalid duration for %s: %v, using fallback %s", key, err, fallback)
			return fallback
		}
		return d
	}
	return fallback
}

func boolEnv(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		switch strings.ToLower(val) {
		case "1", "true", "yes":
			return true
		case "0", "false", "no":
			return false
		}
		log.Printf("invalid bool for %s, using fallback %v", key, fallback)
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
		log.Printf("invalid int for %s, using fallback %d", key, fallback)
	}
	return fallback
}

// listEnv reads a comma separated list.
func listEnv(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
