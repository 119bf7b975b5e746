package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	// EnvMemory runs the service on the in-memory gateway without MongoDB or Redis.
	EnvMemory = "memory"
)

type Config struct {
	Port   string
	Env    string
	Origin []string

	MongoURI string
	MongoDB  string

	RedisAddr     string
	RedisPassword string

	JWTSecret     string
	TokenTTL      time.Duration
	VoucherSecret string

	Wikimedia WikimediaConfig
	Enrich    EnrichConfig
}

type WikimediaConfig struct {
	APIURL     string
	ThumbWidth int
	UserAgent  string
	CacheTTL   time.Duration
}

type EnrichConfig struct {
	Workers      int
	ItemTimeout  time.Duration
	BatchTimeout time.Duration
	Persist      bool
}

// LoadDotEnv loads .env into the process environment. A missing file is fine.
func LoadDotEnv(files ...string) error {
	err := godotenv.Load(files...)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	var (
		cfg Config
		err error
	)

	cfg.Port = getenv("PORT", ":8080")
	if cfg.Port[0] != ':' {
		cfg.Port = ":" + cfg.Port
	}
	cfg.Env = getenv("APP_ENV", EnvDevelopment)
	switch cfg.Env {
	case EnvDevelopment, EnvProduction, EnvMemory:
	default:
		return Config{}, fmt.Errorf("APP_ENV: unknown environment %q", cfg.Env)
	}
	cfg.Origin = splitList(getenv("CORS_ORIGINS", "*"))

	cfg.MongoURI = getenv("MONGODB_URI", "mongodb://localhost:27017")
	cfg.MongoDB = getenv("MONGODB_DB", "mahatour")

	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		if cfg.Env == EnvProduction {
			return Config{}, fmt.Errorf("JWT_SECRET must be set in production")
		}
		cfg.JWTSecret = "dev-secret-change-me"
	}
	if cfg.TokenTTL, err = durationEnv("TOKEN_TTL", 12*time.Hour); err != nil {
		return Config{}, err
	}
	cfg.VoucherSecret = getenv("VOUCHER_SECRET", cfg.JWTSecret)

	cfg.Wikimedia.APIURL = getenv("WIKIMEDIA_API_URL", "https://commons.wikimedia.org/w/api.php")
	cfg.Wikimedia.UserAgent = getenv("WIKIMEDIA_USER_AGENT", "mahatour/1.0 (https://github.com/mahatour)")
	if cfg.Wikimedia.ThumbWidth, err = intEnv("WIKIMEDIA_THUMB_WIDTH", 640); err != nil {
		return Config{}, err
	}
	if cfg.Wikimedia.CacheTTL, err = durationEnv("WIKIMEDIA_CACHE_TTL", 7*24*time.Hour); err != nil {
		return Config{}, err
	}

	if cfg.Enrich.Workers, err = intEnv("ENRICH_WORKERS", 4); err != nil {
		return Config{}, err
	}
	if cfg.Enrich.Workers < 1 {
		return Config{}, fmt.Errorf("ENRICH_WORKERS must be at least 1")
	}
	if cfg.Enrich.ItemTimeout, err = durationEnv("ENRICH_ITEM_TIMEOUT", 8*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.Enrich.BatchTimeout, err = durationEnv("ENRICH_BATCH_TIMEOUT", 45*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.Enrich.Persist, err = boolEnv("ENRICH_PERSIST", true); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func intEnv(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return n, nil
}

func durationEnv(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return d, nil
}

func boolEnv(k string, def bool) (bool, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, fmt.Errorf("%s: %w", k, err)
	}
	return b, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
