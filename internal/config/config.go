package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr      string
	PublicBaseURL string

	APIKey      string
	HMACSecret  string
	AdminAPIKey string

	PostgresDSN string
	StorageDir  string

	MaxSkewSeconds int

	WebMaxSide     int
	WebJPEGQuality int

	ReplayGuard   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RateLimitRequests      int
	RateLimitWindowSeconds int

	GoogleMapsAPIKey      string
	GeocodeTimeoutSeconds int
	GeocodeLanguage       string

	PolicyPath string

	TemplatesDir string
}

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr:               addr,
		PublicBaseURL:          strings.TrimRight(envDefault("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		APIKey:                 envDefault("API_KEY", "demo-dev-key"),
		HMACSecret:             envDefault("HMAC_SECRET", "dev-hmac-secret"),
		AdminAPIKey:            os.Getenv("ADMIN_API_KEY"),
		PostgresDSN:            os.Getenv("POSTGRES_DSN"),
		StorageDir:             envDefault("STORAGE_DIR", "storage"),
		MaxSkewSeconds:         envIntDefault("MAX_SKEW_SECONDS", 300),
		WebMaxSide:             envIntDefault("WEB_MAX_SIDE", 1600),
		WebJPEGQuality:         envIntDefault("WEB_JPEG_QUALITY", 85),
		ReplayGuard:            envDefault("REPLAY_GUARD", "off"),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                envIntDefault("REDIS_DB", 0),
		RateLimitRequests:      envIntDefault("RATE_LIMIT_REQUESTS", 0),
		RateLimitWindowSeconds: envIntDefault("RATE_LIMIT_WINDOW_SECONDS", 60),
		GoogleMapsAPIKey:       os.Getenv("GOOGLE_MAPS_API_KEY"),
		GeocodeTimeoutSeconds:  envIntDefault("GEOCODE_TIMEOUT_SECONDS", 5),
		GeocodeLanguage:        envDefault("GEOCODE_LANGUAGE", "en"),
		PolicyPath:             os.Getenv("POLICY_PATH"),
		TemplatesDir:           envDefault("TEMPLATES_DIR", "web/templates"),
	}
}

// MaxSkew is the widest tolerated |server now - X-Timestamp| difference.
func (c Config) MaxSkew() time.Duration {
	return time.Duration(c.MaxSkewSeconds) * time.Second
}

// ReplayTTL is how long registered nonces are retained. Twice the skew window
// covers every timestamp the verifier would still accept.
func (c Config) ReplayTTL() time.Duration {
	return 2 * c.MaxSkew()
}

func (c Config) GeocodeTimeout() time.Duration {
	return time.Duration(c.GeocodeTimeoutSeconds) * time.Second
}

func (c Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
