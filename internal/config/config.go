package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the device tracking service.
type Config struct {
	AppName     string
	AppEnv      string
	AppPort     string
	DatabaseURL string
	RedisURL    string
	NATSURL     string
	JWTSecret   string

	TrackerBaseURL     string
	TrackerToken       string
	TrackerTimeout     time.Duration
	TrackerMaxRetries  int
	TrackerBackoffBase time.Duration
	TrackerRateRPS     float64
	TrackerRateBurst   int
	// The tracker deployment's names for our custom fields.
	TrackerFieldSerial string
	TrackerFieldType   string

	AssetCacheTTL time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("DEVTRACK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "DevTrack API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("tracker.timeout", "30s")
	v.SetDefault("tracker.max_retries", 3)
	v.SetDefault("tracker.backoff_base", "500ms")
	v.SetDefault("tracker.rate_rps", 5.0)
	v.SetDefault("tracker.rate_burst", 5)
	v.SetDefault("tracker.field_serial", "serial")
	v.SetDefault("tracker.field_type", "type")
	v.SetDefault("asset_cache.ttl", "5m")

	trackerTimeout, err := parseDuration(v, "tracker.timeout")
	if err != nil {
		return Config{}, err
	}
	backoffBase, err := parseDuration(v, "tracker.backoff_base")
	if err != nil {
		return Config{}, err
	}
	cacheTTL, err := parseDuration(v, "asset_cache.ttl")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:            v.GetString("app.name"),
		AppEnv:             v.GetString("app.env"),
		AppPort:            v.GetString("app.port"),
		DatabaseURL:        v.GetString("database.url"),
		RedisURL:           v.GetString("redis.url"),
		NATSURL:            v.GetString("nats.url"),
		JWTSecret:          v.GetString("jwt.secret"),
		TrackerBaseURL:     v.GetString("tracker.base_url"),
		TrackerToken:       v.GetString("tracker.token"),
		TrackerTimeout:     trackerTimeout,
		TrackerMaxRetries:  v.GetInt("tracker.max_retries"),
		TrackerBackoffBase: backoffBase,
		TrackerRateRPS:     v.GetFloat64("tracker.rate_rps"),
		TrackerRateBurst:   v.GetInt("tracker.rate_burst"),
		TrackerFieldSerial: v.GetString("tracker.field_serial"),
		TrackerFieldType:   v.GetString("tracker.field_type"),
		AssetCacheTTL:      cacheTTL,
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}
	if cfg.TrackerBaseURL == "" {
		return Config{}, fmt.Errorf("tracker base url must be provided")
	}
	if cfg.TrackerToken == "" {
		return Config{}, fmt.Errorf("tracker token must be provided")
	}
	if cfg.TrackerMaxRetries < 0 {
		cfg.TrackerMaxRetries = 0
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
