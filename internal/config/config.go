package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultAppName         = "MankatBank"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultJWTTTL          = time.Hour
	defaultLoginPerMinute  = 5
	devJWTSecret           = "dev-only-insecure-secret"
	idemTTLSecondsEnvVar   = "idempotency_ttl_seconds"
	shutdownSecondsEnvVar  = "shutdown_timeout_seconds"
)

// Config captures application runtime configuration loaded from environment
// variables and, when present, a config.yaml file.
type Config struct {
	AppName            string
	AppEnv             string
	Port               string
	LogLevel           string
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	JWTTTL             time.Duration
	ShutdownPeriod     time.Duration
	IdempotencyTTL     time.Duration
	CORSAllowedOrigins string
	LoginMaxPerMinute  int
	BreakerEnabled     bool
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AutomaticEnv()

	v.SetDefault("app_name", defaultAppName)
	v.SetDefault("app_env", defaultAppEnv)
	v.SetDefault("port", defaultPort)
	v.SetDefault("log_level", defaultLogLevel)
	v.SetDefault("jwt_ttl", defaultJWTTTL)
	v.SetDefault("shutdown_timeout", defaultShutdownDelay)
	v.SetDefault("idempotency_ttl", defaultIdempotencyTTL)
	v.SetDefault("cors_allowed_origins", "*")
	v.SetDefault("login_max_per_minute", defaultLoginPerMinute)
	v.SetDefault("breaker_enabled", true)

	var notFound viper.ConfigFileNotFoundError
	if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := Config{
		AppName:            v.GetString("app_name"),
		AppEnv:             v.GetString("app_env"),
		Port:               v.GetString("port"),
		LogLevel:           strings.ToLower(v.GetString("log_level")),
		DatabaseURL:        v.GetString("database_url"),
		RedisURL:           v.GetString("redis_url"),
		JWTSecret:          v.GetString("jwt_secret"),
		CORSAllowedOrigins: v.GetString("cors_allowed_origins"),
		LoginMaxPerMinute:  v.GetInt("login_max_per_minute"),
		BreakerEnabled:     v.GetBool("breaker_enabled"),
	}

	var err error
	if cfg.JWTTTL, err = duration(v, "jwt_ttl", ""); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownPeriod, err = duration(v, "shutdown_timeout", shutdownSecondsEnvVar); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = duration(v, "idempotency_ttl", idemTTLSecondsEnvVar); err != nil {
		return Config{}, err
	}

	if cfg.JWTSecret == "" {
		if !cfg.IsDev() {
			return Config{}, fmt.Errorf("JWT_SECRET must be set")
		}
		cfg.JWTSecret = devJWTSecret
	}

	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set")
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set")
		}
	}

	return cfg, nil
}

// duration reads key as a Go duration string, letting a whole-seconds
// variant in secondsKey take precedence when set.
func duration(v *viper.Viper, key, secondsKey string) (time.Duration, error) {
	if secondsKey != "" && v.IsSet(secondsKey) {
		seconds := v.GetString(secondsKey)
		d, err := time.ParseDuration(seconds + "s")
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", strings.ToUpper(secondsKey), err)
		}
		return d, nil
	}
	raw := v.Get(key)
	if d, ok := raw.(time.Duration); ok {
		return d, nil
	}
	d, err := time.ParseDuration(fmt.Sprint(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", strings.ToUpper(key), err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", strings.ToUpper(key))
	}
	return d, nil
}

// IsDev reports whether the service runs in a local development environment,
// where Postgres and Redis are optional.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}
