package config

import (
	"errors"
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Environments accepted in APP_ENV.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Backends accepted in TOKEN_STORE, SESSION_STORE and USER_STORE.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// ServerConfig holds all configuration for the server.
// Keys equal the environment variable names.
type ServerConfig struct {
	AppEnv          string `mapstructure:"APP_ENV"`
	HTTPPort        string `mapstructure:"HTTP_PORT"`
	BaseURL         string `mapstructure:"BASE_URL"`
	AppRedirectPath string `mapstructure:"APP_REDIRECT_PATH"`
	LogLevel        string `mapstructure:"LOG_LEVEL"`
	LogPretty       bool   `mapstructure:"LOG_PRETTY"`

	// Session cookie and token encryption key material.
	SessionSecret string        `mapstructure:"SESSION_SECRET"`
	SessionMaxAge time.Duration `mapstructure:"SESSION_MAX_AGE"`
	CookieDomain  string        `mapstructure:"COOKIE_DOMAIN"`

	TodoistClientID     string `mapstructure:"TODOIST_CLIENT_ID"`
	TodoistClientSecret string `mapstructure:"TODOIST_CLIENT_SECRET"`
	TodoistRedirectURI  string `mapstructure:"TODOIST_REDIRECT_URI"`

	GoogleClientID     string `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `mapstructure:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURI  string `mapstructure:"GOOGLE_REDIRECT_URI"`

	ProviderTimeout  time.Duration `mapstructure:"PROVIDER_TIMEOUT"`
	RefreshThreshold time.Duration `mapstructure:"REFRESH_THRESHOLD"`

	RateLimitWindowMS    int `mapstructure:"RATE_LIMIT_WINDOW_MS"`
	RateLimitMaxRequests int `mapstructure:"RATE_LIMIT_MAX_REQUESTS"`

	TokenStore   string `mapstructure:"TOKEN_STORE"`
	SessionStore string `mapstructure:"SESSION_STORE"`
	UserStore    string `mapstructure:"USER_STORE"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	RedisPrefix   string `mapstructure:"REDIS_PREFIX"`

	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`

	// Tracing. Spans are exported to stdout only when OTEL_TRACES_STDOUT is set.
	OtelServiceName  string `mapstructure:"OTEL_SERVICE_NAME"`
	OtelTracesStdout bool   `mapstructure:"OTEL_TRACES_STDOUT"`

	// Optional application login created at startup.
	BootstrapLogin    string `mapstructure:"BOOTSTRAP_LOGIN"`
	BootstrapPassword string `mapstructure:"BOOTSTRAP_PASSWORD"`
}

// IsProduction reports whether APP_ENV is production.
func (c *ServerConfig) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

// RateLimitWindow returns RATE_LIMIT_WINDOW_MS as a duration.
func (c *ServerConfig) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowMS) * time.Millisecond
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", EnvDevelopment)
	v.SetDefault("HTTP_PORT", "3000")
	v.SetDefault("BASE_URL", "http://localhost:3000")
	v.SetDefault("APP_REDIRECT_PATH", "/")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)

	v.SetDefault("SESSION_SECRET", "")
	v.SetDefault("SESSION_MAX_AGE", 24*time.Hour)
	v.SetDefault("COOKIE_DOMAIN", "")

	v.SetDefault("TODOIST_CLIENT_ID", "")
	v.SetDefault("TODOIST_CLIENT_SECRET", "")
	v.SetDefault("TODOIST_REDIRECT_URI", "")
	v.SetDefault("GOOGLE_CLIENT_ID", "")
	v.SetDefault("GOOGLE_CLIENT_SECRET", "")
	v.SetDefault("GOOGLE_REDIRECT_URI", "")

	v.SetDefault("PROVIDER_TIMEOUT", 10*time.Second)
	v.SetDefault("REFRESH_THRESHOLD", 5*time.Minute)

	v.SetDefault("RATE_LIMIT_WINDOW_MS", 15*60*1000)
	v.SetDefault("RATE_LIMIT_MAX_REQUESTS", 100)

	v.SetDefault("TOKEN_STORE", BackendMemory)
	v.SetDefault("SESSION_STORE", BackendMemory)
	v.SetDefault("USER_STORE", BackendMemory)

	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_PREFIX", "focusboard")

	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DB_NAME", "focusboard_dev")

	v.SetDefault("OTEL_SERVICE_NAME", "focusboard")
	v.SetDefault("OTEL_TRACES_STDOUT", false)

	v.SetDefault("BOOTSTRAP_LOGIN", "")
	v.SetDefault("BOOTSTRAP_PASSWORD", "")
}

// LoadConfig reads configuration from file, environment variables, and defaults.
// Environment variables win over the file.
func LoadConfig() (*ServerConfig, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("/etc/focusboard/")
	v.AddConfigPath("$HOME/.focusboard")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Every key needs a default so AutomaticEnv picks it up on Unmarshal.
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &cfg, nil
}

// Validate checks the settings the server cannot start without and
// reports every problem at once.
func (c *ServerConfig) Validate() error {
	var errs []error

	required := map[string]string{
		"SESSION_SECRET":        c.SessionSecret,
		"TODOIST_CLIENT_ID":     c.TodoistClientID,
		"TODOIST_CLIENT_SECRET": c.TodoistClientSecret,
		"GOOGLE_CLIENT_ID":      c.GoogleClientID,
		"GOOGLE_CLIENT_SECRET":  c.GoogleClientSecret,
	}
	for _, key := range slices.Sorted(maps.Keys(required)) {
		if strings.TrimSpace(required[key]) == "" {
			errs = append(errs, fmt.Errorf("missing required environment variable: %s", key))
		}
	}

	urls := map[string]string{
		"TODOIST_REDIRECT_URI": c.TodoistRedirectURI,
		"GOOGLE_REDIRECT_URI":  c.GoogleRedirectURI,
		"BASE_URL":             c.BaseURL,
	}
	for _, key := range slices.Sorted(maps.Keys(urls)) {
		if !validURL(urls[key]) {
			errs = append(errs, fmt.Errorf("%s must be a valid URL", key))
		}
	}

	if c.AppEnv != EnvDevelopment && c.AppEnv != EnvProduction {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of: %s, %s", EnvDevelopment, EnvProduction))
	}
	if c.RateLimitWindowMS < 0 || c.RateLimitMaxRequests < 0 {
		errs = append(errs, errors.New("rate limit settings must not be negative"))
	}
	if c.SessionMaxAge <= 0 {
		errs = append(errs, errors.New("SESSION_MAX_AGE must be positive"))
	}
	if c.ProviderTimeout <= 0 {
		errs = append(errs, errors.New("PROVIDER_TIMEOUT must be positive"))
	}
	if !strings.HasPrefix(c.AppRedirectPath, "/") {
		errs = append(errs, errors.New("APP_REDIRECT_PATH must be an absolute path"))
	}

	if !slices.Contains([]string{BackendMemory, BackendRedis}, c.TokenStore) {
		errs = append(errs, fmt.Errorf("TOKEN_STORE must be one of: %s, %s", BackendMemory, BackendRedis))
	}
	if !slices.Contains([]string{BackendMemory, BackendRedis}, c.SessionStore) {
		errs = append(errs, fmt.Errorf("SESSION_STORE must be one of: %s, %s", BackendMemory, BackendRedis))
	}
	if !slices.Contains([]string{BackendMemory, BackendMongo}, c.UserStore) {
		errs = append(errs, fmt.Errorf("USER_STORE must be one of: %s, %s", BackendMemory, BackendMongo))
	}

	if (c.BootstrapLogin == "") != (c.BootstrapPassword == "") {
		errs = append(errs, errors.New("BOOTSTRAP_LOGIN and BOOTSTRAP_PASSWORD must be set together"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}

	return nil
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
