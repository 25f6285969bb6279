package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Realtime RealtimeConfig
	Polling  PollingConfig
	CORS     CORSConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RealtimeConfig holds push-channel settings.
type RealtimeConfig struct {
	URL                   string        `mapstructure:"url"`
	AuthToken             string        `mapstructure:"auth_token"`
	HeartbeatInterval     time.Duration `mapstructure:"heartbeat_interval"`
	BaseReconnectInterval time.Duration `mapstructure:"base_reconnect_interval"`
	MaxReconnectAttempts  int           `mapstructure:"max_reconnect_attempts"`
	ThrottleWindow        time.Duration `mapstructure:"throttle_window"`
	MinBatchInterval      time.Duration `mapstructure:"min_batch_interval"`
}

// PollingConfig holds document status polling settings.
type PollingConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	AuthToken  string        `mapstructure:"auth_token"`
	Interval   time.Duration `mapstructure:"interval"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads configuration from environment variables with the CLAIMLENS_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CLAIMLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.environment", "development")

	// Log defaults
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "console")

	// Realtime defaults
	v.SetDefault("realtime.url", "ws://localhost:9000/ws")
	v.SetDefault("realtime.auth_token", "")
	v.SetDefault("realtime.heartbeat_interval", "30s")
	v.SetDefault("realtime.base_reconnect_interval", "1s")
	v.SetDefault("realtime.max_reconnect_attempts", 5)
	v.SetDefault("realtime.throttle_window", "100ms")
	v.SetDefault("realtime.min_batch_interval", "500ms")

	// Polling defaults
	v.SetDefault("polling.base_url", "http://localhost:9001/api/v1")
	v.SetDefault("polling.auth_token", "")
	v.SetDefault("polling.interval", "2s")
	v.SetDefault("polling.max_retries", 3)

	// CORS defaults (localhost origins for development)
	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":                      "CLAIMLENS_SERVER_PORT",
		"server.read_timeout":              "CLAIMLENS_SERVER_READ_TIMEOUT",
		"server.write_timeout":             "CLAIMLENS_SERVER_WRITE_TIMEOUT",
		"server.environment":               "CLAIMLENS_SERVER_ENVIRONMENT",
		"log.level":                        "CLAIMLENS_LOG_LEVEL",
		"log.format":                       "CLAIMLENS_LOG_FORMAT",
		"realtime.url":                     "CLAIMLENS_REALTIME_URL",
		"realtime.auth_token":              "CLAIMLENS_REALTIME_AUTH_TOKEN",
		"realtime.heartbeat_interval":      "CLAIMLENS_REALTIME_HEARTBEAT_INTERVAL",
		"realtime.base_reconnect_interval": "CLAIMLENS_REALTIME_BASE_RECONNECT_INTERVAL",
		"realtime.max_reconnect_attempts":  "CLAIMLENS_REALTIME_MAX_RECONNECT_ATTEMPTS",
		"realtime.throttle_window":         "CLAIMLENS_REALTIME_THROTTLE_WINDOW",
		"realtime.min_batch_interval":      "CLAIMLENS_REALTIME_MIN_BATCH_INTERVAL",
		"polling.base_url":                 "CLAIMLENS_POLLING_BASE_URL",
		"polling.auth_token":               "CLAIMLENS_POLLING_AUTH_TOKEN",
		"polling.interval":                 "CLAIMLENS_POLLING_INTERVAL",
		"polling.max_retries":              "CLAIMLENS_POLLING_MAX_RETRIES",
		"cors.allowed_origins":             "CLAIMLENS_CORS_ALLOWED_ORIGINS",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Railway/Heroku/Render set a PORT env var. Use it if CLAIMLENS_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("CLAIMLENS_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}
	cfg.Realtime = RealtimeConfig{
		URL:                   v.GetString("realtime.url"),
		AuthToken:             v.GetString("realtime.auth_token"),
		HeartbeatInterval:     v.GetDuration("realtime.heartbeat_interval"),
		BaseReconnectInterval: v.GetDuration("realtime.base_reconnect_interval"),
		MaxReconnectAttempts:  v.GetInt("realtime.max_reconnect_attempts"),
		ThrottleWindow:        v.GetDuration("realtime.throttle_window"),
		MinBatchInterval:      v.GetDuration("realtime.min_batch_interval"),
	}
	cfg.Polling = PollingConfig{
		BaseURL:    v.GetString("polling.base_url"),
		AuthToken:  v.GetString("polling.auth_token"),
		Interval:   v.GetDuration("polling.interval"),
		MaxRetries: v.GetInt("polling.max_retries"),
	}

	// Parse CORS allowed origins from comma-separated string
	var corsOrigins []string
	for _, o := range strings.Split(v.GetString("cors.allowed_origins"), ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			corsOrigins = append(corsOrigins, o)
		}
	}
	cfg.CORS = CORSConfig{
		AllowedOrigins: corsOrigins,
	}

	return cfg, nil
}
