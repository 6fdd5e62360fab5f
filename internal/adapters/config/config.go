package config

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const envPrefix = "KONNEX"

// ServerConfig holds server-related configurations.
// Fields must be exported to be unmarshalled by Viper.
type ServerConfig struct {
	HTTPPort int `mapstructure:"http_port"`
}

// NATSConfig holds the connection settings for the auth event stream.
type NATSConfig struct {
	URL         string `mapstructure:"url"`
	AuthSubject string `mapstructure:"auth_subject"` // subject carrying auth state transitions
}

// RedisConfig holds Redis-related configurations for the identity cache.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"` // optional
	DB       int    `mapstructure:"db"`       // optional
}

// PostgresConfig holds the profile document store connection settings.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// LogConfig holds logging-related configurations.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// AuthConfig holds authentication-related configurations.
type AuthConfig struct {
	// TokenHMACSecret verifies the signature on sign-in tokens delivered
	// over the auth event stream. Expected to come from ENV.
	TokenHMACSecret string `mapstructure:"token_hmac_secret"`
	// AdminAPIKey guards the mutating HTTP endpoints (profile merge,
	// account deletion). Expected to come from ENV.
	AdminAPIKey string `mapstructure:"admin_api_key"`
}

// CacheConfig holds identity cache tuning.
type CacheConfig struct {
	// EntryTTLHours overrides the 24h default entry TTL; zero keeps the
	// default. Exposed mainly so tests and staging can shorten it.
	EntryTTLHours int `mapstructure:"entry_ttl_hours"`
}

// AppConfig holds application-specific configurations.
type AppConfig struct {
	ServiceName               string `mapstructure:"service_name"`
	Version                   string `mapstructure:"version"`
	ShutdownTimeoutSeconds    int    `mapstructure:"shutdown_timeout_seconds"`
	WriteTimeoutSeconds       int    `mapstructure:"write_timeout_seconds"`
	ResolutionTimeoutSeconds  int    `mapstructure:"resolution_timeout_seconds"` // 0 = no timeout on backend reads
	SnapshotBufferPerConsumer int    `mapstructure:"snapshot_buffer_per_consumer"`
}

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Log      LogConfig      `mapstructure:"log"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Cache    CacheConfig    `mapstructure:"cache"`
	App      AppConfig      `mapstructure:"app"`
}

// Provider defines an interface for accessing application configuration.
// This allows for easy mocking in tests and decouples the app from Viper.
type Provider interface {
	Get() *Config
}

// viperProvider implements the Provider interface using Viper.
type viperProvider struct {
	config *Config
	logger *zap.Logger // zap directly here; domain.Logger would be a circular dep
}

// NewViperProvider creates and initializes a new configuration provider.
// Configuration is loaded from a YAML file plus KONNEX_* environment
// variables, and hot-reloaded on SIGHUP or file change. appCtx is the
// application lifecycle context used to shut the reload goroutine down.
func NewViperProvider(appCtx context.Context, logger *zap.Logger) (Provider, error) {
	cfg := &Config{}
	v := viper.New()

	v.SetDefault("server.http_port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("nats.auth_subject", "konnex.auth.state")
	v.SetDefault("app.service_name", "konnex-identity-service")
	v.SetDefault("app.shutdown_timeout_seconds", 30)
	v.SetDefault("app.snapshot_buffer_per_consumer", 16)

	v.SetConfigName(getEnv("KONNEX_CONFIG_NAME", "config"))
	v.SetConfigType("yaml")
	v.AddConfigPath(getEnv("KONNEX_CONFIG_PATH", "/app/config"))
	v.AddConfigPath(".")

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_")) // server.http_port -> KONNEX_SERVER_HTTP_PORT

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logger.Warn("Config file not found; relying on defaults and environment variables", zap.Error(err))
		} else {
			logger.Error("Failed to read config file", zap.Error(err))
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		logger.Error("Failed to unmarshal config", zap.Error(err))
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	p := &viperProvider{
		config: cfg,
		logger: logger,
	}

	// SIGHUP triggers a config reload, matching how the service is run
	// under process supervisors.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGHUP)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("Panic recovered in SIGHUP handler goroutine",
					zap.Any("panic_info", r),
					zap.String("stacktrace", string(debug.Stack())),
				)
			}
		}()
		for {
			select {
			case sig := <-sigChan:
				p.logger.Info("SIGHUP received, reloading configuration", zap.String("signal", sig.String()))
				if err := v.ReadInConfig(); err != nil {
					p.logger.Error("Failed to re-read config file on SIGHUP", zap.Error(err))
					continue
				}
				newCfg := &Config{}
				if err := v.Unmarshal(newCfg); err != nil {
					p.logger.Error("Failed to unmarshal re-read config on SIGHUP", zap.Error(err))
					continue
				}
				p.config = newCfg
				p.logger.Info("Configuration reloaded via SIGHUP")
			case <-appCtx.Done():
				p.logger.Info("Config reload goroutine shutting down")
				return
			}
		}
	}()

	// File-change watching is mostly useful for local development.
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("Panic recovered in OnConfigChange callback",
					zap.String("event_name", e.Name),
					zap.Any("panic_info", r),
					zap.String("stacktrace", string(debug.Stack())),
				)
			}
		}()
		p.logger.Info("Config file changed", zap.String("name", e.Name), zap.String("op", e.Op.String()))
		newCfg := &Config{}
		if err := v.Unmarshal(newCfg); err != nil {
			p.logger.Error("Failed to unmarshal config on file change event", zap.Error(err))
			return
		}
		p.config = newCfg
		p.logger.Info("Configuration reloaded via file change event")
	})

	p.logger.Info("Configuration loaded", zap.String("config_file_used", v.ConfigFileUsed()))

	return p, nil
}

// Get returns the current configuration.
func (p *viperProvider) Get() *Config {
	return p.config
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
