package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	AppEnv          Environment   `mapstructure:"APP_ENV" validate:"required,oneof=development test ci production"`
	HTTPAddr        string        `mapstructure:"HTTP_ADDR" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT" validate:"required"`

	LogLevel  string `mapstructure:"LOG_LEVEL" validate:"required,oneof=debug info warn error dpanic panic fatal"`
	LogFormat string `mapstructure:"LOG_FORMAT" validate:"required,oneof=json console"`

	// Database configuration
	DatabaseURL string `mapstructure:"DATABASE_URL" validate:"required"`
	// MigrationsDir overrides the embedded migrations when set.
	MigrationsDir string `mapstructure:"MIGRATIONS_DIR"`

	// Identity provider configuration
	OIDCIssuer     string   `mapstructure:"OIDC_ISSUER" validate:"required,url"`
	OIDCJWKSURL    string   `mapstructure:"OIDC_JWKS_URL" validate:"omitempty,url"`
	OIDCAudience   string   `mapstructure:"OIDC_AUDIENCE"`
	OIDCAlgorithms []string `mapstructure:"OIDC_ALGORITHMS" validate:"required,min=1,dive,oneof=RS256 RS384 RS512 PS256 PS384 PS512 ES256 ES384 ES512 EdDSA"`

	CORSAllowedOrigins []string `mapstructure:"CORS_ALLOWED_ORIGINS" validate:"omitempty,dive,url"`
}

var keys = []string{
	"APP_ENV",
	"HTTP_ADDR",
	"SHUTDOWN_TIMEOUT",
	"LOG_LEVEL",
	"LOG_FORMAT",
	"DATABASE_URL",
	"MIGRATIONS_DIR",
	"OIDC_ISSUER",
	"OIDC_JWKS_URL",
	"OIDC_AUDIENCE",
	"OIDC_ALGORITHMS",
	"CORS_ALLOWED_ORIGINS",
}

// LoadConfig reads .env files if present, applies defaults, binds the
// environment and validates the result.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("APP_ENV", string(GetEnvironment()))
	v.SetDefault("HTTP_ADDR", ":3000")
	v.SetDefault("SHUTDOWN_TIMEOUT", "15s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("OIDC_ALGORITHMS", "RS256,ES256")

	v.AutomaticEnv()
	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}
	cfg.OIDCAlgorithms = trimAll(cfg.OIDCAlgorithms)
	cfg.CORSAllowedOrigins = trimAll(cfg.CORSAllowedOrigins)
	cfg.OIDCIssuer = strings.TrimSuffix(cfg.OIDCIssuer, "/")

	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad loads configuration or exits the process on failure.
func MustLoad() *Config {
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
