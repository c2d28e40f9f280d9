package config

import "os"

// Environment is the deployment stage the process runs in.
type Environment string

const (
	Development Environment = "development"
	Test        Environment = "test"
	CI          Environment = "ci"
	Production  Environment = "production"
)

// GetEnvironment reads the stage from APP_ENV. CI=true takes precedence,
// and unknown values fall back to development.
func GetEnvironment() Environment {
	if os.Getenv("CI") == "true" {
		return CI
	}
	switch env := Environment(os.Getenv("APP_ENV")); env {
	case Production, Test, CI:
		return env
	default:
		return Development
	}
}

// IsProduction reports whether the loaded configuration targets production.
// Production turns on gin release mode, quiets SQL logging and requires
// https issuer URLs.
func (c *Config) IsProduction() bool {
	return c.AppEnv == Production
}
