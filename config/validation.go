package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateConfig checks the struct rules and the requirements of the
// configured environment, reporting every problem at once.
func ValidateConfig(cfg *Config) error {
	var problems []ValidationError

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("configuration validation failed: %w", err)
		}
		for _, fe := range verrs {
			problems = append(problems, ValidationError{
				Field:   fe.Field(),
				Message: fmt.Sprintf("failed %q rule", fe.Tag()),
			})
		}
	}

	if cfg.IsProduction() {
		if !strings.HasPrefix(cfg.OIDCIssuer, "https://") {
			problems = append(problems, ValidationError{Field: "OIDCIssuer", Message: "must use https in production"})
		}
		if cfg.OIDCJWKSURL != "" && !strings.HasPrefix(cfg.OIDCJWKSURL, "https://") {
			problems = append(problems, ValidationError{Field: "OIDCJWKSURL", Message: "must use https in production"})
		}
	}

	if len(problems) > 0 {
		msgs := make([]string, len(problems))
		for i, p := range problems {
			msgs[i] = p.Error()
		}
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(msgs, "\n"))
	}

	return nil
}
