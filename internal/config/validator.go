package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Sentinel-Gate/Sentinelgate/internal/domain/policy"
)

// Validate validates PDPConfig using struct tags and the cross-field rule
// that DefaultCombiningAlgorithm must name a registered algorithm.
func (c *PDPConfig) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if err := c.validateDefaultCombiningAlgorithm(); err != nil {
		return err
	}

	return nil
}

// validateDefaultCombiningAlgorithm ensures DefaultCombiningAlgorithm names
// one of the standard registered algorithms (the only ones a host running
// without custom registrations can rely on).
func (c *PDPConfig) validateDefaultCombiningAlgorithm() error {
	registry := policy.DefaultCombiningAlgRegistry()
	if _, ok := registry.Get(c.DefaultCombiningAlgorithm); !ok {
		return fmt.Errorf("default_combining_algorithm: unknown algorithm %q", c.DefaultCombiningAlgorithm)
	}
	return nil
}

func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	tag := e.Tag()

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}
