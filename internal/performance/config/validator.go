package config

import (
	"fmt"
	"math"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add adds an error to the collection.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are any errors.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// Validate checks the resolved configuration.
//
// Returns nil if valid, or a *ValidationErrors listing every problem.
func (c TestConfig) Validate() error {
	errs := &ValidationErrors{}

	switch {
	case math.IsNaN(c.Iterations):
		errs.Add("iterations", "must be a number")
	case c.Iterations < 0:
		errs.Add("iterations", fmt.Sprintf("must be >= 0, got %g", c.Iterations))
	}

	switch {
	case math.IsNaN(c.Duration) || math.IsInf(c.Duration, 0):
		errs.Add("duration", "must be a finite number of seconds")
	case c.Duration < 0:
		errs.Add("duration", fmt.Sprintf("must be >= 0, got %g", c.Duration))
	case c.Duration > MaxSeconds:
		errs.Add("duration", fmt.Sprintf("must be at most %.0f seconds, got %g", MaxSeconds, c.Duration))
	}

	switch {
	case math.IsNaN(c.Timeout) || math.IsInf(c.Timeout, 0):
		errs.Add("timeout", "must be a finite number of seconds")
	case c.Timeout <= 0:
		errs.Add("timeout", fmt.Sprintf("must be > 0, got %g", c.Timeout))
	case c.Timeout > MaxSeconds:
		errs.Add("timeout", fmt.Sprintf("must be at most %.0f seconds, got %g", MaxSeconds, c.Timeout))
	}

	switch {
	case c.VUs < 1:
		errs.Add("vus", fmt.Sprintf("must be at least 1, got %d", c.VUs))
	case c.VUs > MaxVUs:
		errs.Add("vus", fmt.Sprintf("must be at most %d, got %d", MaxVUs, c.VUs))
	}

	if strings.TrimSpace(c.IterationSource) == "" {
		errs.Add("iteration", "iteration source is empty")
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
