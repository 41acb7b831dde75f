package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Overrides replace script-declared values field by field. A nil field
// leaves the script value in place.
type Overrides struct {
	Iterations *string  `yaml:"iterations"`
	Duration   *Seconds `yaml:"duration"`
	Timeout    *Seconds `yaml:"timeout"`
	VUs        *int     `yaml:"vus"`
}

// OverrideWarning records an override value that could not be used and the
// default substituted for it.
type OverrideWarning struct {
	Field    string
	Value    string
	Fallback float64
}

func (w OverrideWarning) String() string {
	return fmt.Sprintf("cannot parse %s override %q, using %g", w.Field, w.Value, w.Fallback)
}

// ParseIterations parses an iteration count. "inf" and "infinity" in any
// case mean +Inf. Anything unparseable yields 1 and a warning.
func ParseIterations(s string) (float64, *OverrideWarning) {
	trimmed := strings.TrimSpace(s)
	switch strings.ToLower(trimmed) {
	case "inf", "infinity", "+inf", "+infinity":
		return math.Inf(1), nil
	}

	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(v) {
		return DefaultIterations, &OverrideWarning{
			Field:    "iterations",
			Value:    s,
			Fallback: DefaultIterations,
		}
	}
	return v, nil
}

// Merge returns o with every field set in other replacing its own.
func (o Overrides) Merge(other Overrides) Overrides {
	if other.Iterations != nil {
		o.Iterations = other.Iterations
	}
	if other.Duration != nil {
		o.Duration = other.Duration
	}
	if other.Timeout != nil {
		o.Timeout = other.Timeout
	}
	if other.VUs != nil {
		o.VUs = other.VUs
	}
	return o
}

// Apply returns c with the overrides applied and any fallback warnings.
func (c TestConfig) Apply(o Overrides) (TestConfig, []OverrideWarning) {
	var warnings []OverrideWarning

	if o.Iterations != nil {
		v, warn := ParseIterations(*o.Iterations)
		if warn != nil {
			warnings = append(warnings, *warn)
		}
		c.Iterations = v
	}
	if o.Duration != nil {
		c.Duration = float64(*o.Duration)
	}
	if o.Timeout != nil {
		c.Timeout = float64(*o.Timeout)
	}
	if o.VUs != nil {
		c.VUs = *o.VUs
	}

	return c, warnings
}

// Seconds is a number of seconds that can also be written as a Go duration
// string ("1m30s") in an overrides file.
type Seconds float64

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Seconds) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var f float64
	if err := unmarshal(&f); err == nil {
		*s = Seconds(f)
		return nil
	}

	var str string
	if err := unmarshal(&str); err != nil {
		return err
	}
	v, err := ParseSeconds(str)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseSeconds parses a plain number of seconds ("2.5") or a Go duration
// string ("1m30s").
func ParseSeconds(str string) (Seconds, error) {
	str = strings.TrimSpace(str)
	if f, err := strconv.ParseFloat(str, 64); err == nil {
		return Seconds(f), nil
	}
	d, err := time.ParseDuration(str)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", str, err)
	}
	return Seconds(d.Seconds()), nil
}

// LoadOverrides reads an overrides file. JSON files are read by the same
// YAML decoder.
//
// Example:
//
//	iterations: inf
//	duration: 30s
//	timeout: 5
//	vus: 10
func LoadOverrides(path string) (Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Overrides{}, fmt.Errorf("failed to read overrides file: %w", err)
	}
	return ParseOverrides(data)
}

// ParseOverrides decodes overrides from YAML or JSON.
func ParseOverrides(data []byte) (Overrides, error) {
	var o Overrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return Overrides{}, fmt.Errorf("failed to parse overrides: %w", err)
	}
	return o, nil
}

// LoadEnv returns the process environment with the variables from the
// dotenv file at path layered on top. An empty path returns the process
// environment only.
func LoadEnv(path string) (map[string]string, error) {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}

	if path == "" {
		return env, nil
	}

	fileEnv, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read env file: %w", err)
	}
	for k, v := range fileEnv {
		env[k] = v
	}
	return env, nil
}
