// Package config holds the resolved parameters of a run and the ways they can
// be overridden.
package config

import (
	"math"
	"time"
)

// Defaults used for any field a script does not declare.
const (
	DefaultIterations      = 1
	DefaultDuration        = 10
	DefaultTimeout         = 30
	DefaultVUs             = 1
	DefaultIterationSource = "function() {}"
)

// Upper bounds on resolved values.
const (
	// MaxSeconds is the longest duration or timeout a time.Duration holds.
	MaxSeconds = float64(math.MaxInt64) / float64(time.Second)

	// MaxVUs bounds the VU count.
	MaxVUs = 100000
)

// TestConfig is the resolved configuration of one run. It is built once and
// not mutated afterwards.
type TestConfig struct {
	// Iterations is the requested iteration count; +Inf selects infinite mode
	Iterations float64 `json:"iterations" yaml:"iterations"`

	// Duration is the run length in seconds (infinite mode)
	Duration float64 `json:"duration" yaml:"duration"`

	// Timeout is the per-iteration deadline in seconds
	Timeout float64 `json:"timeout" yaml:"timeout"`

	// VUs is the number of virtual users
	VUs int `json:"vus" yaml:"vus"`

	// IterationSource is the serialized iteration routine
	IterationSource string `json:"-" yaml:"-"`

	// SetupSource and TeardownSource are the optional lifecycle hooks
	SetupSource    string `json:"-" yaml:"-"`
	TeardownSource string `json:"-" yaml:"-"`
}

// Default returns a TestConfig with every field at its default.
func Default() TestConfig {
	return TestConfig{
		Iterations:      DefaultIterations,
		Duration:        DefaultDuration,
		Timeout:         DefaultTimeout,
		VUs:             DefaultVUs,
		IterationSource: DefaultIterationSource,
	}
}

// IsInfinite reports whether the run is duration-bound.
func (c TestConfig) IsInfinite() bool {
	return math.IsInf(c.Iterations, 1)
}

// RunDuration returns Duration as a time.Duration.
func (c TestConfig) RunDuration() time.Duration {
	return seconds(c.Duration)
}

// IterationTimeout returns Timeout as a time.Duration.
func (c TestConfig) IterationTimeout() time.Duration {
	return seconds(c.Timeout)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
