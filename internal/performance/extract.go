package performance

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/wesleyorama2/surge/internal/js"
	"github.com/wesleyorama2/surge/internal/performance/config"
)

// ErrScriptLoad is returned when the user script fails to run as top-level
// code.
var ErrScriptLoad = errors.New("failed to load script")

// ExtractOptions configures ExtractConfig.
type ExtractOptions struct {
	// Overrides replace script-declared values per field
	Overrides config.Overrides

	// Env is exposed to the script as __ENV
	Env map[string]string

	Logger logrus.FieldLogger
}

// ExtractConfig runs script in a disposable runtime and reads the declared
// configuration back from globalThis.currentConfig. Fields the script does
// not declare as numbers fall back to their defaults. Overrides are applied
// last and the result is validated.
func ExtractConfig(ctx context.Context, name, script string, opts ExtractOptions) (config.TestConfig, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	rt, err := js.New(js.Options{Name: "extract", Logger: logger, Env: opts.Env})
	if err != nil {
		return config.TestConfig{}, err
	}
	defer rt.Close()

	if err := rt.RunScript(ctx, name, script); err != nil {
		return config.TestConfig{}, fmt.Errorf("%w %s: %v", ErrScriptLoad, name, err)
	}

	cfg := config.Default()
	cfg.Iterations = readNumber(ctx, rt, "iterations", config.DefaultIterations)
	cfg.Duration = readNumber(ctx, rt, "duration", config.DefaultDuration)
	cfg.Timeout = readNumber(ctx, rt, "timeout", config.DefaultTimeout)

	vus := readNumber(ctx, rt, "vus", config.DefaultVUs)
	if vus < 1 {
		logger.WithField("vus", vus).Warn("Script declares an invalid VU count, using 1")
		vus = 1
	}
	// Out-of-range counts are kept out of range so Validate rejects them
	// unless an override replaces them.
	cfg.VUs = int(math.Min(vus, config.MaxVUs+1))

	if cfg.Timeout <= 0 {
		logger.WithField("timeout", cfg.Timeout).Warnf("Script declares a non-positive timeout, using %ds", config.DefaultTimeout)
		cfg.Timeout = config.DefaultTimeout
	}

	if src, ok := readSource(ctx, rt, "iteration"); ok {
		cfg.IterationSource = src
	}
	cfg.SetupSource, _ = readSource(ctx, rt, "setup")
	cfg.TeardownSource, _ = readSource(ctx, rt, "teardown")

	cfg, warnings := cfg.Apply(opts.Overrides)
	for _, w := range warnings {
		logger.WithFields(logrus.Fields{
			"event":    "override_fallback",
			"field":    w.Field,
			"value":    w.Value,
			"fallback": w.Fallback,
		}).Warn(w.String())
	}

	if err := cfg.Validate(); err != nil {
		return config.TestConfig{}, err
	}
	return cfg, nil
}

// readNumber reads globalThis.currentConfig[field]. Anything that is not a
// number, including a read that throws, yields def.
func readNumber(ctx context.Context, rt *js.Runtime, field string, def float64) float64 {
	v, err := rt.Eval(ctx, "globalThis.currentConfig."+field)
	if err != nil {
		return def
	}
	switch n := v.(type) {
	case int64:
		return float64(n)
	case float64:
		if math.IsNaN(n) {
			return def
		}
		return n
	default:
		return def
	}
}

// readSource serializes globalThis.currentConfig[field] if it is a
// function.
func readSource(ctx context.Context, rt *js.Runtime, field string) (string, bool) {
	expr := fmt.Sprintf(`(function (c) {
		var f = c && c[%q];
		return typeof f === "function" ? f.toString() : undefined;
	})(globalThis.currentConfig)`, field)

	v, err := rt.Eval(ctx, expr)
	if err != nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
