package performance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/wesleyorama2/surge/internal/js"
	"github.com/wesleyorama2/surge/internal/performance/config"
)

// ErrRuntimeBuild wraps any failure to construct the shared runtime. It is
// fatal for the run.
var ErrRuntimeBuild = errors.New("failed to build shared runtime")

const (
	iterationDriver = "globalThis.currentConfig.iteration();"
	setupDriver     = "globalThis.currentConfig.setup();"
	teardownDriver  = "globalThis.currentConfig.teardown();"
)

// SharedRuntime is the one runtime all iterations of a run execute against,
// together with the compiled drivers.
type SharedRuntime struct {
	Runtime   *js.Runtime
	Iteration *js.Program
	Setup     *js.Program
	Teardown  *js.Program
}

// BuildSharedRuntime creates the shared runtime for cfg: it injects the
// resolved configuration as globalThis.currentConfig, re-embeds the
// iteration routine as a live function and compiles the drivers once.
func BuildSharedRuntime(ctx context.Context, cfg config.TestConfig, opts js.Options) (*SharedRuntime, error) {
	if opts.Name == "" {
		opts.Name = "shared"
	}
	rt, err := js.New(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRuntimeBuild, err)
	}

	shared, err := prepareShared(ctx, rt, cfg)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("%w: %v", ErrRuntimeBuild, err)
	}
	return shared, nil
}

func prepareShared(ctx context.Context, rt *js.Runtime, cfg config.TestConfig) (*SharedRuntime, error) {
	src, err := injectionSource(cfg)
	if err != nil {
		return nil, err
	}
	if err := rt.RunScript(ctx, "config.js", src); err != nil {
		return nil, fmt.Errorf("inject config: %w", err)
	}

	shared := &SharedRuntime{Runtime: rt}
	drivers := []struct {
		name string
		src  string
		dst  **js.Program
	}{
		{"iteration.js", iterationDriver, &shared.Iteration},
		{"setup.js", setupDriver, &shared.Setup},
		{"teardown.js", teardownDriver, &shared.Teardown},
	}
	for _, d := range drivers {
		prog, err := js.Compile(d.name, d.src)
		if err != nil {
			return nil, err
		}
		*d.dst = prog
	}
	return shared, nil
}

func injectionSource(cfg config.TestConfig) (string, error) {
	iteration, err := functionExpr("iteration", cfg.IterationSource)
	if err != nil {
		return "", err
	}
	setup, err := functionExpr("setup", cfg.SetupSource)
	if err != nil {
		return "", err
	}
	teardown, err := functionExpr("teardown", cfg.TeardownSource)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("globalThis.currentConfig = {\n")
	fmt.Fprintf(&b, "  iterations: %s,\n", jsNumber(cfg.Iterations))
	fmt.Fprintf(&b, "  duration: %s,\n", jsNumber(cfg.Duration))
	fmt.Fprintf(&b, "  timeout: %s,\n", jsNumber(cfg.Timeout))
	fmt.Fprintf(&b, "  vus: %d,\n", cfg.VUs)
	fmt.Fprintf(&b, "  iteration: %s,\n", iteration)
	fmt.Fprintf(&b, "  setup: %s,\n", setup)
	fmt.Fprintf(&b, "  teardown: %s,\n", teardown)
	b.WriteString("};\n")
	return b.String(), nil
}

// functionExpr turns serialized function source into an expression that
// evaluates to the function. Method shorthand ("iteration() {}") is only
// valid inside an object literal, so it is wrapped in one.
func functionExpr(name, src string) (string, error) {
	if strings.TrimSpace(src) == "" {
		return "function () {}", nil
	}

	plain := "(\n" + src + "\n)"
	if _, err := js.Compile(name+".js", plain); err == nil {
		return plain, nil
	}

	method := "Object.values({\n" + src + "\n})[0]"
	if _, err := js.Compile(name+".js", method); err != nil {
		return "", fmt.Errorf("%s source is not a function: %w", name, err)
	}
	return method, nil
}

func jsNumber(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case math.IsNaN(f):
		return "NaN"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
