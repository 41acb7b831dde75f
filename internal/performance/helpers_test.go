package performance

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/surge/internal/js"
	"github.com/wesleyorama2/surge/internal/performance/config"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int { return &i }
func secPtr(f float64) *config.Seconds {
	s := config.Seconds(f)
	return &s
}

// buildFromScript extracts the configuration of script and builds the shared
// runtime for it.
func buildFromScript(t *testing.T, script string, overrides config.Overrides) (config.TestConfig, *SharedRuntime) {
	t.Helper()
	ctx := context.Background()

	cfg, err := ExtractConfig(ctx, "test.js", script, ExtractOptions{Overrides: overrides, Logger: quietLogger()})
	require.NoError(t, err)

	shared, err := BuildSharedRuntime(ctx, cfg, js.Options{Logger: quietLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { shared.Runtime.Close() })

	return cfg, shared
}
