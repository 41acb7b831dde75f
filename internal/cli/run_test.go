package cli

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/surge/internal/performance"
	"github.com/wesleyorama2/surge/internal/performance/config"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRun_FiniteScript(t *testing.T) {
	script := writeFile(t, "test.js", `
		defineConfig({
			vus: 2,
			iterations: 4,
			iteration: async () => { await sleep(5); },
		});
	`)

	out, err := execute(t, "run", script, "--no-color")
	require.NoError(t, err)
	assert.Contains(t, out, "test.js - finite run")
	assert.Contains(t, out, "All 4 tasks completed across 2 VUs")
}

func TestRun_FlagOverrides(t *testing.T) {
	script := writeFile(t, "test.js", `defineConfig({ vus: 2, iterations: 4, iteration: () => {} });`)

	out, err := execute(t, "run", script, "-i", "6", "-u", "3", "--quiet")
	require.NoError(t, err)
	assert.Equal(t, "All 6 tasks completed across 3 VUs\n", out)
}

func TestRun_ConfigFileAndFlags(t *testing.T) {
	script := writeFile(t, "test.js", `defineConfig({ iteration: () => {} });`)
	overrides := writeFile(t, "overrides.yaml", "iterations: 5\nvus: 5\n")

	out, err := execute(t, "run", script, "--config", overrides, "-u", "1", "-q")
	require.NoError(t, err)
	assert.Equal(t, "All 5 tasks completed across 1 VUs\n", out)
}

func TestRun_InfiniteScript(t *testing.T) {
	script := writeFile(t, "test.js", `defineConfig({ iteration: async () => { await sleep(2000); } });`)

	out, err := execute(t, "run", script, "-i", "inf", "-d", "500ms", "-q")
	require.NoError(t, err)
	assert.Contains(t, out, "(infinite iterations with 0.5s timeout) - Rate: ")
}

func TestRun_MaxRate(t *testing.T) {
	script := writeFile(t, "test.js", `defineConfig({ iteration: () => {} });`)

	out, err := execute(t, "run", script, "-i", "inf", "-d", "0.3", "-u", "4", "--max-rate", "10", "-q")
	require.NoError(t, err)
	assert.Contains(t, out, "across 4 VUs (infinite iterations with 0.3s timeout)")
}

func TestRun_EnvFileAndHeaders(t *testing.T) {
	var seen atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.Store(r.Header.Get("X-Api-Key"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	env := writeFile(t, ".env", "TARGET="+server.URL+"\n")
	script := writeFile(t, "test.js", `
		defineConfig({
			iteration: async () => {
				const res = await fetch(__ENV.TARGET);
				if (res.status !== 204) throw new Error("status " + res.status);
			},
		});
	`)

	out, err := execute(t, "run", script, "--env-file", env, "-H", "X-Api-Key: secret", "-q")
	require.NoError(t, err)
	assert.Equal(t, "All 1 tasks completed across 1 VUs\n", out)
	assert.Equal(t, "secret", seen.Load())
}

func TestRun_Errors(t *testing.T) {
	script := writeFile(t, "test.js", `defineConfig({ iteration: () => {} });`)
	broken := writeFile(t, "broken.js", `defineConfig({`)

	tests := []struct {
		name string
		args []string
		is   error
	}{
		{name: "missing file", args: []string{"run", filepath.Join(t.TempDir(), "nope.js")}},
		{name: "no file argument", args: []string{"run"}},
		{name: "script error", args: []string{"run", broken}, is: performance.ErrScriptLoad},
		{name: "bad duration", args: []string{"run", script, "-d", "soon"}},
		{name: "bad header", args: []string{"run", script, "-H", "no-colon"}},
		{name: "missing overrides file", args: []string{"run", script, "--config", filepath.Join(t.TempDir(), "nope.yaml")}},
		{name: "negative max rate", args: []string{"run", script, "-i", "inf", "-d", "0.1", "--max-rate", "-5"}},
		{name: "missing env file", args: []string{"run", script, "--env-file", filepath.Join(t.TempDir(), "nope.env")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestRun_InvalidOverride(t *testing.T) {
	script := writeFile(t, "test.js", `defineConfig({ iteration: () => {} });`)

	_, err := execute(t, "run", script, "-u", "0")
	var verrs *config.ValidationErrors
	assert.ErrorAs(t, err, &verrs)
}

func TestOverridesFromFlags(t *testing.T) {
	overrides := writeFile(t, "o.yaml", "iterations: 10\nduration: 1m\ntimeout: 5\nvus: 4\n")

	cmd := newRunCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--config", overrides, "-i", "inf", "-t", "2.5"}))

	o, err := overridesFromFlags(cmd)
	require.NoError(t, err)
	require.NotNil(t, o.Iterations)
	assert.Equal(t, "inf", *o.Iterations)
	assert.EqualValues(t, 60, *o.Duration)
	assert.EqualValues(t, 2.5, *o.Timeout)
	assert.Equal(t, 4, *o.VUs)
}

func TestClientFromFlags(t *testing.T) {
	cmd := newRunCmd()
	require.NoError(t, cmd.ParseFlags([]string{"-k"}))

	client, err := clientFromFlags(cmd)
	require.NoError(t, err)
	assert.Equal(t, "surge/"+version, client.Config().UserAgent)
	assert.Equal(t, 30*time.Second, client.Config().Timeout)
}

func TestClientFromFlags_HTTPTimeout(t *testing.T) {
	cmd := newRunCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--http-timeout", "2s"}))

	client, err := clientFromFlags(cmd)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, client.Config().Timeout)

	cmd = newRunCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--http-timeout", "0s"}))
	_, err = clientFromFlags(cmd)
	assert.Error(t, err)
}
