package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_WritesTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.js")

	out, err := execute(t, "init", "--file", path, "-i", "inf", "-d", "30", "-t", "2.5", "-u", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "Created test file: "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	script := string(data)
	assert.Contains(t, script, "iterations: Infinity,")
	assert.Contains(t, script, "duration: 30,")
	assert.Contains(t, script, "timeout: 2.5,")
	assert.Contains(t, script, "vus: 4,")
	assert.Contains(t, script, "iteration: async function ()")
}

func TestInit_Defaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.js")

	_, err := execute(t, "init", "--file", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "iterations: 1,")
	assert.Contains(t, string(data), "duration: 10,")
	assert.Contains(t, string(data), "timeout: 30,")
	assert.Contains(t, string(data), "vus: 1,")
}

func TestInit_TemplateRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.js")

	_, err := execute(t, "init", "--file", path, "-i", "2", "-u", "2")
	require.NoError(t, err)

	out, err := execute(t, "run", path, "-q")
	require.NoError(t, err)
	assert.Equal(t, "All 2 tasks completed across 2 VUs\n", out)
}

func TestInit_RefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.js")
	require.NoError(t, os.WriteFile(path, []byte("keep me"), 0o644))

	_, err := execute(t, "init", "--file", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(data))

	_, err = execute(t, "init", "--file", path, "--force")
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "defineConfig")
}

func TestInit_InvalidValues(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		args []string
	}{
		{name: "no file", args: []string{"init"}},
		{name: "bad iterations", args: []string{"init", "--file", filepath.Join(dir, "a.js"), "-i", "lots"}},
		{name: "zero vus", args: []string{"init", "--file", filepath.Join(dir, "b.js"), "-u", "0"}},
		{name: "zero timeout", args: []string{"init", "--file", filepath.Join(dir, "c.js"), "-t", "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}
}
