package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int { return &i }
func secPtr(f float64) *Seconds {
	s := Seconds(f)
	return &s
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 1.0, cfg.Iterations)
	assert.Equal(t, 10.0, cfg.Duration)
	assert.Equal(t, 30.0, cfg.Timeout)
	assert.Equal(t, 1, cfg.VUs)
	assert.Equal(t, "function() {}", cfg.IterationSource)
	assert.False(t, cfg.IsInfinite())
	assert.Equal(t, 10*time.Second, cfg.RunDuration())
	assert.Equal(t, 30*time.Second, cfg.IterationTimeout())
	assert.NoError(t, cfg.Validate())
}

func TestParseIterations(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
		warn     bool
	}{
		{input: "10", expected: 10},
		{input: " 25 ", expected: 25},
		{input: "2.5", expected: 2.5},
		{input: "0", expected: 0},
		{input: "inf", expected: math.Inf(1)},
		{input: "INF", expected: math.Inf(1)},
		{input: "Infinity", expected: math.Inf(1)},
		{input: "infinity", expected: math.Inf(1)},
		{input: "iNfInItY", expected: math.Inf(1)},
		{input: "abc", expected: 1, warn: true},
		{input: "", expected: 1, warn: true},
		{input: "NaN", expected: 1, warn: true},
		{input: "10x", expected: 1, warn: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, warn := ParseIterations(tt.input)
			assert.Equal(t, tt.expected, got)
			if tt.warn {
				require.NotNil(t, warn)
				assert.Equal(t, "iterations", warn.Field)
				assert.Equal(t, tt.input, warn.Value)
				assert.Equal(t, 1.0, warn.Fallback)
				assert.Contains(t, warn.String(), "using 1")
			} else {
				assert.Nil(t, warn)
			}
		})
	}
}

func TestApply_PerFieldIndependence(t *testing.T) {
	script := TestConfig{Iterations: 10, Duration: 5, Timeout: 30, VUs: 2, IterationSource: "() => {}"}

	tests := []struct {
		name      string
		overrides Overrides
		expected  TestConfig
	}{
		{
			name:      "no overrides",
			overrides: Overrides{},
			expected:  script,
		},
		{
			name:      "iterations only",
			overrides: Overrides{Iterations: strPtr("50")},
			expected:  TestConfig{Iterations: 50, Duration: 5, Timeout: 30, VUs: 2, IterationSource: "() => {}"},
		},
		{
			name:      "duration only",
			overrides: Overrides{Duration: secPtr(60)},
			expected:  TestConfig{Iterations: 10, Duration: 60, Timeout: 30, VUs: 2, IterationSource: "() => {}"},
		},
		{
			name:      "timeout only",
			overrides: Overrides{Timeout: secPtr(1.5)},
			expected:  TestConfig{Iterations: 10, Duration: 5, Timeout: 1.5, VUs: 2, IterationSource: "() => {}"},
		},
		{
			name:      "vus only",
			overrides: Overrides{VUs: intPtr(8)},
			expected:  TestConfig{Iterations: 10, Duration: 5, Timeout: 30, VUs: 8, IterationSource: "() => {}"},
		},
		{
			name: "all",
			overrides: Overrides{
				Iterations: strPtr("inf"),
				Duration:   secPtr(1),
				Timeout:    secPtr(2),
				VUs:        intPtr(3),
			},
			expected: TestConfig{Iterations: math.Inf(1), Duration: 1, Timeout: 2, VUs: 3, IterationSource: "() => {}"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, warnings := script.Apply(tt.overrides)
			assert.Empty(t, warnings)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestApply_InvalidIterationsWarns(t *testing.T) {
	cfg, warnings := Default().Apply(Overrides{Iterations: strPtr("lots")})

	assert.Equal(t, 1.0, cfg.Iterations)
	require.Len(t, warnings, 1)
	assert.Equal(t, "lots", warnings[0].Value)
}

func TestApply_InfSelectsInfiniteMode(t *testing.T) {
	cfg, _ := Default().Apply(Overrides{Iterations: strPtr("Infinity")})
	assert.True(t, cfg.IsInfinite())
}

func TestOverrides_Merge(t *testing.T) {
	file := Overrides{Iterations: strPtr("5"), VUs: intPtr(2), Timeout: secPtr(3)}
	flags := Overrides{VUs: intPtr(9), Duration: secPtr(7)}

	merged := file.Merge(flags)

	assert.Equal(t, "5", *merged.Iterations)
	assert.Equal(t, 9, *merged.VUs, "flags win over the file")
	assert.Equal(t, Seconds(7), *merged.Duration)
	assert.Equal(t, Seconds(3), *merged.Timeout)
}

func TestParseOverrides(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		check   func(t *testing.T, o Overrides)
		wantErr bool
	}{
		{
			name: "yaml with numbers",
			data: "iterations: 20\nduration: 15\ntimeout: 2.5\nvus: 4\n",
			check: func(t *testing.T, o Overrides) {
				assert.Equal(t, "20", *o.Iterations)
				assert.Equal(t, Seconds(15), *o.Duration)
				assert.Equal(t, Seconds(2.5), *o.Timeout)
				assert.Equal(t, 4, *o.VUs)
			},
		},
		{
			name: "yaml with duration strings and inf",
			data: "iterations: inf\nduration: 1m30s\ntimeout: 500ms\n",
			check: func(t *testing.T, o Overrides) {
				assert.Equal(t, "inf", *o.Iterations)
				assert.Equal(t, Seconds(90), *o.Duration)
				assert.Equal(t, Seconds(0.5), *o.Timeout)
				assert.Nil(t, o.VUs)
			},
		},
		{
			name: "json",
			data: `{"vus": 3, "duration": 12}`,
			check: func(t *testing.T, o Overrides) {
				assert.Equal(t, 3, *o.VUs)
				assert.Equal(t, Seconds(12), *o.Duration)
				assert.Nil(t, o.Iterations)
			},
		},
		{
			name:    "bad duration",
			data:    "duration: soon\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := ParseOverrides([]byte(tt.data))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, o)
		})
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overrides.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vus: 6\n"), 0o644))

	o, err := LoadOverrides(path)
	require.NoError(t, err)
	assert.Equal(t, 6, *o.VUs)

	_, err = LoadOverrides(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("SURGE_TEST_PROCESS", "process")
	t.Setenv("SURGE_TEST_SHADOWED", "process")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SURGE_TEST_SHADOWED=file\nSURGE_TEST_FILE=\"quoted value\"\n"), 0o644))

	env, err := LoadEnv(path)
	require.NoError(t, err)
	assert.Equal(t, "process", env["SURGE_TEST_PROCESS"])
	assert.Equal(t, "file", env["SURGE_TEST_SHADOWED"])
	assert.Equal(t, "quoted value", env["SURGE_TEST_FILE"])

	env, err = LoadEnv("")
	require.NoError(t, err)
	assert.Equal(t, "process", env["SURGE_TEST_SHADOWED"])

	_, err = LoadEnv(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := TestConfig{Iterations: 10, Duration: 5, Timeout: 30, VUs: 2, IterationSource: "() => {}"}

	tests := []struct {
		name   string
		mutate func(c *TestConfig)
		fields []string
	}{
		{name: "valid", mutate: func(c *TestConfig) {}},
		{name: "infinite iterations", mutate: func(c *TestConfig) { c.Iterations = math.Inf(1) }},
		{name: "zero iterations", mutate: func(c *TestConfig) { c.Iterations = 0 }},
		{name: "negative iterations", mutate: func(c *TestConfig) { c.Iterations = -1 }, fields: []string{"iterations"}},
		{name: "NaN iterations", mutate: func(c *TestConfig) { c.Iterations = math.NaN() }, fields: []string{"iterations"}},
		{name: "infinite duration", mutate: func(c *TestConfig) { c.Duration = math.Inf(1) }, fields: []string{"duration"}},
		{name: "zero timeout", mutate: func(c *TestConfig) { c.Timeout = 0 }, fields: []string{"timeout"}},
		{name: "timeout overflows duration", mutate: func(c *TestConfig) { c.Timeout = 1e12 }, fields: []string{"timeout"}},
		{name: "duration overflows duration", mutate: func(c *TestConfig) { c.Duration = 1e12 }, fields: []string{"duration"}},
		{name: "longest timeout", mutate: func(c *TestConfig) { c.Timeout = 9e9 }},
		{name: "too many vus", mutate: func(c *TestConfig) { c.VUs = MaxVUs + 1 }, fields: []string{"vus"}},
		{name: "zero vus", mutate: func(c *TestConfig) { c.VUs = 0 }, fields: []string{"vus"}},
		{name: "empty source", mutate: func(c *TestConfig) { c.IterationSource = " " }, fields: []string{"iteration"}},
		{
			name: "several",
			mutate: func(c *TestConfig) {
				c.VUs = -1
				c.Timeout = -2
			},
			fields: []string{"timeout", "vus"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if len(tt.fields) == 0 {
				assert.NoError(t, err)
				return
			}

			var verrs *ValidationErrors
			require.True(t, errors.As(err, &verrs), "expected *ValidationErrors, got %v", err)
			var fields []string
			for _, e := range verrs.Errors {
				fields = append(fields, e.Field)
			}
			assert.Equal(t, tt.fields, fields)
		})
	}
}

func TestValidationErrors_Error(t *testing.T) {
	errs := &ValidationErrors{}
	assert.Equal(t, "no validation errors", errs.Error())

	errs.Add("vus", "must be at least 1")
	assert.Equal(t, "validation error on field 'vus': must be at least 1", errs.Error())

	errs.Add("", "general problem")
	assert.Contains(t, errs.Error(), "2 validation errors:")
	assert.Contains(t, errs.Error(), "validation error: general problem")
}

func TestParseSeconds(t *testing.T) {
	tests := []struct {
		in      string
		want    Seconds
		wantErr bool
	}{
		{in: "10", want: 10},
		{in: " 2.5 ", want: 2.5},
		{in: "1m30s", want: 90},
		{in: "250ms", want: 0.25},
		{in: "soon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSeconds(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, float64(tt.want), float64(got), 1e-9)
		})
	}
}
