package cli

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"text/template"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/surge/internal/performance/config"
)

var scriptTemplate = template.Must(template.New("script").Parse(`console.log({{printf "%q" (print "Starting test: " .File)}});

defineConfig({
  iterations: {{.Iterations}},
  duration: {{.Duration}},
  timeout: {{.Timeout}}, // max timeout for each iteration
  vus: {{.VUs}}, // Virtual Users
  iteration: async function () {
    console.log("iteration starting");

    // Add your test logic here
    // Example: const res = await fetch("https://example.com");
    await sleep(100);

    console.log("iteration completed");
  },
});
`))

type scriptParams struct {
	File       string
	Iterations string
	Duration   string
	Timeout    string
	VUs        int
}

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a new test script",
		Long: `Create a test script from a template with the given configuration.

Examples:
  surge init --file test.js
  surge init --file soak.js -i inf -d 300 -u 20`,
		Args: cobra.NoArgs,
		RunE: initScript,
	}

	cmd.Flags().StringP("file", "f", "", "Name of the test file to create")
	cmd.Flags().StringP("iterations", "i", "1", "Number of iterations, or 'inf' for infinite")
	cmd.Flags().Float64P("duration", "d", config.DefaultDuration, "Duration in seconds")
	cmd.Flags().Float64P("timeout", "t", config.DefaultTimeout, "Timeout per iteration in seconds")
	cmd.Flags().IntP("vus", "u", config.DefaultVUs, "Number of virtual users")
	cmd.Flags().Bool("force", false, "Overwrite an existing file")
	cmd.MarkFlagRequired("file")
	return cmd
}

func initScript(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")
	iterations, _ := cmd.Flags().GetString("iterations")
	duration, _ := cmd.Flags().GetFloat64("duration")
	timeout, _ := cmd.Flags().GetFloat64("timeout")
	vus, _ := cmd.Flags().GetInt("vus")
	force, _ := cmd.Flags().GetBool("force")

	params, err := newScriptParams(file, iterations, duration, timeout, vus)
	if err != nil {
		return err
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !force {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(file, flags, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s already exists, use --force to overwrite it", file)
		}
		return fmt.Errorf("failed to create test file: %w", err)
	}
	defer f.Close()

	if err := scriptTemplate.Execute(f, params); err != nil {
		return fmt.Errorf("failed to write test file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created test file: %s\n", file)
	fmt.Fprintln(out, "Edit the iteration function to add your test logic")
	return nil
}

// newScriptParams checks the values the same way a run would resolve them.
func newScriptParams(file, iterations string, duration, timeout float64, vus int) (scriptParams, error) {
	n, warning := config.ParseIterations(iterations)
	if warning != nil {
		return scriptParams{}, fmt.Errorf("invalid --iterations %q: expected a number or 'inf'", iterations)
	}

	cfg := config.Default()
	cfg.Iterations = n
	cfg.Duration = duration
	cfg.Timeout = timeout
	cfg.VUs = vus
	if err := cfg.Validate(); err != nil {
		return scriptParams{}, err
	}

	return scriptParams{
		File:       file,
		Iterations: jsNumber(n),
		Duration:   jsNumber(duration),
		Timeout:    jsNumber(timeout),
		VUs:        vus,
	}, nil
}

func jsNumber(f float64) string {
	if math.IsInf(f, 1) {
		return "Infinity"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
