package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	surgehttp "github.com/wesleyorama2/surge/internal/http"
	"github.com/wesleyorama2/surge/internal/performance/config"
	"github.com/wesleyorama2/surge/internal/performance/engine"
	"github.com/wesleyorama2/surge/internal/performance/output"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Run a test script",
		Long: `Run a test script. Values given on the command line override those in the
overrides file, which override those declared by the script.

Examples:
  surge run test.js
  surge run test.js -i 100 -u 10
  surge run test.js -i inf -d 30 -t 5
  surge run test.js --config overrides.yaml --env-file .env`,
		Args: cobra.ExactArgs(1),
		RunE: runTest,
	}

	cmd.Flags().StringP("iterations", "i", "", "Number of iterations, or 'inf' to run for the whole duration")
	cmd.Flags().StringP("duration", "d", "", "Run duration for infinite iterations, in seconds or as a Go duration")
	cmd.Flags().StringP("timeout", "t", "", "Timeout of a single iteration, in seconds or as a Go duration")
	cmd.Flags().IntP("vus", "u", 0, "Number of virtual users")
	cmd.Flags().String("config", "", "YAML or JSON overrides file")
	cmd.Flags().String("env-file", "", "Dotenv file exposed to the script as __ENV")
	cmd.Flags().Duration("graceful-stop", 0, "Time active iterations may finish after an infinite run ends")
	cmd.Flags().Float64("max-rate", 0, "Maximum iterations spawned per second in an infinite run (0 means unlimited)")
	cmd.Flags().Duration("progress", 0, "Print a progress line at this interval (0 disables)")
	cmd.Flags().BoolP("quiet", "q", false, "Only print the summary line")
	cmd.Flags().BoolP("insecure", "k", false, "Skip TLS certificate verification in fetch")
	cmd.Flags().Duration("http-timeout", 0, "Timeout of a single fetch, body included (default 30s)")
	cmd.Flags().StringArrayP("header", "H", nil, "Default header for every fetch (format: 'Key: Value')")
	return cmd
}

func runTest(cmd *cobra.Command, args []string) error {
	file := args[0]
	script, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("failed to read test file: %w", err)
	}

	logger, err := newLogger(cmd, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	overrides, err := overridesFromFlags(cmd)
	if err != nil {
		return err
	}

	envFile, _ := cmd.Flags().GetString("env-file")
	env, err := config.LoadEnv(envFile)
	if err != nil {
		return err
	}

	client, err := clientFromFlags(cmd)
	if err != nil {
		return err
	}
	defer client.CloseIdleConnections()

	clientCfg := client.Config()
	logger.WithFields(logrus.Fields{
		"timeout":                 clientCfg.Timeout,
		"connect_timeout":         clientCfg.ConnectTimeout,
		"max_idle_conns_per_host": clientCfg.MaxIdleConnsPerHost,
		"user_agent":              clientCfg.UserAgent,
	}).Debug("HTTP client configured")

	gracefulStop, _ := cmd.Flags().GetDuration("graceful-stop")
	maxRate, _ := cmd.Flags().GetFloat64("max-rate")
	progress, _ := cmd.Flags().GetDuration("progress")
	quiet, _ := cmd.Flags().GetBool("quiet")
	noColor, _ := cmd.Flags().GetBool("no-color")

	console := output.NewConsoleOutput(output.ConsoleOutputConfig{
		Writer:  cmd.OutOrStdout(),
		Quiet:   quiet,
		NoColor: noColor,
	})

	eng := engine.New(engine.Options{
		ScriptName:   filepath.Base(file),
		Script:       string(script),
		Overrides:    overrides,
		Env:          env,
		HTTPClient:   client,
		GracefulStop: gracefulStop,
		MaxRate:      maxRate,
		Logger:       logger,
		OnStart: func(cfg config.TestConfig) {
			console.PrintHeader(filepath.Base(file), cfg)
		},
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if progress > 0 && !quiet {
		done := make(chan struct{})
		defer close(done)
		go reportProgress(console, eng, progress, done)
	}

	result, err := eng.Run(ctx)
	if err != nil {
		return err
	}

	console.PrintSummary(result)
	return nil
}

// overridesFromFlags merges the overrides file with the command-line values,
// the latter winning.
func overridesFromFlags(cmd *cobra.Command) (config.Overrides, error) {
	var fromFile config.Overrides
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		var err error
		if fromFile, err = config.LoadOverrides(path); err != nil {
			return config.Overrides{}, err
		}
	}

	var flags config.Overrides
	if cmd.Flags().Changed("iterations") {
		v, _ := cmd.Flags().GetString("iterations")
		flags.Iterations = &v
	}
	for _, name := range []string{"duration", "timeout"} {
		if !cmd.Flags().Changed(name) {
			continue
		}
		raw, _ := cmd.Flags().GetString(name)
		v, err := config.ParseSeconds(raw)
		if err != nil {
			return config.Overrides{}, fmt.Errorf("invalid --%s: %w", name, err)
		}
		if name == "duration" {
			flags.Duration = &v
		} else {
			flags.Timeout = &v
		}
	}
	if cmd.Flags().Changed("vus") {
		v, _ := cmd.Flags().GetInt("vus")
		flags.VUs = &v
	}

	return fromFile.Merge(flags), nil
}

func clientFromFlags(cmd *cobra.Command) (*surgehttp.Client, error) {
	var opts []surgehttp.ClientOption

	if insecure, _ := cmd.Flags().GetBool("insecure"); insecure {
		opts = append(opts, surgehttp.WithInsecureSkipVerify())
	}

	if cmd.Flags().Changed("http-timeout") {
		timeout, _ := cmd.Flags().GetDuration("http-timeout")
		if timeout <= 0 {
			return nil, fmt.Errorf("invalid --http-timeout: must be > 0, got %s", timeout)
		}
		opts = append(opts, surgehttp.WithTimeout(timeout))
	}

	headers, _ := cmd.Flags().GetStringArray("header")
	for _, h := range headers {
		key, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid header format: %s", h)
		}
		opts = append(opts, surgehttp.WithHeader(strings.TrimSpace(key), strings.TrimSpace(value)))
	}

	return surgehttp.NewClient(surgehttp.DefaultClientConfig(version), opts...), nil
}

func reportProgress(console *output.ConsoleOutput, eng *engine.Engine, interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			console.PrintProgress(eng.Metrics().GetSnapshot())
		}
	}
}
