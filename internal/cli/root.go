package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/wesleyorama2/surge/internal/performance/output"
)

var version = "0.1.0"

// RootCmd represents the base command when called without any subcommands
var RootCmd = NewRootCmd()

// NewRootCmd builds the command tree. Each call returns fresh commands with
// their own flag state.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "surge",
		Short:   "A scriptable load generator",
		Version: version,
		Long: `Surge runs a JavaScript iteration routine concurrently across virtual
users and reports how many iterations completed, failed or timed out.

A test script declares its configuration with defineConfig and may use
sleep, setTimeout and fetch inside the iteration routine.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			// If no subcommand is provided, print help
			cmd.Help()
		},
	}

	root.PersistentFlags().String("log-level", "warn", "Log level (trace, debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "text", "Log format (text, json)")
	root.PersistentFlags().Bool("no-color", false, "Disable colored output")

	// Add subcommands to root command
	root.AddCommand(newRunCmd())
	root.AddCommand(newInitCmd())
	return root
}

// Execute runs the root command and prints any error to stderr. It is
// called by main.main().
func Execute() error {
	err := RootCmd.Execute()
	if err != nil {
		output.NewConsoleOutput(output.ConsoleOutputConfig{Writer: os.Stderr}).PrintError(err)
	}
	return err
}

// newLogger builds the logger selected by the persistent flags. Entries go
// to w, which is stderr outside of tests.
func newLogger(cmd *cobra.Command, w io.Writer) (*logrus.Logger, error) {
	levelName, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")
	noColor, _ := cmd.Flags().GetBool("no-color")

	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		return nil, fmt.Errorf("invalid --log-level: %w", err)
	}

	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(level)

	switch strings.ToLower(format) {
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			DisableColors: noColor,
		})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("invalid --log-format %q: expected text or json", format)
	}
	return logger, nil
}
