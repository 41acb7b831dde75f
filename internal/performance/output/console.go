// Package output renders the run banner, progress lines and the final
// summary of a load test.
package output

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/wesleyorama2/surge/internal/performance/config"
	"github.com/wesleyorama2/surge/internal/performance/engine"
	"github.com/wesleyorama2/surge/internal/performance/metrics"
)

const ruleWidth = 56

// ConsoleOutput writes human-readable run output.
type ConsoleOutput struct {
	writer io.Writer
	colors *ColorScheme
	quiet  bool

	mu sync.Mutex
}

// ConsoleOutputConfig contains configuration for ConsoleOutput.
type ConsoleOutputConfig struct {
	Writer      io.Writer
	Quiet       bool
	NoColor     bool
	ForceColors bool
}

// NewConsoleOutput creates a new console output handler. Colors are used
// only on a terminal, unless forced.
func NewConsoleOutput(cfg ConsoleOutputConfig) *ConsoleOutput {
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}

	colors := NoColorScheme()
	switch {
	case cfg.NoColor:
	case cfg.ForceColors || (isTerminal(cfg.Writer) && supportsColors()):
		colors = forced()
	}

	return &ConsoleOutput{
		writer: cfg.Writer,
		colors: colors,
		quiet:  cfg.Quiet,
	}
}

// PrintHeader prints the run banner.
func (c *ConsoleOutput) PrintHeader(script string, cfg config.TestConfig) {
	if c.quiet {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	mode := "finite"
	iterations := strconv.FormatFloat(cfg.Iterations, 'f', -1, 64)
	if cfg.IsInfinite() {
		mode = "infinite"
		iterations = "inf"
	}

	rule := c.colors.Rule.Sprint(strings.Repeat("━", ruleWidth))
	c.writeln(rule)
	c.writeln(fmt.Sprintf("%s - %s", c.colors.Title.Sprint(script), c.colors.Dim.Sprintf("%s run", mode)))
	c.writeln(rule)
	c.field("Iterations", iterations)
	c.field("VUs", strconv.Itoa(cfg.VUs))
	c.field("Duration", formatSeconds(cfg.Duration))
	c.field("Timeout", formatSeconds(cfg.Timeout))
	c.writeln("")
}

// PrintProgress prints a one-line status update.
func (c *ConsoleOutput) PrintProgress(snapshot *metrics.Snapshot) {
	if c.quiet || snapshot == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.writeln(fmt.Sprintf("[%s] %s | Spawned: %s | Active: %d | Completed: %s | Failed: %s | Timed out: %s",
		formatDuration(snapshot.Elapsed),
		snapshot.CurrentPhase,
		formatNumber(snapshot.Spawned),
		snapshot.Active,
		formatNumber(snapshot.Completed),
		formatNumber(snapshot.Failed),
		formatNumber(snapshot.TimedOut)))
}

// PrintSummary prints the final result. In quiet mode only the summary
// line is written.
func (c *ConsoleOutput) PrintSummary(result *engine.Result) {
	if result == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.quiet {
		c.writeln(result.Summary)
		return
	}

	status := c.colors.Success.Sprint("Completed ✓")
	if result.Failed > 0 || result.TimedOut > 0 {
		status = c.colors.Warn.Sprint("Completed with errors ⚠")
	}

	rule := c.colors.Rule.Sprint(strings.Repeat("━", ruleWidth))
	c.writeln("")
	c.writeln(rule)
	c.writeln(fmt.Sprintf("%s - %s", c.colors.Title.Sprint(result.Summary), status))
	c.writeln(rule)
	c.writeln("")

	c.field("Run ID", result.RunID)
	c.field("Mode", string(result.Mode))
	c.field("Duration", formatDuration(result.Duration))
	c.field("Spawned", formatNumber(result.Spawned))
	c.field("Completed", c.colors.Success.Sprint(formatNumber(result.Completed)))
	c.field("Failed", c.count(result.Failed, c.colors.Error))
	c.field("Timed out", c.count(result.TimedOut, c.colors.Warn))
	if result.Rate > 0 || result.Config.IsInfinite() {
		c.field("Rate", fmt.Sprintf("%.2f iterations/sec", result.Rate))
	}
	if result.Skipped > 0 {
		c.field("At cap", c.colors.Warn.Sprintf("%s spawns skipped", formatNumber(result.Skipped)))
	}
	if result.Throttled > 0 {
		c.field("Throttled", c.colors.Dim.Sprintf("%s spawns refused by --max-rate", formatNumber(result.Throttled)))
	}
	c.writeln("")
}

// PrintError prints a fatal run error.
func (c *ConsoleOutput) PrintError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeln(fmt.Sprintf("%s %v", c.colors.Error.Sprint("✗"), err))
}

func (c *ConsoleOutput) count(n int64, nonZero *color.Color) string {
	if n == 0 {
		return formatNumber(n)
	}
	return nonZero.Sprint(formatNumber(n))
}

func (c *ConsoleOutput) field(label, value string) {
	c.writeln(fmt.Sprintf("%s %s", c.colors.Label.Sprintf("%-12s", label+":"), value))
}

// writeln writes to the output with a newline.
func (c *ConsoleOutput) writeln(s string) {
	fmt.Fprintln(c.writer, s)
}

// Helper functions

func formatSeconds(s float64) string {
	if math.IsInf(s, 1) {
		return "unbounded"
	}
	return strconv.FormatFloat(s, 'f', -1, 64) + "s"
}

// formatDuration formats a duration in a human-readable format.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %02ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
}

// formatNumber formats a number with thousands separators.
func formatNumber(n int64) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	str := strconv.FormatInt(n, 10)
	if len(str) <= 3 {
		return str
	}

	var result strings.Builder
	offset := len(str) % 3
	if offset > 0 {
		result.WriteString(str[:offset])
	}
	for i := offset; i < len(str); i += 3 {
		if result.Len() > 0 {
			result.WriteString(",")
		}
		result.WriteString(str[i : i+3])
	}
	return result.String()
}
