package output

import "github.com/fatih/color"

// ColorScheme defines the colors used for the run banner and summary.
type ColorScheme struct {
	Rule    *color.Color
	Title   *color.Color
	Label   *color.Color
	Value   *color.Color
	Success *color.Color
	Warn    *color.Color
	Error   *color.Color
	Dim     *color.Color
}

// DefaultColorScheme returns the default color scheme.
func DefaultColorScheme() *ColorScheme {
	return &ColorScheme{
		Rule:    color.New(color.FgCyan),
		Title:   color.New(color.Bold),
		Label:   color.New(color.FgWhite),
		Value:   color.New(color.FgCyan),
		Success: color.New(color.FgGreen, color.Bold),
		Warn:    color.New(color.FgYellow, color.Bold),
		Error:   color.New(color.FgRed, color.Bold),
		Dim:     color.New(color.Faint),
	}
}

// NoColorScheme returns a color scheme with all colors disabled.
func NoColorScheme() *ColorScheme {
	scheme := DefaultColorScheme()
	for _, c := range scheme.all() {
		c.DisableColor()
	}
	return scheme
}

// forced returns the default scheme with colors on regardless of the
// package-level detection in fatih/color.
func forced() *ColorScheme {
	scheme := DefaultColorScheme()
	for _, c := range scheme.all() {
		c.EnableColor()
	}
	return scheme
}

func (s *ColorScheme) all() []*color.Color {
	return []*color.Color{s.Rule, s.Title, s.Label, s.Value, s.Success, s.Warn, s.Error, s.Dim}
}
