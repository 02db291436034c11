// Package ui prints styled console output for the command line tool.
package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

var out io.Writer = os.Stdout

var (
	// Color palette
	primaryColor   = lipgloss.Color("#7D56F4") // Purple
	secondaryColor = lipgloss.Color("#00D9FF") // Cyan
	successColor   = lipgloss.Color("#04B575") // Green
	errorColor     = lipgloss.Color("#FF5F87") // Pink/Red
	warningColor   = lipgloss.Color("#FFAF00") // Orange
	mutedColor     = lipgloss.Color("#626262") // Gray

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginTop(1).
			PaddingLeft(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(secondaryColor).
			PaddingLeft(1)

	successStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(warningColor)

	infoStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	keyStyle = lipgloss.NewStyle().
			Foreground(secondaryColor).
			Bold(true)

	checkmark = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true).
			SetString("✓")

	cross = lipgloss.NewStyle().
		Foreground(errorColor).
		Bold(true).
		SetString("✗")

	arrow = lipgloss.NewStyle().
		Foreground(secondaryColor).
		SetString("→")

	dot = lipgloss.NewStyle().
		Foreground(mutedColor).
		SetString("•")

	stepStyle = lipgloss.NewStyle().
			PaddingLeft(2)

	itemStyle = lipgloss.NewStyle().
			PaddingLeft(4)
)

// SetOutput redirects all output to w and returns a function restoring
// the previous writer.
func SetOutput(w io.Writer) (restore func()) {
	prev := out
	out = w
	return func() { out = prev }
}

// Writer returns the current output writer.
func Writer() io.Writer {
	return out
}

// PrintTitle prints a major title (for app name or major sections)
func PrintTitle(title string) {
	fmt.Fprintln(out, titleStyle.Render("╭─ "+title+" ─╮"))
}

// PrintHeader prints a section header
func PrintHeader(title string) {
	fmt.Fprintln(out, headerStyle.Render("▸ "+title))
}

// PrintStep prints a step with indentation
func PrintStep(step string) {
	fmt.Fprintln(out, stepStyle.Render(arrow.String()+" "+step))
}

// PrintItem prints an item in a list
func PrintItem(item string) {
	fmt.Fprintln(out, itemStyle.Render(dot.String()+" "+item))
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Fprintln(out, stepStyle.Render(checkmark.String()+" "+successStyle.Render(message)))
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Fprintln(out, stepStyle.Render(cross.String()+" "+errorStyle.Render(message)))
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Fprintln(out, stepStyle.Render("⚠ "+warningStyle.Render(message)))
}

// PrintInfo prints an info message
func PrintInfo(message string) {
	fmt.Fprintln(out, stepStyle.Render(infoStyle.Render(message)))
}

// PrintKeyValue prints a key-value pair with nice formatting
func PrintKeyValue(key, value string) {
	fmt.Fprintln(out, stepStyle.Render(keyStyle.Render(key+":")+" "+value))
}

// PrintYAML prints YAML source, syntax highlighted when color is set.
func PrintYAML(source string, color bool) error {
	if !color {
		_, err := io.WriteString(out, source)
		return err
	}
	return quick.Highlight(out, source, "yaml", "terminal256", "monokai")
}

// FormatBytes renders a byte count for humans, e.g. "1.2 MB".
func FormatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

// FormatCount renders an integer with thousands separators.
func FormatCount(n int) string {
	return humanize.Comma(int64(n))
}
