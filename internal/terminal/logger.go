package terminal

import (
	"fmt"
	"os"
	"strings"
)

// Style represents a log message style.
type Style string

const (
	StyleInfo    Style = "info"
	StyleSuccess Style = "success"
	StyleWarning Style = "warning"
	StyleError   Style = "error"
	StyleDim     Style = "dim"
	StylePhase   Style = "phase"
)

// styleAttrs returns the color code and marker symbol for a style.
func styleAttrs(style Style) (color, symbol string) {
	switch style {
	case StyleSuccess:
		return Green, "✓"
	case StyleWarning:
		return Yellow, "W"
	case StyleError:
		return Red, "!"
	case StyleDim:
		return Dim, "·"
	case StylePhase:
		return Magenta + Bold, "▸"
	default:
		return Cyan, "I"
	}
}

// tag renders the [aqo] prefix with the style color applied to the name.
func tag(color string) string {
	return fmt.Sprintf("%s[%s%saqo%s%s]%s",
		Color(Dim), Color(Reset), Color(color), Color(Reset), Color(Dim), Color(Reset))
}

// Logger provides styled logging to stderr.
type Logger struct {
	isTTY bool
}

// NewLogger creates a new logger.
func NewLogger() *Logger {
	return &Logger{
		isTTY: IsStderrTTY(),
	}
}

// Log prints a styled log message to stderr. On a TTY the current line is
// cleared first so messages interleave cleanly with the spinner.
func (l *Logger) Log(msg string, style Style) {
	color, symbol := styleAttrs(style)

	if l.isTTY {
		fmt.Fprint(os.Stderr, "\r"+strings.Repeat(" ", 100)+"\r")
	}

	fmt.Fprintf(os.Stderr, "%s %s%s%s %s\n",
		tag(color), Color(color), symbol, Color(Reset), msg)
}

// Logf prints a formatted styled log message to stderr.
func (l *Logger) Logf(style Style, format string, args ...any) {
	l.Log(fmt.Sprintf(format, args...), style)
}

// Log prints a styled log message to stderr (package-level function).
func Log(msg string, style Style) {
	NewLogger().Log(msg, style)
}

// Logf prints a formatted styled log message to stderr (package-level function).
func Logf(style Style, format string, args ...any) {
	Log(fmt.Sprintf(format, args...), style)
}
