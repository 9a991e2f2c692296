package terminal

import (
	"strings"
	"testing"
	"time"
)

func TestWrapText_BasicWrapping(t *testing.T) {
	text := "This is a longer sentence that needs to be wrapped at the boundary"
	result := WrapText(text, 30, "")

	for i, line := range strings.Split(result, "\n") {
		if len(line) > 30 {
			t.Errorf("line %d exceeds width 30: len=%d, content=%q", i, len(line), line)
		}
	}
}

func TestWrapText_WithIndent(t *testing.T) {
	result := WrapText("First Second Third", 15, ">>> ")

	for i, line := range strings.Split(result, "\n") {
		if !strings.HasPrefix(line, ">>> ") {
			t.Errorf("line %d missing indent prefix: %q", i, line)
		}
	}
}

func TestWrapText_EmptyInput(t *testing.T) {
	if got := WrapText("", 50, "  "); got != "" {
		t.Errorf("expected empty string for empty input, got %q", got)
	}
	if got := WrapText("   \t  ", 50, ""); got != "" {
		t.Errorf("expected empty string for whitespace-only input, got %q", got)
	}
}

func TestWrapText_SingleLongWord(t *testing.T) {
	longWord := "supercalifragilisticexpialidocious"
	result := WrapText(longWord, 10, "")

	if !strings.Contains(result, longWord) {
		t.Errorf("long word should be in output: %q", result)
	}
}

func TestWrapText_PreservesAllWords(t *testing.T) {
	words := []string{"The", "quick", "brown", "fox", "jumps"}
	result := WrapText(strings.Join(words, " "), 15, "")

	for _, word := range words {
		if !strings.Contains(result, word) {
			t.Errorf("missing word %q in result: %q", word, result)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		dur      time.Duration
		expected string
	}{
		{0, "0.0s"},
		{500 * time.Millisecond, "0.5s"},
		{5 * time.Second, "5.0s"},
		{45*time.Second + 300*time.Millisecond, "45.3s"},
		{1 * time.Minute, "1m 0.0s"},
		{2*time.Minute + 45*time.Second + 500*time.Millisecond, "2m 45.5s"},
		{10 * time.Minute, "10m 0.0s"},
	}

	for _, tt := range tests {
		t.Run(tt.dur.String(), func(t *testing.T) {
			if got := FormatDuration(tt.dur); got != tt.expected {
				t.Errorf("FormatDuration(%v) = %q, want %q", tt.dur, got, tt.expected)
			}
		})
	}
}
