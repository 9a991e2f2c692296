package terminal

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"
)

// captureStderr captures stderr output during the execution of f.
func captureStderr(f func()) string {
	old := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	f()

	w.Close()
	os.Stderr = old

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

func TestLogger_Log_AllStyles(t *testing.T) {
	DisableColors()
	defer EnableColors()

	tests := []struct {
		style          Style
		expectedSymbol string
	}{
		{StyleInfo, "I"},
		{StyleSuccess, "✓"},
		{StyleWarning, "W"},
		{StyleError, "!"},
		{StyleDim, "·"},
		{StylePhase, "▸"},
	}

	for _, tc := range tests {
		t.Run(string(tc.style), func(t *testing.T) {
			logger := &Logger{isTTY: false}

			output := captureStderr(func() {
				logger.Log("test message", tc.style)
			})

			if !strings.Contains(output, "[aqo]") {
				t.Errorf("expected [aqo] tag in output, got %q", output)
			}
			if !strings.Contains(output, tc.expectedSymbol) {
				t.Errorf("expected symbol %q in output, got %q", tc.expectedSymbol, output)
			}
			if !strings.Contains(output, "test message") {
				t.Errorf("expected message in output, got %q", output)
			}
			if !strings.HasSuffix(output, "\n") {
				t.Error("expected newline at end of output")
			}
		})
	}
}

func TestLogger_Logf(t *testing.T) {
	DisableColors()
	defer EnableColors()

	logger := &Logger{isTTY: false}

	output := captureStderr(func() {
		logger.Logf(StyleInfo, "formatted %s %d", "test", 42)
	})

	if !strings.Contains(output, "formatted test 42") {
		t.Errorf("expected formatted message, got %q", output)
	}
}

func TestLog_PackageLevel(t *testing.T) {
	DisableColors()
	defer EnableColors()

	output := captureStderr(func() {
		Logf(StyleWarning, "agent %s skipped", "dup-check")
	})

	if !strings.Contains(output, "agent dup-check skipped") {
		t.Errorf("expected message in output, got %q", output)
	}
	if !strings.Contains(output, "W") {
		t.Errorf("expected warning symbol in output, got %q", output)
	}
}

func TestLogger_Log_WithColors(t *testing.T) {
	EnableColors()

	logger := &Logger{isTTY: false}

	output := captureStderr(func() {
		logger.Log("colored message", StyleSuccess)
	})

	if !strings.Contains(output, "\033[") {
		t.Errorf("expected ANSI codes in colored output, got %q", output)
	}
	if !strings.Contains(output, "colored message") {
		t.Errorf("expected message in output, got %q", output)
	}
}

func TestLogger_Log_TTYClearsLine(t *testing.T) {
	DisableColors()
	defer EnableColors()

	logger := &Logger{isTTY: true}

	output := captureStderr(func() {
		logger.Log("tty message", StyleInfo)
	})

	if !strings.Contains(output, "\r") {
		t.Errorf("expected carriage return in TTY output, got %q", output)
	}
}
