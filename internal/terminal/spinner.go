package terminal

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"
)

const spinnerInterval = 200 * time.Millisecond

var spinnerFrames = []rune("⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏")

// Spinner displays an animated progress line while agent tasks run.
// On a non-TTY stream it stays silent and simply waits for cancellation.
type Spinner struct {
	isTTY     bool
	completed *atomic.Int32
	total     int
}

// NewSpinner creates a spinner tracking total agent tasks.
func NewSpinner(total int) *Spinner {
	return &Spinner{
		isTTY:     IsStderrTTY(),
		completed: &atomic.Int32{},
		total:     total,
	}
}

// Completed returns the atomic counter for finished tasks. The scheduler
// increments it from worker goroutines.
func (s *Spinner) Completed() *atomic.Int32 {
	return s.completed
}

// Run animates the spinner until the context is cancelled.
func (s *Spinner) Run(ctx context.Context) {
	if !s.isTTY {
		<-ctx.Done()
		return
	}

	idx := 0
	ticker := time.NewTicker(spinnerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			progress := fmt.Sprintf("%d/%d", s.completed.Load(), s.total)
			final := fmt.Sprintf("\r%s %s✓%s Agents complete %s(%s)%s",
				tag(Green), Color(Green), Color(Reset), Color(Dim), progress, Color(Reset))
			fmt.Fprint(os.Stderr, final+"          \n")
			return

		case <-ticker.C:
			frame := string(spinnerFrames[idx%len(spinnerFrames)])
			progress := fmt.Sprintf("%d/%d", s.completed.Load(), s.total)
			line := fmt.Sprintf("\r%s %s%s%s Running agents %s(%s)%s",
				tag(Cyan), Color(Cyan), frame, Color(Reset), Color(Dim), progress, Color(Reset))
			fmt.Fprint(os.Stderr, line+"          ")
			idx++
		}
	}
}

// PhaseSpinner displays a simple spinner for a single labeled phase, such
// as a fix iteration or a validation pass.
type PhaseSpinner struct {
	isTTY bool
	label string
}

// NewPhaseSpinner creates a new phase spinner.
func NewPhaseSpinner(label string) *PhaseSpinner {
	return &PhaseSpinner{
		isTTY: IsStderrTTY(),
		label: label,
	}
}

// Run animates the phase spinner until the context is cancelled.
func (s *PhaseSpinner) Run(ctx context.Context) {
	if !s.isTTY {
		<-ctx.Done()
		return
	}

	idx := 0
	ticker := time.NewTicker(spinnerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			final := fmt.Sprintf("\r%s %s✓%s %s",
				tag(Green), Color(Green), Color(Reset), s.label)
			fmt.Fprint(os.Stderr, final+"          \n")
			return

		case <-ticker.C:
			frame := string(spinnerFrames[idx%len(spinnerFrames)])
			line := fmt.Sprintf("\r%s %s%s%s %s",
				tag(Cyan), Color(Cyan), frame, Color(Reset), s.label)
			fmt.Fprint(os.Stderr, line+"          ")
			idx++
		}
	}
}
