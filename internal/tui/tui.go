package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hoptrace/hoptrace/internal/trace"
)

// Tracer is the part of *trace.Tracer the TUI drives.
type Tracer interface {
	Trace(ctx context.Context, target string, sink trace.Sink) (*trace.Result, error)
}

// Options controls how the TUI is rendered.
type Options struct {
	// NoColor renders without colors
	NoColor bool

	// MaxConsecutiveTimeouts is shown in the header and footer
	MaxConsecutiveTimeouts int
}

// Sink forwards trace events to a Bubble Tea program.
type Sink struct {
	send func(tea.Msg)
}

// NewSink returns a Sink that delivers events through send, typically
// (*tea.Program).Send.
func NewSink(send func(tea.Msg)) *Sink {
	return &Sink{send: send}
}

// RunStarted implements trace.Sink.
func (s *Sink) RunStarted(dest trace.Destination, maxHops int) {
	s.send(StartedMsg{Dest: dest, MaxHops: maxHops})
}

// Hop implements trace.Sink.
func (s *Sink) Hop(hop trace.HopRecord) {
	s.send(HopMsg{Hop: hop})
}

// RunAborted implements trace.Sink. The terminal state reaches the model
// with FinishedMsg.
func (s *Sink) RunAborted(*trace.Result) {}

// RunCompleted implements trace.Sink.
func (s *Sink) RunCompleted(*trace.Result) {}

// outcome is what Trace returned.
type outcome struct {
	result *trace.Result
	err    error
}

// start runs the trace in the background. Events and the final FinishedMsg
// go through send; the returned channel yields the outcome exactly once.
func start(ctx context.Context, tracer Tracer, target string, send func(tea.Msg)) <-chan outcome {
	done := make(chan outcome, 1)

	go func() {
		result, err := tracer.Trace(ctx, target, NewSink(send))
		done <- outcome{result: result, err: err}
		send(FinishedMsg{Result: result, Err: err})
	}()

	return done
}

// Run traces target inside the TUI and returns what the trace returned once
// the user quits. Quitting before the run ends interrupts it, in which case
// the partial result is returned with trace.ErrInterrupted.
func Run(ctx context.Context, tracer Tracer, target string, opts Options) (*trace.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	styles := DefaultStyles()
	if opts.NoColor {
		styles = PlainStyles()
	}

	model := New(target, opts.MaxConsecutiveTimeouts, styles)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	done := start(ctx, tracer, target, p.Send)

	_, runErr := p.Run()

	// Stop a trace that is still going and collect its outcome.
	cancel()
	out := <-done

	// A cancelled parent context kills the program; that is an interrupt,
	// not a TUI failure.
	if runErr != nil && out.err == nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return out.result, fmt.Errorf("TUI error: %w", runErr)
	}
	return out.result, out.err
}
