package output

import (
	"io"
	"sync"

	"github.com/hoptrace/hoptrace/internal/trace"
)

// StreamSink writes text output as run events arrive, so each hop line is
// visible as soon as its probe finishes.
type StreamSink struct {
	mu   sync.Mutex
	out  io.Writer
	text *TextFormatter
	err  error
}

// NewStreamSink creates a sink writing classic text to out.
func NewStreamSink(out io.Writer, config Config) *StreamSink {
	return &StreamSink{out: out, text: NewTextFormatter(config)}
}

// RunStarted writes the header line.
func (s *StreamSink) RunStarted(dest trace.Destination, maxHops int) {
	s.write(s.text.FormatHeader(dest, maxHops))
}

// Hop writes one hop line.
func (s *StreamSink) Hop(hop trace.HopRecord) {
	s.write(s.text.FormatHop(&hop))
}

// RunAborted writes the abort message.
func (s *StreamSink) RunAborted(result *trace.Result) {
	s.write(s.text.FormatOutcome(result))
}

// RunCompleted writes the success or exhaustion message.
func (s *StreamSink) RunCompleted(result *trace.Result) {
	s.write(s.text.FormatOutcome(result))
}

// Interrupted writes the message for a run that never reached a terminal
// state. The trace loop does not emit an event for this case.
func (s *StreamSink) Interrupted(result *trace.Result) {
	if result != nil {
		s.write(s.text.FormatOutcome(result))
	}
}

// Err returns the first write error, if any.
func (s *StreamSink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *StreamSink) write(str string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return
	}
	_, s.err = io.WriteString(s.out, str)
}

// ResultSink renders the whole run with a Formatter once it reaches a
// terminal state. It is used for the table, JSON and CSV formats.
type ResultSink struct {
	mu        sync.Mutex
	out       io.Writer
	formatter Formatter
	err       error
}

// NewResultSink creates a sink that writes formatter output to out.
func NewResultSink(out io.Writer, formatter Formatter) *ResultSink {
	return &ResultSink{out: out, formatter: formatter}
}

// RunStarted does nothing; output is written once the run ends.
func (s *ResultSink) RunStarted(trace.Destination, int) {}

// Hop does nothing; output is written once the run ends.
func (s *ResultSink) Hop(trace.HopRecord) {}

// RunAborted renders the aborted run.
func (s *ResultSink) RunAborted(result *trace.Result) { s.render(result) }

// RunCompleted renders the finished run.
func (s *ResultSink) RunCompleted(result *trace.Result) { s.render(result) }

// Interrupted renders the partial run.
func (s *ResultSink) Interrupted(result *trace.Result) {
	if result != nil {
		s.render(result)
	}
}

// Err returns the first formatting or write error, if any.
func (s *ResultSink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *ResultSink) render(result *trace.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return
	}

	data, err := s.formatter.Format(result)
	if err != nil {
		s.err = err
		return
	}
	_, s.err = s.out.Write(data)
}

// Sink is a trace.Sink that can also report interrupted runs and write errors.
type Sink interface {
	trace.Sink
	Interrupted(result *trace.Result)
	Err() error
}

// NewSink returns the sink for format: streaming text, or a ResultSink for
// the other formats.
func NewSink(format Format, config Config, out io.Writer) Sink {
	if format.Streams() {
		return NewStreamSink(out, config)
	}
	return NewResultSink(out, NewFormatter(format, config))
}
