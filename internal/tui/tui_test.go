package tui

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoptrace/hoptrace/internal/trace"
)

func testModel() Model {
	return New("example.com", 5, PlainStyles())
}

func update(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		var ok bool
		m, ok = next.(Model)
		require.True(t, ok, "Update() returned %T", next)
	}
	return m
}

func started() StartedMsg {
	return StartedMsg{
		Dest:    trace.Destination{IP: net.ParseIP("93.184.216.34"), Name: "example.com"},
		MaxHops: 30,
	}
}

func responseHop(n int, ip string, rtt time.Duration) HopMsg {
	return HopMsg{Hop: trace.HopRecord{
		Number:  n,
		Outcome: trace.OutcomeResponse,
		IP:      net.ParseIP(ip),
		RTT:     rtt,
	}}
}

func timeoutHop(n int) HopMsg {
	return HopMsg{Hop: trace.HopRecord{Number: n, Outcome: trace.OutcomeTimeout}}
}

func TestModel_Resolving(t *testing.T) {
	view := testModel().View()

	assert.Contains(t, view, "hoptrace")
	assert.Contains(t, view, "Target: example.com")
	assert.Contains(t, view, "Resolving...")
	assert.Contains(t, view, "Waiting for responses...")
}

func TestModel_StreamsHops(t *testing.T) {
	m := update(t, testModel(),
		started(),
		responseHop(1, "192.168.1.1", 2*time.Millisecond),
		timeoutHop(2),
		timeoutHop(3),
	)

	require.Len(t, m.hops, 3)
	view := m.View()

	assert.Contains(t, view, "Target: 93.184.216.34 (example.com) | 30 hops max | abort after 5 timeouts")
	assert.Contains(t, view, "Tracing...")
	assert.Contains(t, view, "192.168.1.1")
	assert.Contains(t, view, "2.00 ms")
	assert.Contains(t, view, "timeout")
	assert.Contains(t, view, "Timeouts in a row: 2/5")
}

func TestModel_Finished(t *testing.T) {
	tests := []struct {
		state trace.State
		want  string
	}{
		{trace.StateSucceeded, "✓ Destination reached in 2 hops"},
		{trace.StateAborted, "✗ Aborted after 5 consecutive timeouts"},
		{trace.StateExhausted, "✗ Max hops (30) reached"},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			result := &trace.Result{
				ProbeMethod:            "icmp",
				MaxHops:                30,
				MaxConsecutiveTimeouts: 5,
				State:                  tt.state,
				Hops:                   make([]trace.HopRecord, 2),
				Summary:                trace.Summary{TotalHops: 2, Responding: 1, Timeouts: 1, TotalTimeMs: 12.5},
			}

			m := update(t, testModel(), started())
			next, cmd := m.Update(FinishedMsg{Result: result})
			assert.Nil(t, cmd, "a finished run should stay on screen until the user quits")

			view := next.View()
			assert.Contains(t, view, tt.want)
			assert.Contains(t, view, "Method: icmp")
			assert.Contains(t, view, "Hops: 2 | Responding: 1 | Timeouts: 1 | Total: 12.50 ms")
		})
	}
}

func TestModel_Interrupted(t *testing.T) {
	result := &trace.Result{State: trace.StateProbing, Hops: make([]trace.HopRecord, 1)}
	err := fmt.Errorf("%w at ttl %d: %w", trace.ErrInterrupted, 2, context.Canceled)

	m := testModel()
	next, cmd := m.Update(FinishedMsg{Result: result, Err: err})
	assert.Nil(t, cmd)
	assert.Contains(t, next.View(), "Interrupted")
}

func TestModel_FailureQuits(t *testing.T) {
	err := &trace.ResolutionError{Target: "nowhere.invalid", Err: errors.New("no such host")}

	m := testModel()
	next, cmd := m.Update(FinishedMsg{Err: err})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.Contains(t, next.View(), "nowhere.invalid")
}

func TestModel_QuitKeys(t *testing.T) {
	for _, key := range []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune("q")},
		{Type: tea.KeyCtrlC},
		{Type: tea.KeyEsc},
	} {
		t.Run(key.String(), func(t *testing.T) {
			_, cmd := testModel().Update(key)
			require.NotNil(t, cmd)
			assert.Equal(t, tea.Quit(), cmd())
		})
	}
}

func TestModel_WindowSize(t *testing.T) {
	m := update(t, testModel(), tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Equal(t, 120, m.width)
	assert.Equal(t, 40, m.height)
}

func TestRenderHopRow(t *testing.T) {
	m := testModel()

	hop := trace.HopRecord{
		Number:      7,
		Outcome:     trace.OutcomeResponse,
		IP:          net.ParseIP("93.184.216.34"),
		Hostname:    "example.com",
		RTT:         12500 * time.Microsecond,
		ASN:         &trace.ASNInfo{Number: 15133, Org: "Edgecast Inc."},
		Geo:         &trace.GeoInfo{CountryCode: "US", City: "Norwell"},
		Destination: true,
	}

	row := m.renderHopRow(&hop)
	assert.True(t, strings.HasPrefix(row, "7 "))
	assert.Contains(t, row, "93.184.216.34 ✓")
	assert.Contains(t, row, "example.com")
	assert.Contains(t, row, "12.50 ms")
	assert.Contains(t, row, "AS15133 Edgecast Inc.")
	assert.Contains(t, row, "Norwell, US")

	row = m.renderHopRow(&trace.HopRecord{Number: 8, Outcome: trace.OutcomeTimeout})
	assert.Contains(t, row, "*")
	assert.Contains(t, row, "timeout")
	assert.NotContains(t, row, "ms")
}

func TestColorizeRTT(t *testing.T) {
	m := New("example.com", 5, DefaultStyles())

	for _, rtt := range []float64{25, 75, 200, 0, -1} {
		assert.Contains(t, m.colorizeRTT("10.00 ms", rtt), "10.00 ms")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is a very long string", 10, "this is..."},
		{"abcd", 3, "abc"},
		{"", 5, ""},
		{"Türk Telekom", 7, "Türk..."},
		{"ÇÖĞ", 2, "ÇÖ"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, truncate(tt.input, tt.maxLen), "truncate(%q, %d)", tt.input, tt.maxLen)
	}
}

func TestPad(t *testing.T) {
	assert.Equal(t, "ab   ", pad("ab", 5))
	assert.Equal(t, "abcdef", pad("abcdef", 3))
	assert.Equal(t, "✓ ", pad("✓", 2))
}

type fakeTracer struct {
	hops   []trace.HopRecord
	result *trace.Result
	err    error
}

func (f *fakeTracer) Trace(_ context.Context, _ string, sink trace.Sink) (*trace.Result, error) {
	if f.result != nil {
		sink.RunStarted(f.result.Destination, f.result.MaxHops)
	}
	for _, hop := range f.hops {
		sink.Hop(hop)
	}
	if f.result != nil {
		sink.RunCompleted(f.result)
	}
	return f.result, f.err
}

func TestStart(t *testing.T) {
	result := &trace.Result{MaxHops: 30, State: trace.StateSucceeded}
	tracer := &fakeTracer{
		hops:   []trace.HopRecord{{Number: 1}, {Number: 2}},
		result: result,
	}

	msgs := make(chan tea.Msg, 10)
	out := <-start(context.Background(), tracer, "example.com", func(msg tea.Msg) {
		msgs <- msg
	})

	assert.Same(t, result, out.result)
	assert.NoError(t, out.err)

	assert.IsType(t, StartedMsg{}, <-msgs)
	assert.Equal(t, 1, (<-msgs).(HopMsg).Hop.Number)
	assert.Equal(t, 2, (<-msgs).(HopMsg).Hop.Number)

	select {
	case msg := <-msgs:
		assert.Equal(t, FinishedMsg{Result: result}, msg)
	case <-time.After(time.Second):
		t.Fatal("FinishedMsg was not sent")
	}
}
