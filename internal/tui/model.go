// Package tui provides an interactive terminal UI that follows a trace as
// it runs.
package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hoptrace/hoptrace/internal/trace"
)

// Column widths of the hop table.
const (
	hopWidth      = 4
	ipWidth       = 26
	hostnameWidth = 30
	rttWidth      = 12
	asnWidth      = 28
)

// Model is the Bubble Tea model for the trace TUI.
type Model struct {
	// Configuration
	target      string
	maxTimeouts int
	width       int
	height      int

	// Run state
	dest      trace.Destination
	maxHops   int
	started   bool
	finished  bool
	hops      []trace.HopRecord
	result    *trace.Result
	err       error
	elapsed   time.Duration
	startTime time.Time

	// UI components
	spinner spinner.Model
	styles  Styles
}

// StartedMsg is sent once the target has resolved and probing begins.
type StartedMsg struct {
	Dest    trace.Destination
	MaxHops int
}

// HopMsg is sent for every probe.
type HopMsg struct {
	Hop trace.HopRecord
}

// FinishedMsg is sent when the trace returns, with whatever Trace returned.
type FinishedMsg struct {
	Result *trace.Result
	Err    error
}

// TickMsg is sent to update elapsed time.
type TickMsg time.Time

// New creates a new TUI model.
func New(target string, maxTimeouts int, styles Styles) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.Title

	return Model{
		target:      target,
		maxTimeouts: maxTimeouts,
		width:       80,
		height:      24,
		startTime:   time.Now(),
		spinner:     s,
		styles:      styles,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.tickCmd())
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		if !m.finished {
			m.elapsed = time.Since(m.startTime)
			return m, m.tickCmd()
		}

	case StartedMsg:
		m.started = true
		m.dest = msg.Dest
		m.maxHops = msg.MaxHops

	case HopMsg:
		m.hops = append(m.hops, msg.Hop)

	case FinishedMsg:
		m.finished = true
		m.result = msg.Result
		m.err = msg.Err
		if m.failed() {
			return m, tea.Quit
		}
	}

	return m, nil
}

// failed reports whether the trace ended with an error other than a user
// interrupt.
func (m Model) failed() bool {
	return m.err != nil && !errors.Is(m.err, trace.ErrInterrupted)
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")

	b.WriteString(m.renderHops())

	b.WriteString("\n\n")
	b.WriteString(m.renderFooter())
	b.WriteString("\n")

	return b.String()
}

// renderHeader renders the header section.
func (m Model) renderHeader() string {
	title := m.styles.Title.Render("hoptrace")

	info := "Target: " + m.target
	if m.started {
		info = fmt.Sprintf("Target: %s | %d hops max | abort after %d timeouts",
			m.dest, m.maxHops, m.maxTimeouts)
	}
	if m.result != nil && m.result.ProbeMethod != "" {
		info += " | Method: " + m.result.ProbeMethod
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		m.styles.Subtle.Render(info),
		m.renderStatus(),
	)
}

// renderStatus renders the run state line.
func (m Model) renderStatus() string {
	switch {
	case !m.finished && !m.started:
		return m.spinner.View() + " Resolving..."
	case !m.finished:
		return m.spinner.View() + fmt.Sprintf(" Tracing... %s", m.elapsed.Truncate(100*time.Millisecond))
	case m.failed():
		return m.styles.Error.Render("✗ " + m.err.Error())
	case m.err != nil:
		return m.styles.Subtle.Render("Interrupted")
	case m.result == nil:
		return ""
	}

	switch m.result.State {
	case trace.StateSucceeded:
		return m.styles.Success.Render(fmt.Sprintf("✓ Destination reached in %d hops", len(m.result.Hops)))
	case trace.StateAborted:
		return m.styles.Warning.Render(fmt.Sprintf("✗ Aborted after %d consecutive timeouts", m.result.MaxConsecutiveTimeouts))
	case trace.StateExhausted:
		return m.styles.Warning.Render(fmt.Sprintf("✗ Max hops (%d) reached", m.result.MaxHops))
	default:
		return m.styles.Subtle.Render(m.result.State.String())
	}
}

// renderHops renders the hop table.
func (m Model) renderHops() string {
	if len(m.hops) == 0 {
		return m.styles.Subtle.Render("Waiting for responses...")
	}

	var rows []string

	header := fmt.Sprintf("%-*s %-*s %-*s %-*s %-*s %s",
		hopWidth, "Hop",
		ipWidth, "IP",
		hostnameWidth, "Hostname",
		rttWidth, "RTT",
		asnWidth, "ASN",
		"Location")
	rows = append(rows, m.styles.Header.Render(header))
	rows = append(rows, m.styles.Subtle.Render(strings.Repeat("─", min(m.width, len(header)+8))))

	for i := range m.hops {
		rows = append(rows, m.renderHopRow(&m.hops[i]))
	}

	return strings.Join(rows, "\n")
}

// renderHopRow renders a single hop row. Cells are padded before they are
// styled so escape sequences do not skew the columns.
func (m Model) renderHopRow(hop *trace.HopRecord) string {
	hopNum := m.styles.HopNum.Render(pad(fmt.Sprintf("%d", hop.Number), hopWidth))

	if hop.TimedOut() {
		return strings.Join([]string{
			hopNum,
			m.styles.Timeout.Render(pad("*", ipWidth)),
			pad("", hostnameWidth),
			m.styles.Timeout.Render("timeout"),
		}, " ")
	}

	ip := "*"
	if hop.IP != nil {
		ip = hop.IP.String()
	}
	ipStyle := m.styles.IP
	if hop.Destination {
		ip += " ✓"
		ipStyle = m.styles.Destination
	}

	var asn string
	if hop.ASN != nil {
		asn = fmt.Sprintf("AS%d %s", hop.ASN.Number, hop.ASN.Org)
	}

	return strings.Join([]string{
		hopNum,
		ipStyle.Render(pad(truncate(ip, ipWidth), ipWidth)),
		m.styles.Hostname.Render(pad(truncate(hop.Hostname, hostnameWidth), hostnameWidth)),
		m.colorizeRTT(pad(fmt.Sprintf("%.2f ms", hop.RTTMillis()), rttWidth), hop.RTTMillis()),
		m.styles.ASN.Render(pad(truncate(asn, asnWidth), asnWidth)),
		m.styles.GeoIP.Render(hop.Geo.Location()),
	}, " ")
}

// colorizeRTT applies color based on latency.
func (m Model) colorizeRTT(s string, rtt float64) string {
	if rtt <= 0 {
		return m.styles.Subtle.Render(s)
	}

	switch {
	case rtt < 50:
		return m.styles.RTTLow.Render(s)
	case rtt < 150:
		return m.styles.RTTMed.Render(s)
	default:
		return m.styles.RTTHigh.Render(s)
	}
}

// renderFooter renders the footer section.
func (m Model) renderFooter() string {
	var parts []string

	if m.result != nil {
		s := m.result.Summary
		parts = append(parts,
			fmt.Sprintf("Hops: %d", s.TotalHops),
			fmt.Sprintf("Responding: %d", s.Responding),
			fmt.Sprintf("Timeouts: %d", s.Timeouts),
		)
		if s.TotalTimeMs > 0 {
			parts = append(parts, fmt.Sprintf("Total: %.2f ms", s.TotalTimeMs))
		}
	} else if m.started {
		parts = append(parts, fmt.Sprintf("Timeouts in a row: %d/%d", m.trailingTimeouts(), m.maxTimeouts))
	}

	parts = append(parts, "Press 'q' to quit")

	return m.styles.Subtle.Render(strings.Join(parts, " | "))
}

// trailingTimeouts counts the timeouts at the end of the hop list.
func (m Model) trailingTimeouts() int {
	n := 0
	for i := len(m.hops) - 1; i >= 0 && m.hops[i].TimedOut(); i-- {
		n++
	}
	return n
}

// tickCmd returns a command that sends tick messages.
func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// pad right-pads s with spaces to width runes.
func pad(s string, width int) string {
	if n := width - len([]rune(s)); n > 0 {
		return s + strings.Repeat(" ", n)
	}
	return s
}

// truncate truncates a string to maxLen.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
