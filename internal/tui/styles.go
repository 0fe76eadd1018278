package tui

import "github.com/charmbracelet/lipgloss"

// Styles holds all the styles used in the TUI.
type Styles struct {
	// Text styles
	Title  lipgloss.Style
	Header lipgloss.Style
	Subtle lipgloss.Style

	// Status styles
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style

	// Hop styles
	HopNum      lipgloss.Style
	IP          lipgloss.Style
	Destination lipgloss.Style
	Hostname    lipgloss.Style
	Timeout     lipgloss.Style

	// RTT styles (color-coded by latency)
	RTTLow  lipgloss.Style // < 50ms
	RTTMed  lipgloss.Style // 50-150ms
	RTTHigh lipgloss.Style // > 150ms

	// Enrichment styles
	ASN   lipgloss.Style
	GeoIP lipgloss.Style
}

// DefaultStyles returns the default style set.
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")),

		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255")),

		Subtle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		Success: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("46")), // Green

		Error: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")), // Red

		Warning: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")), // Orange

		HopNum: lipgloss.NewStyle().
			Foreground(lipgloss.Color("87")), // Cyan

		IP: lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")),

		Destination: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("46")),

		Hostname: lipgloss.NewStyle().
			Foreground(lipgloss.Color("114")), // Light green

		Timeout: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")),

		RTTLow: lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")),

		RTTMed: lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")), // Yellow

		RTTHigh: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")),

		ASN: lipgloss.NewStyle().
			Foreground(lipgloss.Color("141")), // Purple

		GeoIP: lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")), // Blue
	}
}

// PlainStyles returns a style set without colors, used with --no-color.
func PlainStyles() Styles {
	plain := lipgloss.NewStyle()
	bold := lipgloss.NewStyle().Bold(true)

	return Styles{
		Title:       bold,
		Header:      bold,
		Subtle:      plain,
		Success:     bold,
		Error:       bold,
		Warning:     bold,
		HopNum:      plain,
		IP:          plain,
		Destination: bold,
		Hostname:    plain,
		Timeout:     plain,
		RTTLow:      plain,
		RTTMed:      plain,
		RTTHigh:     plain,
		ASN:         plain,
		GeoIP:       plain,
	}
}
