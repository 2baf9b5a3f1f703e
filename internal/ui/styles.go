package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	Primary    = lipgloss.Color("#22d3ee") // Cyan accent
	Success    = lipgloss.Color("#10B981") // Emerald
	Warning    = lipgloss.Color("#F59E0B") // Amber
	Error      = lipgloss.Color("#EF4444") // Red
	Muted      = lipgloss.Color("#6B7280") // Gray
	Foreground = lipgloss.Color("#F9FAFB") // Light gray
)

// Text styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary).
			MarginBottom(1)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(Success).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(Warning)

	MutedStyle = lipgloss.NewStyle().
			Foreground(Muted)

	StatusStyle = lipgloss.NewStyle().
			Foreground(Foreground).
			Background(Primary).
			Padding(0, 1).
			Bold(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary).
			Padding(0, 2)
)

// PrintError writes a styled error line.
func PrintError(text string) {
	fmt.Println(ErrorStyle.Render("✗ " + text))
}

// PrintSuccess writes a styled success line.
func PrintSuccess(text string) {
	fmt.Println(SuccessStyle.Render("✓ " + text))
}

// PrintInfo writes a muted informational line.
func PrintInfo(text string) {
	fmt.Println(MutedStyle.Render(text))
}

// PrintStatus writes a highlighted status line.
func PrintStatus(text string) {
	fmt.Println(StatusStyle.Render(text))
}

// RenderRoomInfo prints the shareable room banner.
func RenderRoomInfo(roomID, link string) {
	body := lipgloss.JoinVertical(lipgloss.Left,
		TitleStyle.Render("Room ready"),
		"Room ID:  "+SuccessStyle.Render(roomID),
		"Share:    "+MutedStyle.Render(link),
	)
	fmt.Println(boxStyle.Render(body))
}
