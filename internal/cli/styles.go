// Package cli renders formantpad's terminal output: styled headings, the
// analysis report, the derived parameter table, and archetype suggestions.
package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	primaryColor = lipgloss.Color("#5F87D7") // panel blue
	mutedColor   = lipgloss.Color("#888888") // gray
	textColor    = lipgloss.Color("#FFFFFF") // white
	errorColor   = lipgloss.Color("#D75F5F") // soft red
)

// Styles
var (
	// Title style for the program banner
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	// Error message style
	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(errorColor)

	// Key-value pair styles
	KeyStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	ValueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(textColor)
)

// PrintVersion prints version information
func PrintVersion(version string) {
	fmt.Println(TitleStyle.Render("formantpad 🎛️"))
	fmt.Printf("%s %s\n", KeyStyle.Render("Version:"), ValueStyle.Render(version))
	fmt.Println()
}

// PrintError prints an error message to stderr
func PrintError(message string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", ErrorStyle.Render("Error:"), message)
}

// PrintResult prints a labelled result line, e.g. the file a capture wrote.
func PrintResult(label, value string) {
	fmt.Printf("%s %s\n", KeyStyle.Render(label+":"), ValueStyle.Render(value))
}
