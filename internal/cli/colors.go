package cli

import "github.com/charmbracelet/lipgloss"

// Sonogram palette, shared by the CLI and the TUI.
// Taken from the amplitude graph so terminal output matches the images.
var (
	Umber  = lipgloss.Color("#86270A") // level fill
	Sepia  = lipgloss.Color("#581D0D") // level stroke
	Ember  = lipgloss.Color("#D2691E") // highlights
	Parch  = lipgloss.Color("#F5DEB3") // values on dark terminals
	Ash    = lipgloss.Color("#8B8378") // muted text
	Signal = lipgloss.Color("#3CB371") // success
)
