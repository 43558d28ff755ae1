package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

const (
	appTitle       = "Sonogen 🎼"
	appDescription = "Turn an audio file into a spectrogram PNG, with optional axes and an amplitude graph."
)

// Styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Ember).
			MarginBottom(1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(Ash).
			Italic(true)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Ember).
			MarginTop(1).
			MarginBottom(1)

	SuccessStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Signal)

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Umber)

	// Warnings and important values
	HighlightStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Ember)

	KeyStyle = lipgloss.NewStyle().
			Foreground(Ash)

	ValueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Parch)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Sepia).
			Padding(1, 2).
			MarginTop(1).
			MarginBottom(1)
)

// PrintBanner prints the application banner
func PrintBanner() {
	fmt.Println(TitleStyle.Render(appTitle))
	fmt.Println(SubtitleStyle.Render(appDescription))
	fmt.Println()
}

// PrintVersion prints version information
func PrintVersion(version string) {
	fmt.Println(TitleStyle.Render(appTitle))
	fmt.Printf("%s %s\n", KeyStyle.Render("Version:"), ValueStyle.Render(version))
	fmt.Println()
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", ErrorStyle.Render("Error:"), message)
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", HighlightStyle.Render("Warning:"), message)
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("%s %s\n", SuccessStyle.Render("✓"), message)
}

// PrintInfo prints a key/value line
func PrintInfo(key, value string) {
	fmt.Printf("%s %s\n", KeyStyle.Render(key+":"), ValueStyle.Render(value))
}

// PrintSection prints a section header
func PrintSection(title string) {
	fmt.Println(HeaderStyle.Render(title))
}

// FormatDuration formats a duration nicely
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%.0fms", d.Seconds()*1000)
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}

// FormatBytes formats bytes into human-readable format
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// PrintBox prints content in a styled box
func PrintBox(content string) {
	fmt.Println(BoxStyle.Render(content))
}

// Summary is the outcome of a run, shown when progress output is disabled.
type Summary struct {
	Output   string
	Width    int
	Height   int
	Columns  int
	Audio    time.Duration
	Elapsed  time.Duration
	FileSize int64
}

// RenderSummary formats s for display in a box.
func RenderSummary(s Summary) string {
	var b strings.Builder

	b.WriteString(SuccessStyle.Render("✓ Sonogram Complete!"))
	b.WriteString("\n\n")

	rows := [][2]string{
		{"Output:   ", s.Output},
		{"Image:    ", fmt.Sprintf("%d×%d px", s.Width, s.Height)},
		{"Columns:  ", fmt.Sprintf("%d painted", s.Columns)},
		{"Audio:    ", FormatDuration(s.Audio)},
		{"Time:     ", FormatDuration(s.Elapsed)},
		{"File Size:", " " + FormatBytes(s.FileSize)},
	}
	for i, row := range rows {
		b.WriteString(KeyStyle.Render(row[0]))
		b.WriteString(" ")
		b.WriteString(ValueStyle.Render(strings.TrimSpace(row[1])))
		if i < len(rows)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// PrintSummary prints a run summary in a box
func PrintSummary(s Summary) {
	PrintBox(RenderSummary(s))
}
