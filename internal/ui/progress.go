package ui

import (
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/linuxmatters/sonogen/internal/cli"
)

// levelHistory is the number of recent levels kept for the live meter
const levelHistory = 48

// Phase represents the current processing phase
type Phase int

const (
	PhaseStarting Phase = iota
	PhaseGenerating
	PhaseComplete
)

// FileInfo describes the input, sent once before generation starts
type FileInfo struct {
	Input      string
	Format     string
	SampleRate int
	Channels   int
	BitDepth   int
	Duration   time.Duration
	Title      string
	Artist     string
}

// ColumnProgress is sent after each painted column
type ColumnProgress struct {
	Column   int
	Width    int
	Position time.Duration // audio time covered so far
	Level    float64       // latest RMS level in dB
}

// Complete signals a finished run
type Complete struct {
	Output    string
	Image     image.Image
	Columns   int
	Audio     time.Duration
	Elapsed   time.Duration
	FileSize  int64
	PeakLevel float64
	MinLevel  float64
}

// Failed signals a run that ended with an error
type Failed struct {
	Err error
}

// progressQuitMsg is sent when it's time to quit after showing completion
type progressQuitMsg struct{}

// Model is the Bubbletea model for a generation run
type Model struct {
	progressBar progress.Model
	phase       Phase

	info     *FileInfo
	state    ColumnProgress
	levels   []float64
	complete *Complete
	err      error

	startTime  time.Time
	noiseFloor float64

	// UI state
	width           int
	noPreview       bool
	cachedPreview   string
	completionDelay time.Duration
}

// NewModel creates a progress model. noiseFloor sets the bottom of the level meter.
func NewModel(noPreview bool, noiseFloor float64) *Model {
	p := progress.New(
		progress.WithGradient(string(cli.Sepia), string(cli.Ember)),
		progress.WithWidth(40),
		progress.WithoutPercentage(),
	)

	return &Model{
		progressBar:     p,
		phase:           PhaseStarting,
		startTime:       time.Now(),
		noiseFloor:      noiseFloor,
		completionDelay: 2 * time.Second,
		noPreview:       noPreview,
	}
}

// Init initializes the model
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progressBar.Width = max(10, min(msg.Width-30, 50))
		return m, nil

	case FileInfo:
		m.info = &msg
		return m, nil

	case ColumnProgress:
		m.phase = PhaseGenerating
		m.state = msg
		m.levels = append(m.levels, msg.Level)
		if len(m.levels) > levelHistory {
			m.levels = m.levels[len(m.levels)-levelHistory:]
		}
		return m, nil

	case Complete:
		m.complete = &msg
		m.phase = PhaseComplete
		if !m.noPreview && msg.Image != nil {
			m.cachedPreview = RenderPreview(DownsampleFrame(msg.Image, PreviewConfigFor(msg.Image.Bounds(), 72)))
		}
		return m, tea.Tick(m.completionDelay, func(time.Time) tea.Msg {
			return progressQuitMsg{}
		})

	case Failed:
		m.err = msg.Err
		return m, tea.Quit

	case progressQuitMsg:
		return m, tea.Quit

	case tea.KeyMsg:
		if m.complete != nil || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}

	return m, nil
}

// Err returns the error reported with Failed, if any
func (m *Model) Err() error {
	return m.err
}

// View renders the UI
func (m *Model) View() string {
	if m.err != nil {
		return ""
	}
	if m.phase == PhaseComplete {
		return m.CompletionSummary()
	}
	return m.renderProgress()
}

// CompletionSummary returns the final summary for printing after the program exits.
// Returns empty string if generation is not complete.
func (m *Model) CompletionSummary() string {
	if m.complete == nil {
		return ""
	}
	return m.renderProgressFrame(1.0) + "\n" + m.renderComplete()
}

func (m *Model) renderProgress() string {
	percent := 0.0
	if m.state.Width > 0 {
		percent = min(1.0, float64(m.state.Column)/float64(m.state.Width))
	}
	return m.renderProgressFrame(percent)
}

func (m *Model) renderProgressFrame(percent float64) string {
	var s strings.Builder

	s.WriteString(lipgloss.NewStyle().Bold(true).Foreground(cli.Ember).Render("Sonogen 🎼"))
	s.WriteString("\n")
	m.renderInfo(&s)
	s.WriteString("\n\n")

	if m.phase == PhaseStarting {
		s.WriteString(lipgloss.NewStyle().Faint(true).Render("Prerolling..."))
		s.WriteString("\n")
	} else {
		s.WriteString("Progress: ")
		s.WriteString(m.progressBar.ViewAs(percent))
		s.WriteString(fmt.Sprintf("  %d%%", int(percent*100)))
		s.WriteString("\n\n")

		column := m.state.Column
		if m.complete != nil {
			column = m.complete.Columns
		}
		timing := fmt.Sprintf("Column %d of %d  │  Audio: %s  │  Time: %s",
			column, m.state.Width,
			cli.FormatDuration(m.state.Position),
			cli.FormatDuration(m.elapsed()))
		s.WriteString(lipgloss.NewStyle().Faint(true).Render(timing))
		s.WriteString("\n")
	}

	if len(m.levels) > 0 {
		s.WriteString("\n")
		s.WriteString(lipgloss.NewStyle().Foreground(cli.Umber).Render("Level:"))
		s.WriteString(" ")
		s.WriteString(renderLevels(m.levels, m.noiseFloor))
		s.WriteString(fmt.Sprintf("  %.1f dB", m.levels[len(m.levels)-1]))
	}

	return lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(cli.Sepia).
		Padding(1, 2).
		Render(s.String())
}

func (m *Model) elapsed() time.Duration {
	if m.complete != nil {
		return m.complete.Elapsed
	}
	return time.Since(m.startTime)
}

func (m *Model) renderInfo(s *strings.Builder) {
	labelStyle := lipgloss.NewStyle().Faint(true)
	headerStyle := lipgloss.NewStyle().Faint(true).Bold(true)

	s.WriteString(headerStyle.Render("Audio"))
	s.WriteString(" │ ")

	if m.info == nil {
		s.WriteString(lipgloss.NewStyle().Faint(true).Italic(true).Render("Opening..."))
		return
	}

	s.WriteString(fmt.Sprintf("%s  ", strings.ToUpper(m.info.Format)))
	s.WriteString(labelStyle.Render("Rate:"))
	s.WriteString(fmt.Sprintf(" %d Hz  ", m.info.SampleRate))
	s.WriteString(labelStyle.Render("Channels:"))
	s.WriteString(fmt.Sprintf(" %d  ", m.info.Channels))
	s.WriteString(labelStyle.Render("Length:"))
	s.WriteString(" " + cli.FormatDuration(m.info.Duration))

	if m.info.Title != "" {
		s.WriteString("\n")
		title := m.info.Title
		if m.info.Artist != "" {
			title = m.info.Artist + " - " + title
		}
		s.WriteString(lipgloss.NewStyle().Italic(true).Render(title))
	}
}

func (m *Model) renderComplete() string {
	var s strings.Builder

	s.WriteString(lipgloss.NewStyle().Bold(true).Foreground(cli.Signal).Render("✓ Sonogram Complete!"))
	s.WriteString("\n\n")

	dimLabel := lipgloss.NewStyle().Faint(true)
	c := m.complete

	s.WriteString(fmt.Sprintf("%s%s\n", dimLabel.Render("Output:   "), c.Output))
	if c.Image != nil {
		b := c.Image.Bounds()
		s.WriteString(fmt.Sprintf("%s%d×%d px, %d columns painted\n", dimLabel.Render("Image:    "), b.Dx(), b.Dy(), c.Columns))
	}
	s.WriteString(fmt.Sprintf("%s%s of audio in %s\n", dimLabel.Render("Duration: "),
		cli.FormatDuration(c.Audio), cli.FormatDuration(c.Elapsed)))
	s.WriteString(fmt.Sprintf("%s%.1f dB peak, %.1f dB min\n", dimLabel.Render("Levels:   "), c.PeakLevel, c.MinLevel))
	s.WriteString(fmt.Sprintf("%s%s", dimLabel.Render("Size:     "), cli.FormatBytes(c.FileSize)))

	if m.cachedPreview != "" {
		s.WriteString("\n\n")
		s.WriteString(m.cachedPreview)
	}

	return lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(cli.Umber).
		Padding(1, 1).
		Render(s.String()) + "\n"
}

// renderLevels draws recent levels as a one-row meter from noiseFloor up to 0 dB
func renderLevels(levels []float64, noiseFloor float64) string {
	blocks := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	palette := []lipgloss.Color{cli.Sepia, cli.Umber, cli.Ember, cli.Parch}

	var result strings.Builder
	for _, db := range levels {
		normalised := 0.0
		if noiseFloor < 0 {
			normalised = (db - noiseFloor) / -noiseFloor
		}
		normalised = max(0, min(1, normalised))

		blockIdx := int(normalised * float64(len(blocks)-1))
		colorIdx := int(normalised * float64(len(palette)-1))
		result.WriteString(lipgloss.NewStyle().
			Foreground(palette[colorIdx]).
			Render(string(blocks[blockIdx])))
	}
	return result.String()
}
