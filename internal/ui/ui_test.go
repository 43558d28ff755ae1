package ui

import (
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func TestPreviewConfigFor(t *testing.T) {
	testCases := []struct {
		name     string
		w, h     int
		maxWidth int
		want     PreviewConfig
	}{
		{"wide image", 720, 180, 72, PreviewConfig{Width: 72, Height: 9}},
		{"narrow image keeps source width", 40, 40, 72, PreviewConfig{Width: 40, Height: 20}},
		{"very flat image gets one row", 1000, 10, 72, PreviewConfig{Width: 72, Height: 1}},
		{"empty image", 0, 0, 72, PreviewConfig{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := PreviewConfigFor(image.Rect(0, 0, tc.w, tc.h), tc.maxWidth)
			if got != tc.want {
				t.Errorf("PreviewConfigFor(%d×%d) = %+v, want %+v", tc.w, tc.h, got, tc.want)
			}
		})
	}
}

func TestDownsampleFrame(t *testing.T) {
	// Left half black, right half white
	img := image.NewRGBA(image.Rect(0, 0, 8, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 8; x++ {
			v := uint8(0)
			if x >= 4 {
				v = 255
			}
			img.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}

	preview := DownsampleFrame(img, PreviewConfig{Width: 2, Height: 1})
	if len(preview) != 1 || len(preview[0]) != 2 {
		t.Fatalf("preview size = %d rows, want 1×2", len(preview))
	}
	if preview[0][0] != (color.RGBA{A: 255}) {
		t.Errorf("left cell = %v, want black", preview[0][0])
	}
	if preview[0][1] != (color.RGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Errorf("right cell = %v, want white", preview[0][1])
	}

	// More cells than pixels still samples one pixel per cell
	upscaled := DownsampleFrame(img, PreviewConfig{Width: 16, Height: 8})
	if upscaled[0][15] != (color.RGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Errorf("upscaled right edge = %v, want white", upscaled[0][15])
	}

	if got := DownsampleFrame(img, PreviewConfig{}); got != nil {
		t.Errorf("zero config preview = %v, want nil", got)
	}
}

func TestRenderPreview(t *testing.T) {
	if RenderPreview(nil) != "" {
		t.Error("empty preview should render nothing")
	}

	out := RenderPreview([][]color.RGBA{{{R: 1, G: 2, B: 3, A: 255}}})
	if !strings.Contains(out, "\x1b[48;2;1;2;3m") {
		t.Errorf("preview missing colour escape: %q", out)
	}
	if strings.Count(out, "\n") != 4 {
		t.Errorf("preview has %d lines, want 4", strings.Count(out, "\n"))
	}
}

func TestModel_Lifecycle(t *testing.T) {
	m := NewModel(false, -100)

	if !strings.Contains(m.View(), "Prerolling") {
		t.Error("initial view should show preroll")
	}

	m.Update(FileInfo{Input: "a.wav", Format: "wav", SampleRate: 44100, Channels: 2, Duration: 3 * time.Second, Title: "Intro", Artist: "Host"})
	for col := 1; col <= 60; col++ {
		m.Update(ColumnProgress{Column: col, Width: 300, Position: time.Duration(col) * 10 * time.Millisecond, Level: -20})
	}

	if len(m.levels) != levelHistory {
		t.Errorf("kept %d levels, want %d", len(m.levels), levelHistory)
	}
	view := m.View()
	for _, want := range []string{"20%", "Column 60 of 300", "44100 Hz", "Host - Intro", "-20.0 dB"} {
		if !strings.Contains(view, want) {
			t.Errorf("progress view missing %q", want)
		}
	}
	if m.CompletionSummary() != "" {
		t.Error("summary before completion should be empty")
	}

	img := image.NewRGBA(image.Rect(0, 0, 300, 200))
	_, cmd := m.Update(Complete{Output: "out.png", Image: img, Columns: 299, Audio: 3 * time.Second, FileSize: 2048, PeakLevel: -6, MinLevel: -60})
	if cmd == nil {
		t.Error("completion should schedule a quit")
	}

	summary := m.CompletionSummary()
	for _, want := range []string{"Sonogram Complete", "out.png", "300×200 px", "299 columns", "2.0 KB", "Sonogram Preview"} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary missing %q", want)
		}
	}

	if _, cmd := m.Update(progressQuitMsg{}); cmd == nil {
		t.Error("quit message should return a command")
	}
}

func TestModel_NoPreview(t *testing.T) {
	m := NewModel(true, -100)
	m.Update(Complete{Output: "out.png", Image: image.NewRGBA(image.Rect(0, 0, 10, 10))})

	if strings.Contains(m.CompletionSummary(), "Preview") {
		t.Error("preview rendered despite noPreview")
	}
}

func TestModel_Failed(t *testing.T) {
	m := NewModel(false, -100)
	boom := errors.New("boom")

	_, cmd := m.Update(Failed{Err: boom})
	if cmd == nil {
		t.Error("failure should quit")
	}
	if !errors.Is(m.Err(), boom) {
		t.Errorf("Err() = %v, want boom", m.Err())
	}
	if m.View() != "" {
		t.Error("view after failure should be empty")
	}
}

func TestModel_WindowSize(t *testing.T) {
	m := NewModel(false, -100)
	m.Update(tea.WindowSizeMsg{Width: 60, Height: 20})

	if m.progressBar.Width != 30 {
		t.Errorf("progress width = %d, want 30", m.progressBar.Width)
	}
}

func TestRenderLevels(t *testing.T) {
	out := renderLevels([]float64{-100, -50, 0, 12, -200}, -100)
	for _, block := range []string{"▁", "█"} {
		if !strings.Contains(out, block) {
			t.Errorf("meter %q missing %q", out, block)
		}
	}
}
