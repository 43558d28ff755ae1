package renderer

import (
	"fmt"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
)

// LoadFont parses the embedded monospace font at the given size in points (72 DPI).
func LoadFont(size float64) (font.Face, error) {
	parsed, err := freetype.ParseFont(gomono.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}

	return truetype.NewFace(parsed, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	}), nil
}

// measureText returns the advance width and line height of text in pixels
func measureText(face font.Face, text string) (int, int) {
	width := font.MeasureString(face, text).Ceil()
	metrics := face.Metrics()
	height := (metrics.Ascent + metrics.Descent).Ceil()
	return width, height
}
