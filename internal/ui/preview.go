package ui

import (
	"fmt"
	"image"
	"image/color"
	"strings"
)

// PreviewConfig holds the size of the terminal preview
type PreviewConfig struct {
	Width  int // Width in terminal cells
	Height int // Height in terminal cells
}

// PreviewConfigFor fits an image into at most maxWidth cells, keeping its aspect ratio.
// Terminal cells are about twice as tall as wide.
func PreviewConfigFor(bounds image.Rectangle, maxWidth int) PreviewConfig {
	srcWidth, srcHeight := bounds.Dx(), bounds.Dy()
	if srcWidth <= 0 || srcHeight <= 0 || maxWidth <= 0 {
		return PreviewConfig{}
	}

	width := min(maxWidth, srcWidth)
	height := int(float64(width) * float64(srcHeight) / float64(srcWidth) / 2)
	height = max(1, min(height, srcHeight))
	return PreviewConfig{Width: width, Height: height}
}

// DownsampleFrame reduces an image to preview size.
// Each terminal cell averages the rectangular region of the source it covers.
func DownsampleFrame(frame image.Image, config PreviewConfig) [][]color.RGBA {
	bounds := frame.Bounds()
	srcWidth := bounds.Dx()
	srcHeight := bounds.Dy()
	if config.Width <= 0 || config.Height <= 0 || srcWidth <= 0 || srcHeight <= 0 {
		return nil
	}

	preview := make([][]color.RGBA, config.Height)
	for row := 0; row < config.Height; row++ {
		preview[row] = make([]color.RGBA, config.Width)

		y0 := bounds.Min.Y + row*srcHeight/config.Height
		y1 := bounds.Min.Y + (row+1)*srcHeight/config.Height
		for col := 0; col < config.Width; col++ {
			x0 := bounds.Min.X + col*srcWidth/config.Width
			x1 := bounds.Min.X + (col+1)*srcWidth/config.Width

			var sumR, sumG, sumB uint32
			pixelCount := 0
			for y := y0; y < max(y1, y0+1); y++ {
				for x := x0; x < max(x1, x0+1); x++ {
					r, g, b, _ := frame.At(x, y).RGBA()
					sumR += r >> 8
					sumG += g >> 8
					sumB += b >> 8
					pixelCount++
				}
			}

			preview[row][col] = color.RGBA{
				R: uint8(sumR / uint32(pixelCount)),
				G: uint8(sumG / uint32(pixelCount)),
				B: uint8(sumB / uint32(pixelCount)),
				A: 255,
			}
		}
	}

	return preview
}

// RenderPreview draws a preview grid with ANSI 24-bit background colours
func RenderPreview(preview [][]color.RGBA) string {
	if len(preview) == 0 {
		return ""
	}

	var s strings.Builder
	border := strings.Repeat("─", len(preview[0]))

	s.WriteString("  Sonogram Preview:\n")
	s.WriteString("  ┌" + border + "┐\n")
	for _, row := range preview {
		s.WriteString("  │")
		for _, pixel := range row {
			fmt.Fprintf(&s, "\x1b[48;2;%d;%d;%dm \x1b[0m", pixel.R, pixel.G, pixel.B)
		}
		s.WriteString("│\n")
	}
	s.WriteString("  └" + border + "┘\n")

	return s.String()
}
