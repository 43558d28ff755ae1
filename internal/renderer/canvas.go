package renderer

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"golang.org/x/image/draw"
)

// ErrOutOfBounds is returned for pixel access outside the canvas.
var ErrOutOfBounds = errors.New("pixel out of bounds")

// Canvas is the raw spectrogram raster: one column per time slice,
// row 0 at the highest frequency.
type Canvas struct {
	img *image.NRGBA
}

// NewCanvas creates a width×height canvas filled with fill.
// A nil fill leaves the canvas fully transparent.
func NewCanvas(width, height int, fill color.Color) (*Canvas, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("canvas size must be positive, got %d×%d", width, height)
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	if fill != nil {
		draw.Draw(img, img.Bounds(), image.NewUniform(fill), image.Point{}, draw.Src)
	}
	return &Canvas{img: img}, nil
}

// Width returns the number of columns.
func (c *Canvas) Width() int {
	return c.img.Rect.Dx()
}

// Height returns the number of rows.
func (c *Canvas) Height() int {
	return c.img.Rect.Dy()
}

// Set writes one pixel.
func (c *Canvas) Set(col, row int, px color.NRGBA) error {
	if !c.contains(col, row) {
		return fmt.Errorf("%w: (%d, %d) on %d×%d canvas", ErrOutOfBounds, col, row, c.Width(), c.Height())
	}
	c.img.SetNRGBA(col, row, px)
	return nil
}

// At reads one pixel.
func (c *Canvas) At(col, row int) (color.NRGBA, error) {
	if !c.contains(col, row) {
		return color.NRGBA{}, fmt.Errorf("%w: (%d, %d) on %d×%d canvas", ErrOutOfBounds, col, row, c.Width(), c.Height())
	}
	return c.img.NRGBAAt(col, row), nil
}

// Image exposes the underlying raster for composition.
func (c *Canvas) Image() *image.NRGBA {
	return c.img
}

// PNG encodes the canvas as it is, transparency included.
func (c *Canvas) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, c.img); err != nil {
		return nil, fmt.Errorf("encoding canvas: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *Canvas) contains(col, row int) bool {
	return col >= 0 && row >= 0 && col < c.Width() && row < c.Height()
}
