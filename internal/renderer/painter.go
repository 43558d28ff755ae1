package renderer

import (
	"errors"
	"fmt"
	"image/color"
	"math"

	"github.com/linuxmatters/sonogen/internal/config"
)

// ErrColumnOutOfRange is returned when a column lies past the canvas.
// Callers treat it as the end of useful data rather than a failure.
var ErrColumnOutOfRange = errors.New("column out of range")

// Shading curve coefficients. The quadratic and linear segments meet at (TX, TY).
var (
	curveK = (1 / config.ShadeTX) * (1 / config.ShadeTX) * config.ShadeTY
	curveM = (1 - config.ShadeTY) / (1 - config.ShadeTX)
	curveB = config.ShadeTY - curveM*config.ShadeTX
)

// Normalize maps a magnitude onto the noise floor scale: 0 at the floor, 1 at 0 dB.
func Normalize(db, noiseFloor float64) float64 {
	return (db - noiseFloor) / math.Abs(noiseFloor)
}

// Curve de-emphasises quiet content below TX and maps louder content linearly.
func Curve(shade float64) float64 {
	if shade < config.ShadeTX {
		return curveK * shade * shade
	}
	return curveM*shade + curveB
}

// Shade returns the intensity byte for a magnitude, and false when the
// magnitude is at or below the noise floor and the pixel must stay untouched.
func Shade(db, noiseFloor float64) (uint8, bool) {
	shade := Normalize(db, noiseFloor)
	if !(shade > 0) {
		return 0, false
	}
	shade = math.Max(0, math.Min(1, Curve(shade)))
	return uint8(shade * 0xFF), true
}

// Painter writes magnitude columns onto a canvas.
type Painter struct {
	canvas     *Canvas
	noiseFloor float64
	mode       config.Mode
	ink        color.NRGBA
	columns    int
}

// NewPainter creates a painter. In overlay mode intensity becomes the alpha of
// ink; in solid mode it becomes an opaque gray with black at full intensity.
func NewPainter(canvas *Canvas, noiseFloor float64, mode config.Mode, ink color.NRGBA) *Painter {
	return &Painter{
		canvas:     canvas,
		noiseFloor: noiseFloor,
		mode:       mode,
		ink:        ink,
	}
}

// PaintColumn paints one column, lowest band at the bottom row.
// Bands beyond the canvas height are dropped.
func (p *Painter) PaintColumn(magnitudes []float32, col int) error {
	if col < 0 || col >= p.canvas.Width() {
		return fmt.Errorf("%w: column %d, canvas width %d", ErrColumnOutOfRange, col, p.canvas.Width())
	}

	height := p.canvas.Height()
	size := min(len(magnitudes), height)

	for i := 0; i < size; i++ {
		value, ok := Shade(float64(magnitudes[i]), p.noiseFloor)
		if !ok {
			continue
		}
		if err := p.canvas.Set(col, height-1-i, p.pixel(value)); err != nil {
			return err
		}
	}

	p.columns++
	return nil
}

// Columns returns the number of columns painted so far, backfill included.
func (p *Painter) Columns() int {
	return p.columns
}

func (p *Painter) pixel(value uint8) color.NRGBA {
	if p.mode == config.ModeSolid {
		gray := 0xFF - value
		return color.NRGBA{R: gray, G: gray, B: gray, A: 0xFF}
	}
	return color.NRGBA{R: p.ink.R, G: p.ink.G, B: p.ink.B, A: value}
}
