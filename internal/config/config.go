package config

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Image defaults
const (
	DefaultHeight       = 200     // Canvas height in pixels (frequency rows)
	DefaultWidth        = 0       // 0 = derive from duration × resolution
	DefaultResolution   = 100.0   // Pixels per second
	DefaultDuration     = 0.0     // 0 = whole file
	DefaultNoiseFloor   = -100.0  // dB, values at or below are background
	DefaultMaxFrequency = 12000.0 // Hz, top of the frequency axis
	DefaultOutput       = "sonogram.png"
	DefaultColor        = "#000000"
)

// Shading curve
// Below TX the shade grows quadratically, above it linearly up to 1.0.
// Both segments meet at (TX, TY).
const (
	ShadeTX = 0.6
	ShadeTY = 0.85
)

// Grid appearance
const (
	GridMarkerLarge = 6
	GridMarkerMed   = 4
	GridMarkerSmall = 2

	GridAlphaDark  = 0.08
	GridAlphaLight = 0.04

	FontSize = 7.0 // Label font size in points at 72 DPI

	AxisLineWidth = 1.0
)

// Amplitude sub-graph
const (
	LevelRangeDB    = 70.0 // dB range shown below the spectrogram
	LevelTickStepDB = 15   // dB between ticks
	LevelLabelDB    = 30   // dB between labelled ticks
	LevelTrackRatio = 6    // Amplitude track height = height / LevelTrackRatio
	LevelLineWidth  = 1.5

	// Level curve colours (RGB 0..1)
	LevelFillR   = 0.5255
	LevelFillG   = 0.1529
	LevelFillB   = 0.0353
	LevelStrokeR = 0.3451
	LevelStrokeG = 0.1137
	LevelStrokeB = 0.051
)

// Mode selects how magnitudes are written to the canvas.
type Mode string

const (
	// ModeOverlay writes alpha only over the ink colour; the composer puts it on white.
	ModeOverlay Mode = "overlay"
	// ModeSolid writes opaque grayscale.
	ModeSolid Mode = "solid"
)

// ErrInvalid is returned by Validate for options that cannot produce an image.
var ErrInvalid = errors.New("invalid configuration")

// Config holds the options for a single run. It is fixed once the run starts.
type Config struct {
	Height       int
	Width        int
	Resolution   float64
	Duration     float64
	Start        float64
	NoiseFloor   float64
	MaxFrequency float64
	DrawGrid     bool
	Output       string
	Mode         Mode
	Color        string

	// resolutionSet marks Resolution as given by the user rather than defaulted.
	resolutionSet bool
	resolved      bool
}

// Default returns a Config populated with the default options.
func Default() Config {
	return Config{
		Height:       DefaultHeight,
		Width:        DefaultWidth,
		Resolution:   DefaultResolution,
		Duration:     DefaultDuration,
		NoiseFloor:   DefaultNoiseFloor,
		MaxFrequency: DefaultMaxFrequency,
		Output:       DefaultOutput,
		Mode:         ModeOverlay,
		Color:        DefaultColor,
	}
}

// MarkResolutionSet records that Resolution was supplied explicitly.
func (c *Config) MarkResolutionSet() {
	c.resolutionSet = true
}

// Resolve applies the duration/width/resolution precedence.
// Only two of the three may be independent: with duration and width given,
// resolution becomes width/duration; with only duration, width becomes
// duration × resolution. The returned warnings describe any option that was overridden.
// Later calls on the same config are no-ops.
func (c *Config) Resolve() []string {
	if c.resolved {
		return nil
	}
	c.resolved = true

	var warnings []string

	switch {
	case c.Duration > 0 && c.Width > 0:
		resolution := float64(c.Width) / c.Duration
		if c.resolutionSet && resolution != c.Resolution {
			warnings = append(warnings, fmt.Sprintf(
				"--resolution %g ignored: --width %d over --duration %gs gives %g px/s",
				c.Resolution, c.Width, c.Duration, resolution))
		}
		c.Resolution = resolution
	case c.Duration > 0:
		c.Width = int(c.Duration * c.Resolution)
	}

	return warnings
}

// Validate reports options that cannot produce an image.
func (c *Config) Validate() error {
	switch {
	case c.Height <= 0:
		return fmt.Errorf("%w: height must be positive, got %d", ErrInvalid, c.Height)
	case c.Width < 0:
		return fmt.Errorf("%w: width must not be negative, got %d", ErrInvalid, c.Width)
	case c.Resolution <= 0 || math.IsInf(c.Resolution, 0) || math.IsNaN(c.Resolution):
		return fmt.Errorf("%w: resolution must be positive, got %g", ErrInvalid, c.Resolution)
	case c.Duration < 0:
		return fmt.Errorf("%w: duration must not be negative, got %g", ErrInvalid, c.Duration)
	case c.Start < 0:
		return fmt.Errorf("%w: start must not be negative, got %g", ErrInvalid, c.Start)
	case c.NoiseFloor >= 0:
		return fmt.Errorf("%w: noise floor must be below 0 dB, got %g", ErrInvalid, c.NoiseFloor)
	case c.MaxFrequency <= 0:
		return fmt.Errorf("%w: max frequency must be positive, got %g", ErrInvalid, c.MaxFrequency)
	case c.Output == "":
		return fmt.Errorf("%w: output path is empty", ErrInvalid)
	case c.Mode != ModeOverlay && c.Mode != ModeSolid:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalid, c.Mode)
	}

	if _, _, _, err := ParseHexColor(c.Color); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Interval returns the spectrum message interval in seconds.
func (c *Config) Interval() float64 {
	return 1.0 / c.Resolution
}

// BandFrequency returns the width of one spectrum band in Hz, never less than 1.
func (c *Config) BandFrequency() int {
	bandFreq := int(c.MaxFrequency / float64(c.Height))
	if bandFreq < 1 {
		bandFreq = 1
	}
	return bandFreq
}

// Bands returns the spectrum band count for a stream sampled at sampleRate,
// so that one band covers one canvas row up to the Nyquist limit.
func (c *Config) Bands(sampleRate int) int {
	return (sampleRate / 2) / c.BandFrequency()
}

// Ink returns the parsed overlay colour. Validate must have accepted the config.
func (c *Config) Ink() (r, g, b uint8) {
	r, g, b, _ = ParseHexColor(c.Color)
	return r, g, b
}

// ParseHexColor parses a hex colour string in RRGGBB form, with or without a leading '#'.
func ParseHexColor(hex string) (r, g, b uint8, err error) {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return 0, 0, 0, fmt.Errorf("hex colour must be 6 characters, got %d", len(hex))
	}

	value, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid hex colour %q: %w", hex, err)
	}

	return uint8(value >> 16), uint8(value >> 8), uint8(value), nil
}
