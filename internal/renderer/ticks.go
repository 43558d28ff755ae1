package renderer

import (
	"fmt"

	"github.com/linuxmatters/sonogen/internal/config"
)

// Tick is one axis marker. Pos is in pixels from the axis origin along the
// axis, Label is empty for unlabelled ticks.
type Tick struct {
	Pos    int
	Marker float64
	Alpha  float64 // gridline alpha, 0 for no gridline
	Label  string
}

// FrequencyTicks places a tick every kHz up to maxFrequency. Every 5th tick is
// medium, labelled and gets a darker gridline; every 10th is large. The top tick
// is always labelled.
func FrequencyTicks(height int, maxFrequency float64) []Tick {
	pxPerKhz := float64(height) / (maxFrequency / 1000)
	nKhz := int(maxFrequency / 1000)

	ticks := make([]Tick, 0, nKhz)
	for f := 1; f <= nKhz; f++ {
		tick := Tick{
			Pos:    int(float64(f) * pxPerKhz),
			Marker: config.GridMarkerSmall,
			Alpha:  config.GridAlphaLight,
		}
		label := f == nKhz

		if f%5 == 0 {
			tick.Marker = config.GridMarkerMed
			tick.Alpha = config.GridAlphaDark
			label = true
		}
		if f%10 == 0 {
			tick.Marker = config.GridMarkerLarge
		}
		if label {
			tick.Label = fmt.Sprintf("%dk", f)
		}
		ticks = append(ticks, tick)
	}
	return ticks
}

// LabelEvery returns how many seconds apart time labels are drawn.
func LabelEvery(resolution float64) int {
	switch {
	case resolution <= 10:
		return 10
	case resolution <= 30:
		return 5
	}
	return 1
}

// TimeTicks places a tick every whole second that fits in width.
func TimeTicks(width int, resolution float64) []Tick {
	seconds := int(float64(width) / resolution)
	every := LabelEvery(resolution)

	ticks := make([]Tick, 0, seconds)
	for s := 1; s <= seconds; s++ {
		tick := Tick{
			Pos:    int(resolution * float64(s)),
			Marker: config.GridMarkerMed,
		}
		if s%5 == 0 {
			tick.Marker = config.GridMarkerLarge
		}
		if s%every == 0 {
			tick.Label = fmt.Sprintf("%ds", s)
		}
		ticks = append(ticks, tick)
	}
	return ticks
}

// LevelTicks places a tick every 15 dB from 0 down to the bottom of the
// amplitude track, labelling every 30 dB. Pos is negative, downwards from the top.
func LevelTicks(trackHeight float64) []Tick {
	var ticks []Tick
	for l := 0; l >= -int(config.LevelRangeDB); l -= config.LevelTickStepDB {
		tick := Tick{
			Pos:    int(float64(l) / config.LevelRangeDB * trackHeight),
			Marker: config.GridMarkerSmall,
		}
		if l%config.LevelLabelDB == 0 {
			tick.Marker = config.GridMarkerMed
			tick.Label = fmt.Sprintf("%ddB", l)
		}
		ticks = append(ticks, tick)
	}
	return ticks
}
