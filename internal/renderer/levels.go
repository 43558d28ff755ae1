package renderer

import "sort"

// LevelPoint is one amplitude sample of the level track.
type LevelPoint struct {
	Seconds float64
	DB      float64
}

// LevelTrack maps elapsed seconds to the loudest channel level in dB.
// Points stay sorted by time; recording an existing time replaces its level.
type LevelTrack struct {
	noiseFloor float64
	points     []LevelPoint
	peak       float64
	min        float64
}

// NewLevelTrack creates an empty track. Channel levels below noiseFloor are raised to it.
func NewLevelTrack(noiseFloor float64) *LevelTrack {
	return &LevelTrack{
		noiseFloor: noiseFloor,
		peak:       noiseFloor,
		min:        noiseFloor,
	}
}

// Record stores the loudest of channels at seconds.
func (t *LevelTrack) Record(seconds float64, channels []float64) {
	loudest := t.noiseFloor
	for _, db := range channels {
		if db > loudest {
			loudest = db
		}
	}

	if len(t.points) == 0 {
		t.peak = loudest
		t.min = loudest
	} else {
		t.peak = max(t.peak, loudest)
		t.min = min(t.min, loudest)
	}

	point := LevelPoint{Seconds: seconds, DB: loudest}

	// Messages arrive in order, so appending is the common case
	n := len(t.points)
	if n == 0 || t.points[n-1].Seconds < seconds {
		t.points = append(t.points, point)
		return
	}

	i := sort.Search(n, func(i int) bool { return t.points[i].Seconds >= seconds })
	if t.points[i].Seconds == seconds {
		t.points[i] = point
		return
	}
	t.points = append(t.points, LevelPoint{})
	copy(t.points[i+1:], t.points[i:])
	t.points[i] = point
}

// Points returns the recorded points in time order.
func (t *LevelTrack) Points() []LevelPoint {
	return append([]LevelPoint(nil), t.points...)
}

// Len returns the number of recorded points.
func (t *LevelTrack) Len() int {
	return len(t.points)
}

// Peak returns the loudest level recorded, or the noise floor when empty.
func (t *LevelTrack) Peak() float64 {
	return t.peak
}

// Min returns the quietest level recorded, or the noise floor when empty.
func (t *LevelTrack) Min() float64 {
	return t.min
}
