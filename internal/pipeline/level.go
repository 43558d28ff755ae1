package pipeline

import (
	"fmt"
	"math"
	"time"

	"github.com/linuxmatters/sonogen/internal/audio"
)

// silenceDB is reported for channels without any signal in an interval.
const silenceDB = -200.0

// LevelMeter posts per-channel RMS and peak levels once per interval.
type LevelMeter struct {
	interval time.Duration

	rate      int
	channels  int
	started   bool
	baseFrame int64
	frame     int64
	intervals int64
	count     int
	sumSq     []float64
	peak      []float64
}

// NewLevelMeter creates a level element reporting every interval.
func NewLevelMeter(interval time.Duration) (*LevelMeter, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("level interval must be positive, got %v", interval)
	}
	return &LevelMeter{interval: interval}, nil
}

func (l *LevelMeter) Name() string { return "level" }

func (l *LevelMeter) Process(buf *Buffer, post func(Message)) error {
	if buf.Float == nil || buf.Float.Format == nil {
		return fmt.Errorf("level needs float samples")
	}

	rate := buf.Float.Format.SampleRate
	channels := buf.Float.Format.NumChannels
	if rate <= 0 || channels <= 0 {
		return fmt.Errorf("level got invalid format: %d Hz, %d channels", rate, channels)
	}
	if !l.started || rate != l.rate || channels != l.channels {
		l.anchor(buf.PTS, rate, channels)
	}

	data := buf.Float.Data
	for i := 0; i+channels <= len(data); i += channels {
		for ch := 0; ch < channels; ch++ {
			v := data[i+ch]
			l.sumSq[ch] += v * v
			if a := math.Abs(v); a > l.peak[ch] {
				l.peak[ch] = a
			}
		}
		l.count++
		l.frame++

		if l.frame >= l.boundary(l.intervals+1) {
			start := l.boundary(l.intervals)
			end := l.boundary(l.intervals + 1)
			l.intervals++
			post(l.report(start, end))
		}
	}
	return nil
}

func (l *LevelMeter) Flush() {
	l.started = false
}

func (l *LevelMeter) anchor(pts time.Duration, rate, channels int) {
	l.rate = rate
	l.channels = channels
	l.started = true
	l.baseFrame = int64(math.Round(pts.Seconds() * float64(rate)))
	l.frame = 0
	l.intervals = 0
	l.count = 0
	l.sumSq = make([]float64, channels)
	l.peak = make([]float64, channels)
}

func (l *LevelMeter) boundary(n int64) int64 {
	return int64(math.Round(float64(n) * l.interval.Seconds() * float64(l.rate)))
}

func (l *LevelMeter) report(start, end int64) Level {
	msg := Level{
		Timestamp: audio.FramesToDuration(l.baseFrame+start, l.rate),
		EndTime:   audio.FramesToDuration(l.baseFrame+end, l.rate),
		RMS:       make([]float64, l.channels),
		Peak:      make([]float64, l.channels),
	}

	for ch := 0; ch < l.channels; ch++ {
		msg.RMS[ch] = toDB(l.sumSq[ch]/float64(l.count), 10)
		msg.Peak[ch] = toDB(l.peak[ch], 20)
		l.sumSq[ch] = 0
		l.peak[ch] = 0
	}
	l.count = 0
	return msg
}

func toDB(v, factor float64) float64 {
	if v <= 0 {
		return silenceDB
	}
	return math.Max(factor*math.Log10(v), silenceDB)
}
