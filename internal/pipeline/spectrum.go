package pipeline

import (
	"fmt"
	"math"
	"time"

	"github.com/argusdusty/gofft"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/transforms"
	"github.com/linuxmatters/sonogen/internal/audio"
	"gonum.org/v1/gonum/dsp/window"
)

// Spectrum posts the per-band magnitude of each interval once per interval.
// Successive half-overlapping Hann frames cover the whole interval and their
// power is averaged per band. Channels are mixed down to mono before analysis.
type Spectrum struct {
	bands     int
	interval  time.Duration
	threshold float64

	fftSize int
	hop     int
	window  []float64
	history []float64 // ring of the last fftSize mono samples
	head    int

	power  []float64 // accumulated per-bin power of this interval
	frames int       // FFT frames accumulated into power
	since  int       // samples since the last FFT frame

	rate      int
	started   bool
	baseFrame int64 // stream frame the interval grid is anchored to
	frame     int64 // frames consumed since baseFrame
	intervals int64 // completed intervals since baseFrame
}

// NewSpectrum creates a spectrum element reporting bands bands every interval.
// Magnitudes below threshold dB are clamped to threshold.
func NewSpectrum(bands int, interval time.Duration, threshold float64) (*Spectrum, error) {
	if bands < 1 {
		return nil, fmt.Errorf("spectrum needs at least one band, got %d", bands)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("spectrum interval must be positive, got %v", interval)
	}

	fftSize := nextPowerOfTwo(2 * bands)
	coeffs := make([]float64, fftSize)
	for i := range coeffs {
		coeffs[i] = 1
	}

	return &Spectrum{
		bands:     bands,
		interval:  interval,
		threshold: threshold,
		fftSize:   fftSize,
		hop:       max(1, fftSize/2),
		window:    window.Hann(coeffs),
		history:   make([]float64, fftSize),
		power:     make([]float64, fftSize/2+1),
	}, nil
}

func (s *Spectrum) Name() string { return "spectrum" }

func (s *Spectrum) Process(buf *Buffer, post func(Message)) error {
	if buf.Float == nil {
		return fmt.Errorf("spectrum needs float samples")
	}

	rate := buf.SampleRate()
	if rate <= 0 {
		return fmt.Errorf("spectrum got invalid sample rate %d", rate)
	}
	if !s.started || rate != s.rate {
		s.anchor(buf.PTS, rate)
	}

	mono, err := downmix(buf.Float)
	if err != nil {
		return err
	}

	for _, sample := range mono {
		s.history[s.head] = sample
		s.head = (s.head + 1) % s.fftSize
		s.frame++
		s.since++

		if s.since >= s.hop {
			if err := s.accumulate(); err != nil {
				return err
			}
		}

		if s.frame >= s.boundary(s.intervals+1) {
			start := s.boundary(s.intervals)
			end := s.boundary(s.intervals + 1)
			s.intervals++

			// The tail since the last frame, or a whole interval shorter than a hop
			if s.since > 0 || s.frames == 0 {
				if err := s.accumulate(); err != nil {
					return err
				}
			}

			ts := audio.FramesToDuration(s.baseFrame+start, s.rate)
			endTime := audio.FramesToDuration(s.baseFrame+end, s.rate)
			post(Magnitude{
				Timestamp:  ts,
				EndTime:    endTime,
				Duration:   endTime - ts,
				Magnitudes: s.magnitudes(),
			})
		}
	}
	return nil
}

func (s *Spectrum) Flush() {
	s.started = false
	for i := range s.history {
		s.history[i] = 0
	}
	s.head = 0
	s.reset()
}

func (s *Spectrum) anchor(pts time.Duration, rate int) {
	s.rate = rate
	s.started = true
	s.baseFrame = int64(math.Round(pts.Seconds() * float64(rate)))
	s.frame = 0
	s.intervals = 0
	s.reset()
}

func (s *Spectrum) reset() {
	for i := range s.power {
		s.power[i] = 0
	}
	s.frames = 0
	s.since = 0
}

// boundary returns the frame offset of the end of interval n, free of drift.
func (s *Spectrum) boundary(n int64) int64 {
	return int64(math.Round(float64(n) * s.interval.Seconds() * float64(s.rate)))
}

// accumulate transforms the windowed history and adds its power per bin.
func (s *Spectrum) accumulate() error {
	windowed := make([]float64, s.fftSize)
	for i := 0; i < s.fftSize; i++ {
		windowed[i] = s.history[(s.head+i)%s.fftSize] * s.window[i]
	}

	coeffs := gofft.Float64ToComplex128Array(windowed)
	if err := gofft.FFT(coeffs); err != nil {
		return fmt.Errorf("spectrum FFT: %w", err)
	}

	norm := float64(s.fftSize) * float64(s.fftSize)
	for i := range s.power {
		re, im := real(coeffs[i]), imag(coeffs[i])
		s.power[i] += (re*re + im*im) / norm
	}
	s.frames++
	s.since = 0
	return nil
}

// magnitudes averages the accumulated power per band in dB and starts a new interval.
func (s *Spectrum) magnitudes() []float32 {
	bins := s.fftSize / 2
	magnitudes := make([]float32, s.bands)

	for band := 0; band < s.bands; band++ {
		lo := band * bins / s.bands
		hi := (band + 1) * bins / s.bands
		if hi <= lo {
			hi = lo + 1
		}

		var power float64
		for i := lo; i < hi; i++ {
			power += s.power[i]
		}
		power /= float64(hi-lo) * float64(max(1, s.frames))

		db := s.threshold
		if power > 0 {
			db = math.Max(10*math.Log10(power), s.threshold)
		}
		magnitudes[band] = float32(db)
	}

	s.reset()
	return magnitudes
}

// downmix returns the mono mix of fb without modifying it.
func downmix(fb *goaudio.FloatBuffer) ([]float64, error) {
	if fb.Format == nil || fb.Format.NumChannels <= 1 {
		return fb.Data, nil
	}

	mono := &goaudio.FloatBuffer{
		Format: &goaudio.Format{
			NumChannels: fb.Format.NumChannels,
			SampleRate:  fb.Format.SampleRate,
		},
		Data: append([]float64(nil), fb.Data...),
	}
	if err := transforms.MonoDownmix(mono); err != nil {
		return nil, fmt.Errorf("spectrum downmix: %w", err)
	}
	return mono.Data, nil
}

func nextPowerOfTwo(n int) int {
	size := 1
	for size < n {
		size <<= 1
	}
	return size
}
