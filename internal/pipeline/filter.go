package pipeline

import (
	"fmt"
	"math"
)

// HighPass attenuates content below a cutoff frequency with two cascaded
// second-order sections (24 dB/octave).
type HighPass struct {
	cutoff float64

	rate     int
	channels int
	sections [2]biquad
	state    [][2]biquadState // per channel, per section
}

type biquad struct {
	b0, b1, b2, a1, a2 float64
}

type biquadState struct {
	x1, x2, y1, y2 float64
}

// NewHighPass creates a high-pass filter element.
func NewHighPass(cutoff float64) (*HighPass, error) {
	if cutoff <= 0 {
		return nil, fmt.Errorf("high-pass cutoff must be positive, got %g", cutoff)
	}
	return &HighPass{cutoff: cutoff}, nil
}

func (h *HighPass) Name() string { return "highpass" }

func (h *HighPass) Process(buf *Buffer, _ func(Message)) error {
	if buf.Float == nil || buf.Float.Format == nil {
		return fmt.Errorf("high-pass needs float samples")
	}

	rate := buf.Float.Format.SampleRate
	channels := buf.Float.Format.NumChannels
	if rate != h.rate || channels != h.channels {
		h.configure(rate, channels)
	}

	// Cutoff at or above Nyquist leaves nothing to pass; keep the signal as is
	if h.cutoff >= float64(rate)/2 {
		return nil
	}

	data := buf.Float.Data
	for i := 0; i+channels <= len(data); i += channels {
		for ch := 0; ch < channels; ch++ {
			v := data[i+ch]
			for s := range h.sections {
				v = h.sections[s].apply(&h.state[ch][s], v)
			}
			data[i+ch] = v
		}
	}
	return nil
}

func (h *HighPass) Flush() {
	for ch := range h.state {
		h.state[ch] = [2]biquadState{}
	}
}

func (h *HighPass) configure(rate, channels int) {
	h.rate = rate
	h.channels = channels
	h.state = make([][2]biquadState, channels)

	// Butterworth Q for each section of the cascade
	qs := [2]float64{0.5412, 1.3066}
	w0 := 2 * math.Pi * h.cutoff / float64(rate)
	cos := math.Cos(w0)
	for i, q := range qs {
		alpha := math.Sin(w0) / (2 * q)
		a0 := 1 + alpha
		h.sections[i] = biquad{
			b0: (1 + cos) / 2 / a0,
			b1: -(1 + cos) / a0,
			b2: (1 + cos) / 2 / a0,
			a1: -2 * cos / a0,
			a2: (1 - alpha) / a0,
		}
	}
}

func (b biquad) apply(s *biquadState, x float64) float64 {
	y := b.b0*x + b.b1*s.x1 + b.b2*s.x2 - b.a1*s.y1 - b.a2*s.y2
	s.x2, s.x1 = s.x1, x
	s.y2, s.y1 = s.y1, y
	return y
}
