package pipeline

import (
	"math"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
)

func floatBuffer(pts time.Duration, rate, channels int, data []float64) *Buffer {
	return &Buffer{
		PTS: pts,
		Float: &goaudio.FloatBuffer{
			Data:   data,
			Format: &goaudio.Format{NumChannels: channels, SampleRate: rate},
		},
	}
}

func TestNextPowerOfTwo(t *testing.T) {
	testCases := []struct{ in, want int }{
		{1, 1}, {2, 2}, {3, 4}, {80, 128}, {734, 1024}, {1024, 1024},
	}
	for _, tc := range testCases {
		if got := nextPowerOfTwo(tc.in); got != tc.want {
			t.Errorf("nextPowerOfTwo(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestNewSpectrumRejectsInvalid(t *testing.T) {
	if _, err := NewSpectrum(0, time.Millisecond, -100); err == nil {
		t.Error("expected error for zero bands")
	}
	if _, err := NewSpectrum(10, 0, -100); err == nil {
		t.Error("expected error for zero interval")
	}
}

func TestSpectrumSilenceClampsToThreshold(t *testing.T) {
	s, err := NewSpectrum(16, 10*time.Millisecond, -90)
	if err != nil {
		t.Fatal(err)
	}

	var posted []Magnitude
	post := func(m Message) { posted = append(posted, m.(Magnitude)) }

	if err := s.Process(floatBuffer(0, 1000, 1, make([]float64, 100)), post); err != nil {
		t.Fatal(err)
	}

	if len(posted) != 10 {
		t.Fatalf("got %d messages, want 10", len(posted))
	}
	for _, m := range posted {
		for band, v := range m.Magnitudes {
			if v != -90 {
				t.Fatalf("band %d = %g dB, want threshold -90", band, v)
			}
		}
	}
}

func TestSpectrumStereoDownmixKeepsInput(t *testing.T) {
	s, err := NewSpectrum(8, 10*time.Millisecond, -100)
	if err != nil {
		t.Fatal(err)
	}

	// Left and right cancel in the mono mix
	data := make([]float64, 2*100)
	for i := 0; i < 100; i++ {
		v := math.Sin(2 * math.Pi * 100 * float64(i) / 1000)
		data[2*i] = v
		data[2*i+1] = -v
	}
	original := append([]float64(nil), data...)
	buf := floatBuffer(0, 1000, 2, data)

	var posted []Magnitude
	if err := s.Process(buf, func(m Message) { posted = append(posted, m.(Magnitude)) }); err != nil {
		t.Fatal(err)
	}

	if buf.Float.Format.NumChannels != 2 {
		t.Errorf("input format changed to %d channels", buf.Float.Format.NumChannels)
	}
	for i := range original {
		if buf.Float.Data[i] != original[i] {
			t.Fatalf("input sample %d modified", i)
		}
	}
	for _, v := range posted[len(posted)-1].Magnitudes {
		if v != -100 {
			t.Errorf("cancelled channels should be silent, got %g dB", v)
		}
	}
}

// TestSpectrumCoversWholeInterval checks that a burst early in an interval
// much longer than the FFT still shows up in that interval's magnitudes.
func TestSpectrumCoversWholeInterval(t *testing.T) {
	const (
		rate  = 8000
		bands = 64 // 62.5 Hz per band, 128-point FFT
	)
	s, err := NewSpectrum(bands, time.Second, -100)
	if err != nil {
		t.Fatal(err)
	}

	// 440 Hz at 0.8 from 0.2s to 0.6s, silence elsewhere
	data := make([]float64, rate)
	for i := rate / 5; i < rate*3/5; i++ {
		data[i] = 0.8 * math.Sin(2*math.Pi*440*float64(i-rate/5)/rate)
	}

	var posted []Magnitude
	if err := s.Process(floatBuffer(0, rate, 1, data), func(m Message) { posted = append(posted, m.(Magnitude)) }); err != nil {
		t.Fatal(err)
	}
	if len(posted) != 1 {
		t.Fatalf("got %d messages, want 1", len(posted))
	}

	mags := posted[0].Magnitudes
	loudest := 0
	for band, v := range mags {
		if v > mags[loudest] {
			loudest = band
		}
	}
	t.Logf("loudest band %d at %.1f dB, band 40 at %.1f dB", loudest, mags[loudest], mags[40])

	if loudest != 7 {
		t.Errorf("loudest band = %d, want 7 (437.5-500 Hz)", loudest)
	}
	if mags[loudest] < -30 {
		t.Errorf("burst band = %.1f dB, want above -30 dB", mags[loudest])
	}
	if mags[40] > mags[loudest]-30 {
		t.Errorf("band 40 = %.1f dB, want at least 30 dB below the burst", mags[40])
	}
}

func TestSpectrumTimestampsFollowPTS(t *testing.T) {
	s, err := NewSpectrum(8, 100*time.Millisecond, -100)
	if err != nil {
		t.Fatal(err)
	}

	var posted []Magnitude
	post := func(m Message) { posted = append(posted, m.(Magnitude)) }

	// Starts at 2s, two chunks of 150ms each
	if err := s.Process(floatBuffer(2*time.Second, 1000, 1, make([]float64, 150)), post); err != nil {
		t.Fatal(err)
	}
	if err := s.Process(floatBuffer(2150*time.Millisecond, 1000, 1, make([]float64, 150)), post); err != nil {
		t.Fatal(err)
	}

	want := []time.Duration{2100 * time.Millisecond, 2200 * time.Millisecond, 2300 * time.Millisecond}
	if len(posted) != len(want) {
		t.Fatalf("got %d messages, want %d", len(posted), len(want))
	}
	for i, m := range posted {
		if m.EndTime != want[i] {
			t.Errorf("message %d end time = %v, want %v", i, m.EndTime, want[i])
		}
	}

	// A flush re-anchors on the next buffer
	s.Flush()
	posted = nil
	if err := s.Process(floatBuffer(10*time.Second, 1000, 1, make([]float64, 100)), post); err != nil {
		t.Fatal(err)
	}
	if len(posted) != 1 || posted[0].Timestamp != 10*time.Second {
		t.Errorf("after flush got %+v, want one message at 10s", posted)
	}
}

func TestLevelMeter(t *testing.T) {
	l, err := NewLevelMeter(50 * time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}

	// Left full-scale square wave, right silent
	data := make([]float64, 2*100)
	for i := 0; i < 100; i++ {
		if i%2 == 0 {
			data[2*i] = 1
		} else {
			data[2*i] = -1
		}
	}

	var posted []Level
	if err := l.Process(floatBuffer(0, 1000, 2, data), func(m Message) { posted = append(posted, m.(Level)) }); err != nil {
		t.Fatal(err)
	}

	if len(posted) != 2 {
		t.Fatalf("got %d level messages, want 2", len(posted))
	}
	for _, m := range posted {
		if math.Abs(m.RMS[0]) > 1e-9 || math.Abs(m.Peak[0]) > 1e-9 {
			t.Errorf("full-scale channel RMS/peak = %g/%g dB, want 0/0", m.RMS[0], m.Peak[0])
		}
		if m.RMS[1] != silenceDB || m.Peak[1] != silenceDB {
			t.Errorf("silent channel RMS/peak = %g/%g dB, want %g", m.RMS[1], m.Peak[1], silenceDB)
		}
	}
	if posted[1].Timestamp != 50*time.Millisecond || posted[1].EndTime != 100*time.Millisecond {
		t.Errorf("second interval = [%v, %v], want [50ms, 100ms]", posted[1].Timestamp, posted[1].EndTime)
	}
}

func TestHighPassAttenuatesLowFrequencies(t *testing.T) {
	rms := func(freq float64) float64 {
		h, err := NewHighPass(440)
		if err != nil {
			t.Fatal(err)
		}
		const rate = 8000
		data := make([]float64, rate)
		for i := range data {
			data[i] = math.Sin(2 * math.Pi * freq * float64(i) / rate)
		}
		if err := h.Process(floatBuffer(0, rate, 1, data), nil); err != nil {
			t.Fatal(err)
		}
		// Skip the settling transient
		var sum float64
		for _, v := range data[rate/2:] {
			sum += v * v
		}
		return math.Sqrt(sum / float64(rate/2))
	}

	low, high := rms(50), rms(2000)
	t.Logf("RMS after filter: 50 Hz %.4f, 2 kHz %.4f", low, high)

	if low > 0.01 {
		t.Errorf("50 Hz should be strongly attenuated, RMS %.4f", low)
	}
	if high < 0.69 {
		t.Errorf("2 kHz should pass, RMS %.4f", high)
	}
}
