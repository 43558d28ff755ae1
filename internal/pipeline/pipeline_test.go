package pipeline

import (
	"errors"
	"io"
	"math"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/linuxmatters/sonogen/internal/audio"
)

// sineDecoder produces a sine tone on every channel
type sineDecoder struct {
	rate     int
	channels int
	frames   int
	freq     float64
	amp      float64
	length   bool // report NumFrames
	pos      int
}

func (d *sineDecoder) ReadChunk(numFrames int) (*goaudio.IntBuffer, error) {
	if d.pos >= d.frames {
		return nil, io.EOF
	}
	n := min(numFrames, d.frames-d.pos)
	buf := &goaudio.IntBuffer{
		Data:           make([]int, n*d.channels),
		Format:         &goaudio.Format{NumChannels: d.channels, SampleRate: d.rate},
		SourceBitDepth: 16,
	}
	for i := 0; i < n; i++ {
		v := int(d.amp * 32767 * math.Sin(2*math.Pi*d.freq*float64(d.pos+i)/float64(d.rate)))
		for ch := 0; ch < d.channels; ch++ {
			buf.Data[i*d.channels+ch] = v
		}
	}
	d.pos += n
	return buf, nil
}

func (d *sineDecoder) SampleRate() int  { return d.rate }
func (d *sineDecoder) NumChannels() int { return d.channels }
func (d *sineDecoder) BitDepth() int    { return 16 }
func (d *sineDecoder) Close() error     { return nil }

func (d *sineDecoder) NumFrames() int64 {
	if !d.length {
		return 0
	}
	return int64(d.frames)
}

func sineSource(rate, channels, frames int, length bool) DecoderFunc {
	return func() (audio.Decoder, error) {
		return &sineDecoder{rate: rate, channels: channels, frames: frames, freq: 1000, amp: 0.5, length: length}, nil
	}
}

func nextMessage(t *testing.T, p *Pipeline) Message {
	t.Helper()
	select {
	case msg, ok := <-p.Bus():
		if !ok {
			t.Fatal("bus closed unexpectedly")
		}
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a bus message")
	}
	return nil
}

// prerolled returns a pipeline in StatePaused along with its pad
func prerolled(t *testing.T, p *Pipeline) *Pad {
	t.Helper()

	if got := p.SetState(StatePaused); got != StateChangeAsync {
		t.Fatalf("SetState(PAUSED) = %v, want async", got)
	}

	added, ok := nextMessage(t, p).(PadAdded)
	if !ok {
		t.Fatal("expected PadAdded first")
	}
	if _, ok := nextMessage(t, p).(AsyncDone); !ok {
		t.Fatal("expected AsyncDone after PadAdded")
	}
	return added.Pad
}

// collect gathers messages until EOS
func collect(t *testing.T, p *Pipeline) (mags []Magnitude, levels []Level, others []Message) {
	t.Helper()
	for {
		switch msg := nextMessage(t, p).(type) {
		case Magnitude:
			mags = append(mags, msg)
		case Level:
			levels = append(levels, msg)
		case EOS:
			return mags, levels, others
		case Error:
			t.Fatalf("unexpected pipeline error: %v", msg)
		default:
			others = append(others, msg)
		}
	}
}

func analysisChain(t *testing.T, bands int, interval time.Duration) []Element {
	t.Helper()
	spectrum, err := NewSpectrum(bands, interval, -100)
	if err != nil {
		t.Fatal(err)
	}
	highpass, err := NewHighPass(440)
	if err != nil {
		t.Fatal(err)
	}
	level, err := NewLevelMeter(interval / 2)
	if err != nil {
		t.Fatal(err)
	}
	return []Element{NewConvert(), spectrum, highpass, level, NewFakeSink()}
}

func TestPrerollAnnouncesPad(t *testing.T) {
	p := New("sine", sineSource(8000, 2, 8000, true))
	defer p.SetState(StateNull)

	if _, err := p.QueryDuration(); !errors.Is(err, ErrNotPrerolled) {
		t.Errorf("QueryDuration() before preroll = %v, want ErrNotPrerolled", err)
	}

	pad := prerolled(t, p)

	want := Caps{MediaType: MediaTypeRawAudio, SampleRate: 8000, Channels: 2, BitDepth: 16}
	if pad.Caps != want {
		t.Errorf("pad caps = %+v, want %+v", pad.Caps, want)
	}
	if p.State() != StatePaused {
		t.Errorf("State() = %v, want PAUSED", p.State())
	}

	duration, err := p.QueryDuration()
	if err != nil {
		t.Fatalf("QueryDuration() returned error: %v", err)
	}
	if duration != time.Second {
		t.Errorf("QueryDuration() = %v, want 1s", duration)
	}

	// Already prerolled, so the change is immediate
	if got := p.SetState(StatePaused); got != StateChangeSuccess {
		t.Errorf("second SetState(PAUSED) = %v, want success", got)
	}
}

func TestPlayToEOS(t *testing.T) {
	p := New("sine", sineSource(8000, 1, 8000, true))
	defer p.SetState(StateNull)

	pad := prerolled(t, p)
	chain := analysisChain(t, 40, 50*time.Millisecond)
	if err := p.Link(pad, chain...); err != nil {
		t.Fatalf("Link() returned error: %v", err)
	}
	if got := p.SetState(StatePlaying); got != StateChangeSuccess {
		t.Fatalf("SetState(PLAYING) = %v, want success", got)
	}

	mags, levels, others := collect(t, p)

	if len(mags) != 20 {
		t.Errorf("got %d magnitude messages, want 20", len(mags))
	}
	if len(levels) != 40 {
		t.Errorf("got %d level messages, want 40", len(levels))
	}
	if len(others) != 0 {
		t.Errorf("unexpected messages: %v", others)
	}

	var last time.Duration
	for i, m := range mags {
		if m.EndTime <= last {
			t.Errorf("magnitude %d end time %v not after %v", i, m.EndTime, last)
		}
		if m.EndTime-m.Timestamp != 50*time.Millisecond {
			t.Errorf("magnitude %d spans %v, want 50ms", i, m.EndTime-m.Timestamp)
		}
		if len(m.Magnitudes) != 40 {
			t.Fatalf("magnitude %d has %d bands, want 40", i, len(m.Magnitudes))
		}
		last = m.EndTime
	}
	if last != time.Second {
		t.Errorf("last end time = %v, want 1s", last)
	}
	if frames := chain[len(chain)-1].(*FakeSink).Frames(); frames != 8000 {
		t.Errorf("sink consumed %d frames, want 8000", frames)
	}

	// 1 kHz at 100 Hz per band lands in band 10
	peakBand := 0
	final := mags[len(mags)-1].Magnitudes
	for i, v := range final {
		if v > final[peakBand] {
			peakBand = i
		}
	}
	if peakBand != 10 {
		t.Errorf("peak band = %d, want 10", peakBand)
	}

	// Amplitude 0.5 sine: RMS = 0.5/√2, about -9 dB
	rms := levels[len(levels)-1].RMS[0]
	if math.Abs(rms-(-9.03)) > 1 {
		t.Errorf("final RMS = %.2f dB, want about -9.03 dB", rms)
	}
	t.Logf("peak band %d at %.1f dB, final RMS %.2f dB", peakBand, final[peakBand], rms)
}

func TestSeekSegment(t *testing.T) {
	p := New("sine", sineSource(8000, 1, 16000, true))
	defer p.SetState(StateNull)

	pad := prerolled(t, p)
	if err := p.Seek(500*time.Millisecond, time.Second); err != nil {
		t.Fatalf("Seek() returned error: %v", err)
	}
	done, ok := nextMessage(t, p).(AsyncDone)
	if !ok {
		t.Fatal("expected AsyncDone after seek")
	}
	if done.Position != 500*time.Millisecond {
		t.Errorf("seek position = %v, want 500ms", done.Position)
	}

	if err := p.Link(pad, analysisChain(t, 40, 50*time.Millisecond)...); err != nil {
		t.Fatal(err)
	}
	p.SetState(StatePlaying)

	mags, _, others := collect(t, p)
	if len(mags) != 10 {
		t.Fatalf("got %d magnitude messages, want 10", len(mags))
	}
	if mags[0].Timestamp != 500*time.Millisecond {
		t.Errorf("first timestamp = %v, want 500ms", mags[0].Timestamp)
	}
	if mags[9].EndTime != time.Second {
		t.Errorf("last end time = %v, want 1s", mags[9].EndTime)
	}
	for _, msg := range others {
		if _, ok := msg.(DurationChanged); ok {
			t.Error("segment end must not change the duration")
		}
	}
}

func TestUnknownLengthPostsDurationChanged(t *testing.T) {
	p := New("sine", sineSource(8000, 1, 4000, false))
	defer p.SetState(StateNull)

	prerolled(t, p)
	if _, err := p.QueryDuration(); !errors.Is(err, ErrDurationUnknown) {
		t.Errorf("QueryDuration() = %v, want ErrDurationUnknown", err)
	}

	p.SetState(StatePlaying)
	_, _, others := collect(t, p)

	changed := false
	for _, msg := range others {
		if _, ok := msg.(DurationChanged); ok {
			changed = true
		}
	}
	if !changed {
		t.Error("expected DurationChanged before EOS")
	}

	duration, err := p.QueryDuration()
	if err != nil {
		t.Fatalf("QueryDuration() after EOS returned error: %v", err)
	}
	if duration != 500*time.Millisecond {
		t.Errorf("QueryDuration() = %v, want 500ms", duration)
	}
}

func TestCommandErrors(t *testing.T) {
	p := New("sine", sineSource(8000, 1, 8000, true))
	defer p.SetState(StateNull)

	if err := p.Seek(0, -1); !errors.Is(err, ErrNotPrerolled) {
		t.Errorf("Seek() before preroll = %v, want ErrNotPrerolled", err)
	}
	if err := p.Seek(time.Second, 500*time.Millisecond); err == nil {
		t.Error("Seek() with stop before start should fail")
	}

	prerolled(t, p)

	if err := p.Link(&Pad{Name: "src_0"}, NewFakeSink()); !errors.Is(err, ErrUnknownPad) {
		t.Errorf("Link() with foreign pad = %v, want ErrUnknownPad", err)
	}
	if err := p.Link(nil); err == nil {
		t.Error("Link() without elements should fail")
	}
}

func TestOpenFailurePostsError(t *testing.T) {
	openErr := errors.New("no such stream")
	p := New("broken", func() (audio.Decoder, error) { return nil, openErr })
	defer p.SetState(StateNull)

	if got := p.SetState(StatePaused); got != StateChangeAsync {
		t.Fatalf("SetState(PAUSED) = %v, want async", got)
	}

	msg, ok := nextMessage(t, p).(Error)
	if !ok {
		t.Fatal("expected Error message")
	}
	if !errors.Is(msg, openErr) {
		t.Errorf("error %v does not wrap the open failure", msg)
	}
	if msg.Debug == "" {
		t.Error("expected debug detail on the error")
	}
	t.Logf("error: %v (%s)", msg, msg.Debug)
}

func TestSeekPastEndWarns(t *testing.T) {
	p := New("sine", sineSource(8000, 1, 4000, true))
	defer p.SetState(StateNull)

	prerolled(t, p)
	if err := p.Seek(2*time.Second, -1); err != nil {
		t.Fatalf("Seek() returned error: %v", err)
	}

	warning, ok := nextMessage(t, p).(Warning)
	if !ok {
		t.Fatal("expected Warning for a seek past the end")
	}
	if warning.Source != "sine" || warning.Err == nil {
		t.Errorf("warning = %+v, want source sine with an error", warning)
	}
	if _, ok := nextMessage(t, p).(AsyncDone); !ok {
		t.Fatal("expected AsyncDone after the warning")
	}

	p.SetState(StatePlaying)
	if mags, _, _ := collect(t, p); len(mags) != 0 {
		t.Errorf("got %d magnitude messages past the end, want 0", len(mags))
	}
}

func TestNullClosesBus(t *testing.T) {
	p := New("sine", sineSource(8000, 1, 8000, true))
	prerolled(t, p)

	if got := p.SetState(StateNull); got != StateChangeSuccess {
		t.Fatalf("SetState(NULL) = %v, want success", got)
	}

	select {
	case _, ok := <-p.Bus():
		if ok {
			t.Error("expected closed bus after NULL")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("bus not closed after NULL")
	}

	if got := p.SetState(StatePaused); got != StateChangeFailure {
		t.Errorf("SetState after NULL = %v, want failure", got)
	}
	if got := p.SetState(StateNull); got != StateChangeFailure {
		t.Errorf("second SetState(NULL) = %v, want failure", got)
	}
}
