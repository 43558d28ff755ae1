package pipeline

import (
	"fmt"
	"time"

	goaudio "github.com/go-audio/audio"
)

// Buffer carries one chunk of audio through the linked elements.
type Buffer struct {
	PTS   time.Duration // stream position of the first frame
	Int   *goaudio.IntBuffer
	Float *goaudio.FloatBuffer // set by Convert
}

// NumFrames returns the frame count of the chunk.
func (b *Buffer) NumFrames() int {
	if b.Float != nil {
		return b.Float.NumFrames()
	}
	if b.Int != nil {
		return b.Int.NumFrames()
	}
	return 0
}

// SampleRate returns the sample rate of the chunk.
func (b *Buffer) SampleRate() int {
	switch {
	case b.Float != nil && b.Float.Format != nil:
		return b.Float.Format.SampleRate
	case b.Int != nil && b.Int.Format != nil:
		return b.Int.Format.SampleRate
	}
	return 0
}

// Element processes buffers in stream order.
// post delivers bus messages; it must not be retained after Process returns.
type Element interface {
	Name() string
	Process(buf *Buffer, post func(Message)) error
	// Flush drops any partially accumulated state, e.g. after a seek.
	Flush()
}

// Convert turns integer PCM into float samples normalised to [-1, 1].
type Convert struct{}

// NewConvert creates a format conversion element.
func NewConvert() *Convert {
	return &Convert{}
}

func (c *Convert) Name() string { return "audioconvert" }

func (c *Convert) Process(buf *Buffer, _ func(Message)) error {
	if buf.Int == nil {
		return fmt.Errorf("no integer PCM to convert")
	}

	bitDepth := buf.Int.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = 16
	}
	maxVal := float64(goaudio.IntMaxSignedValue(bitDepth))

	fb := buf.Int.AsFloatBuffer()
	for i := range fb.Data {
		fb.Data[i] /= maxVal
	}
	buf.Float = fb
	return nil
}

func (c *Convert) Flush() {}

// FakeSink discards everything. It terminates the chain before analysis is linked.
type FakeSink struct {
	frames int64
}

// NewFakeSink creates a discarding sink.
func NewFakeSink() *FakeSink {
	return &FakeSink{}
}

func (s *FakeSink) Name() string { return "fakesink" }

func (s *FakeSink) Process(buf *Buffer, _ func(Message)) error {
	s.frames += int64(buf.NumFrames())
	return nil
}

func (s *FakeSink) Flush() {}

// Frames returns the number of frames consumed since creation.
func (s *FakeSink) Frames() int64 {
	return s.frames
}
