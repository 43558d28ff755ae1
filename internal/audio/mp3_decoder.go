package audio

import (
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/hajimehoshi/go-mp3"
)

// go-mp3 always outputs interleaved 16-bit stereo: L0 R0 L1 R1 ...
const (
	mp3Channels  = 2
	mp3BitDepth  = 16
	mp3FrameSize = 4 // bytes per stereo frame
)

// MP3Decoder implements Decoder for MP3 files
type MP3Decoder struct {
	decoder    *mp3.Decoder
	file       *os.File
	sampleRate int
	numFrames  int64
	raw        []byte
}

// NewMP3Decoder creates a new MP3 decoder
func NewMP3Decoder(filename string) (*MP3Decoder, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create MP3 decoder: %w", err)
	}

	// Length is in bytes of decoded PCM, or negative when unknown
	var numFrames int64
	if length := decoder.Length(); length > 0 {
		numFrames = length / mp3FrameSize
	}

	return &MP3Decoder{
		decoder:    decoder,
		file:       f,
		sampleRate: decoder.SampleRate(),
		numFrames:  numFrames,
	}, nil
}

// ReadChunk reads the next chunk of interleaved frames
func (d *MP3Decoder) ReadChunk(numFrames int) (*goaudio.IntBuffer, error) {
	if cap(d.raw) < numFrames*mp3FrameSize {
		d.raw = make([]byte, numFrames*mp3FrameSize)
	}
	raw := d.raw[:numFrames*mp3FrameSize]

	// go-mp3 may return short reads, fill as much as the stream allows
	n, err := io.ReadFull(d.decoder, raw)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("failed to read MP3 data: %w", err)
	}

	framesRead := n / mp3FrameSize
	if framesRead == 0 {
		return nil, io.EOF
	}

	buf := newIntBuffer(framesRead, mp3Channels, d.sampleRate, mp3BitDepth)
	for i := 0; i < framesRead*mp3Channels; i++ {
		// 16-bit signed little-endian
		buf.Data[i] = int(int16(uint16(raw[i*2]) | uint16(raw[i*2+1])<<8))
	}

	return buf, nil
}

// SampleRate returns the sample rate
func (d *MP3Decoder) SampleRate() int {
	return d.sampleRate
}

// NumChannels returns the number of audio channels
func (d *MP3Decoder) NumChannels() int {
	return mp3Channels
}

// BitDepth returns the bits per sample
func (d *MP3Decoder) BitDepth() int {
	return mp3BitDepth
}

// NumFrames returns the decoded length in frames, 0 if unknown
func (d *MP3Decoder) NumFrames() int64 {
	return d.numFrames
}

// Close closes the decoder and releases resources
func (d *MP3Decoder) Close() error {
	if d.file != nil {
		return d.file.Close()
	}
	return nil
}
