package audio

import (
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVDecoder implements Decoder for WAV files
type WAVDecoder struct {
	decoder    *wav.Decoder
	file       *os.File
	sampleRate int
	bitDepth   int
	numChans   int
	numFrames  int64
}

// NewWAVDecoder creates a new WAV decoder
func NewWAVDecoder(filename string) (*WAVDecoder, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("invalid WAV file")
	}

	// Get format info without reading all samples
	if err := decoder.FwdToPCM(); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to seek to PCM data: %w", err)
	}

	bitDepth := int(decoder.BitDepth)
	numChans := int(decoder.NumChans)
	if bitDepth == 0 || numChans == 0 {
		f.Close()
		return nil, fmt.Errorf("invalid WAV format: %d channels at %d bits", numChans, bitDepth)
	}

	// PCMLen gives the length of the PCM data chunk in bytes
	frameSize := int64(bitDepth/8) * int64(numChans)

	return &WAVDecoder{
		decoder:    decoder,
		file:       f,
		sampleRate: int(decoder.SampleRate),
		bitDepth:   bitDepth,
		numChans:   numChans,
		numFrames:  decoder.PCMLen() / frameSize,
	}, nil
}

// ReadChunk reads the next chunk of interleaved frames
func (d *WAVDecoder) ReadChunk(numFrames int) (*goaudio.IntBuffer, error) {
	buf := newIntBuffer(numFrames, d.numChans, d.sampleRate, d.bitDepth)

	n, err := d.decoder.PCMBuffer(buf)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read PCM buffer: %w", err)
	}

	// Drop a trailing partial frame
	n -= n % d.numChans
	if n == 0 {
		return nil, io.EOF
	}

	buf.Data = buf.Data[:n]
	return buf, nil
}

// SampleRate returns the sample rate
func (d *WAVDecoder) SampleRate() int {
	return d.sampleRate
}

// NumChannels returns the number of audio channels
func (d *WAVDecoder) NumChannels() int {
	return d.numChans
}

// BitDepth returns the bits per sample
func (d *WAVDecoder) BitDepth() int {
	return d.bitDepth
}

// NumFrames returns the number of frames in the PCM chunk
func (d *WAVDecoder) NumFrames() int64 {
	return d.numFrames
}

// Close closes the decoder and releases resources
func (d *WAVDecoder) Close() error {
	if d.file != nil {
		return d.file.Close()
	}
	return nil
}
