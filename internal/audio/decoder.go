package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	goaudio "github.com/go-audio/audio"
)

// Decoder defines the interface for all audio format decoders
type Decoder interface {
	// ReadChunk reads up to numFrames interleaved frames.
	// Returns io.EOF when no frames remain.
	ReadChunk(numFrames int) (*goaudio.IntBuffer, error)

	// SampleRate returns the audio sample rate in Hz
	SampleRate() int

	// NumChannels returns the number of audio channels (1=mono, 2=stereo)
	NumChannels() int

	// BitDepth returns the bits per sample of the integer PCM data
	BitDepth() int

	// NumFrames returns the total number of frames in the stream
	// Returns 0 if the length is unknown
	NumFrames() int64

	// Close closes the decoder and releases resources
	Close() error
}

// Format identifies a supported container format
type Format string

const (
	FormatWAV  Format = "wav"
	FormatMP3  Format = "mp3"
	FormatFLAC Format = "flac"
)

// ErrUnsupportedFormat is returned when no decoder handles the input
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Open detects the format of filename and returns a decoder for it
func Open(filename string) (Decoder, error) {
	format, err := DetectFormat(filename)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatWAV:
		return NewWAVDecoder(filename)
	case FormatMP3:
		return NewMP3Decoder(filename)
	case FormatFLAC:
		return NewFLACDecoder(filename)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
}

// DetectFormat sniffs the file header, falling back to the file extension
func DetectFormat(filename string) (Format, error) {
	f, err := os.Open(filename)
	if err != nil {
		return "", err
	}
	defer f.Close()

	// RIFF/WAVE carries no tags, check the header directly
	header := make([]byte, 12)
	if n, _ := io.ReadFull(f, header); n == 12 &&
		string(header[0:4]) == "RIFF" && string(header[8:12]) == "WAVE" {
		return FormatWAV, nil
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	if _, fileType, err := tag.Identify(f); err == nil {
		switch fileType {
		case tag.FLAC:
			return FormatFLAC, nil
		case tag.MP3:
			return FormatMP3, nil
		}
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".wav", ".wave":
		return FormatWAV, nil
	case ".mp3":
		return FormatMP3, nil
	case ".flac":
		return FormatFLAC, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(filename))
}

// newIntBuffer allocates an interleaved buffer for numFrames frames
func newIntBuffer(numFrames, numChannels, sampleRate, bitDepth int) *goaudio.IntBuffer {
	return &goaudio.IntBuffer{
		Data: make([]int, numFrames*numChannels),
		Format: &goaudio.Format{
			NumChannels: numChannels,
			SampleRate:  sampleRate,
		},
		SourceBitDepth: bitDepth,
	}
}
