package audio

import (
	"fmt"
	"os"
	"time"

	"github.com/dhowden/tag"
)

// AudioMetadata holds information about an audio file
type AudioMetadata struct {
	Format     Format
	SampleRate int
	Channels   int
	BitDepth   int
	NumFrames  int64
	Duration   time.Duration // 0 when the decoder cannot report a length

	// Tag fields, empty when the file carries no tags
	Title  string
	Artist string
	Album  string
}

// GetAudioMetadata reads stream properties through the matching decoder and any embedded tags
func GetAudioMetadata(filename string) (*AudioMetadata, error) {
	format, err := DetectFormat(filename)
	if err != nil {
		return nil, err
	}

	decoder, err := Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer decoder.Close()

	meta := &AudioMetadata{
		Format:     format,
		SampleRate: decoder.SampleRate(),
		Channels:   decoder.NumChannels(),
		BitDepth:   decoder.BitDepth(),
		NumFrames:  decoder.NumFrames(),
	}
	meta.Duration = FramesToDuration(meta.NumFrames, meta.SampleRate)

	if err := readTags(filename, meta); err != nil {
		return nil, err
	}
	return meta, nil
}

func readTags(filename string, meta *AudioMetadata) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	// Missing or unreadable tags never block decoding
	m, err := tag.ReadFrom(f)
	if err != nil {
		return nil
	}

	meta.Title = m.Title()
	meta.Artist = m.Artist()
	meta.Album = m.Album()
	return nil
}

// FramesToDuration converts a frame count at sampleRate into a duration
func FramesToDuration(frames int64, sampleRate int) time.Duration {
	if sampleRate <= 0 || frames <= 0 {
		return 0
	}
	return time.Duration(frames) * time.Second / time.Duration(sampleRate)
}
