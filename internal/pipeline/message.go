package pipeline

import (
	"fmt"
	"time"
)

// Message is a notification delivered on the pipeline bus.
// The set of messages is closed; consumers switch on the concrete type.
type Message interface {
	isMessage()
}

// PadAdded reports a decoded stream becoming available for linking.
type PadAdded struct {
	Pad *Pad
}

// AsyncDone reports completion of an asynchronous state change or seek.
type AsyncDone struct {
	Position time.Duration
}

// DurationChanged reports that the stream duration should be queried again.
type DurationChanged struct{}

// Magnitude is posted by the spectrum element once per interval.
type Magnitude struct {
	Timestamp  time.Duration // start of the analysed interval
	EndTime    time.Duration // end of the analysed interval
	Duration   time.Duration
	Magnitudes []float32 // dB per band, lowest frequency first
}

// Level is posted by the level element once per interval.
type Level struct {
	Timestamp time.Duration
	EndTime   time.Duration
	RMS       []float64 // dB per channel
	Peak      []float64 // dB per channel
}

// EOS reports the end of the stream or of the seek segment.
type EOS struct{}

// Error reports a fatal streaming failure.
type Error struct {
	Source string
	Err    error
	Debug  string
}

// Warning reports a recoverable streaming problem.
type Warning struct {
	Source string
	Err    error
}

func (PadAdded) isMessage()        {}
func (AsyncDone) isMessage()       {}
func (DurationChanged) isMessage() {}
func (Magnitude) isMessage()       {}
func (Level) isMessage()           {}
func (EOS) isMessage()             {}
func (Error) isMessage()           {}
func (Warning) isMessage()         {}

func (e Error) Error() string {
	if e.Source == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e Error) Unwrap() error {
	return e.Err
}
