// Package pipeline streams decoded audio through analysis elements and reports
// results as messages on a single ordered bus.
package pipeline

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/linuxmatters/sonogen/internal/audio"
)

// State is the playback state of a pipeline.
type State int

const (
	StateNull State = iota
	StateReady
	StatePaused
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateNull:
		return "NULL"
	case StateReady:
		return "READY"
	case StatePaused:
		return "PAUSED"
	case StatePlaying:
		return "PLAYING"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// StateChange is the immediate result of SetState.
type StateChange int

const (
	StateChangeFailure StateChange = iota
	StateChangeSuccess
	// StateChangeAsync means completion is reported later with AsyncDone.
	StateChangeAsync
)

// MediaTypeRawAudio is the media type of decoded pads.
const MediaTypeRawAudio = "audio/x-raw"

// Caps describes the format of a pad.
type Caps struct {
	MediaType  string
	SampleRate int
	Channels   int
	BitDepth   int
}

// Pad is a decoded stream output that analysis elements can be linked to.
type Pad struct {
	Name string
	Caps Caps
}

const (
	// DefaultChunkFrames is the number of frames pushed through the chain per step.
	DefaultChunkFrames = 1024

	busCapacity = 64
)

var (
	ErrNotPrerolled    = errors.New("pipeline is not prerolled")
	ErrDurationUnknown = errors.New("duration unknown")
	ErrUnknownPad      = errors.New("pad does not belong to this pipeline")
	ErrStopped         = errors.New("pipeline stopped")
)

// DecoderFunc opens a fresh decoder positioned at the start of the stream.
type DecoderFunc func() (audio.Decoder, error)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger used for state and streaming diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithChunkFrames sets how many frames are decoded per streaming step.
func WithChunkFrames(frames int) Option {
	return func(p *Pipeline) {
		if frames > 0 {
			p.chunkFrames = frames
		}
	}
}

// Pipeline decodes a stream and pushes it through linked elements.
// All work happens on one internal goroutine; methods are safe to call from
// the goroutine consuming Bus. Once set to StateNull a pipeline cannot be restarted.
type Pipeline struct {
	name        string
	open        DecoderFunc
	logger      *slog.Logger
	chunkFrames int

	bus  chan Message
	cmds chan command
	done chan struct{}

	mu       sync.Mutex
	state    State
	duration time.Duration

	// Owned by the streaming goroutine
	decoder  audio.Decoder
	pad      *Pad
	chain    []Element
	pending  *goaudio.IntBuffer
	atEnd    bool
	position int64 // frames
	stop     int64 // frames, -1 for none
	eos      bool
	errored  bool
	outbox   []Message
}

type commandKind int

const (
	cmdSetState commandKind = iota
	cmdSeek
	cmdLink
)

type command struct {
	kind     commandKind
	state    State
	start    time.Duration
	stop     time.Duration
	pad      *Pad
	elements []Element
	reply    chan result
}

type result struct {
	change StateChange
	err    error
}

// New creates a pipeline in StateNull around the given decoder factory.
func New(name string, open DecoderFunc, opts ...Option) *Pipeline {
	p := &Pipeline{
		name:        name,
		open:        open,
		logger:      slog.New(slog.DiscardHandler),
		chunkFrames: DefaultChunkFrames,
		bus:         make(chan Message, busCapacity),
		cmds:        make(chan command),
		done:        make(chan struct{}),
		stop:        -1,
		chain:       []Element{NewFakeSink()},
	}
	for _, opt := range opts {
		opt(p)
	}

	go p.run()
	return p
}

// Open creates a pipeline decoding the audio file at path.
func Open(path string, opts ...Option) *Pipeline {
	return New(path, func() (audio.Decoder, error) {
		return audio.Open(path)
	}, opts...)
}

// Bus returns the ordered message stream. It is closed after StateNull.
func (p *Pipeline) Bus() <-chan Message {
	return p.bus
}

// State returns the current state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// SetState requests a state change. Prerolling into StatePaused or
// StatePlaying is asynchronous and completes with AsyncDone.
func (p *Pipeline) SetState(state State) StateChange {
	r := p.do(command{kind: cmdSetState, state: state})
	return r.change
}

// QueryDuration returns the stream duration once prerolled.
func (p *Pipeline) QueryDuration() (time.Duration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state < StatePaused {
		return 0, ErrNotPrerolled
	}
	if p.duration <= 0 {
		return 0, ErrDurationUnknown
	}
	return p.duration, nil
}

// Seek performs a flushing seek to start. A non-negative stop ends the
// segment there with EOS. Completion is reported with AsyncDone.
func (p *Pipeline) Seek(start, stop time.Duration) error {
	if start < 0 {
		return fmt.Errorf("seek start must not be negative, got %v", start)
	}
	if stop >= 0 && stop <= start {
		return fmt.Errorf("seek stop %v must be after start %v", stop, start)
	}
	return p.do(command{kind: cmdSeek, start: start, stop: stop}).err
}

// Link replaces everything downstream of pad with elements, in order.
func (p *Pipeline) Link(pad *Pad, elements ...Element) error {
	if len(elements) == 0 {
		return fmt.Errorf("link needs at least one element")
	}
	return p.do(command{kind: cmdLink, pad: pad, elements: elements}).err
}

func (p *Pipeline) do(c command) result {
	c.reply = make(chan result, 1)
	select {
	case p.cmds <- c:
	case <-p.done:
		return result{change: StateChangeFailure, err: ErrStopped}
	}
	return <-c.reply
}

func (p *Pipeline) run() {
	defer close(p.done)
	defer close(p.bus)

	for {
		if len(p.outbox) == 0 && p.streaming() {
			select {
			case c := <-p.cmds:
				if p.handle(c) {
					return
				}
			default:
				p.step()
			}
			continue
		}

		// Nil channel disables the send case while the outbox is empty
		var out chan<- Message
		var next Message
		if len(p.outbox) > 0 {
			out = p.bus
			next = p.outbox[0]
		}

		select {
		case c := <-p.cmds:
			if p.handle(c) {
				return
			}
		case out <- next:
			p.outbox[0] = nil
			p.outbox = p.outbox[1:]
		}
	}
}

func (p *Pipeline) streaming() bool {
	return p.State() == StatePlaying && !p.eos && !p.errored
}

func (p *Pipeline) post(msg Message) {
	p.outbox = append(p.outbox, msg)
}

func (p *Pipeline) setState(state State) {
	p.mu.Lock()
	prev := p.state
	p.state = state
	p.mu.Unlock()

	if prev != state {
		p.logger.Debug("state changed", "pipeline", p.name, "from", prev, "to", state)
	}
}

func (p *Pipeline) setDuration(d time.Duration) {
	p.mu.Lock()
	p.duration = d
	p.mu.Unlock()
}

// handle executes a command and reports whether the loop must exit.
func (p *Pipeline) handle(c command) bool {
	switch c.kind {
	case cmdSetState:
		return p.handleSetState(c)

	case cmdSeek:
		if p.decoder == nil {
			c.reply <- result{err: ErrNotPrerolled}
			return false
		}
		c.reply <- result{}
		p.seek(c.start, c.stop)

	case cmdLink:
		if c.pad == nil || c.pad != p.pad {
			c.reply <- result{err: ErrUnknownPad}
			return false
		}
		p.chain = c.elements
		names := make([]string, len(c.elements))
		for i, el := range c.elements {
			names[i] = el.Name()
		}
		p.logger.Debug("linked", "pipeline", p.name, "pad", c.pad.Name, "elements", names)
		c.reply <- result{}
	}
	return false
}

func (p *Pipeline) handleSetState(c command) bool {
	switch c.state {
	case StateNull:
		p.teardown()
		p.setState(StateNull)
		c.reply <- result{change: StateChangeSuccess}
		return true

	case StateReady:
		p.teardown()
		p.setState(StateReady)
		c.reply <- result{change: StateChangeSuccess}

	case StatePaused, StatePlaying:
		if p.decoder != nil {
			p.setState(c.state)
			c.reply <- result{change: StateChangeSuccess}
			return false
		}

		c.reply <- result{change: StateChangeAsync}
		if p.preroll() {
			p.setState(c.state)
			p.post(AsyncDone{Position: p.positionTime()})
		}

	default:
		c.reply <- result{change: StateChangeFailure, err: fmt.Errorf("unknown state %v", c.state)}
	}
	return false
}

// preroll opens the decoder, announces its pad and holds the first chunk.
func (p *Pipeline) preroll() bool {
	p.setState(StateReady)

	dec, err := p.open()
	if err != nil {
		p.fail(p.name, fmt.Errorf("opening stream: %w", err))
		return false
	}
	p.decoder = dec
	p.position = 0
	p.stop = -1
	p.eos = false
	p.errored = false
	p.atEnd = false
	p.setDuration(audio.FramesToDuration(dec.NumFrames(), dec.SampleRate()))

	p.pad = &Pad{
		Name: "src_0",
		Caps: Caps{
			MediaType:  MediaTypeRawAudio,
			SampleRate: dec.SampleRate(),
			Channels:   dec.NumChannels(),
			BitDepth:   dec.BitDepth(),
		},
	}
	p.post(PadAdded{Pad: p.pad})

	if err := p.fill(); err != nil {
		p.fail(p.name, err)
		return false
	}
	return true
}

// seek reopens the stream at start, discarding everything before it.
func (p *Pipeline) seek(start, stop time.Duration) {
	for _, el := range p.chain {
		el.Flush()
	}
	if p.decoder != nil {
		p.decoder.Close()
		p.decoder = nil
	}

	dec, err := p.open()
	if err != nil {
		p.fail(p.name, fmt.Errorf("reopening stream for seek: %w", err))
		return
	}
	p.decoder = dec
	p.pending = nil
	p.atEnd = false
	p.eos = false
	p.errored = false

	rate := dec.SampleRate()
	startFrame := int64(start.Seconds() * float64(rate))
	p.stop = -1
	if stop >= 0 {
		p.stop = int64(stop.Seconds() * float64(rate))
	}

	// Skip whole chunks, then trim the head of the chunk holding startFrame
	p.position = 0
	for p.position < startFrame {
		if err := p.fill(); err != nil {
			p.fail(p.name, err)
			return
		}
		if p.pending == nil {
			break
		}

		frames := int64(p.pending.NumFrames())
		if p.position+frames <= startFrame {
			p.position += frames
			p.pending = nil
			continue
		}

		skip := int(startFrame - p.position)
		p.pending.Data = p.pending.Data[skip*dec.NumChannels():]
		p.position = startFrame
	}

	if p.position < startFrame {
		p.post(Warning{
			Source: p.name,
			Err:    fmt.Errorf("seek to %v is past the end of the stream at %v", start, p.positionTime()),
		})
	}

	if p.pending == nil && !p.atEnd {
		if err := p.fill(); err != nil {
			p.fail(p.name, err)
			return
		}
	}

	p.logger.Debug("seek complete", "pipeline", p.name, "start", start, "stop", stop)
	p.post(AsyncDone{Position: p.positionTime()})
}

// fill reads the next chunk into pending unless one is already held.
func (p *Pipeline) fill() error {
	if p.pending != nil || p.atEnd {
		return nil
	}

	buf, err := p.decoder.ReadChunk(p.chunkFrames)
	if err == io.EOF {
		p.atEnd = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("decoding: %w", err)
	}
	p.pending = buf
	return nil
}

// step pushes one chunk through the chain.
func (p *Pipeline) step() {
	if err := p.fill(); err != nil {
		p.fail(p.name, err)
		return
	}
	if p.pending == nil {
		p.finish()
		return
	}

	chunk := p.pending
	p.pending = nil

	channels := chunk.Format.NumChannels
	frames := int64(chunk.NumFrames())
	if p.stop >= 0 && p.position+frames > p.stop {
		frames = p.stop - p.position
		chunk.Data = chunk.Data[:frames*int64(channels)]
	}

	buf := &Buffer{
		PTS: p.positionTime(),
		Int: chunk,
	}
	for _, el := range p.chain {
		if err := el.Process(buf, p.post); err != nil {
			p.fail(el.Name(), err)
			return
		}
	}

	p.position += frames
	if p.stop >= 0 && p.position >= p.stop {
		p.finish()
	}
}

// finish posts EOS, correcting the duration when the stream ran to its end.
func (p *Pipeline) finish() {
	p.eos = true

	if p.stop < 0 {
		measured := audio.FramesToDuration(p.position, p.decoder.SampleRate())
		p.mu.Lock()
		changed := measured != p.duration
		p.mu.Unlock()

		if changed {
			p.setDuration(measured)
			p.post(DurationChanged{})
		}
	}

	p.logger.Debug("end of stream", "pipeline", p.name, "position", p.positionTime())
	p.post(EOS{})
}

func (p *Pipeline) fail(source string, err error) {
	p.errored = true
	p.logger.Debug("streaming error", "pipeline", p.name, "source", source, "error", err)
	p.post(Error{
		Source: source,
		Err:    err,
		Debug:  fmt.Sprintf("%s at %v", p.State(), p.positionTime()),
	})
}

func (p *Pipeline) teardown() {
	for _, el := range p.chain {
		el.Flush()
	}
	if p.decoder != nil {
		p.decoder.Close()
		p.decoder = nil
	}
	p.pending = nil
	p.pad = nil
	p.outbox = nil
}

func (p *Pipeline) positionTime() time.Duration {
	if p.decoder == nil {
		return 0
	}
	return audio.FramesToDuration(p.position, p.decoder.SampleRate())
}
