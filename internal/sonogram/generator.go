// Package sonogram drives an analysis pipeline from preroll to a finished
// spectrogram image.
package sonogram

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"time"

	"github.com/linuxmatters/sonogen/internal/config"
	"github.com/linuxmatters/sonogen/internal/pipeline"
	"github.com/linuxmatters/sonogen/internal/renderer"
)

// HighPassCutoff is the cutoff in Hz of the filter in front of the level meter.
const HighPassCutoff = 440.0

// State is the phase of a generation run.
type State int

const (
	StateStart State = iota
	StateDuration
	StateSeek
	StateGenerate
	StateDone
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "START"
	case StateDuration:
		return "DURATION"
	case StateSeek:
		return "SEEK"
	case StateGenerate:
		return "GENERATE"
	case StateDone:
		return "DONE"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Pipeline is the streaming pipeline a Generator drives.
type Pipeline interface {
	Bus() <-chan pipeline.Message
	SetState(state pipeline.State) pipeline.StateChange
	QueryDuration() (time.Duration, error)
	Seek(start, stop time.Duration) error
	Link(pad *pipeline.Pad, elements ...pipeline.Element) error
}

// Progress reports generation progress after each painted column.
type Progress struct {
	Column   int // columns up to and including the last painted one
	Width    int
	Position time.Duration // stream time relative to the start offset
	Level    float64       // latest loudest-channel RMS in dB
}

// ProgressFunc receives progress updates on the generator's goroutine.
type ProgressFunc func(Progress)

// Result describes a finished run.
type Result struct {
	Image    *image.RGBA
	Canvas   *renderer.Canvas
	Levels   *renderer.LevelTrack
	Duration time.Duration // stream duration as last reported
	Columns  int           // columns painted, backfill included
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the logger for state transitions and skipped messages.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = logger
	}
}

// WithProgress sets a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(g *Generator) {
		g.progress = fn
	}
}

// Generator is the run state machine. It handles one bus message at a time
// and owns the canvas and level track exclusively.
type Generator struct {
	cfg      config.Config
	pipe     Pipeline
	logger   *slog.Logger
	progress ProgressFunc

	state     State
	prerolled bool
	pad       *pipeline.Pad
	sink      *pipeline.FakeSink
	duration  time.Duration
	start     time.Duration

	canvas  *renderer.Canvas
	painter *renderer.Painter
	levels  *renderer.LevelTrack
	lastPx  int
	level   float64
}

// NewGenerator creates a generator for one run over pipe. cfg must be valid.
func NewGenerator(cfg config.Config, pipe Pipeline, opts ...Option) *Generator {
	g := &Generator{
		cfg:    cfg,
		pipe:   pipe,
		logger: slog.New(slog.DiscardHandler),
		sink:   pipeline.NewFakeSink(),
		start:  seconds(cfg.Start),
		lastPx: -1,
		level:  cfg.NoiseFloor,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// State returns the current phase.
func (g *Generator) State() State {
	return g.state
}

// Run drives the pipeline to completion, then composes the image and writes
// it to the configured output. The pipeline is always set to StateNull before
// Run returns.
func (g *Generator) Run() (*Result, error) {
	if err := g.generate(); err != nil {
		g.pipe.SetState(pipeline.StateNull)
		return nil, err
	}

	// Stop streaming before composing
	g.pipe.SetState(pipeline.StateNull)

	composer, err := renderer.NewComposer(&g.cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncoding, err)
	}
	img := composer.Compose(g.canvas, g.levels)

	if err := renderer.WritePNG(g.cfg.Output, img); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncoding, err)
	}
	g.logger.Debug("image written", "path", g.cfg.Output,
		"width", img.Bounds().Dx(), "height", img.Bounds().Dy())

	return &Result{
		Image:    img,
		Canvas:   g.canvas,
		Levels:   g.levels,
		Duration: g.duration,
		Columns:  g.painter.Columns(),
	}, nil
}

func (g *Generator) generate() error {
	switch g.pipe.SetState(pipeline.StatePaused) {
	case pipeline.StateChangeFailure:
		return fmt.Errorf("%w: unable to preroll", ErrPipelineSetup)
	case pipeline.StateChangeSuccess:
		g.prerolled = true
		g.logger.Debug("prerolled synchronously")
	default:
		g.logger.Debug("not prerolled, waiting for async-done")
	}

	bus := g.pipe.Bus()
	for g.state != StateDone {
		msg, ok := <-bus
		if !ok {
			return fmt.Errorf("%w: bus closed in state %v", ErrPipeline, g.state)
		}
		if err := g.handle(msg); err != nil {
			return err
		}
	}
	return nil
}

// handle dispatches one bus message.
func (g *Generator) handle(msg pipeline.Message) error {
	switch m := msg.(type) {
	case pipeline.PadAdded:
		return g.onPadAdded(m.Pad)

	case pipeline.AsyncDone:
		return g.onAsyncDone()

	case pipeline.DurationChanged:
		duration, err := g.pipe.QueryDuration()
		if err != nil {
			g.logger.Warn("unable to query duration", "error", err)
			return nil
		}
		g.duration = duration
		g.logger.Debug("duration changed", "duration", duration)

	case pipeline.Magnitude:
		return g.onMagnitude(m)

	case pipeline.Level:
		g.onLevel(m)

	case pipeline.EOS:
		if g.state != StateGenerate {
			return fmt.Errorf("%w: end of stream in state %v", ErrPipeline, g.state)
		}
		g.logger.Debug("end of stream", "last_column", g.lastPx, "frames", g.sink.Frames())
		g.changeState(StateDone)

	case pipeline.Error:
		g.logger.Debug("pipeline error", "source", m.Source, "error", m.Err, "debug", m.Debug)
		return fmt.Errorf("%w: %w", ErrPipeline, m)

	case pipeline.Warning:
		g.logger.Warn("pipeline warning", "source", m.Source, "error", m.Err)

	default:
		g.logger.Debug("ignoring message", "type", fmt.Sprintf("%T", msg), "state", g.state)
	}
	return nil
}

// onPadAdded links the first raw audio pad to a placeholder sink.
func (g *Generator) onPadAdded(pad *pipeline.Pad) error {
	if pad == nil || pad.Caps.MediaType != pipeline.MediaTypeRawAudio {
		g.logger.Debug("ignoring non-audio pad", "pad", pad)
		return nil
	}
	if g.pad != nil {
		g.logger.Debug("ignoring additional pad", "pad", pad.Name)
		return nil
	}

	if err := g.pipe.Link(pad, pipeline.NewConvert(), g.sink); err != nil {
		return fmt.Errorf("%w: linking pad %s: %w", ErrPipelineSetup, pad.Name, err)
	}
	g.pad = pad
	g.logger.Debug("pad linked", "pad", pad.Name, "rate", pad.Caps.SampleRate, "channels", pad.Caps.Channels)

	return g.advance()
}

func (g *Generator) onAsyncDone() error {
	switch g.state {
	case StateStart:
		g.prerolled = true
		return g.advance()
	case StateSeek:
		return g.changeState(StateGenerate)
	}
	g.logger.Debug("ignoring async-done", "state", g.state)
	return nil
}

// advance leaves StateStart once the pipeline is prerolled and a pad is linked.
func (g *Generator) advance() error {
	if g.state != StateStart || !g.prerolled || g.pad == nil {
		return nil
	}
	return g.changeState(StateDuration)
}

// changeState enters state and performs its entry action. Duration moves
// straight on to Seek; Seek and Generate wait for the pipeline.
func (g *Generator) changeState(state State) error {
	g.logger.Debug("state change", "from", g.state, "to", state)
	g.state = state

	switch state {
	case StateDuration:
		duration, err := g.pipe.QueryDuration()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrDurationQuery, err)
		}
		g.duration = duration
		g.logger.Debug("stream duration", "duration", duration)
		return g.changeState(StateSeek)

	case StateSeek:
		if g.pipe.SetState(pipeline.StatePaused) == pipeline.StateChangeFailure {
			return fmt.Errorf("%w: unable to pause pipeline", ErrSeek)
		}
		stop := time.Duration(-1)
		if g.cfg.Duration > 0 {
			stop = g.start + seconds(g.cfg.Duration)
		}
		if err := g.pipe.Seek(g.start, stop); err != nil {
			return fmt.Errorf("%w: %w", ErrSeek, err)
		}

	case StateGenerate:
		return g.startGenerate()
	}
	return nil
}

// startGenerate allocates the canvas, links the analysis chain and starts playback.
func (g *Generator) startGenerate() error {
	width := g.cfg.Width
	if width <= 0 {
		width = int(g.cfg.Resolution * (g.duration - g.start).Seconds())
	}
	if width <= 0 {
		return fmt.Errorf("%w: nothing to draw from %v in a stream of %v", ErrConfiguration, g.start, g.duration)
	}

	canvas, err := renderer.NewCanvas(width, g.cfg.Height, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	r, gr, b := g.cfg.Ink()
	g.canvas = canvas
	g.painter = renderer.NewPainter(canvas, g.cfg.NoiseFloor, g.cfg.Mode, color.NRGBA{R: r, G: gr, B: b, A: 0xFF})
	g.levels = renderer.NewLevelTrack(g.cfg.NoiseFloor)

	bands := g.cfg.Bands(g.pad.Caps.SampleRate)
	interval := seconds(g.cfg.Interval())

	spectrum, err := pipeline.NewSpectrum(bands, interval, g.cfg.NoiseFloor)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPipelineSetup, err)
	}
	filter, err := pipeline.NewHighPass(HighPassCutoff)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPipelineSetup, err)
	}
	level, err := pipeline.NewLevelMeter(interval / 2)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPipelineSetup, err)
	}

	if err := g.pipe.Link(g.pad, pipeline.NewConvert(), spectrum, filter, level, g.sink); err != nil {
		return fmt.Errorf("%w: %w", ErrPipelineSetup, err)
	}
	g.logger.Debug("generating", "width", width, "height", g.cfg.Height,
		"bands", bands, "interval", interval)

	if g.pipe.SetState(pipeline.StatePlaying) == pipeline.StateChangeFailure {
		return fmt.Errorf("%w: unable to start playback", ErrPipelineSetup)
	}
	return nil
}

// onMagnitude paints the column for the end of the analysed interval.
// A column already painted moves on by one; skipped columns are backfilled
// with the current magnitudes.
func (g *Generator) onMagnitude(m pipeline.Magnitude) error {
	if g.painter == nil {
		return nil
	}
	if len(m.Magnitudes) == 0 {
		g.logger.Debug("skipping magnitude message", "error", ErrAnalysis, "endtime", m.EndTime)
		return nil
	}

	px := int((m.EndTime - g.start).Seconds() * g.cfg.Resolution)
	if px >= g.canvas.Width() {
		return g.changeState(StateDone)
	}
	if px <= g.lastPx {
		px = g.lastPx + 1
		if px >= g.canvas.Width() {
			return g.changeState(StateDone)
		}
	}

	if g.lastPx != -1 {
		if px-g.lastPx > 1 {
			g.logger.Debug("skipped columns", "from", g.lastPx, "to", px)
		}
		for col := g.lastPx + 1; col < px; col++ {
			if err := g.paint(m.Magnitudes, col); err != nil {
				return err
			}
		}
	}
	if err := g.paint(m.Magnitudes, px); err != nil {
		return err
	}
	g.lastPx = px

	if g.progress != nil {
		g.progress(Progress{
			Column:   px + 1,
			Width:    g.canvas.Width(),
			Position: m.EndTime - g.start,
			Level:    g.level,
		})
	}
	return nil
}

func (g *Generator) paint(magnitudes []float32, col int) error {
	if err := g.painter.PaintColumn(magnitudes, col); err != nil {
		return fmt.Errorf("painting column %d: %w", col, err)
	}
	return nil
}

func (g *Generator) onLevel(m pipeline.Level) {
	if g.levels == nil {
		return
	}
	if len(m.RMS) == 0 {
		g.logger.Debug("skipping level message", "error", ErrAnalysis, "timestamp", m.Timestamp)
		return
	}

	g.levels.Record((m.Timestamp - g.start).Seconds(), m.RMS)
	g.level = g.cfg.NoiseFloor
	for _, db := range m.RMS {
		g.level = max(g.level, db)
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
