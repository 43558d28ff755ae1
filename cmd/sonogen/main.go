package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/linuxmatters/sonogen/internal/audio"
	"github.com/linuxmatters/sonogen/internal/cli"
	"github.com/linuxmatters/sonogen/internal/config"
	"github.com/linuxmatters/sonogen/internal/sonogram"
	"github.com/linuxmatters/sonogen/internal/ui"
)

// version is set via ldflags at build time
// Local dev builds: "dev"
// Release builds: git tag (e.g. "v0.1.0")
var version = "dev"

var CLI struct {
	Input        string   `arg:"" name:"input" help:"Input audio file (WAV, MP3 or FLAC)" optional:""`
	Height       int      `short:"H" help:"Image height in pixels" default:"${height}" env:"SONOGEN_HEIGHT" group:"Image"`
	Width        int      `short:"w" help:"Image width in pixels, 0 derives it from the audio length" default:"0" env:"SONOGEN_WIDTH" group:"Image"`
	Duration     float64  `short:"d" help:"Seconds of audio to draw, 0 for the whole file" default:"0" env:"SONOGEN_DURATION" group:"Analysis"`
	Resolution   *float64 `short:"r" help:"Pixels per second (default ${resolution})" env:"SONOGEN_RESOLUTION" group:"Image"`
	Start        float64  `help:"Start offset in seconds" default:"0" env:"SONOGEN_START" group:"Analysis"`
	NoiseFloor   float64  `short:"n" name:"noise-floor" help:"Magnitudes at or below this dB level are background" default:"${noise_floor}" env:"SONOGEN_NOISE_FLOOR" group:"Analysis"`
	MaxFrequency float64  `short:"f" name:"max-frequency" help:"Top of the frequency axis in Hz" default:"${max_frequency}" env:"SONOGEN_MAX_FREQUENCY" group:"Analysis"`
	Grid         bool     `short:"g" help:"Draw axes, labels and the amplitude graph" env:"SONOGEN_GRID" group:"Image"`
	Output       string   `short:"o" help:"Output PNG file" default:"${output}" env:"SONOGEN_OUTPUT" group:"Output"`
	Mode         string   `help:"Pixel mode: overlay or solid" default:"overlay" enum:"overlay,solid" env:"SONOGEN_MODE" group:"Image"`
	Color        string   `help:"Ink colour for overlay mode (RRGGBB)" default:"${color}" env:"SONOGEN_COLOR" group:"Image"`
	Benchmark    int      `help:"Generate N times and report timings" default:"0" group:"Output"`
	NoProgress   bool     `help:"Disable the progress display"`
	NoPreview    bool     `help:"Disable the image preview on completion"`
	Verbose      bool     `short:"v" help:"Log pipeline diagnostics to stderr"`
	Version      bool     `help:"Show version information"`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("sonogen"),
		kong.Description("Draw a spectrogram of an audio file as a PNG image."),
		kong.Vars{
			"version":       version,
			"height":        strconv.Itoa(config.DefaultHeight),
			"resolution":    strconv.FormatFloat(config.DefaultResolution, 'g', -1, 64),
			"noise_floor":   strconv.FormatFloat(config.DefaultNoiseFloor, 'g', -1, 64),
			"max_frequency": strconv.FormatFloat(config.DefaultMaxFrequency, 'g', -1, 64),
			"output":        config.DefaultOutput,
			"color":         config.DefaultColor,
		},
		kong.UsageOnError(),
		kong.Help(cli.StyledHelpPrinter(kong.HelpOptions{Compact: true})),
	)
	_ = ctx

	if CLI.Version {
		cli.PrintVersion(version)
		os.Exit(0)
	}

	if CLI.Input == "" {
		cli.PrintError("<input> is required")
		os.Exit(1)
	}

	if _, err := os.Stat(CLI.Input); os.IsNotExist(err) {
		cli.PrintError(fmt.Sprintf("input file does not exist: %s", CLI.Input))
		os.Exit(1)
	}

	cfg := buildConfig()
	for _, w := range cfg.Resolve() {
		cli.PrintWarning(w)
	}
	if err := cfg.Validate(); err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}

	// Log lines would tear the progress display, so verbose runs print plainly
	showProgress := !CLI.NoProgress && !CLI.Verbose
	logger := newLogger(CLI.Verbose, showProgress)

	switch {
	case CLI.Benchmark > 0:
		runBenchmark(CLI.Input, cfg, CLI.Benchmark, logger)
	case showProgress:
		runWithProgress(CLI.Input, cfg, logger)
	default:
		runPlain(CLI.Input, cfg, logger)
	}
}

func buildConfig() config.Config {
	cfg := config.Default()
	cfg.Height = CLI.Height
	cfg.Width = CLI.Width
	cfg.Duration = CLI.Duration
	cfg.Start = CLI.Start
	cfg.NoiseFloor = CLI.NoiseFloor
	cfg.MaxFrequency = CLI.MaxFrequency
	cfg.DrawGrid = CLI.Grid
	cfg.Output = CLI.Output
	cfg.Mode = config.Mode(CLI.Mode)
	cfg.Color = CLI.Color
	if CLI.Resolution != nil {
		cfg.Resolution = *CLI.Resolution
		cfg.MarkResolutionSet()
	}
	return cfg
}

func newLogger(verbose, quiet bool) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case verbose:
		level = slog.LevelDebug
	case quiet:
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func fileInfo(input string, logger *slog.Logger) *ui.FileInfo {
	meta, err := audio.GetAudioMetadata(input)
	if err != nil {
		// The pipeline reports unreadable input itself
		logger.Debug("reading metadata", "error", err)
		return nil
	}
	return &ui.FileInfo{
		Input:      input,
		Format:     string(meta.Format),
		SampleRate: meta.SampleRate,
		Channels:   meta.Channels,
		BitDepth:   meta.BitDepth,
		Duration:   meta.Duration,
		Title:      meta.Title,
		Artist:     meta.Artist,
	}
}

func outputSize(path string) int64 {
	if info, err := os.Stat(path); err == nil {
		return info.Size()
	}
	return 0
}

func runWithProgress(input string, cfg config.Config, logger *slog.Logger) {
	model := ui.NewModel(CLI.NoPreview, cfg.NoiseFloor)
	p := tea.NewProgram(model)

	var result *sonogram.Result
	var runErr error

	go func() {
		if info := fileInfo(input, logger); info != nil {
			p.Send(*info)
		}

		start := time.Now()
		result, runErr = sonogram.Run(input, cfg,
			sonogram.WithLogger(logger),
			sonogram.WithProgress(func(pr sonogram.Progress) {
				p.Send(ui.ColumnProgress{
					Column:   pr.Column,
					Width:    pr.Width,
					Position: pr.Position,
					Level:    pr.Level,
				})
			}),
		)
		if runErr != nil {
			p.Send(ui.Failed{Err: runErr})
			return
		}

		p.Send(ui.Complete{
			Output:    cfg.Output,
			Image:     result.Image,
			Columns:   result.Columns,
			Audio:     result.Duration,
			Elapsed:   time.Since(start),
			FileSize:  outputSize(cfg.Output),
			PeakLevel: result.Levels.Peak(),
			MinLevel:  result.Levels.Min(),
		})
	}()

	if _, err := p.Run(); err != nil {
		cli.PrintError(fmt.Sprintf("running UI: %v", err))
		os.Exit(1)
	}

	if runErr != nil {
		cli.PrintError(fmt.Sprintf("generating sonogram: %v", runErr))
		os.Exit(1)
	}
	if result == nil {
		cli.PrintError("interrupted")
		os.Exit(1)
	}
}

func runPlain(input string, cfg config.Config, logger *slog.Logger) {
	start := time.Now()
	result, err := sonogram.Run(input, cfg, sonogram.WithLogger(logger))
	if err != nil {
		cli.PrintError(fmt.Sprintf("generating sonogram: %v", err))
		os.Exit(1)
	}

	bounds := result.Image.Bounds()
	cli.PrintSummary(cli.Summary{
		Output:   cfg.Output,
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		Columns:  result.Columns,
		Audio:    result.Duration,
		Elapsed:  time.Since(start),
		FileSize: outputSize(cfg.Output),
	})
}

func runBenchmark(input string, cfg config.Config, runs int, logger *slog.Logger) {
	cli.PrintSection(fmt.Sprintf("Benchmark: %d runs", runs))

	var total, fastest, slowest time.Duration
	for i := 0; i < runs; i++ {
		start := time.Now()
		if _, err := sonogram.Run(input, cfg, sonogram.WithLogger(logger)); err != nil {
			cli.PrintError(fmt.Sprintf("run %d: %v", i+1, err))
			os.Exit(1)
		}
		elapsed := time.Since(start)

		total += elapsed
		if i == 0 || elapsed < fastest {
			fastest = elapsed
		}
		if elapsed > slowest {
			slowest = elapsed
		}
	}

	cli.PrintInfo("Total", cli.FormatDuration(total))
	cli.PrintInfo("Mean", cli.FormatDuration(total/time.Duration(runs)))
	cli.PrintInfo("Fastest", cli.FormatDuration(fastest))
	cli.PrintInfo("Slowest", cli.FormatDuration(slowest))
}
