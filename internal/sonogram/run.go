package sonogram

import (
	"fmt"

	"github.com/linuxmatters/sonogen/internal/config"
	"github.com/linuxmatters/sonogen/internal/pipeline"
)

// Run generates a spectrogram of the audio file at path and writes it to cfg.Output.
func Run(path string, cfg config.Config, opts ...Option) (*Result, error) {
	warnings := cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	g := NewGenerator(cfg, nil, opts...)
	for _, w := range warnings {
		g.logger.Warn(w)
	}

	g.pipe = pipeline.Open(path, pipeline.WithLogger(g.logger.With("component", "pipeline")))
	return g.Run()
}
