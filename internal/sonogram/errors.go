package sonogram

import "errors"

var (
	// ErrConfiguration is returned for options that cannot produce an image.
	ErrConfiguration = errors.New("configuration error")
	// ErrPipelineSetup is returned when elements cannot be created or linked.
	ErrPipelineSetup = errors.New("pipeline setup failed")
	ErrDurationQuery = errors.New("duration query failed")
	ErrSeek          = errors.New("seek failed")
	// ErrAnalysis marks malformed analysis messages. They are logged and skipped.
	ErrAnalysis = errors.New("malformed analysis message")
	ErrEncoding = errors.New("writing image failed")
	// ErrPipeline wraps errors reported by the pipeline while streaming.
	ErrPipeline = errors.New("pipeline error")
)
