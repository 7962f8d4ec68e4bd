// Package gdal locates and drives the GDAL command-line utilities
// (gdalinfo, gdaltransform, gdal_translate, gdalwarp). Nothing in here
// reads rasters itself: it spawns the external binaries, captures their
// streams and classifies failures, so the rest of the module can plan
// invocations without linking GDAL.
package gdal

import (
	"context"
	"io"
	"sync"

	"github.com/rs/zerolog"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const (
	DefaultWarpCommand      = "gdalwarp"
	DefaultTranslateCommand = "gdal_translate"
	DefaultInfoCommand      = "gdalinfo"
	DefaultTransformCommand = "gdaltransform"
)

// Runner spawns a command and reports how it ran. The error return is
// reserved for not running at all (missing binary, cancelled context);
// a non-zero exit is a Result, not an error.
type Runner func(ctx context.Context, stdin io.Reader, env []string, name string, args ...string) (Result, error)

// Engine holds the paths of the GDAL utilities and caches what the
// installed build advertises (raster formats, resampling methods).
// Safe for concurrent use. The zero value is not usable; use New.
type Engine struct {
	warpCmd      string
	translateCmd string
	infoCmd      string
	transformCmd string
	env          []string
	log          zerolog.Logger
	run          Runner

	formatsOnce sync.Once
	formats     *orderedmap.OrderedMap[string, Format]
	formatsErr  error

	resamplingOnce sync.Once
	resampling     []string
	resamplingErr  error
}

type Option func(*Engine)

// WithWarpCommand overrides the gdalwarp binary path.
func WithWarpCommand(cmd string) Option {
	return func(e *Engine) { e.warpCmd = cmd }
}

// WithTranslateCommand overrides the gdal_translate binary path.
func WithTranslateCommand(cmd string) Option {
	return func(e *Engine) { e.translateCmd = cmd }
}

// WithInfoCommand overrides the gdalinfo binary path.
func WithInfoCommand(cmd string) Option {
	return func(e *Engine) { e.infoCmd = cmd }
}

// WithTransformCommand overrides the gdaltransform binary path.
func WithTransformCommand(cmd string) Option {
	return func(e *Engine) { e.transformCmd = cmd }
}

// WithEnv appends environment variables (KEY=value) to every
// invocation, on top of the current process environment.
func WithEnv(env ...string) Option {
	return func(e *Engine) { e.env = append(e.env, env...) }
}

func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithRunner replaces how commands are spawned. Tests use this to feed
// canned output without a GDAL installation.
func WithRunner(run Runner) Option {
	return func(e *Engine) { e.run = run }
}

func New(opts ...Option) *Engine {
	e := &Engine{
		warpCmd:      DefaultWarpCommand,
		translateCmd: DefaultTranslateCommand,
		infoCmd:      DefaultInfoCommand,
		transformCmd: DefaultTransformCommand,
		log:          zerolog.Nop(),
		run:          execRunner,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) WarpCommand() string      { return e.warpCmd }
func (e *Engine) TranslateCommand() string { return e.translateCmd }
func (e *Engine) InfoCommand() string      { return e.infoCmd }
func (e *Engine) TransformCommand() string { return e.transformCmd }
