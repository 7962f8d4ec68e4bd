package warp

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/pdok/tegel/gdal"
)

var ErrNoSteps = errors.New("pipeline needs at least one step")

// Step turns a GDAL-readable input into the plan for the next stage.
type Step func(ctx context.Context, engine *gdal.Engine, input string) (*VRT, error)

// BandStep extracts a single band before further processing.
func BandStep(band int) Step {
	return func(ctx context.Context, engine *gdal.Engine, input string) (*VRT, error) {
		return ExtractBand(ctx, engine, input, band)
	}
}

// WarpStep reprojects onto the tile grid.
func WarpStep(opts Options) Step {
	return func(ctx context.Context, engine *gdal.Engine, input string) (*VRT, error) {
		return Warp(ctx, engine, input, opts)
	}
}

// Pipeline feeds input through the steps, materialising every
// intermediate plan to a temp file, and renders the last plan to
// output. The intermediates are removed no matter where the chain
// fails.
func Pipeline(ctx context.Context, engine *gdal.Engine, input, output string, steps []Step, opts RenderOptions) error {
	if len(steps) == 0 {
		return ErrNoSteps
	}

	var tmpfiles []string
	defer func() {
		for _, f := range tmpfiles {
			os.Remove(f)
		}
	}()

	current := input
	var vrt *VRT
	for i, step := range steps {
		var err error
		if vrt, err = step(ctx, engine, current); err != nil {
			return fmt.Errorf("pipeline step %d: %w", i, err)
		}
		name, err := vrt.TempFile(opts.TempDir, fmt.Sprintf("gdal%d", i))
		if err != nil {
			return err
		}
		tmpfiles = append(tmpfiles, name)
		current = name
	}
	return Render(ctx, engine, vrt, output, opts)
}

// PreprocessOptions bundles the standard source-to-tiles preparation.
type PreprocessOptions struct {
	// Band extracts a single 1-based band before warping. Zero keeps
	// all bands.
	Band   int
	Warp   Options
	Render RenderOptions
}

// Preprocess runs the standard chain: optional band extraction, then a
// tile-aligned warp, rendered to output. Compression defaults to LZW.
func Preprocess(ctx context.Context, engine *gdal.Engine, input, output string, opts PreprocessOptions) error {
	var steps []Step
	if opts.Band > 0 {
		steps = append(steps, BandStep(opts.Band))
	}
	steps = append(steps, WarpStep(opts.Warp))

	if opts.Render.Compress == "" {
		opts.Render.Compress = "LZW"
	}
	return Pipeline(ctx, engine, input, output, steps, opts.Render)
}
