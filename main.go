package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/carlmjohnson/versioninfo"

	"github.com/pdok/tegel/gdal"
	"github.com/pdok/tegel/raster"
	"github.com/pdok/tegel/tms"
	"github.com/pdok/tegel/warp"

	"github.com/iancoleman/strcase"
	"github.com/pdok/tegel/srs"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

const SOURCE string = `source`
const TARGET string = `target`
const PROJECTION string = `projection`
const BAND string = `band`
const RESAMPLING string = `resampling`
const COMPRESS string = `compress`
const MAXRESOLUTION string = `max-resolution`
const WORKINGMEMORY string = `working-memory`
const TEMPDIR string = `tempdir`
const TILEMATRIXSET string = `tilematrixset`
const MAXZOOM string = `max-zoom`
const VERBOSE string = `verbose`

func main() {
	app := cli.NewApp()
	app.Name = "tegel"
	app.Usage = "Aligns rasters to power-of-two tile grids with the GDAL utilities"
	app.Version = versioninfo.Short()

	app.Flags = []cli.Flag{
		&cli.BoolFlag{
			Name:    VERBOSE,
			Usage:   "Also log every utility invocation",
			EnvVars: []string{strcase.ToScreamingSnake(VERBOSE)},
		},
	}
	app.Commands = []*cli.Command{
		warpCommand(),
		formatsCommand(),
		resamplingCommand(),
		tileMatrixSetCommand(),
	}

	err := app.Run(os.Args)
	if err != nil {
		logger := newLogger(false)
		logger.Fatal().Msg(err.Error())
	}
}

//nolint:funlen
func warpCommand() *cli.Command {
	return &cli.Command{
		Name:  "warp",
		Usage: "Reproject a raster onto the tile grid of a target projection",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     SOURCE,
				Aliases:  []string{"s"},
				Usage:    "Source raster, in any format the engine can read",
				Required: true,
				EnvVars:  []string{strcase.ToScreamingSnake(SOURCE)},
			},
			&cli.StringFlag{
				Name:     TARGET,
				Aliases:  []string{"t"},
				Usage:    "Target GeoTIFF. Written atomically: a failed run leaves no partial output",
				Required: true,
				EnvVars:  []string{strcase.ToScreamingSnake(TARGET)},
			},
			&cli.StringFlag{
				Name:    PROJECTION,
				Aliases: []string{"p"},
				Usage:   "Target projection: an EPSG code, OGC CRS URI or URN, proj4 definition or WKT",
				Value:   "EPSG:3857",
				EnvVars: []string{strcase.ToScreamingSnake(PROJECTION)},
			},
			&cli.IntFlag{
				Name:    BAND,
				Aliases: []string{"b"},
				Usage:   "Extract this band (1-based) before warping. 0 keeps all bands",
				EnvVars: []string{strcase.ToScreamingSnake(BAND)},
			},
			&cli.StringFlag{
				Name:    RESAMPLING,
				Aliases: []string{"r"},
				Usage:   "Resampling method, e.g. near, bilinear or cubic. Empty leaves the choice to gdalwarp",
				EnvVars: []string{strcase.ToScreamingSnake(RESAMPLING)},
			},
			&cli.StringFlag{
				Name:    COMPRESS,
				Aliases: []string{"c"},
				Usage:   "GeoTIFF compression. NONE writes uncompressed output",
				Value:   "LZW",
				EnvVars: []string{strcase.ToScreamingSnake(COMPRESS)},
			},
			&cli.IntFlag{
				Name:    MAXRESOLUTION,
				Usage:   "Cap on the zoom level the raster is aligned to. 0 means no cap",
				EnvVars: []string{strcase.ToScreamingSnake(MAXRESOLUTION)},
			},
			&cli.IntFlag{
				Name:    WORKINGMEMORY,
				Aliases: []string{"m"},
				Usage:   "Warp buffer and block cache size in megabytes",
				Value:   512,
				EnvVars: []string{strcase.ToScreamingSnake(WORKINGMEMORY)},
			},
			&cli.StringFlag{
				Name:    TEMPDIR,
				Usage:   "Directory for the intermediate plan files. Empty means the system temp directory",
				EnvVars: []string{strcase.ToScreamingSnake(TEMPDIR)},
			},
			&cli.StringFlag{
				Name:    TILEMATRIXSET,
				Usage:   "Also write the tile grid as an OGC TileMatrixSet (2.0) descriptor to this path",
				EnvVars: []string{strcase.ToScreamingSnake(TILEMATRIXSET)},
			},
		},
		Action: warpAction,
	}
}

func warpAction(c *cli.Context) error {
	engine := newEngine(c)
	logger := newLogger(c.Bool(VERBOSE))

	target, err := srs.FromUserInput(c.String(PROJECTION))
	if err != nil {
		return err
	}

	source := c.String(SOURCE)
	output := c.String(TARGET)
	logger.Info().
		Str("source", source).
		Str("target", output).
		Str("projection", target.Identifier()).
		Msg("aligning to the tile grid")

	err = warp.Preprocess(c.Context, engine, source, output, warp.PreprocessOptions{
		Band: c.Int(BAND),
		Warp: warp.Options{
			TargetSRS:     target,
			Resampling:    warp.Resampling(c.String(RESAMPLING)),
			MaxResolution: c.Int(MAXRESOLUTION),
		},
		Render: warp.RenderOptions{
			WorkingMemory: c.Int(WORKINGMEMORY),
			Compress:      c.String(COMPRESS),
			TempDir:       c.String(TEMPDIR),
		},
	})
	if err != nil {
		return err
	}
	logger.Info().Str("target", output).Msg("rendered")

	if path := c.String(TILEMATRIXSET); path != "" {
		return describeRendered(c.Context, engine, output, target, path)
	}
	return nil
}

func formatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "formats",
		Usage: "List the raster formats the installed engine supports",
		Action: func(c *cli.Context) error {
			formats, err := newEngine(c).Formats(c.Context)
			if err != nil {
				return err
			}
			for _, format := range formats {
				fmt.Printf("%s (%s): %s\n", format.Name, format.Attributes, format.Description)
			}
			return nil
		},
	}
}

func resamplingCommand() *cli.Command {
	return &cli.Command{
		Name:  "resampling",
		Usage: "List the resampling methods the installed engine advertises",
		Action: func(c *cli.Context) error {
			methods, err := newEngine(c).ResamplingMethods(c.Context)
			if err != nil {
				return err
			}
			for _, method := range methods {
				fmt.Println(method)
			}
			return nil
		},
	}
}

func tileMatrixSetCommand() *cli.Command {
	return &cli.Command{
		Name:  "tilematrixset",
		Usage: "Write the OGC TileMatrixSet (2.0) descriptor of a projection's tile grid",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    PROJECTION,
				Aliases: []string{"p"},
				Usage:   "Projection of the grid: an EPSG code, OGC CRS URI or URN",
				Value:   "EPSG:3857",
				EnvVars: []string{strcase.ToScreamingSnake(PROJECTION)},
			},
			&cli.IntFlag{
				Name:     MAXZOOM,
				Aliases:  []string{"z"},
				Usage:    "Deepest zoom level to describe",
				Required: true,
				EnvVars:  []string{strcase.ToScreamingSnake(MAXZOOM)},
			},
			&cli.StringFlag{
				Name:    TARGET,
				Aliases: []string{"t"},
				Usage:   "Descriptor output path. Empty prints to stdout",
				EnvVars: []string{strcase.ToScreamingSnake(TARGET)},
			},
		},
		Action: func(c *cli.Context) error {
			ref, err := srs.FromUserInput(c.String(PROJECTION))
			if err != nil {
				return err
			}
			set, err := tms.FromSpatialReference(ref, gridID(ref), ref.Description(), 0, c.Int(MAXZOOM))
			if err != nil {
				return err
			}
			if path := c.String(TARGET); path != "" {
				return writeDescriptor(set, path)
			}
			doc, err := json.MarshalIndent(set, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(doc))
			return nil
		},
	}
}

// describeRendered derives the deepest zoom level the rendered raster
// resolves and writes the grid descriptor covering zoom 0 up to it.
func describeRendered(ctx context.Context, engine *gdal.Engine, rendered string, target *srs.SpatialReference, path string) error {
	dataset, err := raster.Open(ctx, engine, rendered)
	if err != nil {
		return err
	}
	zoom, err := dataset.NativeResolution(ctx, nil, -1)
	if err != nil {
		return err
	}
	set, err := tms.FromSpatialReference(target, gridID(target), target.Description(), 0, zoom)
	if err != nil {
		return err
	}
	return writeDescriptor(set, path)
}

func writeDescriptor(set *tms.TileMatrixSet, path string) error {
	doc, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(doc, '\n'), 0o644)
}

// gridID turns "EPSG:3857" into the identifier "EPSG3857".
func gridID(ref *srs.SpatialReference) string {
	return strings.ReplaceAll(ref.EPSGString(), ":", "")
}

func newEngine(c *cli.Context) *gdal.Engine {
	return gdal.New(gdal.WithLogger(newLogger(c.Bool(VERBOSE))))
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).With().Timestamp().Logger()
}
