// Package warp plans and runs the GDAL invocations that reproject a
// raster onto a power-of-two tile grid. Each planning step produces a
// VRT document; the pixel work happens inside the engine's own
// processes when the final plan is rendered.
package warp

import (
	"context"
	"strconv"
	"strings"

	"github.com/pdok/tegel/gdal"
	"github.com/pdok/tegel/raster"
	"github.com/pdok/tegel/srs"
)

// Options controls how a warp plan is built. The zero value warps to
// web mercator at native resolution with the engine's default
// resampling.
type Options struct {
	// TargetSRS is the reference the raster is warped into. Nil means
	// EPSG:3857.
	TargetSRS *srs.SpatialReference
	// Resampling names the gdalwarp method. Empty leaves the choice to
	// the engine.
	Resampling Resampling
	// MaxResolution caps the zoom scan when positive, so an image of
	// tiny pixels is not upsampled beyond it.
	MaxResolution int
}

// Warp plans the reprojection of path onto the target's tile grid: the
// output is aligned to tile boundaries at the raster's native zoom
// level and sized a whole number of tiles. The returned VRT still has
// to be rendered.
func Warp(ctx context.Context, engine *gdal.Engine, path string, opts Options) (*VRT, error) {
	dataset, err := raster.Open(ctx, engine, path)
	if err != nil {
		return nil, err
	}
	target := opts.TargetSRS
	if target == nil {
		if target, err = srs.FromEPSG(srs.EPSGWebMercator); err != nil {
			return nil, err
		}
	}
	resampling, err := ResolveResampling(ctx, engine, opts.Resampling)
	if err != nil {
		return nil, err
	}

	args := []string{
		"-q",
		"-of", "VRT",
		"-t_srs", target.Identifier(),
	}
	if resampling != "" {
		args = append(args, "-r", string(resampling))
	}

	transform, err := srs.NewCoordinateTransformation(engine, dataset.SpatialReference(), target)
	if err != nil {
		return nil, err
	}
	maximum := opts.MaxResolution
	if maximum <= 0 {
		maximum = -1
	}
	zoom, err := dataset.NativeResolution(ctx, transform, maximum)
	if err != nil {
		return nil, err
	}
	extents, err := dataset.TiledExtents(ctx, transform, zoom)
	if err != nil {
		return nil, err
	}
	args = append(args, "-te")
	for _, coord := range extents {
		args = append(args, strconv.FormatFloat(coord, 'f', -1, 64))
	}

	nx, ny := target.TilesCount(extents, zoom)
	args = append(args, "-ts",
		strconv.Itoa(nx*srs.TileSide),
		strconv.Itoa(ny*srs.TileSide),
	)

	if nodata, declared := noDataArgument(dataset.Bands()); declared {
		args = append(args, "-dstnodata", nodata)
	}

	args = append(args, path, "/dev/stdout")
	out, err := engine.Output(ctx, nil, engine.WarpCommand(), args...)
	if err != nil {
		return nil, err
	}
	return NewVRT(out), nil
}

// noDataArgument renders the per-band no-data values for -dstnodata.
// The flag only appears when at least one band declares a value; bands
// without one get a "none" placeholder so positions line up.
func noDataArgument(bands []raster.Band) (string, bool) {
	values := make([]string, len(bands))
	declared := false
	for i, band := range bands {
		if v, ok := band.NoData(); ok {
			values[i] = band.Type.FormatValue(v)
			declared = true
		} else {
			values[i] = "none"
		}
	}
	return strings.Join(values, " "), declared
}
