package warp

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pdok/tegel/gdal"
	"github.com/pdok/tegel/mathhelp"
	"github.com/pdok/tegel/raster"
)

// stdoutQuirk is the exact complaint some gdal_translate builds print
// after having already written a complete VRT to /dev/stdout. The exit
// code is non-zero but the output is usable.
const stdoutQuirk = "ERROR 4: `/dev/stdout' not recognised as a supported file format."

// ExtractBand plans a single-band VRT of path, so a later warp moves
// one band instead of all of them. Bands are numbered from 1.
func ExtractBand(ctx context.Context, engine *gdal.Engine, path string, band int) (*VRT, error) {
	dataset, err := raster.Open(ctx, engine, path)
	if err != nil {
		return nil, err
	}
	if !mathhelp.BetweenInc(band, 1, len(dataset.Bands())) {
		return nil, fmt.Errorf("band must be between 1 and %d, got %d for %s",
			len(dataset.Bands()), band, path)
	}

	res, err := engine.Run(ctx, nil, engine.TranslateCommand(),
		"-q",
		"-of", "VRT",
		"-b", strconv.Itoa(band),
		path,
		"/dev/stdout",
	)
	if err != nil {
		return nil, err
	}
	if err := res.Err(); err != nil {
		if res.TrimmedStderr() == stdoutQuirk && len(res.Stdout) > 0 {
			return NewVRT(res.Stdout), nil
		}
		return nil, err
	}
	return NewVRT(res.Stdout), nil
}
