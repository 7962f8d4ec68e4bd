package raster

import (
	"fmt"

	"github.com/go-spatial/geom"

	"github.com/pdok/tegel/geomhelp"
)

// OpenError wraps whatever kept a dataset from being opened: a missing
// or unreadable file, or a gdalinfo rejection.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("opening %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// UnalignedError means a dataset's pixel grid does not line up with
// the tile grid at its native resolution, so tile indices for it would
// be meaningless. Warp the dataset onto the grid first.
type UnalignedError struct {
	Path    string
	Extents geom.Extent
	Tiled   geom.Extent
}

func (e *UnalignedError) Error() string {
	return fmt.Sprintf("dataset %s is not aligned to the tile grid: data covers %s, nearest tile-aligned box is %s",
		e.Path,
		geomhelp.WktMustEncode(geomhelp.ExtentPolygon(e.Extents), 120),
		geomhelp.WktMustEncode(geomhelp.ExtentPolygon(e.Tiled), 120))
}
