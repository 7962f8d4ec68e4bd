// Package raster is the metadata view of georeferenced datasets: bands
// and their pixel types, the affine pixel-to-map transform, and the
// tile-grid arithmetic that decides which zoom level and which tiles a
// dataset maps onto. Pixel data never passes through here; everything
// touching pixels is delegated to the GDAL utilities.
package raster

import (
	"context"
	"fmt"
	"iter"
	"math"
	"os"

	"github.com/go-spatial/geom"

	"github.com/pdok/tegel/gdal"
	"github.com/pdok/tegel/geomhelp"
	"github.com/pdok/tegel/mathhelp"
	"github.com/pdok/tegel/srs"
)

const (
	// DefaultResolutionTolerance is the relative error allowed between
	// the source pixel size and a zoom level's pixel size before they
	// count as matching.
	DefaultResolutionTolerance = 1e-6
	// DefaultAlignmentDecimals is how many decimal places tile-snapped
	// extents must share with the raw extents for a dataset to count
	// as grid-aligned.
	DefaultAlignmentDecimals = 2
)

// Dataset describes one georeferenced raster file. Construct it with
// Open or FromMetadata. The tolerance fields start at the defaults
// above and may be adjusted before use; whether they should scale with
// the projection's unit size is an open question, so they are fields
// rather than constants.
type Dataset struct {
	ResolutionTolerance float64
	AlignmentDecimals   int

	path         string
	width        int
	height       int
	geoTransform [6]float64
	ref          *srs.SpatialReference
	bands        []Band
}

// Open stats and inspects a raster file. Failures are *OpenError:
// wrapping the OS error when the file is missing or unreadable, or the
// engine's invocation error when gdalinfo rejects the file.
func Open(ctx context.Context, engine *gdal.Engine, path string) (*Dataset, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}
	metadata, err := engine.Info(ctx, path)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}
	return FromMetadata(metadata, path)
}

// FromMetadata builds a Dataset from metadata already at hand, without
// touching the filesystem.
func FromMetadata(metadata gdal.Metadata, path string) (*Dataset, error) {
	if len(metadata.Size) != 2 {
		return nil, fmt.Errorf("dataset %s: malformed size %v", path, metadata.Size)
	}
	d := &Dataset{
		ResolutionTolerance: DefaultResolutionTolerance,
		AlignmentDecimals:   DefaultAlignmentDecimals,
		path:                path,
		width:               metadata.Size[0],
		height:              metadata.Size[1],
	}
	if len(metadata.GeoTransform) != 6 {
		return nil, fmt.Errorf("dataset %s: malformed geotransform %v", path, metadata.GeoTransform)
	}
	copy(d.geoTransform[:], metadata.GeoTransform)

	if wkt := metadata.CoordinateSystem.WKT; wkt != "" {
		ref, err := srs.FromWKT(wkt)
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", path, err)
		}
		d.ref = ref
	}

	d.bands = make([]Band, 0, len(metadata.Bands))
	for _, info := range metadata.Bands {
		band, err := bandFromInfo(info)
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", path, err)
		}
		d.bands = append(d.bands, band)
	}
	return d, nil
}

func (d *Dataset) Path() string { return d.path }

func (d *Dataset) Size() (width, height int) { return d.width, d.height }

func (d *Dataset) GeoTransform() [6]float64 { return d.geoTransform }

// SpatialReference is the dataset's own reference, nil when the file
// carries no projection. Operations that need one return an error in
// that case rather than assuming a default.
func (d *Dataset) SpatialReference() *srs.SpatialReference { return d.ref }

func (d *Dataset) Bands() []Band { return d.bands }

// PixelDimensions is the absolute width and height of one pixel in map
// units, from the geotransform.
func (d *Dataset) PixelDimensions() geomhelp.XY {
	return geomhelp.XY{
		math.Abs(d.geoTransform[1]),
		math.Abs(d.geoTransform[5]),
	}
}

// PixelSize is the finer of the two pixel dimensions.
func (d *Dataset) PixelSize() float64 {
	p := d.PixelDimensions()
	return min(p.X(), p.Y())
}

// PixelCoordinates maps a pixel position to map coordinates through
// the geotransform, optionally reprojected through t. Positions up to
// and including the raster size are valid, so corners can be mapped.
func (d *Dataset) PixelCoordinates(ctx context.Context, x, y int, t *srs.CoordinateTransformation) (geomhelp.XY, error) {
	if x < 0 || x > d.width {
		return geomhelp.XY{}, fmt.Errorf("x %d is not between 0 and %d", x, d.width)
	}
	if y < 0 || y > d.height {
		return geomhelp.XY{}, fmt.Errorf("y %d is not between 0 and %d", y, d.height)
	}
	coords := d.affinePoint(float64(x), float64(y))
	if t == nil {
		return coords, nil
	}
	return t.TransformPoint(ctx, coords)
}

func (d *Dataset) affinePoint(x, y float64) geomhelp.XY {
	gt := d.geoTransform
	return geomhelp.XY{
		gt[0] + gt[1]*x + gt[2]*y,
		gt[3] + gt[4]*x + gt[5]*y,
	}
}

// referenceFor picks the reference that grid arithmetic runs in: the
// transformation's destination when reprojecting, the dataset's own
// otherwise.
func (d *Dataset) referenceFor(t *srs.CoordinateTransformation) (*srs.SpatialReference, error) {
	if t != nil {
		return t.Destination(), nil
	}
	if d.ref == nil {
		return nil, fmt.Errorf("dataset %s carries no spatial reference", d.path)
	}
	return d.ref, nil
}

// NativeResolution finds the lowest zoom whose pixels are at least as
// fine as the dataset's own, so warping to it never discards
// precision. With a transformation the source pixel size is first
// mapped into the destination system. A non-negative maximum caps the
// scan and is returned when reached; pass a negative maximum for no
// cap.
func (d *Dataset) NativeResolution(ctx context.Context, t *srs.CoordinateTransformation, maximum int) (int, error) {
	ref, err := d.referenceFor(t)
	if err != nil {
		return 0, err
	}

	srcPixelSize := d.PixelSize()
	dstPixelSize := srcPixelSize
	if t != nil {
		mapped, err := t.TransformPoint(ctx, geomhelp.XY{srcPixelSize, 0})
		if err != nil {
			return 0, err
		}
		dstPixelSize = math.Abs(mapped.X())
	}
	if dstPixelSize <= 0 || math.IsNaN(dstPixelSize) {
		return 0, fmt.Errorf("dataset %s: pixel size %v is not positive, cannot match a zoom level", d.path, dstPixelSize)
	}

	allowed := dstPixelSize * d.ResolutionTolerance
	for zoom := 0; ; zoom++ {
		if maximum >= 0 && zoom >= maximum {
			return maximum, nil
		}
		pixel := ref.PixelDimensions(zoom)
		if max(pixel.X(), pixel.Y())-dstPixelSize <= allowed {
			return zoom, nil
		}
	}
}

// Extents is the bounding box of the four affine-mapped raster corners
// in the destination system, reprojected in one batch. Taking the box
// over all corners keeps it correct under rotation and axis flips.
func (d *Dataset) Extents(ctx context.Context, t *srs.CoordinateTransformation) (geom.Extent, error) {
	w, h := float64(d.width), float64(d.height)
	corners := []geomhelp.XY{
		d.affinePoint(0, 0),
		d.affinePoint(w, 0),
		d.affinePoint(0, h),
		d.affinePoint(w, h),
	}
	if t != nil {
		transformed, err := t.TransformPoints(ctx, corners)
		if err != nil {
			return geom.Extent{}, err
		}
		corners = transformed
	}
	return geomhelp.ExtentFromPoints(corners...), nil
}

// TiledExtents grows the extents outward to whole tile boundaries at
// the given zoom (negative zoom means the native resolution), then
// clamps the result to the world. Already-aligned extents come back
// unchanged. The snapping happens in offset coordinates with the
// world corner at zero, where the floor-style modulo is valid for
// both signs.
func (d *Dataset) TiledExtents(ctx context.Context, t *srs.CoordinateTransformation, zoom int) (geom.Extent, error) {
	ref, err := d.referenceFor(t)
	if err != nil {
		return geom.Extent{}, err
	}
	if zoom < 0 {
		if zoom, err = d.NativeResolution(ctx, t, -1); err != nil {
			return geom.Extent{}, err
		}
	}
	extents, err := d.Extents(ctx, t)
	if err != nil {
		return geom.Extent{}, err
	}

	tile := ref.TileDimensions(zoom)
	lower := ref.OffsetPoint(geomhelp.LowerLeft(extents), false)
	upper := ref.OffsetPoint(geomhelp.UpperRight(extents), false)

	lower = geomhelp.XY{
		lower.X() - mathhelp.EuclidianMod(lower.X(), tile.X()),
		lower.Y() - mathhelp.EuclidianMod(lower.Y(), tile.Y()),
	}
	upper = geomhelp.XY{
		upper.X() + mathhelp.EuclidianMod(-upper.X(), tile.X()),
		upper.Y() + mathhelp.EuclidianMod(-upper.Y(), tile.Y()),
	}

	lower = ref.OffsetPoint(lower, true)
	upper = ref.OffsetPoint(upper, true)

	snapped := geom.Extent{lower.X(), lower.Y(), upper.X(), upper.Y()}
	return geomhelp.Clamp(snapped, ref.WorldExtents()), nil
}

// TmsExtents returns the dataset's tile indices at the given zoom
// (negative zoom means the native resolution) as a half-open range:
// the lower-left tile is included, the upper-right excluded. The
// dataset must already sit on the grid at its native resolution;
// otherwise the indices would lie and an *UnalignedError is returned.
func (d *Dataset) TmsExtents(ctx context.Context, t *srs.CoordinateTransformation, zoom int) (TileRange, error) {
	ref, err := d.referenceFor(t)
	if err != nil {
		return TileRange{}, err
	}

	extents, err := d.Extents(ctx, t)
	if err != nil {
		return TileRange{}, err
	}
	tiledNative, err := d.TiledExtents(ctx, t, -1)
	if err != nil {
		return TileRange{}, err
	}
	if !geomhelp.AlmostEqual(tiledNative, extents, d.AlignmentDecimals) {
		return TileRange{}, &UnalignedError{Path: d.path, Extents: extents, Tiled: tiledNative}
	}

	if zoom < 0 {
		if zoom, err = d.NativeResolution(ctx, t, -1); err != nil {
			return TileRange{}, err
		}
	}
	tiled, err := d.TiledExtents(ctx, t, zoom)
	if err != nil {
		return TileRange{}, err
	}

	tile := ref.TileDimensions(zoom)
	lower := ref.OffsetPoint(geomhelp.LowerLeft(tiled), false)
	upper := ref.OffsetPoint(geomhelp.UpperRight(tiled), false)
	return TileRange{
		Min: Tile{X: int(lower.X() / tile.X()), Y: int(lower.Y() / tile.Y())},
		Max: Tile{X: int(upper.X() / tile.X()), Y: int(upper.Y() / tile.Y())},
	}, nil
}

// WorldTmsExtents is the whole world as a tile range at the given zoom
// (negative zoom means the native resolution). The lower-left tile is
// always (0,0).
func (d *Dataset) WorldTmsExtents(ctx context.Context, t *srs.CoordinateTransformation, zoom int) (TileRange, error) {
	ref, err := d.referenceFor(t)
	if err != nil {
		return TileRange{}, err
	}
	if zoom < 0 {
		if zoom, err = d.NativeResolution(ctx, t, -1); err != nil {
			return TileRange{}, err
		}
	}
	nx, ny := ref.TilesCount(ref.WorldExtents(), zoom)
	return TileRange{Max: Tile{X: nx, Y: ny}}, nil
}

// WorldTmsBorders yields the world tiles outside the dataset's own
// range, column by column, for callers that surround a map with blank
// tiles. The sequence is lazy and restartable; a whole world at a deep
// zoom never materialises.
func (d *Dataset) WorldTmsBorders(ctx context.Context, t *srs.CoordinateTransformation, zoom int) (iter.Seq[Tile], error) {
	world, err := d.WorldTmsExtents(ctx, t, zoom)
	if err != nil {
		return nil, err
	}
	data, err := d.TmsExtents(ctx, t, zoom)
	if err != nil {
		return nil, err
	}
	return func(yield func(Tile) bool) {
		for x := world.Min.X; x < world.Max.X; x++ {
			for y := world.Min.Y; y < world.Max.Y; y++ {
				tile := Tile{X: x, Y: y}
				if data.Contains(tile) {
					continue
				}
				if !yield(tile) {
					return
				}
			}
		}
	}, nil
}
