package geomhelp

import (
	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/wkt"
	"github.com/muesli/reflow/truncate"

	"github.com/pdok/tegel/mathhelp"
)

// XY is a point in map coordinates. It shares geom.Point's layout so
// converting between the two is free.
type XY [2]float64

func (p XY) X() float64 { return p[0] }
func (p XY) Y() float64 { return p[1] }

func (p XY) Add(q XY) XY {
	return XY{p[0] + q[0], p[1] + q[1]}
}

func (p XY) Mul(f float64) XY {
	return XY{p[0] * f, p[1] * f}
}

// ExtentFromPoints returns the bounding extent of the given points, so
// min <= max holds per axis regardless of input order. Panics when
// called without points.
func ExtentFromPoints(pts ...XY) geom.Extent {
	e := geom.Extent{pts[0][0], pts[0][1], pts[0][0], pts[0][1]}
	for _, p := range pts[1:] {
		e[0] = min(e[0], p[0])
		e[1] = min(e[1], p[1])
		e[2] = max(e[2], p[0])
		e[3] = max(e[3], p[1])
	}
	return e
}

func LowerLeft(e geom.Extent) XY {
	return XY{e[0], e[1]}
}

func UpperRight(e geom.Extent) XY {
	return XY{e[2], e[3]}
}

// Clamp shrinks e so it fits within bounds.
func Clamp(e, bounds geom.Extent) geom.Extent {
	return geom.Extent{
		max(e[0], bounds[0]),
		max(e[1], bounds[1]),
		min(e[2], bounds[2]),
		min(e[3], bounds[3]),
	}
}

// AlmostEqual compares two extents coordinate-wise, with differences
// rounded to the given number of decimals.
func AlmostEqual(a, b geom.Extent, decimals int) bool {
	for i := range a {
		if !mathhelp.AlmostEqual(a[i], b[i], decimals) {
			return false
		}
	}
	return true
}

func ExtentPolygon(e geom.Extent) geom.Polygon {
	return geom.Polygon{{
		{e[0], e[1]},
		{e[2], e[1]},
		{e[2], e[3]},
		{e[0], e[3]},
	}}
}

func WktMustEncode(g geom.Geometry, maxLen uint) string {
	if maxLen == 0 {
		return wkt.MustEncode(g)
	}
	return truncate.StringWithTail(wkt.MustEncode(g), maxLen, "...")
}
