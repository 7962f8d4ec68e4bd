// Package srs models spatial reference systems just deeply enough to
// plan tile grids: whether a system is geographic, projected or local,
// its ellipsoid axes and unit sizes, and the derived world extents and
// per-zoom tile and pixel dimensions. Reprojection of actual
// coordinates is delegated to the GDAL utilities; see
// CoordinateTransformation.
package srs

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-spatial/geom"

	"github.com/pdok/tegel/geomhelp"
	"github.com/pdok/tegel/mathhelp"
)

// TileSide is the pixel width and height of one tile.
const TileSide = 256

// EPSGWebMercator is the default target for warping: spherical
// mercator as used by most slippy-map tile sets.
const EPSGWebMercator = 3857

// SpatialReference describes a coordinate reference system. Values are
// immutable once constructed; build one with FromEPSG, FromProj4,
// FromWKT or FromUserInput.
type SpatialReference struct {
	epsg        int // 0 when unknown
	description string
	definition  string // proj4
	wkt         string // set by FromWKT when the registry has no entry
	geographic  bool
	local       bool
	semiMajor   float64 // metres
	semiMinor   float64 // metres
	linearUnit  float64 // metres per unit
	angularUnit float64 // radians per unit
}

func (s *SpatialReference) IsGeographic() bool { return s.geographic }
func (s *SpatialReference) IsLocal() bool      { return s.local }
func (s *SpatialReference) IsProjected() bool  { return !s.geographic && !s.local }

// EPSG returns the authority code, when known.
func (s *SpatialReference) EPSG() (int, bool) {
	return s.epsg, s.epsg != 0
}

// EPSGString returns "EPSG:<code>", or the empty string for local and
// unregistered systems.
func (s *SpatialReference) EPSGString() string {
	if s.local || s.epsg == 0 {
		return ""
	}
	return fmt.Sprintf("EPSG:%d", s.epsg)
}

// Identifier returns the form of this reference that the GDAL
// utilities accept on their command line: the EPSG string when the
// code is known, else the proj4 definition, else the original WKT.
func (s *SpatialReference) Identifier() string {
	if id := s.EPSGString(); id != "" {
		return id
	}
	if s.definition != "" {
		return s.definition
	}
	return s.wkt
}

func (s *SpatialReference) Description() string { return s.description }

// Definition returns the proj4 definition this reference was built
// from. Empty for references scraped from WKT without a registry hit.
func (s *SpatialReference) Definition() string { return s.definition }

func (s *SpatialReference) SemiMajor() float64 { return s.semiMajor }
func (s *SpatialReference) SemiMinor() float64 { return s.semiMinor }

// MetresPerUnit is the ground size of one coordinate unit: the linear
// unit factor for projected systems, the equatorial arc length of one
// angular unit for geographic ones.
func (s *SpatialReference) MetresPerUnit() float64 {
	if !s.IsProjected() {
		return s.semiMajor * s.angularUnit
	}
	return s.linearUnit
}

// MajorCircumference is the world's extent along the x axis, in the
// system's own units: 360 degrees for a geographic system, the
// equatorial circumference for a projected one.
func (s *SpatialReference) MajorCircumference() float64 {
	if !s.IsProjected() {
		return 2 * math.Pi / s.angularUnit
	}
	return s.semiMajor * 2 * math.Pi / s.linearUnit
}

func (s *SpatialReference) MinorCircumference() float64 {
	if !s.IsProjected() {
		return 2 * math.Pi / s.angularUnit
	}
	return s.semiMinor * 2 * math.Pi / s.linearUnit
}

// WorldExtents is the representable world: half the circumference on
// each side of the origin, halved again vertically for geographic
// systems since latitude only spans half a circle.
func (s *SpatialReference) WorldExtents() geom.Extent {
	major := s.MajorCircumference() / 2
	minor := s.MinorCircumference() / 2
	if !s.IsProjected() {
		minor /= 2
	}
	return geom.Extent{-major, -minor, major, minor}
}

// OffsetPoint translates p so that the world's lower-left corner
// becomes the arithmetic origin, which makes modular tile arithmetic
// valid. With reverse the translation is undone; the round trip is the
// identity.
func (s *SpatialReference) OffsetPoint(p geomhelp.XY, reverse bool) geomhelp.XY {
	offset := geomhelp.XY{s.MajorCircumference() / 2, s.MinorCircumference() / 2}
	if !s.IsProjected() {
		// The minor axis only spans a quarter of a full circle.
		offset[1] = s.MinorCircumference() / 4
	}
	if reverse {
		offset = offset.Mul(-1)
	}
	return p.Add(offset)
}

// TileDimensions is the size of one tile in map units at the given
// zoom. Each zoom step halves both dimensions. For geographic systems
// zoom 0 covers a longitudinal hemisphere rather than the whole world.
func (s *SpatialReference) TileDimensions(zoom int) geomhelp.XY {
	d := geomhelp.XY{
		s.MajorCircumference() / mathhelp.Pow2(zoom),
		s.MinorCircumference() / mathhelp.Pow2(zoom),
	}
	if !s.IsProjected() {
		return d.Mul(0.5)
	}
	return d
}

// PixelDimensions is the size of one pixel in map units at the given
// zoom, assuming TileSide pixels per tile.
func (s *SpatialReference) PixelDimensions(zoom int) geomhelp.XY {
	return s.TileDimensions(zoom).Mul(1.0 / TileSide)
}

// TilesCount returns how many tiles the extent spans per axis at the
// given zoom, rounded to the nearest whole tile.
func (s *SpatialReference) TilesCount(extent geom.Extent, zoom int) (nx, ny int) {
	tile := s.TileDimensions(zoom)
	nx = int(math.Round(extent.XSpan() / tile.X()))
	ny = int(math.Round(extent.YSpan() / tile.Y()))
	return nx, ny
}

// IsSame reports whether two references describe the same system:
// matching EPSG codes, or an equivalent kind, ellipsoid and units.
// EPSG:3857 and the legacy 900913 compare as the same system.
func (s *SpatialReference) IsSame(o *SpatialReference) bool {
	if s == o {
		return true
	}
	if s == nil || o == nil {
		return false
	}
	if s.epsg != 0 && s.epsg == o.epsg {
		return true
	}
	return s.geographic == o.geographic && s.local == o.local &&
		relativelyEqual(s.semiMajor, o.semiMajor) &&
		relativelyEqual(s.semiMinor, o.semiMinor) &&
		relativelyEqual(s.linearUnit, o.linearUnit) &&
		relativelyEqual(s.angularUnit, o.angularUnit)
}

func relativelyEqual(a, b float64) bool {
	if a == b {
		return true
	}
	return math.Abs(a-b) <= 1e-9*max(math.Abs(a), math.Abs(b))
}

var (
	// Adopted from OGC API - Tiles: CRS by URI or URN.
	crsURIRegex = regexp.MustCompile(`^https?://.+/def/crs/(?P<authority>[^/]+)/[^/]+/(?P<code>[^/]+)$`)
	crsURNRegex = regexp.MustCompile(`^urn:ogc:def:crs:(?P<authority>[^:]+)::(?P<code>[^:]+)$`)
)

// FromUserInput builds a reference from the spellings that turn up in
// configuration and on command lines: a bare EPSG code, "EPSG:<code>",
// an OGC CRS URI or URN, a proj4 definition, or WKT.
func FromUserInput(input string) (*SpatialReference, error) {
	input = strings.TrimSpace(input)
	switch {
	case input == "":
		return nil, fmt.Errorf("empty spatial reference")
	case strings.HasPrefix(input, "+"):
		return FromProj4(input)
	case looksLikeWKT(input):
		return FromWKT(input)
	}

	if code, err := strconv.Atoi(input); err == nil {
		return FromEPSG(code)
	}
	if rest, ok := cutPrefixFold(input, "EPSG:"); ok {
		code, err := strconv.Atoi(rest)
		if err != nil {
			return nil, fmt.Errorf("malformed EPSG reference %q", input)
		}
		return FromEPSG(code)
	}
	for _, re := range []*regexp.Regexp{crsURIRegex, crsURNRegex} {
		m := re.FindStringSubmatch(input)
		if m == nil {
			continue
		}
		if authority := m[re.SubexpIndex("authority")]; !strings.EqualFold(authority, "EPSG") {
			return nil, fmt.Errorf("unsupported CRS authority %q in %q", authority, input)
		}
		code, err := strconv.Atoi(m[re.SubexpIndex("code")])
		if err != nil {
			return nil, fmt.Errorf("malformed CRS code in %q", input)
		}
		return FromEPSG(code)
	}
	return nil, fmt.Errorf("unrecognised spatial reference %q", input)
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):], true
	}
	return s, false
}
