// Package tms emits and reads OGC Tile Matrix Set (v2.0) descriptors
// of the power-of-two grids rasters are warped onto, so downstream
// tile servers can be configured to match the warped output.
// See https://www.ogc.org/standard/tms/
package tms

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/go-spatial/geom/slippy"
	"github.com/perimeterx/marshmallow"

	"github.com/pdok/tegel/srs"
)

// StandardizedRenderingPixelSize is the physical pixel size the
// standard assumes when relating cell sizes to scale denominators:
// 0.28 mm, in metres.
const StandardizedRenderingPixelSize = 0.00028

const crsURITemplate = "http://www.opengis.net/def/crs/%s/0/%s"

// TileMatrixSet is a tile matrix set descriptor following the Tile
// Matrix Set standard. Build one with FromSpatialReference or Parse.
type TileMatrixSet struct {
	// Tile matrix set identifier. Implementation of 'identifier'
	ID string `json:"id,omitempty"`
	// Title of this tile matrix set, normally used for display to a human
	Title string `json:"title,omitempty"`
	// Brief narrative description of this tile matrix set
	Description string `json:"description,omitempty"`
	// Reference to an official source for this TileMatrixSet
	URI         string   `validate:"omitempty,uri" json:"uri,omitempty"`
	OrderedAxes []string `validate:"omitempty,len=2" json:"orderedAxes,omitempty"`
	// Coordinate Reference System (CRS)
	CRS CRS `validate:"required" json:"-"`
	// Minimum bounding rectangle surrounding the tile matrix set, in the supported CRS
	BoundingBox *TwoDBoundingBox `json:"boundingBox,omitempty"`
	// Describes scale levels and its tile matrices, keyed by zoom level
	TileMatrices map[int]TileMatrix `validate:"required,min=1" json:"-"`
}

// FromSpatialReference derives the descriptor of the grid this module
// aligns rasters to in the given reference: square tiles of
// srs.TileSide pixels subdividing the world by powers of two, numbered
// from the top-left world corner, one tile matrix per zoom level from
// minZoom through maxZoom. The reference must carry an EPSG code,
// since the descriptor points at its system by authority URI.
func FromSpatialReference(ref *srs.SpatialReference, id, title string, minZoom, maxZoom int) (*TileMatrixSet, error) {
	if ref == nil {
		return nil, fmt.Errorf("tile matrix set needs a spatial reference")
	}
	code, ok := ref.EPSG()
	if !ok {
		return nil, fmt.Errorf("tile matrix set needs a reference with an EPSG code, got %q", ref.Identifier())
	}
	if minZoom < 0 || maxZoom < minZoom {
		return nil, fmt.Errorf("invalid zoom range %d..%d", minZoom, maxZoom)
	}

	crs := NewEPSGCRS(code)
	world := ref.WorldExtents()
	axes := []string{"X", "Y"}
	if ref.IsGeographic() {
		axes = []string{"Lon", "Lat"}
	}

	set := &TileMatrixSet{
		ID:          id,
		Title:       title,
		Description: ref.Description(),
		OrderedAxes: axes,
		CRS:         crs,
		BoundingBox: &TwoDBoundingBox{
			LowerLeft:  TwoDPoint{world.MinX(), world.MinY()},
			UpperRight: TwoDPoint{world.MaxX(), world.MaxY()},
			CRS:        crs,
		},
		TileMatrices: make(map[int]TileMatrix, maxZoom-minZoom+1),
	}
	for zoom := minZoom; zoom <= maxZoom; zoom++ {
		cellSize := ref.PixelDimensions(zoom).X()
		nx, ny := ref.TilesCount(world, zoom)
		set.TileMatrices[zoom] = TileMatrix{
			ID:       strconv.Itoa(zoom),
			CellSize: cellSize,
			// The scale denominator relates the cell size to the
			// standardized rendering pixel; angular cell sizes count
			// at their ground size on the equator.
			ScaleDenominator: cellSize * ref.MetresPerUnit() / StandardizedRenderingPixelSize,
			CornerOfOrigin:   TopLeft,
			PointOfOrigin:    TwoDPoint{world.MinX(), world.MaxY()},
			TileWidth:        srs.TileSide,
			TileHeight:       srs.TileSide,
			MatrixWidth:      uint(nx),
			MatrixHeight:     uint(ny),
		}
	}
	return set, nil
}

// Parse reads a tile matrix set descriptor. Unknown fields are
// tolerated; missing required ones are not.
func Parse(data []byte) (*TileMatrixSet, error) {
	var set TileMatrixSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parsing tile matrix set: %w", err)
	}
	return &set, nil
}

// EPSG returns the authority code of the set's reference system, when
// the CRS points at the EPSG authority.
func (tms *TileMatrixSet) EPSG() (int, bool) {
	return tms.CRS.EPSG()
}

// Size returns the matrix dimensions at the given zoom as a tile whose
// X and Y hold the column and row counts.
func (tms *TileMatrixSet) Size(zoom int) (*slippy.Tile, bool) {
	if zoom < 0 {
		return nil, false
	}
	tm, ok := tms.TileMatrices[zoom]
	if !ok {
		return nil, false
	}
	return slippy.NewTile(uint(zoom), tm.MatrixWidth, tm.MatrixHeight), true
}

// ZoomLevels lists the zoom levels the set describes, ascending.
func (tms *TileMatrixSet) ZoomLevels() []int {
	levels := make([]int, 0, len(tms.TileMatrices))
	for zoom := range tms.TileMatrices {
		levels = append(levels, zoom)
	}
	sort.Ints(levels)
	return levels
}

func (tms *TileMatrixSet) MarshalJSON() ([]byte, error) {
	tileMatrices := make([]*TileMatrix, 0, len(tms.TileMatrices))
	for i := range tms.TileMatrices {
		tm := tms.TileMatrices[i]
		tileMatrices = append(tileMatrices, &tm)
	}
	sort.Slice(tileMatrices, func(i, j int) bool {
		iID, _ := strconv.ParseInt(tileMatrices[i].ID, 10, 64)
		jID, _ := strconv.ParseInt(tileMatrices[j].ID, 10, 64)
		return iID < jID
	})
	return json.Marshal(struct {
		TileMatrixSet                     // not a pointer, because it would cause recursion to this function
		SpecialCRS          *CRS          `json:"crs"` // pointer, because CRS' MarshalJSON func is on pointer
		SpecialTileMatrices []*TileMatrix `json:"tileMatrices"`
	}{
		TileMatrixSet:       *tms,
		SpecialCRS:          &tms.CRS,
		SpecialTileMatrices: tileMatrices,
	})
}

func (tms *TileMatrixSet) UnmarshalJSON(data []byte) error {
	if err := defaults.Set(tms); err != nil {
		return err
	}

	specials, err := marshmallow.Unmarshal(data, tms, marshmallow.WithExcludeKnownFieldsFromMap(true))
	if err != nil {
		return err
	}

	rawCrs, ok := specials["crs"]
	if !ok {
		return fmt.Errorf(`missing key "crs"`)
	}
	if tms.CRS, err = unmarshalCRS(rawCrs); err != nil {
		return err
	}

	rawTileMatrices, ok := specials["tileMatrices"]
	if !ok {
		return fmt.Errorf(`missing key "tileMatrices"`)
	}
	if tms.TileMatrices, err = unmarshalTileMatrices(rawTileMatrices); err != nil {
		return err
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	return validate.Struct(tms)
}

func unmarshalTileMatrices(raw interface{}) (map[int]TileMatrix, error) {
	rawList, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf(`"tileMatrices" should be an array`)
	}
	tileMatrices := make(map[int]TileMatrix, len(rawList))
	for _, rawTileMatrix := range rawList {
		var tileMatrix TileMatrix
		if err := tileMatrix.UnmarshalJSONFromMap(rawTileMatrix); err != nil {
			return nil, err
		}
		zoom, err := strconv.ParseInt(tileMatrix.ID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("only integer-like ids are supported for tile matrices: %w", err)
		}
		tileMatrices[int(zoom)] = tileMatrix
	}
	return tileMatrices, nil
}

var (
	crsURIRegex = regexp.MustCompile(`^https?://.+/def/crs/(?P<authority>[^/]+)/[^/]+/(?P<code>[^/]+)$`)
	crsURNRegex = regexp.MustCompile(`^urn:ogc:def:crs:(?P<authority>[^:]+)::(?P<code>[^:]+)$`)
)

// CRS points at a coordinate reference system by OGC authority URI.
// Descriptors written by this package use the compact string spelling;
// Parse also accepts the object form with a "uri" member.
type CRS struct {
	uri           string
	authorityName string
	authorityCode string
	// Whether it should be marshalled as just a string
	asString bool
}

// NewEPSGCRS builds the URI reference for an EPSG code.
func NewEPSGCRS(code int) CRS {
	codeString := strconv.Itoa(code)
	return CRS{
		uri:           fmt.Sprintf(crsURITemplate, "EPSG", codeString),
		authorityName: "EPSG",
		authorityCode: codeString,
		asString:      true,
	}
}

func (crs *CRS) URI() string           { return crs.uri }
func (crs *CRS) AuthorityName() string { return crs.authorityName }
func (crs *CRS) AuthorityCode() string { return crs.authorityCode }

// EPSG returns the numeric authority code when the authority is EPSG.
func (crs *CRS) EPSG() (int, bool) {
	if !strings.EqualFold(crs.authorityName, "EPSG") {
		return 0, false
	}
	code, err := strconv.Atoi(crs.authorityCode)
	if err != nil {
		return 0, false
	}
	return code, true
}

func (crs *CRS) MarshalJSON() ([]byte, error) {
	if crs.asString {
		return json.Marshal(crs.uri)
	}
	return json.Marshal(struct {
		URI string `json:"uri"`
	}{URI: crs.uri})
}

func unmarshalCRS(raw interface{}) (CRS, error) {
	var uri string
	var asString bool
	switch v := raw.(type) {
	case string:
		uri = v
		asString = true
	case map[string]interface{}:
		rawURI, ok := v["uri"]
		if !ok {
			return CRS{}, fmt.Errorf(`crs object misses "uri"`)
		}
		if uri, ok = rawURI.(string); !ok {
			return CRS{}, fmt.Errorf(`crs "uri" is not a string but a %T`, rawURI)
		}
	default:
		return CRS{}, fmt.Errorf(`wrong type for "crs": %T`, raw)
	}

	parts := crsURIRegex.FindStringSubmatch(uri)
	if parts == nil {
		parts = crsURNRegex.FindStringSubmatch(uri)
	}
	if parts == nil {
		return CRS{}, fmt.Errorf("could not parse crs uri %q", uri)
	}
	return CRS{
		uri:           uri,
		authorityName: parts[1],
		authorityCode: parts[2],
		asString:      asString,
	}, nil
}

// TwoDBoundingBox is the minimum bounding rectangle surrounding a 2D
// resource, in the CRS indicated elsewhere.
type TwoDBoundingBox struct {
	LowerLeft  TwoDPoint `validate:"required" json:"lowerLeft"`
	UpperRight TwoDPoint `validate:"required" json:"upperRight"`
	CRS        CRS       `json:"-"`
}

func (bb *TwoDBoundingBox) MarshalJSON() ([]byte, error) {
	var crs *CRS
	if bb.CRS.uri != "" {
		crs = &bb.CRS
	}
	return json.Marshal(struct {
		TwoDBoundingBox      // not a pointer, because it would cause recursion to this function
		SpecialCRS      *CRS `json:"crs,omitempty"`
	}{
		TwoDBoundingBox: *bb,
		SpecialCRS:      crs,
	})
}

func (bb *TwoDBoundingBox) UnmarshalJSON(data []byte) error {
	var dataMap map[string]interface{}
	if err := json.Unmarshal(data, &dataMap); err != nil {
		return err
	}
	return bb.UnmarshalJSONFromMap(dataMap)
}

func (bb *TwoDBoundingBox) UnmarshalJSONFromMap(data interface{}) error {
	dataMap, ok := data.(map[string]interface{})
	if !ok {
		return fmt.Errorf(`bounding box is not an object but a %T`, data)
	}
	specials, err := marshmallow.UnmarshalFromJSONMap(dataMap, bb, marshmallow.WithExcludeKnownFieldsFromMap(true))
	if err != nil {
		return err
	}

	// The bounding box CRS is optional and defaults to the set's.
	if rawCrs, ok := specials["crs"]; ok {
		if bb.CRS, err = unmarshalCRS(rawCrs); err != nil {
			return err
		}
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	return validate.Struct(bb)
}

// TwoDPoint is a 2D point in the CRS indicated elsewhere.
type TwoDPoint [2]float64

func (p TwoDPoint) XY() [2]float64 {
	return p
}

// TileMatrix describes one scale level of a TileMatrixSet.
type TileMatrix struct {
	// Identifier selecting one of the scales defined in the TileMatrixSet.
	// Implementation of 'identifier'
	ID string `validate:"required" json:"id"`
	// Title of this tile matrix, normally used for display to a human
	Title string `json:"title,omitempty"`
	// Scale denominator of this tile matrix
	ScaleDenominator float64 `validate:"required,gt=0" json:"scaleDenominator"`
	// Cell size of this tile matrix
	CellSize float64 `validate:"required,gt=0" json:"cellSize"`
	// The corner of the tile matrix (_topLeft_ or _bottomLeft_) used as
	// the origin for numbering tile rows and columns. This corner is
	// also a corner of the (0, 0) tile.
	CornerOfOrigin CornerOfOrigin `validate:"omitempty,oneof=topLeft bottomLeft" default:"topLeft" json:"cornerOfOrigin,omitempty"`
	// Precise position in CRS coordinates of the corner of origin for
	// this tile matrix. This position is also a corner of the (0, 0) tile.
	PointOfOrigin TwoDPoint `validate:"required" json:"pointOfOrigin"`
	// Width of each tile of this tile matrix in pixels
	TileWidth uint `validate:"required,min=1" default:"256" json:"tileWidth"`
	// Height of each tile of this tile matrix in pixels
	TileHeight uint `validate:"required,min=1" default:"256" json:"tileHeight"`
	// Width of the matrix (number of tiles in width)
	MatrixWidth uint `validate:"required,min=1" json:"matrixWidth"`
	// Height of the matrix (number of tiles in height)
	MatrixHeight uint `validate:"required,min=1" json:"matrixHeight"`
}

func (tm *TileMatrix) UnmarshalJSON(data []byte) error {
	var dataMap map[string]interface{}
	if err := json.Unmarshal(data, &dataMap); err != nil {
		return err
	}
	return tm.UnmarshalJSONFromMap(dataMap)
}

func (tm *TileMatrix) UnmarshalJSONFromMap(data interface{}) error {
	if err := defaults.Set(tm); err != nil {
		return err
	}

	dataMap, ok := data.(map[string]interface{})
	if !ok {
		return fmt.Errorf(`tile matrix is not an object but a %T`, data)
	}
	if _, err := marshmallow.UnmarshalFromJSONMap(dataMap, tm, marshmallow.WithExcludeKnownFieldsFromMap(true)); err != nil {
		return err
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	return validate.Struct(tm)
}

type CornerOfOrigin string

const (
	TopLeft    CornerOfOrigin = "topLeft"
	BottomLeft CornerOfOrigin = "bottomLeft"
)

func (c *CornerOfOrigin) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return c.UnmarshalJSONFromMap(s)
}

func (c *CornerOfOrigin) UnmarshalJSONFromMap(data interface{}) error {
	s, ok := data.(string)
	if !ok {
		return fmt.Errorf(`CornerOfOrigin is not a string but a %T`, data)
	}
	switch s {
	case "", string(TopLeft):
		*c = TopLeft
	case string(BottomLeft):
		*c = BottomLeft
	default:
		return fmt.Errorf("unknown CornerOfOrigin: %v", data)
	}
	return nil
}
