package gdal

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/perimeterx/marshmallow"
)

// Metadata is the parsed output of gdalinfo -json. Recognised fields
// are typed; everything else the engine reported is kept in Extra.
type Metadata struct {
	Description     string    `json:"description,omitempty"`
	DriverShortName string    `json:"driverShortName,omitempty"`
	Size            []int     `json:"size" validate:"len=2"`
	GeoTransform    []float64 `json:"geoTransform,omitempty" validate:"len=6"`

	CoordinateSystem CoordinateSystem `json:"-"`
	Bands            []BandInfo       `json:"-" validate:"min=1,dive"`
	Extra            map[string]any   `json:"-"`
}

type CoordinateSystem struct {
	WKT string `json:"wkt"`
}

// BandInfo describes one raster band. NoDataValue tolerates the string
// spellings ("nan", "inf") gdalinfo uses for non-finite values.
type BandInfo struct {
	Band int    `json:"band" validate:"gte=1"`
	Type string `json:"type" validate:"required"`

	NoDataValue *float64                     `json:"-"`
	Metadata    map[string]map[string]string `json:"-"`
}

// SignedByte reports whether a Byte band is declared signed through
// the IMAGE_STRUCTURE metadata domain.
func (b BandInfo) SignedByte() bool {
	return b.Metadata["IMAGE_STRUCTURE"]["PIXELTYPE"] == "SIGNEDBYTE"
}

// Info runs gdalinfo -json on the given path.
func (e *Engine) Info(ctx context.Context, path string) (Metadata, error) {
	out, err := e.Output(ctx, nil, e.infoCmd, "-json", path)
	if err != nil {
		return Metadata{}, err
	}
	return ParseMetadata(out)
}

// ParseMetadata decodes gdalinfo -json output.
func ParseMetadata(data []byte) (Metadata, error) {
	var md Metadata
	specials, err := marshmallow.Unmarshal(data, &md, marshmallow.WithExcludeKnownFieldsFromMap(true))
	if err != nil {
		return Metadata{}, fmt.Errorf("parsing gdalinfo output: %w", err)
	}

	if rawCS, ok := specials["coordinateSystem"]; ok {
		csMap, isMap := rawCS.(map[string]any)
		if !isMap {
			return Metadata{}, fmt.Errorf(`"coordinateSystem" should be an object`)
		}
		if _, err = marshmallow.UnmarshalFromJSONMap(csMap, &md.CoordinateSystem); err != nil {
			return Metadata{}, err
		}
		delete(specials, "coordinateSystem")
	}

	if rawBands, ok := specials["bands"]; ok {
		md.Bands, err = unmarshalBands(rawBands)
		if err != nil {
			return Metadata{}, err
		}
		delete(specials, "bands")
	}
	md.Extra = specials

	if len(md.GeoTransform) == 0 {
		// GDAL's default transform for datasets without georeferencing.
		md.GeoTransform = []float64{0, 1, 0, 0, 0, 1}
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err = validate.Struct(&md); err != nil {
		return Metadata{}, fmt.Errorf("gdalinfo output misses required fields: %w", err)
	}
	return md, nil
}

func unmarshalBands(rawBands any) ([]BandInfo, error) {
	rawList, ok := rawBands.([]any)
	if !ok {
		return nil, fmt.Errorf(`"bands" should be an array`)
	}
	bands := make([]BandInfo, 0, len(rawList))
	for _, raw := range rawList {
		rawMap, isMap := raw.(map[string]any)
		if !isMap {
			return nil, fmt.Errorf(`"bands" entries should be objects`)
		}
		var band BandInfo
		if _, err := marshmallow.UnmarshalFromJSONMap(rawMap, &band); err != nil {
			return nil, err
		}
		if err := band.setNoData(rawMap["noDataValue"]); err != nil {
			return nil, err
		}
		band.Metadata = bandMetadata(rawMap["metadata"])
		bands = append(bands, band)
	}
	return bands, nil
}

func (b *BandInfo) setNoData(raw any) error {
	switch v := raw.(type) {
	case nil:
		return nil
	case float64:
		b.NoDataValue = &v
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("band %d: unparseable noDataValue %q", b.Band, v)
		}
		b.NoDataValue = &f
	default:
		return fmt.Errorf("band %d: unexpected noDataValue type %T", b.Band, raw)
	}
	return nil
}

func bandMetadata(raw any) map[string]map[string]string {
	domains, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	md := make(map[string]map[string]string, len(domains))
	for domain, rawKV := range domains {
		kv, isMap := rawKV.(map[string]any)
		if !isMap {
			continue
		}
		m := make(map[string]string, len(kv))
		for k, v := range kv {
			if s, isString := v.(string); isString {
				m[k] = s
			}
		}
		md[domain] = m
	}
	return md
}
