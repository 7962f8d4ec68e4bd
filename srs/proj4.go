package srs

import (
	"fmt"
	"strconv"
	"strings"
)

// GDAL's value for one degree in radians.
const degreeInRadians = 0.0174532925199433

type ellipsoid struct {
	a  float64 // semi-major axis in metres
	rf float64 // inverse flattening, 0 for a sphere
}

func (e ellipsoid) b() float64 {
	if e.rf == 0 {
		return e.a
	}
	return e.a * (1 - 1/e.rf)
}

var ellipsoids = map[string]ellipsoid{
	"WGS84":  {6378137, 298.257223563},
	"GRS80":  {6378137, 298.257222101},
	"bessel": {6377397.155, 299.1528128},
	"intl":   {6378388, 297},
	"airy":   {6377563.396, 299.3249646},
	"clrk66": {6378206.4, 294.9786982},
	"krass":  {6378245, 298.3},
	"sphere": {6370997, 0},
}

// Datums imply an ellipsoid when none is given explicitly.
var datumEllipsoids = map[string]string{
	"WGS84":   "WGS84",
	"NAD83":   "GRS80",
	"NAD27":   "clrk66",
	"potsdam": "bessel",
	"OSGB36":  "airy",
	"nzgd49":  "intl",
}

var unitToMetre = map[string]float64{
	"m":     1,
	"km":    1000,
	"dm":    0.1,
	"cm":    0.01,
	"mm":    0.001,
	"ft":    0.3048,
	"us-ft": 1200.0 / 3937.0,
}

var geographicProjections = map[string]bool{
	"longlat": true,
	"latlong": true,
	"lonlat":  true,
	"latlon":  true,
}

// FromProj4 builds a reference from a proj4 definition such as
// "+proj=longlat +datum=WGS84 +no_defs". Only the parameters that
// decide the system's kind, ellipsoid and units are interpreted; the
// projection parameters themselves (+lat_0, +x_0, ...) are kept
// verbatim in the definition for the GDAL utilities to act on.
func FromProj4(definition string) (*SpatialReference, error) {
	params := map[string]string{}
	for _, token := range strings.Fields(definition) {
		token = strings.TrimPrefix(token, "+")
		key, value, _ := strings.Cut(token, "=")
		params[key] = value
	}
	projection, ok := params["proj"]
	if !ok || projection == "" {
		return nil, fmt.Errorf("projection definition misses +proj: %q", definition)
	}

	s := &SpatialReference{
		definition:  strings.TrimSpace(definition),
		geographic:  geographicProjections[projection],
		linearUnit:  1,
		angularUnit: degreeInRadians,
	}

	base := ellipsoids["WGS84"]
	baseExplicit := false
	if datum, ok := params["datum"]; ok {
		name, known := datumEllipsoids[datum]
		if !known {
			return nil, fmt.Errorf("unknown datum %q in %q", datum, definition)
		}
		base = ellipsoids[name]
		baseExplicit = true
	}
	if name, ok := params["ellps"]; ok {
		base, ok = ellipsoids[name]
		if !ok {
			return nil, fmt.Errorf("unknown ellipsoid %q in %q", name, definition)
		}
		baseExplicit = true
	}

	a, b := base.a, base.b()
	if v, ok := params["R"]; ok {
		r, err := parseProj4Number("R", v)
		if err != nil {
			return nil, err
		}
		a, b = r, r
	}
	if v, ok := params["a"]; ok {
		var err error
		if a, err = parseProj4Number("a", v); err != nil {
			return nil, err
		}
		// A bare +a is a sphere; an explicit ellipsoid or datum keeps
		// its flattening unless +b, +rf or +f overrides it.
		b = a
		if baseExplicit && !hasAny(params, "b", "rf", "f") {
			b = ellipsoid{a, base.rf}.b()
		}
	}
	switch {
	case params["b"] != "":
		var err error
		if b, err = parseProj4Number("b", params["b"]); err != nil {
			return nil, err
		}
	case params["rf"] != "":
		rf, err := parseProj4Number("rf", params["rf"])
		if err != nil {
			return nil, err
		}
		b = ellipsoid{a, rf}.b()
	case params["f"] != "":
		f, err := parseProj4Number("f", params["f"])
		if err != nil {
			return nil, err
		}
		b = a * (1 - f)
	}
	s.semiMajor, s.semiMinor = a, b

	if v, ok := params["to_meter"]; ok {
		metres, err := parseProj4Number("to_meter", v)
		if err != nil {
			return nil, err
		}
		s.linearUnit = metres
	} else if name, ok := params["units"]; ok {
		metres, known := unitToMetre[name]
		if !known {
			return nil, fmt.Errorf("unknown unit %q in %q", name, definition)
		}
		s.linearUnit = metres
	}

	return s, nil
}

func parseProj4Number(key, value string) (float64, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed +%s value %q", key, value)
	}
	return f, nil
}

func hasAny(params map[string]string, keys ...string) bool {
	for _, key := range keys {
		if params[key] != "" {
			return true
		}
	}
	return false
}
