package srs

import (
	"fmt"
	"regexp"
	"strconv"
)

const wktNumber = `[-+]?\d+(?:\.\d+)?(?:[eE][-+]?\d+)?`

var (
	wktRootRe      = regexp.MustCompile(`^\s*([A-Z_][A-Z_0-9]*)\s*\[\s*"([^"]*)"`)
	wktAuthorityRe = regexp.MustCompile(`AUTHORITY\s*\[\s*"EPSG"\s*,\s*"(\d+)"\s*\]`)
	wktIDRe        = regexp.MustCompile(`ID\s*\[\s*"EPSG"\s*,\s*(\d+)\s*(?:,[^\]]*)?\]`)
	wktSpheroidRe  = regexp.MustCompile(`(?:SPHEROID|ELLIPSOID)\s*\[\s*"[^"]*"\s*,\s*(` + wktNumber + `)\s*,\s*(` + wktNumber + `)`)

	// \bUNIT does not match the tail of ANGLEUNIT or LENGTHUNIT.
	wktUnitRe       = regexp.MustCompile(`\bUNIT\s*\[\s*"[^"]*"\s*,\s*(` + wktNumber + `)`)
	wktAngleUnitRe  = regexp.MustCompile(`ANGLEUNIT\s*\[\s*"[^"]*"\s*,\s*(` + wktNumber + `)`)
	wktLengthUnitRe = regexp.MustCompile(`LENGTHUNIT\s*\[\s*"[^"]*"\s*,\s*(` + wktNumber + `)`)
)

var (
	wktGeographicRoots = map[string]bool{
		"GEOGCS": true, "GEOGCRS": true, "GEOGRAPHICCRS": true,
		"GEODCRS": true, "GEODETICCRS": true,
	}
	wktProjectedRoots = map[string]bool{
		"PROJCS": true, "PROJCRS": true, "PROJECTEDCRS": true,
	}
	wktLocalRoots = map[string]bool{
		"LOCAL_CS": true, "ENGCRS": true, "ENGINEERINGCRS": true,
	}
)

func looksLikeWKT(input string) bool {
	m := wktRootRe.FindStringSubmatch(input)
	if m == nil {
		return false
	}
	keyword := m[1]
	return wktGeographicRoots[keyword] || wktProjectedRoots[keyword] || wktLocalRoots[keyword]
}

// FromWKT builds a reference from well-known text, version 1 or 2.
// When the text carries the system's own EPSG code and that code is in
// the embedded registry, the registry definition wins; otherwise the
// kind, ellipsoid and units are scraped from the text itself.
func FromWKT(text string) (*SpatialReference, error) {
	m := wktRootRe.FindStringSubmatch(text)
	if m == nil {
		return nil, fmt.Errorf("not well-known text: %.40q", text)
	}
	keyword, name := m[1], m[2]
	if !wktGeographicRoots[keyword] && !wktProjectedRoots[keyword] && !wktLocalRoots[keyword] {
		return nil, fmt.Errorf("unsupported well-known text node %q", keyword)
	}

	epsg, hasEPSG := scrapeEPSG(text)
	if hasEPSG {
		if s, err := FromEPSG(epsg); err == nil {
			return s, nil
		}
	}

	s := &SpatialReference{
		wkt:         text,
		description: name,
		geographic:  wktGeographicRoots[keyword],
		local:       wktLocalRoots[keyword],
		linearUnit:  1,
		angularUnit: degreeInRadians,
		epsg:        epsg,
	}

	if sph := wktSpheroidRe.FindStringSubmatch(text); sph != nil {
		a, _ := strconv.ParseFloat(sph[1], 64)
		rf, _ := strconv.ParseFloat(sph[2], 64)
		s.semiMajor = a
		s.semiMinor = ellipsoid{a, rf}.b()
	} else if s.local {
		wgs := ellipsoids["WGS84"]
		s.semiMajor, s.semiMinor = wgs.a, wgs.b()
	} else {
		return nil, fmt.Errorf("well-known text misses an ellipsoid: %.40q", text)
	}

	angles := wktAngleUnitRe.FindAllStringSubmatch(text, -1)
	lengths := wktLengthUnitRe.FindAllStringSubmatch(text, -1)
	units := wktUnitRe.FindAllStringSubmatch(text, -1)
	if s.geographic {
		// The first unit of a geographic system is the angular one.
		switch {
		case len(angles) > 0:
			s.angularUnit, _ = strconv.ParseFloat(angles[0][1], 64)
		case len(units) > 0:
			s.angularUnit, _ = strconv.ParseFloat(units[0][1], 64)
		}
	} else {
		// Projected and local systems measure in length units. The
		// last one wins: earlier matches belong to the nested
		// geographic system or the ellipsoid.
		switch {
		case len(lengths) > 0:
			s.linearUnit, _ = strconv.ParseFloat(lengths[len(lengths)-1][1], 64)
		case len(units) > 0:
			s.linearUnit, _ = strconv.ParseFloat(units[len(units)-1][1], 64)
		}
	}

	return s, nil
}

// scrapeEPSG finds the EPSG code of the system itself: an authority
// node that is a direct child of the root, at bracket depth 1. Codes
// of inner nodes (datums, units, methods) are not the system's code
// and are ignored.
func scrapeEPSG(text string) (int, bool) {
	for _, re := range []*regexp.Regexp{wktAuthorityRe, wktIDRe} {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			if bracketDepth(text[:m[0]]) != 1 {
				continue
			}
			code, err := strconv.Atoi(text[m[2]:m[3]])
			if err == nil && code > 0 {
				return code, true
			}
		}
	}
	return 0, false
}

func bracketDepth(s string) int {
	depth := 0
	inString := false
	for _, r := range s {
		switch {
		case r == '"':
			inString = !inString
		case inString:
		case r == '[':
			depth++
		case r == ']':
			depth--
		}
	}
	return depth
}
