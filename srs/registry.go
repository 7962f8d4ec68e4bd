package srs

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
)

//go:embed epsg.json
var epsgJSON []byte

type registryEntry struct {
	Description string `json:"description"`
	Proj4       string `json:"proj4"`
}

var (
	registryOnce sync.Once
	registry     map[int]registryEntry
	registryErr  error
)

func loadRegistry() (map[int]registryEntry, error) {
	registryOnce.Do(func() {
		registryErr = json.Unmarshal(epsgJSON, &registry)
	})
	return registry, registryErr
}

// FromEPSG builds a reference from its authority code using the
// embedded registry. Codes outside the registry are an error; pass the
// system's proj4 definition or WKT instead.
func FromEPSG(code int) (*SpatialReference, error) {
	reg, err := loadRegistry()
	if err != nil {
		return nil, fmt.Errorf("loading embedded EPSG registry: %w", err)
	}
	entry, ok := reg[code]
	if !ok {
		return nil, fmt.Errorf("no definition for EPSG:%d in the embedded registry", code)
	}
	s, err := FromProj4(entry.Proj4)
	if err != nil {
		return nil, fmt.Errorf("EPSG:%d: %w", code, err)
	}
	s.epsg = code
	s.description = entry.Description
	return s, nil
}

// RegisteredEPSGCodes lists the codes the embedded registry can
// resolve, in ascending order.
func RegisteredEPSGCodes() ([]int, error) {
	reg, err := loadRegistry()
	if err != nil {
		return nil, err
	}
	codes := make([]int, 0, len(reg))
	for code := range reg {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	return codes, nil
}
