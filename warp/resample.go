package warp

import (
	"context"
	"fmt"
	"slices"

	"github.com/pdok/tegel/gdal"
)

// Resampling names a gdalwarp resampling method.
type Resampling string

const (
	NearestNeighbour Resampling = "near"
	Bilinear         Resampling = "bilinear"
	Cubic            Resampling = "cubic"
	CubicSpline      Resampling = "cubicspline"
	Lanczos          Resampling = "lanczos"
)

var knownResamplingMethods = []Resampling{
	NearestNeighbour,
	Bilinear,
	Cubic,
	CubicSpline,
	Lanczos,
}

type UnknownResamplingMethodError struct {
	Method string
}

func (e *UnknownResamplingMethodError) Error() string {
	return fmt.Sprintf("unknown resampling method %q", e.Method)
}

// ResolveResampling validates a resampling method. Empty means the
// engine picks its default and the -r flag is omitted. Methods outside
// the known set are accepted only when the engine advertises them.
func ResolveResampling(ctx context.Context, engine *gdal.Engine, r Resampling) (Resampling, error) {
	if r == "" {
		return "", nil
	}
	if slices.Contains(knownResamplingMethods, r) {
		return r, nil
	}
	methods, err := engine.ResamplingMethods(ctx)
	if err != nil {
		return "", err
	}
	if slices.Contains(methods, string(r)) {
		return r, nil
	}
	return "", &UnknownResamplingMethodError{Method: string(r)}
}
