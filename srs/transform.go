package srs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/pdok/tegel/gdal"
	"github.com/pdok/tegel/geomhelp"
)

// CoordinateTransformation reprojects points from one reference to
// another by piping them through gdaltransform. Transformations
// between equivalent references short-circuit without spawning a
// process.
type CoordinateTransformation struct {
	engine   *gdal.Engine
	src, dst *SpatialReference
	identity bool
}

func NewCoordinateTransformation(engine *gdal.Engine, src, dst *SpatialReference) (*CoordinateTransformation, error) {
	if engine == nil {
		return nil, errors.New("coordinate transformation needs an engine")
	}
	if src == nil || dst == nil {
		return nil, errors.New("coordinate transformation needs both a source and a destination reference")
	}
	return &CoordinateTransformation{
		engine:   engine,
		src:      src,
		dst:      dst,
		identity: src.IsSame(dst),
	}, nil
}

func (t *CoordinateTransformation) Source() *SpatialReference      { return t.src }
func (t *CoordinateTransformation) Destination() *SpatialReference { return t.dst }

// TransformPoints reprojects all points in one gdaltransform run,
// preserving order.
func (t *CoordinateTransformation) TransformPoints(ctx context.Context, points []geomhelp.XY) ([]geomhelp.XY, error) {
	if len(points) == 0 {
		return nil, nil
	}
	if t.identity {
		return slices.Clone(points), nil
	}

	var stdin bytes.Buffer
	for _, p := range points {
		stdin.WriteString(formatCoordinate(p.X()))
		stdin.WriteByte(' ')
		stdin.WriteString(formatCoordinate(p.Y()))
		stdin.WriteByte('\n')
	}

	out, err := t.engine.Output(ctx, &stdin, t.engine.TransformCommand(),
		"-s_srs", t.src.Identifier(),
		"-t_srs", t.dst.Identifier())
	if err != nil {
		return nil, err
	}
	transformed, err := parseTransformOutput(out)
	if err != nil {
		return nil, err
	}
	if len(transformed) != len(points) {
		return nil, fmt.Errorf("transformed %d points, expected %d", len(transformed), len(points))
	}
	return transformed, nil
}

// TransformPoint reprojects a single point.
func (t *CoordinateTransformation) TransformPoint(ctx context.Context, point geomhelp.XY) (geomhelp.XY, error) {
	transformed, err := t.TransformPoints(ctx, []geomhelp.XY{point})
	if err != nil {
		return geomhelp.XY{}, err
	}
	return transformed[0], nil
}

func formatCoordinate(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// gdaltransform prints one "x y [z]" line per input line.
func parseTransformOutput(out []byte) ([]geomhelp.XY, error) {
	var points []geomhelp.XY
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("malformed coordinate line %q", line)
		}
		x, errX := strconv.ParseFloat(fields[0], 64)
		y, errY := strconv.ParseFloat(fields[1], 64)
		if errX != nil || errY != nil {
			return nil, fmt.Errorf("malformed coordinate line %q", line)
		}
		points = append(points, geomhelp.XY{x, y})
	}
	return points, nil
}
