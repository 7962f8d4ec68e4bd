package warp

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdok/tegel/gdal"
	"github.com/pdok/tegel/raster"
	"github.com/pdok/tegel/srs"
)

// A toy projected world of 256x256 units, so zoom-0 tiles have 1-unit
// pixels and every expected coordinate is a small integer. The WKT
// spells the same sphere as the proj4 definition.
const (
	toyProj4 = "+proj=merc +a=40.74366543152521 +b=40.74366543152521 +units=m +no_defs"
	toyWKT   = `PROJCS["toy world",GEOGCS["toy sphere",DATUM["toy",SPHEROID["toy",40.74366543152521,0]],PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433]],PROJECTION["Mercator_1SP"],UNIT["metre",1]]`

	mercator3857WKT = `PROJCS["WGS 84 / Pseudo-Mercator",GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563,AUTHORITY["EPSG","7030"]],AUTHORITY["EPSG","6326"]],PRIMEM["Greenwich",0,AUTHORITY["EPSG","8901"]],UNIT["degree",0.0174532925199433,AUTHORITY["EPSG","9122"]],AUTHORITY["EPSG","4326"]],PROJECTION["Mercator_1SP"],PARAMETER["central_meridian",0],PARAMETER["scale_factor",1],PARAMETER["false_easting",0],PARAMETER["false_northing",0],UNIT["metre",1,AUTHORITY["EPSG","9001"]],AXIS["Easting",EAST],AXIS["Northing",NORTH],AUTHORITY["EPSG","3857"]]`

	sampleVRT = `<VRTDataset rasterXSize="256" rasterYSize="256"><VRTRasterBand dataType="Byte" band="1"></VRTRasterBand></VRTDataset>`
)

func writeStub(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("stub"), 0o644))
	return path
}

func infoJSON(t *testing.T, width, height int, gt []float64, wkt string, bands ...map[string]any) []byte {
	t.Helper()
	if len(bands) == 0 {
		bands = []map[string]any{{"band": 1, "type": "Byte"}}
	}
	data, err := json.Marshal(map[string]any{
		"size":             []int{width, height},
		"geoTransform":     gt,
		"coordinateSystem": map[string]any{"wkt": wkt},
		"bands":            bands,
	})
	require.NoError(t, err)
	return data
}

func toyInfoJSON(t *testing.T, bands ...map[string]any) []byte {
	return infoJSON(t, 256, 256, []float64{-128, 1, 0, 128, 0, -1}, toyWKT, bands...)
}

// scriptedEngine answers gdalinfo with canned metadata and routes every
// other utility to handle, recording all argv along the way.
func scriptedEngine(info []byte, handle gdal.Runner) (*gdal.Engine, *[][]string) {
	calls := &[][]string{}
	runner := func(ctx context.Context, stdin io.Reader, env []string, name string, args ...string) (gdal.Result, error) {
		argv := append([]string{name}, args...)
		*calls = append(*calls, argv)
		if name == gdal.DefaultInfoCommand {
			return gdal.Result{Cmd: argv, Stdout: info}, nil
		}
		return handle(ctx, stdin, env, name, args...)
	}
	return gdal.New(gdal.WithRunner(runner)), calls
}

// vrtResponder succeeds with the given document for the one expected
// utility and fails the test on anything else.
func vrtResponder(t *testing.T, wantName, vrt string) gdal.Runner {
	return func(_ context.Context, _ io.Reader, _ []string, name string, args ...string) (gdal.Result, error) {
		require.Equal(t, wantName, name)
		return gdal.Result{Cmd: append([]string{name}, args...), Stdout: []byte(vrt)}, nil
	}
}

func mustToy(t *testing.T) *srs.SpatialReference {
	t.Helper()
	ref, err := srs.FromProj4(toyProj4)
	require.NoError(t, err)
	return ref
}

// coord renders a coordinate exactly as the warp planner puts it on
// the command line.
func coord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func TestWarpPlan(t *testing.T) {
	ctx := context.Background()
	src := writeStub(t, "world.tif")
	engine, calls := scriptedEngine(toyInfoJSON(t), vrtResponder(t, gdal.DefaultWarpCommand, sampleVRT))

	toy := mustToy(t)
	got, err := Warp(ctx, engine, src, Options{TargetSRS: toy, Resampling: Bilinear})
	require.NoError(t, err)
	assert.Equal(t, sampleVRT, got.String())

	// One info call to open the source, one warp call for the plan; the
	// source and target are the same system, so no transform processes.
	// The raster covers the whole world, so the tile-snapped extents are
	// the world corners.
	world := toy.WorldExtents()
	require.Len(t, *calls, 2)
	assert.Equal(t, []string{
		gdal.DefaultWarpCommand,
		"-q",
		"-of", "VRT",
		"-t_srs", toyProj4,
		"-r", "bilinear",
		"-te", coord(world.MinX()), coord(world.MinY()), coord(world.MaxX()), coord(world.MaxY()),
		"-ts", "256", "256",
		src, "/dev/stdout",
	}, (*calls)[1])
}

func TestWarpDefaultTargetAndNoData(t *testing.T) {
	// A 512x256 raster covering the northern half of the mercator world
	// with zoom-1 tile-sized pixels and a declared no-data value.
	ctx := context.Background()
	src := writeStub(t, "north.tif")
	info := infoJSON(t, 512, 256,
		[]float64{-20037508.342789244, 78271.51696402048, 0, 20037508.342789244, 0, -78271.51696402048},
		mercator3857WKT,
		map[string]any{"band": 1, "type": "Byte", "noDataValue": 255})
	engine, calls := scriptedEngine(info, vrtResponder(t, gdal.DefaultWarpCommand, sampleVRT))

	_, err := Warp(ctx, engine, src, Options{})
	require.NoError(t, err)

	require.Len(t, *calls, 2)
	assert.Equal(t, []string{
		gdal.DefaultWarpCommand,
		"-q",
		"-of", "VRT",
		"-t_srs", "EPSG:3857",
		"-te", "-20037508.342789244", "0", "20037508.342789244", "20037508.342789244",
		"-ts", "512", "256",
		"-dstnodata", "255",
		src, "/dev/stdout",
	}, (*calls)[1])
}

func TestWarpMaxResolutionCapsZoom(t *testing.T) {
	// Quarter-unit pixels would natively match zoom 2; the cap holds
	// the plan at zoom 1, whose tiles are 128 units.
	ctx := context.Background()
	src := writeStub(t, "fine.tif")
	info := infoJSON(t, 256, 256, []float64{-128, 0.25, 0, 128, 0, -0.25}, toyWKT)
	engine, calls := scriptedEngine(info, vrtResponder(t, gdal.DefaultWarpCommand, sampleVRT))

	toy := mustToy(t)
	_, err := Warp(ctx, engine, src, Options{TargetSRS: toy, MaxResolution: 1})
	require.NoError(t, err)

	world := toy.WorldExtents()
	require.Len(t, *calls, 2)
	assert.Equal(t, []string{
		gdal.DefaultWarpCommand,
		"-q",
		"-of", "VRT",
		"-t_srs", toyProj4,
		"-te", coord(world.MinX()), "0", "0", coord(world.MaxY()),
		"-ts", "256", "256",
		src, "/dev/stdout",
	}, (*calls)[1])
}

func TestWarpPropagatesEngineFailure(t *testing.T) {
	ctx := context.Background()
	src := writeStub(t, "broken.tif")
	engine, _ := scriptedEngine(toyInfoJSON(t),
		func(_ context.Context, _ io.Reader, _ []string, name string, args ...string) (gdal.Result, error) {
			return gdal.Result{
				Cmd:      append([]string{name}, args...),
				ExitCode: 1,
				Stderr:   []byte("ERROR 1: something broke\n"),
			}, nil
		})

	_, err := Warp(ctx, engine, src, Options{TargetSRS: mustToy(t)})
	var invocationErr *gdal.InvocationError
	require.ErrorAs(t, err, &invocationErr)
	assert.Equal(t, 1, invocationErr.ExitCode)
	assert.Equal(t, "ERROR 1: something broke", invocationErr.Stderr)
	assert.Equal(t, gdal.DefaultWarpCommand, invocationErr.Cmd[0])
}

func TestWarpRejectsUnknownResampling(t *testing.T) {
	ctx := context.Background()
	src := writeStub(t, "toy.tif")
	help := "Usage: gdalwarp [--help-general] ...\n" +
		"Available resampling methods:\n" +
		"  near (default), bilinear, cubic, cubicspline, lanczos, average, rms, mode, max, min, med, q1, q3, sum.\n"
	engine, _ := scriptedEngine(toyInfoJSON(t),
		func(_ context.Context, _ io.Reader, _ []string, name string, args ...string) (gdal.Result, error) {
			require.Equal(t, []string{"--help"}, args)
			return gdal.Result{Cmd: append([]string{name}, args...), Stdout: []byte(help)}, nil
		})

	_, err := Warp(ctx, engine, src, Options{TargetSRS: mustToy(t), Resampling: "blarg"})
	var unknownErr *UnknownResamplingMethodError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "blarg", unknownErr.Method)
}

func bandsFor(t *testing.T, infos ...gdal.BandInfo) []raster.Band {
	t.Helper()
	md := gdal.Metadata{Size: []int{2, 2}, GeoTransform: []float64{0, 1, 0, 0, 0, -1}, Bands: infos}
	d, err := raster.FromMetadata(md, "bands.tif")
	require.NoError(t, err)
	return d.Bands()
}

func TestNoDataArgument(t *testing.T) {
	zero := 0.0
	nan := math.NaN()

	tests := []struct {
		name         string
		bands        []gdal.BandInfo
		want         string
		wantDeclared bool
	}{
		{
			name:  "no band declares a value",
			bands: []gdal.BandInfo{{Band: 1, Type: "Byte"}, {Band: 2, Type: "Byte"}},
		},
		{
			name:         "zero is still a declared value",
			bands:        []gdal.BandInfo{{Band: 1, Type: "Byte", NoDataValue: &zero}},
			want:         "0",
			wantDeclared: true,
		},
		{
			name: "undeclared bands keep their position",
			bands: []gdal.BandInfo{
				{Band: 1, Type: "Float32", NoDataValue: &nan},
				{Band: 2, Type: "Float32"},
				{Band: 3, Type: "Float32", NoDataValue: &zero},
			},
			want:         "nan none 0",
			wantDeclared: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, declared := noDataArgument(bandsFor(t, tt.bands...))
			assert.Equal(t, tt.wantDeclared, declared)
			if declared {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
