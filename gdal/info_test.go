package gdal

import (
	"context"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mercatorInfoJSON = `{
  "description": "checker.tif",
  "driverShortName": "GTiff",
  "driverLongName": "GeoTIFF",
  "files": ["checker.tif"],
  "size": [256, 256],
  "coordinateSystem": {
    "wkt": "PROJCS[\"WGS 84 / Pseudo-Mercator\",GEOGCS[\"WGS 84\",DATUM[\"WGS_1984\",SPHEROID[\"WGS 84\",6378137,298.257223563]]],PROJECTION[\"Mercator_1SP\"],UNIT[\"metre\",1],AUTHORITY[\"EPSG\",\"3857\"]]",
    "dataAxisToSRSAxisMapping": [1, 2]
  },
  "geoTransform": [-20037508.342789244, 156543.033928041, 0.0, 20037508.342789244, 0.0, -156543.033928041],
  "metadata": {"": {"AREA_OR_POINT": "Area"}, "IMAGE_STRUCTURE": {"INTERLEAVE": "BAND"}},
  "cornerCoordinates": {"upperLeft": [-20037508.343, 20037508.343]},
  "bands": [
    {"band": 1, "block": [256, 256], "type": "Byte", "colorInterpretation": "Gray", "noDataValue": 0.0},
    {"band": 2, "block": [256, 256], "type": "Byte", "colorInterpretation": "Undefined",
     "metadata": {"IMAGE_STRUCTURE": {"PIXELTYPE": "SIGNEDBYTE"}}}
  ]
}`

func TestParseMetadata(t *testing.T) {
	md, err := ParseMetadata([]byte(mercatorInfoJSON))
	require.NoError(t, err)

	assert.Equal(t, "checker.tif", md.Description)
	assert.Equal(t, "GTiff", md.DriverShortName)
	assert.Equal(t, []int{256, 256}, md.Size)
	assert.Equal(t, -20037508.342789244, md.GeoTransform[0])
	assert.Equal(t, -156543.033928041, md.GeoTransform[5])
	assert.Contains(t, md.CoordinateSystem.WKT, `AUTHORITY["EPSG","3857"]`)

	require.Len(t, md.Bands, 2)
	assert.Equal(t, 1, md.Bands[0].Band)
	assert.Equal(t, "Byte", md.Bands[0].Type)
	require.NotNil(t, md.Bands[0].NoDataValue)
	assert.Equal(t, 0.0, *md.Bands[0].NoDataValue)
	assert.False(t, md.Bands[0].SignedByte())

	assert.Nil(t, md.Bands[1].NoDataValue)
	assert.True(t, md.Bands[1].SignedByte())

	// Unrecognised fields stay available.
	assert.Contains(t, md.Extra, "cornerCoordinates")
	assert.Contains(t, md.Extra, "files")
	assert.NotContains(t, md.Extra, "bands")
	assert.NotContains(t, md.Extra, "coordinateSystem")
}

func TestParseMetadataNoDataSpellings(t *testing.T) {
	tests := []struct {
		name    string
		rawJSON string
		want    float64
	}{
		{
			name:    "nan as string",
			rawJSON: `{"size":[1,1],"bands":[{"band":1,"type":"Float64","noDataValue":"nan"}]}`,
			want:    math.NaN(),
		},
		{
			name:    "negative infinity as string",
			rawJSON: `{"size":[1,1],"bands":[{"band":1,"type":"Float32","noDataValue":"-inf"}]}`,
			want:    math.Inf(-1),
		},
		{
			name:    "plain number",
			rawJSON: `{"size":[1,1],"bands":[{"band":1,"type":"Int16","noDataValue":-32768}]}`,
			want:    -32768,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md, err := ParseMetadata([]byte(tt.rawJSON))
			require.NoError(t, err)
			require.NotNil(t, md.Bands[0].NoDataValue)
			got := *md.Bands[0].NoDataValue
			if math.IsNaN(tt.want) {
				assert.True(t, math.IsNaN(got))
			} else {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParseMetadataDefaultsGeoTransform(t *testing.T) {
	md, err := ParseMetadata([]byte(`{"size":[16,16],"bands":[{"band":1,"type":"Byte"}]}`))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 0, 0, 0, 1}, md.GeoTransform)
}

func TestParseMetadataRejectsUnusableOutput(t *testing.T) {
	tests := []struct {
		name    string
		rawJSON string
	}{
		{"no bands", `{"size":[16,16],"bands":[]}`},
		{"no size", `{"bands":[{"band":1,"type":"Byte"}]}`},
		{"bad band index", `{"size":[16,16],"bands":[{"band":0,"type":"Byte"}]}`},
		{"not json", `Supported Formats:`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMetadata([]byte(tt.rawJSON))
			assert.Error(t, err)
		})
	}
}

func TestInfoRunsGdalinfo(t *testing.T) {
	var gotCmd []string
	e := New(WithRunner(func(_ context.Context, _ io.Reader, _ []string, name string, args ...string) (Result, error) {
		gotCmd = append([]string{name}, args...)
		return Result{Cmd: gotCmd, Stdout: []byte(mercatorInfoJSON)}, nil
	}))

	md, err := e.Info(context.Background(), "checker.tif")
	require.NoError(t, err)
	assert.Equal(t, []string{"gdalinfo", "-json", "checker.tif"}, gotCmd)
	assert.Equal(t, []int{256, 256}, md.Size)
}

func TestInfoPropagatesInvocationError(t *testing.T) {
	e := New(WithRunner(func(_ context.Context, _ io.Reader, _ []string, name string, args ...string) (Result, error) {
		return Result{
			Cmd:      append([]string{name}, args...),
			ExitCode: 1,
			Stderr:   []byte("ERROR 4: not recognized as being in a supported file format.\n"),
		}, nil
	}))

	_, err := e.Info(context.Background(), "garbage.bin")
	var invErr *InvocationError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, "ERROR 4: not recognized as being in a supported file format.", invErr.Stderr)
}
