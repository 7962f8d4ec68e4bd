package warp

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdok/tegel/gdal"
)

const warpHelp = "Usage: gdalwarp [--help-general] [--formats]\n" +
	"Available resampling methods:\n" +
	"  near (default), bilinear, cubic, cubicspline, lanczos, average, rms, mode, max, min, med, q1, q3, sum.\n"

func noSpawnEngine(t *testing.T) *gdal.Engine {
	return gdal.New(gdal.WithRunner(
		func(_ context.Context, _ io.Reader, _ []string, name string, _ ...string) (gdal.Result, error) {
			t.Errorf("unexpected %s run", name)
			return gdal.Result{}, nil
		}))
}

func helpEngine(exitCode int, help string) *gdal.Engine {
	return gdal.New(gdal.WithRunner(
		func(_ context.Context, _ io.Reader, _ []string, name string, args ...string) (gdal.Result, error) {
			return gdal.Result{
				Cmd:      append([]string{name}, args...),
				ExitCode: exitCode,
				Stdout:   []byte(help),
			}, nil
		}))
}

func TestResolveResampling(t *testing.T) {
	ctx := context.Background()

	t.Run("empty leaves the choice to the engine", func(t *testing.T) {
		got, err := ResolveResampling(ctx, noSpawnEngine(t), "")
		require.NoError(t, err)
		assert.Equal(t, Resampling(""), got)
	})

	t.Run("known methods need no engine", func(t *testing.T) {
		for _, method := range []Resampling{NearestNeighbour, Bilinear, Cubic, CubicSpline, Lanczos} {
			got, err := ResolveResampling(ctx, noSpawnEngine(t), method)
			require.NoError(t, err)
			assert.Equal(t, method, got)
		}
	})

	t.Run("advertised methods are accepted", func(t *testing.T) {
		got, err := ResolveResampling(ctx, helpEngine(0, warpHelp), "average")
		require.NoError(t, err)
		assert.Equal(t, Resampling("average"), got)
	})

	t.Run("helpful exit 1 still counts", func(t *testing.T) {
		got, err := ResolveResampling(ctx, helpEngine(1, warpHelp), "mode")
		require.NoError(t, err)
		assert.Equal(t, Resampling("mode"), got)
	})

	t.Run("unknown methods are rejected", func(t *testing.T) {
		_, err := ResolveResampling(ctx, helpEngine(0, warpHelp), "blarg")
		var unknownErr *UnknownResamplingMethodError
		require.ErrorAs(t, err, &unknownErr)
		assert.Equal(t, "blarg", unknownErr.Method)
		assert.ErrorContains(t, err, `unknown resampling method "blarg"`)
	})

	t.Run("engine failure propagates", func(t *testing.T) {
		_, err := ResolveResampling(ctx, helpEngine(2, ""), "average")
		var invocationErr *gdal.InvocationError
		require.ErrorAs(t, err, &invocationErr)
	})
}
