package warp

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/creasty/defaults"

	"github.com/pdok/tegel/gdal"
)

// RenderOptions tunes the gdalwarp run that materialises a plan.
type RenderOptions struct {
	// WorkingMemory is the warp buffer and GDAL block cache size, in
	// megabytes. Too small and the run stalls on I/O.
	WorkingMemory int `default:"512"`
	// Compress names a GTiff COMPRESS creation option. Empty or NONE
	// writes uncompressed output.
	Compress string
	// TempDir receives the intermediate VRT files. Empty means the
	// system temp directory.
	TempDir string
}

// Render materialises a VRT into a GeoTIFF at output. gdalwarp writes
// to a sibling temp file that is renamed over output only on success,
// so a failed render never leaves a partial result behind.
func Render(ctx context.Context, engine *gdal.Engine, vrt *VRT, output string, opts RenderOptions) error {
	if err := defaults.Set(&opts); err != nil {
		return err
	}

	input, err := vrt.TempFile(opts.TempDir, "gdalrender")
	if err != nil {
		return err
	}
	defer os.Remove(input)

	tmp, err := os.CreateTemp(filepath.Dir(output), "gdalrender*.tif")
	if err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	defer os.Remove(tmp.Name())

	workingMemory := strconv.Itoa(opts.WorkingMemory)
	args := []string{
		"-q",
		"-of", "GTiff",
		"-multi",
		"-overwrite",
		"-co", "BIGTIFF=IF_NEEDED",
		"-wo", "NUM_THREADS=ALL_CPUS",
		"-wm", workingMemory,
		"--config", "GDAL_CACHEMAX", workingMemory,
	}
	if compress := strings.ToUpper(opts.Compress); compress != "" && compress != "NONE" {
		args = append(args, "-co", "COMPRESS="+compress)
		if compress == "LZW" || compress == "DEFLATE" {
			args = append(args, "-co", "PREDICTOR=2")
		}
	}
	args = append(args, input, tmp.Name())

	if _, err := engine.Output(ctx, nil, engine.WarpCommand(), args...); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), output)
}
