package gdal

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Format is one entry of the engine's raster format listing.
type Format struct {
	Name        string
	Kinds       string // raster, vector, ... as advertised; empty on old engines
	Attributes  string
	Description string

	CanRead      bool
	CanWrite     bool
	CanUpdate    bool
	HasVirtualIO bool
}

const (
	formatsHeader    = "Supported Formats:"
	resamplingHeader = "Available resampling methods:"
)

// Newer engines mark the data kinds between dashes: "GTiff -raster- (rw+vs): GeoTIFF".
// Older ones leave that part out: "GTiff (rw+v): GeoTIFF".
var formatRe = regexp.MustCompile(`^\s+(?P<name>\S+)(?:\s+-(?P<kinds>[a-z, ]+)-)?\s+\((?P<attributes>[^)]+)\):\s+(?P<description>.*)$`)

// Formats returns the raster formats the warp utility advertises, in
// the engine's own order. The listing is loaded once per Engine.
func (e *Engine) Formats(ctx context.Context) ([]Format, error) {
	if err := e.loadFormats(ctx); err != nil {
		return nil, err
	}
	formats := make([]Format, 0, e.formats.Len())
	for p := e.formats.Oldest(); p != nil; p = p.Next() {
		formats = append(formats, p.Value)
	}
	return formats, nil
}

// FormatByName looks a format up in the cached listing.
func (e *Engine) FormatByName(ctx context.Context, name string) (Format, bool, error) {
	if err := e.loadFormats(ctx); err != nil {
		return Format{}, false, err
	}
	f, ok := e.formats.Get(name)
	return f, ok, nil
}

func (e *Engine) loadFormats(ctx context.Context) error {
	e.formatsOnce.Do(func() {
		out, err := e.Output(ctx, nil, e.warpCmd, "--formats")
		if err != nil {
			e.formatsErr = err
			return
		}
		e.formats, e.formatsErr = parseFormats(string(out))
	})
	return e.formatsErr
}

func parseFormats(output string) (*orderedmap.OrderedMap[string, Format], error) {
	var formats *orderedmap.OrderedMap[string, Format]
	for _, line := range strings.Split(output, "\n") {
		if formats == nil {
			if strings.HasPrefix(line, formatsHeader) {
				formats = orderedmap.New[string, Format]()
			}
			continue
		}
		m := formatRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		attributes := m[formatRe.SubexpIndex("attributes")]
		f := Format{
			Name:         m[formatRe.SubexpIndex("name")],
			Kinds:        m[formatRe.SubexpIndex("kinds")],
			Attributes:   attributes,
			Description:  m[formatRe.SubexpIndex("description")],
			CanRead:      strings.ContainsRune(attributes, 'r'),
			CanWrite:     strings.ContainsRune(attributes, 'w'),
			CanUpdate:    strings.ContainsRune(attributes, '+'),
			HasVirtualIO: strings.ContainsRune(attributes, 'v'),
		}
		formats.Set(f.Name, f)
	}
	if formats == nil {
		return nil, fmt.Errorf("no %q header in --formats output", formatsHeader)
	}
	return formats, nil
}

// ResamplingMethods returns the method names the warp utility
// advertises in its help text. Loaded once per Engine. Some engine
// builds exit non-zero on --help while still printing the usage text;
// a usable listing on stdout counts as success.
func (e *Engine) ResamplingMethods(ctx context.Context) ([]string, error) {
	e.resamplingOnce.Do(func() {
		res, err := e.Run(ctx, nil, e.warpCmd, "--help")
		if err != nil {
			e.resamplingErr = err
			return
		}
		if res.ExitCode != 0 && (res.ExitCode != 1 || len(res.Stdout) == 0) {
			e.resamplingErr = res.Err()
			return
		}
		e.resampling, e.resamplingErr = parseResamplingMethods(string(res.Stdout))
	})
	return e.resampling, e.resamplingErr
}

func parseResamplingMethods(output string) ([]string, error) {
	var methods []string
	found := false
	for _, line := range strings.Split(output, "\n") {
		if !found {
			rest, ok := strings.CutPrefix(strings.TrimSpace(line), resamplingHeader)
			if !ok {
				continue
			}
			found = true
			line = rest
			if strings.TrimSpace(line) == "" {
				continue
			}
		}
		for _, m := range strings.Split(line, ",") {
			fields := strings.Fields(strings.Trim(m, " \t."))
			if len(fields) == 0 {
				continue
			}
			methods = append(methods, fields[0])
		}
		if strings.HasSuffix(line, ".") {
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("no %q section in --help output", resamplingHeader)
	}
	return methods, nil
}
