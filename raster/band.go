package raster

import (
	"fmt"
	"math"
	"strconv"

	"github.com/pdok/tegel/gdal"
)

type pixelKind int

const (
	unsignedInteger pixelKind = iota
	signedInteger
	floatingPoint
)

// PixelType is how a band encodes one sample: an integer kind with a
// bit width, or a floating-point width.
type PixelType struct {
	name string
	kind pixelKind
	bits int
}

var (
	Byte    = PixelType{name: "Byte", kind: unsignedInteger, bits: 8}
	Int8    = PixelType{name: "Int8", kind: signedInteger, bits: 8}
	UInt16  = PixelType{name: "UInt16", kind: unsignedInteger, bits: 16}
	Int16   = PixelType{name: "Int16", kind: signedInteger, bits: 16}
	UInt32  = PixelType{name: "UInt32", kind: unsignedInteger, bits: 32}
	Int32   = PixelType{name: "Int32", kind: signedInteger, bits: 32}
	Float32 = PixelType{name: "Float32", kind: floatingPoint, bits: 32}
	Float64 = PixelType{name: "Float64", kind: floatingPoint, bits: 64}
)

var pixelTypesByName = map[string]PixelType{
	"Byte":    Byte,
	"Int8":    Int8,
	"UInt16":  UInt16,
	"Int16":   Int16,
	"UInt32":  UInt32,
	"Int32":   Int32,
	"Float32": Float32,
	"Float64": Float64,
}

// PixelTypeByName resolves a band type as gdalinfo reports it. A Byte
// band whose IMAGE_STRUCTURE metadata declares PIXELTYPE=SIGNEDBYTE is
// really Int8; pass signedByte for that case. Complex types are not
// supported.
func PixelTypeByName(name string, signedByte bool) (PixelType, error) {
	if signedByte && name == Byte.name {
		return Int8, nil
	}
	t, ok := pixelTypesByName[name]
	if !ok {
		return PixelType{}, fmt.Errorf("cannot handle pixel type %q", name)
	}
	return t, nil
}

func (t PixelType) Name() string { return t.name }
func (t PixelType) Bits() int    { return t.bits }

func (t PixelType) IsFloat() bool   { return t.kind == floatingPoint }
func (t PixelType) IsInteger() bool { return t.kind != floatingPoint }

// MinimumValue is the smallest value the type can store. Floats have
// no finite bound here and report -Inf.
func (t PixelType) MinimumValue() float64 {
	switch t.kind {
	case unsignedInteger:
		return 0
	case signedInteger:
		return -math.Ldexp(1, t.bits-1)
	default:
		return math.Inf(-1)
	}
}

// MaximumValue is the largest value the type can store, +Inf for
// floats.
func (t PixelType) MaximumValue() float64 {
	switch t.kind {
	case unsignedInteger:
		return math.Ldexp(1, t.bits) - 1
	case signedInteger:
		return math.Ldexp(1, t.bits-1) - 1
	default:
		return math.Inf(1)
	}
}

// NextValue is the next value expressible in this type, used to nudge
// a sentinel just past the data range. Integer types take whole
// numbers within their range and saturate at the maximum. Float types
// step to the next representable value toward +Inf, at 32-bit
// granularity for Float32, and reach +Inf from their finite maximum.
func (t PixelType) NextValue(value float64) (float64, error) {
	if t.kind == floatingPoint {
		if t.bits == 32 {
			if value >= math.MaxFloat32 {
				return math.Inf(1), nil
			}
			return float64(math.Nextafter32(float32(value), float32(math.Inf(1)))), nil
		}
		if value == math.MaxFloat64 {
			return math.Inf(1), nil
		}
		return math.Nextafter(value, math.Inf(1)), nil
	}

	if math.IsNaN(value) || math.IsInf(value, 0) || math.Trunc(value) != value {
		return 0, fmt.Errorf("value %v is not a whole number for %s", value, t.name)
	}
	minimum, maximum := t.MinimumValue(), t.MaximumValue()
	if value < minimum || value > maximum {
		return 0, fmt.Errorf("value %v must be between %s and %s for %s",
			value, t.FormatValue(minimum), t.FormatValue(maximum), t.name)
	}
	if value == maximum {
		return maximum, nil
	}
	return value + 1, nil
}

// FormatValue renders a sample value the way the GDAL utilities take
// it on the command line: integers without a decimal point, floats in
// lowercase shortest form so NaN becomes "nan".
func (t PixelType) FormatValue(value float64) string {
	switch {
	case math.IsNaN(value):
		return "nan"
	case math.IsInf(value, 1):
		return "inf"
	case math.IsInf(value, -1):
		return "-inf"
	case t.kind != floatingPoint:
		return strconv.FormatInt(int64(value), 10)
	default:
		return strconv.FormatFloat(value, 'g', -1, 64)
	}
}

// Band is one raster band: its 1-based index, pixel type and declared
// no-data value, if any.
type Band struct {
	Index  int
	Type   PixelType
	noData *float64
}

func bandFromInfo(info gdal.BandInfo) (Band, error) {
	pixelType, err := PixelTypeByName(info.Type, info.SignedByte())
	if err != nil {
		return Band{}, fmt.Errorf("band %d: %w", info.Band, err)
	}
	band := Band{Index: info.Band, Type: pixelType}
	if info.NoDataValue != nil {
		v := *info.NoDataValue
		band.noData = &v
	}
	return band, nil
}

// NoData returns the band's declared no-data value, if there is one.
func (b Band) NoData() (float64, bool) {
	if b.noData == nil {
		return 0, false
	}
	return *b.noData, true
}
