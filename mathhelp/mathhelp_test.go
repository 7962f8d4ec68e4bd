package mathhelp

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBetweenInc(t *testing.T) {
	tests := []struct {
		f, p, q int64
		want    bool
	}{
		{5, 0, 10, true},
		{0, 0, 10, true},
		{10, 0, 10, true},
		{11, 0, 10, false},
		{5, 10, 0, true},
		{-5, -10, 0, true},
		{-11, 0, -10, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d in [%d,%d]", tt.f, tt.p, tt.q), func(t *testing.T) {
			assert.Equal(t, tt.want, BetweenInc(tt.f, tt.p, tt.q))
		})
	}
}

func TestPow2(t *testing.T) {
	assert.Equal(t, 1.0, Pow2(0))
	assert.Equal(t, 2.0, Pow2(1))
	assert.Equal(t, 1024.0, Pow2(10))
	assert.Equal(t, 0.5, Pow2(-1))
}

func TestEuclidianMod(t *testing.T) {
	tests := []struct {
		name string
		d, m float64
		want float64
	}{
		{"positive remainder", 384, 256, 128},
		{"negative dividend", -128, 256, 128},
		{"negative dividend wraps", -384, 256, 128},
		{"exact multiple", 512, 256, 0},
		{"exact negative multiple", -512, 256, 0},
		{"fractional", 1.5, 1, 0.5},
		{"negative fractional", -0.25, 1, 0.75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EuclidianMod(tt.d, tt.m))
		})
	}
}

func TestEuclidianModFollowsDivisorSign(t *testing.T) {
	assert.Equal(t, -128.0, EuclidianMod(384, -256))
	assert.Equal(t, math.Mod(384, 256), EuclidianMod(384, 256))
}

func TestAlmostEqual(t *testing.T) {
	tests := []struct {
		name     string
		a, b     float64
		decimals int
		want     bool
	}{
		{"equal", 1.0, 1.0, 2, true},
		{"close enough", 1.0, 1.0049, 2, true},
		{"too far", 1.0, 1.006, 2, false},
		{"asymmetric", -128.0, -128.004, 2, true},
		{"looser decimals", 1.0, 1.04, 1, true},
		{"stricter decimals", 1.0, 1.04, 2, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AlmostEqual(tt.a, tt.b, tt.decimals))
		})
	}
}
