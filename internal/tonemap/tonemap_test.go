package tonemap

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap_OutputInRange(t *testing.T) {
	params := map[Mode][]float64{
		Linear: {ScaleMin, 0.5, 1, 1.5, 3, ScaleMax},
		Log:    {FactorMin, 0.5, 1, 4, FactorMax},
		PQ:     {GammaMin, 0.5, 1, 2.2, GammaMax},
	}
	for mode, ps := range params {
		for _, param := range ps {
			for p := 0; p <= 255; p++ {
				got := Map(float64(p), mode, param)
				if got < 0 || got > 255 || math.IsNaN(got) {
					t.Fatalf("Map(%d, %s, %g) = %g, out of [0,255]", p, mode, param, got)
				}
			}
		}
	}
}

func TestMap_Identity(t *testing.T) {
	tests := []struct {
		name  string
		mode  Mode
		param float64
		tol   float64
	}{
		{"linear scale 1", Linear, 1, 1e-9},
		{"pq gamma 1", PQ, 1, 1e-9},
		{"log factor near 0", Log, 1e-9, 1e-3},
		{"log factor 0", Log, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for p := 0; p <= 255; p++ {
				once := Map(float64(p), tt.mode, tt.param)
				assert.InDelta(t, float64(p), once, tt.tol, "pixel %d", p)
				twice := Map(once, tt.mode, tt.param)
				assert.InDelta(t, once, twice, tt.tol+1e-9, "idempotence at pixel %d", p)
			}
		})
	}
}

func TestMap_KnownValues(t *testing.T) {
	tests := []struct {
		name  string
		pixel float64
		mode  Mode
		param float64
		want  float64
	}{
		{"linear gain", 100, Linear, 1.5, 150},
		{"linear clips high", 200, Linear, 1.5, 255},
		{"log endpoints fixed", 255, Log, 1, 255},
		{"log zero", 0, Log, 3, 0},
		{"pq midpoint", 127.5, PQ, 2, 63.75},
		{"pq white", 255, PQ, 2.2, 255},
		{"negative input clamps", -20, Linear, 2, 0},
		{"unknown mode passes through", 42, Mode("hlg"), 2, 42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Map(tt.pixel, tt.mode, tt.param), 1e-6)
		})
	}
}

func TestMap_LogBrightensShadows(t *testing.T) {
	assert.Greater(t, Map(32, Log, 1), 32.0)
}

func TestValidateParam(t *testing.T) {
	tests := []struct {
		mode    Mode
		param   float64
		wantErr bool
	}{
		{Linear, 1.5, false},
		{Linear, 0.05, true},
		{Linear, 5.1, true},
		{Log, 10, false},
		{Log, 0, true},
		{PQ, 2.2, false},
		{PQ, math.NaN(), true},
		{Mode("bogus"), 1, true},
	}
	for _, tt := range tests {
		err := ValidateParam(tt.mode, tt.param)
		assert.Equal(t, tt.wantErr, err != nil, "ValidateParam(%s, %g) = %v", tt.mode, tt.param, err)
	}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" PQ ")
	require.NoError(t, err)
	assert.Equal(t, PQ, m)

	_, err = ParseMode("hable")
	assert.Error(t, err)
}

func TestLUTApply(t *testing.T) {
	frame := []byte{0, 10, 100, 200, 255, 128}
	Apply(frame, Linear, 2)
	assert.Equal(t, []byte{0, 20, 200, 255, 255, 255}, frame)

	id := []byte{0, 1, 2, 254, 255}
	NewLUT(PQ, 1).Apply(id)
	assert.Equal(t, []byte{0, 1, 2, 254, 255}, id)
}

func TestFilterExpr(t *testing.T) {
	f := FilterExpr(Linear, 1.5)
	assert.True(t, strings.HasPrefix(f, "lutrgb=r='clip(val*1.5,0,255)'"), f)
	assert.Contains(t, FilterExpr(PQ, 2.2), "pow(val/255,2.2)")
	assert.Contains(t, FilterExpr(Log, 1), "log(1+val*1)/log(1+255*1)")
	assert.Empty(t, FilterExpr(Log, 0))
	assert.Empty(t, FilterExpr(Mode("x"), 1))
}
