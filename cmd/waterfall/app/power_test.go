package app

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPowerHistogram_TooFewSamples(t *testing.T) {
	h := NewPowerHistogram()
	for i := 0; i < minimumSampleCount-1; i++ {
		h.Add(float64(i))
	}
	assert.Equal(t, defaultPowerBounds(), h.PercentileBounds())
}

func TestPowerHistogram_IgnoresNonFinite(t *testing.T) {
	h := NewPowerHistogram()
	h.Add(math.NaN())
	h.Add(math.Inf(1))
	h.Add(math.Inf(-1))
	assert.Zero(t, h.Count())
}

func TestPowerHistogram_PercentileBounds(t *testing.T) {
	h := NewPowerHistogram()
	for i := 0; i < 100; i++ {
		h.Add(float64(i) - 50) // -50 .. 49
	}

	b := h.PercentileBounds()

	// 5th percentile -46, 95th 45, 9 dB margin each side
	assert.Equal(t, -55.0, b.Min)
	assert.Equal(t, 54.0, b.Max)
	assert.InDelta(t, -0.5, b.Mean, 1e-9)
}

func TestPowerHistogram_MinimumRange(t *testing.T) {
	h := NewPowerHistogram()
	for i := 0; i < 50; i++ {
		h.Add(10.2)
	}

	b := h.PercentileBounds()
	assert.Equal(t, -8.0, b.Min)
	assert.Equal(t, 28.0, b.Max)
}

func TestSmoothBounds_Update(t *testing.T) {
	s := NewSmoothBounds(1)
	assert.Equal(t, defaultPowerBounds(), s.Update([]float64{1, 2, 3}))

	powers := make([]float64, 100)
	for i := range powers {
		powers[i] = float64(i) - 50
	}
	b := s.Update(powers)
	assert.Equal(t, s.Current(), b)
	assert.Less(t, b.Min, -40.0)
	assert.Greater(t, b.Max, 40.0)
}

func TestPowerBounds_Override(t *testing.T) {
	lo, hi := -30.0, 10.0
	b := defaultPowerBounds().Override(&lo, &hi)
	assert.Equal(t, lo, b.Min)
	assert.Equal(t, hi, b.Max)

	b = defaultPowerBounds().Override(&hi, nil)
	assert.Equal(t, hi, b.Min)
	assert.Equal(t, defaultMaxPower, b.Max)

	high := 100.0
	b = defaultPowerBounds().Override(&high, nil)
	assert.Greater(t, b.Max, b.Min)
}
