package sdr

import (
	"context"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulator_Read(t *testing.T) {
	sim := NewSimulator(WithSeed(1, 2), WithTuning(433_920_000, 1_024_000))

	for _, n := range []int{0, 1, 512, 1024, 2048} {
		block, err := sim.Read(context.Background(), n)
		require.NoError(t, err)
		assert.Len(t, block.Samples, n)
		assert.True(t, block.Simulated)
		assert.Equal(t, 433_920_000.0, block.CenterFrequency)
		assert.Equal(t, 1_024_000.0, block.SampleRate)
		assert.False(t, block.Timestamp.IsZero())
	}
}

func TestSimulator_Deterministic(t *testing.T) {
	a, err := NewSimulator(WithSeed(7, 7)).Read(context.Background(), 256)
	require.NoError(t, err)
	b, err := NewSimulator(WithSeed(7, 7)).Read(context.Background(), 256)
	require.NoError(t, err)

	assert.Equal(t, a.Samples, b.Samples)
}

func TestSimulator_PeaksStandOut(t *testing.T) {
	sim := NewSimulator(WithSeed(3, 4))
	block, err := sim.Read(context.Background(), 1024)
	require.NoError(t, err)

	// Noise is N(0,1) per component, a peak adds at least 5+5j.
	var strongest float64
	for _, s := range block.Samples {
		strongest = max(strongest, cmplx.Abs(s))
	}
	assert.Greater(t, strongest, 4.0)
}

func TestSimulator_Gaussian(t *testing.T) {
	sim := NewSimulator(WithSeed(5, 6), WithSimulationMode(SimulationGaussian))
	block, err := sim.Read(context.Background(), 1024)
	require.NoError(t, err)

	// Average magnitude around the centre dominates the edges.
	avg := func(from, to int) float64 {
		var sum float64
		for _, s := range block.Samples[from:to] {
			sum += cmplx.Abs(s)
		}
		return sum / float64(to-from)
	}
	assert.Greater(t, avg(500, 524), 3*avg(0, 24))
	assert.Equal(t, "gaussian", sim.Info().DeviceID)
}

func TestSimulator_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSimulator().Read(ctx, 16)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSimulationMode_Validate(t *testing.T) {
	assert.NoError(t, SimulationMode("").Validate())
	assert.NoError(t, SimulationPeaks.Validate())
	assert.NoError(t, SimulationGaussian.Validate())
	assert.Error(t, SimulationMode("sine").Validate())
}

func TestSimulator_Close(t *testing.T) {
	sim := NewSimulator()
	assert.NoError(t, sim.Close())
	assert.NoError(t, sim.Close())
	assert.True(t, sim.Info().Simulated)
}
