package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregator_Due(t *testing.T) {
	a, err := NewAggregator(4, 2, 10)
	require.NoError(t, err)

	var due []int
	for read := 1; read <= 30; read++ {
		if a.Due(read) {
			due = append(due, read)
		}
	}
	assert.Equal(t, []int{10, 20, 30}, due)
	assert.False(t, a.Due(0))
}

func TestAggregator_Rolling(t *testing.T) {
	a, err := NewAggregator(2, 3, 1)
	require.NoError(t, err)

	blocks := [][]complex128{
		{1, 1},
		{2, 2},
		{3, 3},
		{4, 4},
	}

	var last BlockStats
	for i, b := range blocks {
		last = a.Observe(b)
		assert.Equal(t, i >= 2, a.WindowFull(), "block %d", i)
	}
	assert.Equal(t, 16.0, last.Mean)
	assert.Equal(t, 0.0, last.SNR)

	// Window holds the last three blocks: powers 4,4,9,9,16,16
	rolling := a.Rolling()
	assert.Equal(t, 6, rolling.TotalSamples)
	assert.Equal(t, 4.0, rolling.Min)
	assert.Equal(t, 16.0, rolling.Max)
	assert.InDelta(t, 29.0/3, rolling.Mean, 1e-12)
	assert.InDelta(t, 9.0, rolling.Median, 1e-12)
}

func TestNewAggregator_Invalid(t *testing.T) {
	_, err := NewAggregator(0, 100, 10)
	assert.Error(t, err)
	_, err = NewAggregator(1024, 0, 10)
	assert.Error(t, err)
	_, err = NewAggregator(1024, 100, 0)
	assert.Error(t, err)
}
