package stats

import (
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/roman-kulish/radio-publisher/internal/spectrum"
)

// BlockStats summarises instantaneous power |s|² over a set of samples
type BlockStats struct {
	Mean   float64
	Median float64
	Max    float64
	Min    float64
	StdDev float64
	SNR    float64 // Mean / StdDev, 0 when StdDev is 0
}

// RollingStats is BlockStats over the trailing window of blocks
type RollingStats struct {
	TotalSamples int
	BlockStats
}

// Powers returns |s|² for every sample
func Powers(samples []complex128) []float64 {
	powers := make([]float64, len(samples))
	for i, s := range samples {
		powers[i] = spectrum.Power(s)
	}
	return powers
}

// PerBlock computes the statistic set over the power of samples
func PerBlock(samples []complex128) BlockStats {
	return Compute(Powers(samples))
}

// Compute calculates the statistic set over power values. Standard deviation
// is the population one. An empty input yields zero values.
func Compute(powers []float64) BlockStats {
	if len(powers) == 0 {
		return BlockStats{}
	}

	hi, lo := floats.Max(powers), floats.Min(powers)

	// A constant block has no spread, whatever rounding the mean picks up.
	mean, std := hi, 0.0
	if hi != lo {
		mean, std = stat.PopMeanStdDev(powers, nil)
	}

	var snr float64
	if std > 0 {
		snr = mean / std
	}

	return BlockStats{
		Mean:   mean,
		Median: median(powers),
		Max:    hi,
		Min:    lo,
		StdDev: std,
		SNR:    snr,
	}
}

// median averages the two middle values for even lengths
func median(values []float64) float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
