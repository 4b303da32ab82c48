package stats

import (
	"github.com/roman-kulish/radio-publisher/internal/spectrum"
)

var peakEngine = spectrum.NewEngine()

// Peak is the strongest bin in the positive half of an unwindowed spectrum
type Peak struct {
	Bin         int     // unshifted FFT bin
	FrequencyHz float64 // offset from the centre frequency
	Power       float64 // |X|²
}

// FrequencyMHz returns the peak offset in MHz
func (p Peak) FrequencyMHz() float64 {
	return p.FrequencyHz / 1e6
}

// FindPeak searches the first n/2 bins of the raw block's DFT for the largest
// |X|². The bin maps to bin·fs/n, the same offset spectrum.BinFrequency
// assigns to centred index bin+n/2. It returns false for an empty block.
func FindPeak(samples []complex128, sampleRate float64) (Peak, bool) {
	n := len(samples)
	if n == 0 {
		return Peak{}, false
	}

	coeff := peakEngine.Transform(samples)

	half := max(n/2, 1)
	best := 0
	bestPower := spectrum.Power(coeff[0])
	for i := 1; i < half; i++ {
		if p := spectrum.Power(coeff[i]); p > bestPower {
			best, bestPower = i, p
		}
	}

	return Peak{
		Bin:         best,
		FrequencyHz: float64(best) * sampleRate / float64(n),
		Power:       bestPower,
	}, true
}
