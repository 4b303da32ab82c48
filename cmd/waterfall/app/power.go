package app

import "math"

const (
	defaultMinPower = -60.0 // dB
	defaultMaxPower = 40.0  // dB

	// below this many samples the percentiles are meaningless
	minimumSampleCount = 20

	minimumRange = 30 // dB
)

// PowerBounds is the dB range mapped onto the color scale
type PowerBounds struct {
	Min  float64 // 5th percentile, less a margin
	Max  float64 // 95th percentile, plus a margin
	Mean float64
}

func defaultPowerBounds() PowerBounds {
	return PowerBounds{
		Min:  defaultMinPower,
		Max:  defaultMaxPower,
		Mean: (defaultMinPower + defaultMaxPower) / 2,
	}
}

// Override replaces either end with a manual value
func (b PowerBounds) Override(minPower, maxPower *float64) PowerBounds {
	if minPower != nil {
		b.Min = *minPower
	}
	if maxPower != nil {
		b.Max = *maxPower
	}
	if b.Max <= b.Min {
		b.Max = b.Min + 1
	}
	return b
}

// PowerHistogram counts power values in 1 dB bins
type PowerHistogram struct {
	bins       map[int]uint32
	totalCount uint64
	minBin     int
	maxBin     int
}

func NewPowerHistogram() *PowerHistogram {
	return &PowerHistogram{
		bins:   make(map[int]uint32),
		minBin: math.MaxInt32,
		maxBin: math.MinInt32,
	}
}

func binIndex(power float64) int {
	return int(math.Floor(power))
}

// halve keeps the distribution when a counter is about to overflow
func (h *PowerHistogram) halve() {
	h.minBin = math.MaxInt32
	h.maxBin = math.MinInt32

	for bin, n := range h.bins {
		n /= 2
		if n == 0 {
			delete(h.bins, bin)
			continue
		}
		h.bins[bin] = n
		h.minBin = min(h.minBin, bin)
		h.maxBin = max(h.maxBin, bin)
	}
	h.totalCount /= 2
}

// Add counts one power value. Values that are not finite are ignored.
func (h *PowerHistogram) Add(power float64) {
	if math.IsNaN(power) || math.IsInf(power, 0) {
		return
	}

	bin := binIndex(power)
	if h.bins[bin] == math.MaxUint32 || h.totalCount == math.MaxUint64 {
		h.halve()
	}

	h.bins[bin]++
	h.totalCount++
	h.minBin = min(h.minBin, bin)
	h.maxBin = max(h.maxBin, bin)
}

func (h *PowerHistogram) Count() uint64 {
	return h.totalCount
}

// PercentileBounds returns the 5th to 95th percentile range widened to at
// least 30 dB plus a 10% margin, or the defaults for too few samples
func (h *PowerHistogram) PercentileBounds() PowerBounds {
	if h.totalCount < minimumSampleCount {
		return defaultPowerBounds()
	}

	target := h.totalCount * 5 / 100

	var count uint64
	low := h.minBin
	for bin := h.minBin; bin <= h.maxBin; bin++ {
		count += uint64(h.bins[bin])
		if count >= target {
			low = bin
			break
		}
	}

	count = 0
	high := h.maxBin
	for bin := h.maxBin; bin >= h.minBin; bin-- {
		count += uint64(h.bins[bin])
		if count >= target {
			high = bin
			break
		}
	}

	var sum float64
	for bin, n := range h.bins {
		sum += float64(bin) * float64(n)
	}

	if high-low < minimumRange {
		center := (high + low) / 2
		low = center - minimumRange/2
		high = center + minimumRange/2
	}

	margin := (high - low) / 10
	return PowerBounds{
		Min:  float64(low - margin),
		Max:  float64(high + margin),
		Mean: sum / float64(h.totalCount),
	}
}

// SmoothBounds follows the histogram bounds with exponential smoothing
type SmoothBounds struct {
	hist    *PowerHistogram
	alpha   float64 // 0-1
	current PowerBounds
}

func NewSmoothBounds(alpha float64) *SmoothBounds {
	return &SmoothBounds{
		hist:    NewPowerHistogram(),
		alpha:   alpha,
		current: defaultPowerBounds(),
	}
}

// Update adds one frame of powers and moves the bounds toward the histogram
func (s *SmoothBounds) Update(powers []float64) PowerBounds {
	for _, p := range powers {
		s.hist.Add(p)
	}
	if s.hist.Count() < minimumSampleCount {
		return s.current
	}

	next := s.hist.PercentileBounds()
	s.current.Min = s.current.Min*(1-s.alpha) + next.Min*s.alpha
	s.current.Max = s.current.Max*(1-s.alpha) + next.Max*s.alpha
	s.current.Mean = next.Mean

	return s.current
}

func (s *SmoothBounds) Current() PowerBounds {
	return s.current
}
