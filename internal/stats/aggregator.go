package stats

import (
	"fmt"
)

const (
	DefaultWindowBlocks = 100
	DefaultSummaryEvery = 10
)

// Aggregator keeps the power of the last windowBlocks blocks and reports
// rolling statistics every `every` reads.
type Aggregator struct {
	buffer *PowerBuffer
	every  int
}

// NewAggregator sizes the rolling window to windowBlocks·blockSize power values
func NewAggregator(blockSize, windowBlocks, every int) (*Aggregator, error) {
	if blockSize <= 0 {
		return nil, fmt.Errorf("stats.Aggregator: block size must be positive: %d", blockSize)
	}
	if windowBlocks <= 0 {
		return nil, fmt.Errorf("stats.Aggregator: window must be positive: %d blocks", windowBlocks)
	}
	if every <= 0 {
		return nil, fmt.Errorf("stats.Aggregator: summary cadence must be positive: %d", every)
	}

	buffer, err := NewPowerBuffer(blockSize * windowBlocks)
	if err != nil {
		return nil, fmt.Errorf("stats.Aggregator: %w", err)
	}

	return &Aggregator{buffer: buffer, every: every}, nil
}

// Observe appends the block's power to the rolling window and returns its own statistics
func (a *Aggregator) Observe(samples []complex128) BlockStats {
	powers := Powers(samples)
	a.buffer.Append(powers...)
	return Compute(powers)
}

// Due reports whether read (1-based) is a summary read
func (a *Aggregator) Due(read int) bool {
	return read > 0 && read%a.every == 0
}

// Rolling recomputes statistics over the whole window
func (a *Aggregator) Rolling() RollingStats {
	values := a.buffer.Values()
	return RollingStats{
		TotalSamples: len(values),
		BlockStats:   Compute(values),
	}
}

// WindowFull reports whether the rolling window has reached its capacity
func (a *Aggregator) WindowFull() bool {
	return a.buffer.IsFull()
}
