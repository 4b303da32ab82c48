package message

import (
	"sync"
	"time"

	"github.com/roman-kulish/radio-publisher/internal/sdr"
	"github.com/roman-kulish/radio-publisher/internal/spectrum"
	"github.com/roman-kulish/radio-publisher/internal/stats"
)

// WithClock replaces time.Now as the timestamp source
func WithClock(now func() time.Time) func(b *Builder) {
	return func(b *Builder) {
		b.now = now
	}
}

// WithSpectrumStride keeps every stride-th spectrum bin, 1 keeps all of them
func WithSpectrumStride(stride int) func(b *Builder) {
	return func(b *Builder) {
		b.stride = stride
	}
}

// WithTotalReads records the planned number of reads in sample messages
func WithTotalReads(total int) func(b *Builder) {
	return func(b *Builder) {
		if total > 0 {
			b.totalReads = &total
		}
	}
}

// Builder assembles outbound messages. Timestamps it hands out never go
// backwards, even if the wall clock does.
type Builder struct {
	now        func() time.Time
	stride     int
	totalReads *int

	mu   sync.Mutex
	last float64
}

func NewBuilder(options ...func(b *Builder)) *Builder {
	b := Builder{
		now:    time.Now,
		stride: 1,
	}

	for _, option := range options {
		option(&b)
	}

	return &b
}

// Sample builds the per-read message. peak and frame are optional.
func (b *Builder) Sample(block *sdr.Block, read int, st stats.BlockStats, peak *stats.Peak, frame spectrum.Frame) *Message {
	n := min(len(block.Samples), PreviewSamples)
	preview := make([]Complex, n)
	for i, s := range block.Samples[:n] {
		preview[i] = Complex{Real: real(s), Imag: imag(s)}
	}

	data := SampleData{
		ReadNumber:  read,
		TotalReads:  b.totalReads,
		SampleCount: len(block.Samples),
		TimeDomain: TimeDomain{
			MeanPower:   st.Mean,
			MedianPower: st.Median,
			MaxPower:    st.Max,
			MinPower:    st.Min,
			StdDev:      st.StdDev,
			SNREstimate: st.SNR,
		},
		FirstSamples: preview,
	}

	if peak != nil {
		data.FrequencyDomain = &FrequencyDomain{
			PeakFreqMHz: peak.FrequencyMHz(),
			PeakPower:   peak.Power,
		}
	}

	return &Message{
		Timestamp:  b.timestamp(),
		Type:       TypeSample,
		CenterFreq: block.CenterFrequency,
		SampleRate: block.SampleRate,
		Simulated:  block.Simulated,
		Sample:     &data,
		SpectrumDB: b.spectrum(frame),
	}
}

// Summary builds the rolling statistics message. frame is optional.
func (b *Builder) Summary(info sdr.Info, rolling stats.RollingStats, frame spectrum.Frame) *Message {
	return &Message{
		Timestamp:  b.timestamp(),
		Type:       TypeSummary,
		CenterFreq: info.CenterFrequency,
		SampleRate: info.SampleRate,
		Simulated:  info.Simulated,
		Summary: &SummaryData{
			TotalSamples:       rolling.TotalSamples,
			OverallMeanPower:   rolling.Mean,
			OverallMedianPower: rolling.Median,
			OverallMaxPower:    rolling.Max,
			OverallMinPower:    rolling.Min,
			OverallStdDev:      rolling.StdDev,
			OverallSNR:         rolling.SNR,
		},
		SpectrumDB: b.spectrum(frame),
	}
}

func (b *Builder) spectrum(frame spectrum.Frame) []float64 {
	if len(frame) == 0 {
		return nil
	}
	return spectrum.Decimate(frame, b.stride)
}

func (b *Builder) timestamp() float64 {
	ts := EpochSeconds(b.now())

	b.mu.Lock()
	defer b.mu.Unlock()

	if ts < b.last {
		ts = b.last
	}
	b.last = ts
	return ts
}

// EpochSeconds converts t to the float seconds carried in the timestamp
// field. The integer part stays exact so current epochs keep sub-microsecond
// resolution.
func EpochSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}
