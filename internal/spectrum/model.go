package spectrum

import (
	"time"
)

// Session represents a single acquisition run with a specific receiver.
// Each session captures metadata about when and how the samples were taken.
type Session struct {
	ID         int64     `json:"ID"`                      // Unique identifier for the session
	StartTime  time.Time `json:"startTime"`               // When the run began
	DeviceType string    `json:"deviceType"`              // Receiver in use (e.g., "RTL-SDR", "simulator")
	DeviceID   string    `json:"deviceID"`                // Serial number, index or generated identifier
	Simulated  bool      `json:"simulated"`               // Whether the run fell back to simulated samples
	Config     *string   `json:"config,string,omitempty"` // Optional receiver configuration in JSON format
}

// Span is one archived spectrum line: a frame of dB power values laid out
// evenly from FrequencyStart to FrequencyEnd.
type Span struct {
	Timestamp      time.Time `json:"timestamp"`      // When the block behind the frame was read
	FrequencyStart float64   `json:"frequencyStart"` // Absolute frequency of the first bin in Hz
	FrequencyEnd   float64   `json:"frequencyEnd"`   // Absolute frequency past the last bin in Hz
	Powers         []float64 `json:"powers"`         // dB power per bin
}

// NewSpan places a frame around centerFrequency. The frame must be centred,
// as produced by Engine.Compute, and may have been decimated.
func NewSpan(ts time.Time, centerFrequency, sampleRate float64, powers []float64) *Span {
	return &Span{
		Timestamp:      ts,
		FrequencyStart: centerFrequency - sampleRate/2,
		FrequencyEnd:   centerFrequency + sampleRate/2,
		Powers:         powers,
	}
}

// BinWidth returns the frequency step between adjacent powers
func (s *Span) BinWidth() float64 {
	if len(s.Powers) == 0 {
		return 0
	}
	return (s.FrequencyEnd - s.FrequencyStart) / float64(len(s.Powers))
}
