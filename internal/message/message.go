package message

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

const (
	TypeSample  Type = "sample"
	TypeSummary Type = "summary"

	// PreviewSamples is the number of raw samples carried by a sample message
	PreviewSamples = 10
)

// ErrUnknownType is returned when decoding a payload of an unsupported type
var ErrUnknownType = errors.New("unknown message type")

type Type string

func (t Type) String() string {
	return string(t)
}

// Message is a sample or summary record. Exactly one of Sample and Summary is
// set, matching Type.
type Message struct {
	Timestamp  float64 // epoch seconds
	Type       Type
	CenterFreq float64 // Hz
	SampleRate float64 // Hz
	Simulated  bool
	Sample     *SampleData
	Summary    *SummaryData
	SpectrumDB []float64 // optional, possibly decimated
}

type SampleData struct {
	ReadNumber      int              `json:"read_number"`
	TotalReads      *int             `json:"total_reads"`
	SampleCount     int              `json:"sample_count"`
	TimeDomain      TimeDomain       `json:"time_domain"`
	FirstSamples    []Complex        `json:"first_samples"`
	FrequencyDomain *FrequencyDomain `json:"frequency_domain,omitempty"`
}

type TimeDomain struct {
	MeanPower   float64 `json:"mean_power"`
	MedianPower float64 `json:"median_power"`
	MaxPower    float64 `json:"max_power"`
	MinPower    float64 `json:"min_power"`
	StdDev      float64 `json:"std_dev"`
	SNREstimate float64 `json:"snr_estimate"`
}

type Complex struct {
	Real float64 `json:"real"`
	Imag float64 `json:"imag"`
}

type FrequencyDomain struct {
	PeakFreqMHz float64 `json:"peak_freq_mhz"`
	PeakPower   float64 `json:"peak_power"`
}

type SummaryData struct {
	TotalSamples       int     `json:"total_samples"`
	OverallMeanPower   float64 `json:"overall_mean_power"`
	OverallMedianPower float64 `json:"overall_median_power"`
	OverallMaxPower    float64 `json:"overall_max_power"`
	OverallMinPower    float64 `json:"overall_min_power"`
	OverallStdDev      float64 `json:"overall_std_dev"`
	OverallSNR         float64 `json:"overall_snr"`
}

// wireMessage is the JSON layout shared with consumers
type wireMessage struct {
	Timestamp  float64         `json:"timestamp"`
	Type       Type            `json:"type"`
	Data       json.RawMessage `json:"data"`
	CenterFreq float64         `json:"center_freq"`
	SampleRate float64         `json:"sample_rate"`
	Simulated  bool            `json:"simulated"`
	SpectrumDB []float64       `json:"spectrum_db,omitempty"`
}

func (m *Message) MarshalJSON() ([]byte, error) {
	var data any
	switch m.Type {
	case TypeSample:
		data = m.Sample
	case TypeSummary:
		data = m.Summary
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, m.Type)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s data: %w", m.Type, err)
	}

	return json.Marshal(wireMessage{
		Timestamp:  m.Timestamp,
		Type:       m.Type,
		Data:       raw,
		CenterFreq: m.CenterFreq,
		SampleRate: m.SampleRate,
		Simulated:  m.Simulated,
		SpectrumDB: m.SpectrumDB,
	})
}

func (m *Message) UnmarshalJSON(b []byte) error {
	var w wireMessage
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}

	*m = Message{
		Timestamp:  w.Timestamp,
		Type:       w.Type,
		CenterFreq: w.CenterFreq,
		SampleRate: w.SampleRate,
		Simulated:  w.Simulated,
		SpectrumDB: w.SpectrumDB,
	}

	switch w.Type {
	case TypeSample:
		m.Sample = &SampleData{}
		if err := json.Unmarshal(w.Data, m.Sample); err != nil {
			return fmt.Errorf("unmarshaling sample data: %w", err)
		}
	case TypeSummary:
		m.Summary = &SummaryData{}
		if err := json.Unmarshal(w.Data, m.Summary); err != nil {
			return fmt.Errorf("unmarshaling summary data: %w", err)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, w.Type)
	}

	return nil
}

// Encode sanitises a copy of m and serialises it. Non-finite values never
// cause an error.
func Encode(m *Message) ([]byte, error) {
	clean := m.sanitized()
	return json.Marshal(&clean)
}

// Decode parses a payload produced by Encode
func Decode(payload []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("decoding message: %w", err)
	}
	return &m, nil
}

// Finite replaces NaN with 0 and ±Inf with ±math.MaxFloat64
func Finite(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case math.IsInf(v, 1):
		return math.MaxFloat64
	case math.IsInf(v, -1):
		return -math.MaxFloat64
	}
	return v
}

// sanitized returns a deep copy with every float made finite
func (m *Message) sanitized() Message {
	c := *m
	c.Timestamp = Finite(m.Timestamp)
	c.CenterFreq = Finite(m.CenterFreq)
	c.SampleRate = Finite(m.SampleRate)

	if m.Sample != nil {
		s := *m.Sample
		s.TimeDomain = TimeDomain{
			MeanPower:   Finite(s.TimeDomain.MeanPower),
			MedianPower: Finite(s.TimeDomain.MedianPower),
			MaxPower:    Finite(s.TimeDomain.MaxPower),
			MinPower:    Finite(s.TimeDomain.MinPower),
			StdDev:      Finite(s.TimeDomain.StdDev),
			SNREstimate: Finite(s.TimeDomain.SNREstimate),
		}

		s.FirstSamples = make([]Complex, len(m.Sample.FirstSamples))
		for i, v := range m.Sample.FirstSamples {
			s.FirstSamples[i] = Complex{Real: Finite(v.Real), Imag: Finite(v.Imag)}
		}

		if fd := m.Sample.FrequencyDomain; fd != nil {
			s.FrequencyDomain = &FrequencyDomain{
				PeakFreqMHz: Finite(fd.PeakFreqMHz),
				PeakPower:   Finite(fd.PeakPower),
			}
		}
		c.Sample = &s
	}

	if m.Summary != nil {
		s := SummaryData{
			TotalSamples:       m.Summary.TotalSamples,
			OverallMeanPower:   Finite(m.Summary.OverallMeanPower),
			OverallMedianPower: Finite(m.Summary.OverallMedianPower),
			OverallMaxPower:    Finite(m.Summary.OverallMaxPower),
			OverallMinPower:    Finite(m.Summary.OverallMinPower),
			OverallStdDev:      Finite(m.Summary.OverallStdDev),
			OverallSNR:         Finite(m.Summary.OverallSNR),
		}
		c.Summary = &s
	}

	if m.SpectrumDB != nil {
		c.SpectrumDB = make([]float64, len(m.SpectrumDB))
		for i, v := range m.SpectrumDB {
			c.SpectrumDB[i] = Finite(v)
		}
	}

	return c
}
