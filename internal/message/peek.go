package message

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/tidwall/gjson"
)

// ErrInvalidPayload is returned by Peek for malformed JSON
var ErrInvalidPayload = errors.New("invalid message payload")

// Header is the routing part of a message, extracted without decoding the data
type Header struct {
	Type       Type
	Timestamp  float64
	CenterFreq float64
	SampleRate float64
	Simulated  bool
	ReadNumber int // 0 for summaries
}

// Time converts the epoch seconds timestamp, rounded to the microsecond
func (h Header) Time() time.Time {
	sec, frac := math.Modf(h.Timestamp)
	return time.Unix(int64(sec), int64(math.Round(frac*1e6))*1e3).UTC()
}

// Peek reads the message header from an encoded payload
func Peek(payload []byte) (Header, error) {
	if !gjson.ValidBytes(payload) {
		return Header{}, ErrInvalidPayload
	}

	fields := gjson.GetManyBytes(payload, "type", "timestamp", "center_freq", "sample_rate", "simulated", "data.read_number")
	if !fields[0].Exists() {
		return Header{}, fmt.Errorf("%w: missing type", ErrInvalidPayload)
	}

	return Header{
		Type:       Type(fields[0].String()),
		Timestamp:  fields[1].Float(),
		CenterFreq: fields[2].Float(),
		SampleRate: fields[3].Float(),
		Simulated:  fields[4].Bool(),
		ReadNumber: int(fields[5].Int()),
	}, nil
}

// PeekSpectrum returns the spectrum_db array of an encoded payload, nil when absent
func PeekSpectrum(payload []byte) []float64 {
	result := gjson.GetBytes(payload, "spectrum_db")
	if !result.IsArray() {
		return nil
	}

	values := result.Array()
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v.Float()
	}
	return out
}
