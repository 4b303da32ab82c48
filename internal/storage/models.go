package storage

import (
	"database/sql"

	"github.com/roman-kulish/radio-publisher/internal/message"
)

// MessageRecord is one archived outbound message
type MessageRecord struct {
	Timestamp  float64 // epoch seconds, as in the payload
	Type       message.Type
	ReadNumber *int // sample messages only
	CenterFreq float64
	SampleRate float64
	Simulated  bool
	Payload    []byte
}

// NewMessageRecord pairs a message with its encoded payload
func NewMessageRecord(m *message.Message, payload []byte) *MessageRecord {
	r := MessageRecord{
		Timestamp:  m.Timestamp,
		Type:       m.Type,
		CenterFreq: message.Finite(m.CenterFreq),
		SampleRate: message.Finite(m.SampleRate),
		Simulated:  m.Simulated,
		Payload:    payload,
	}
	if m.Sample != nil {
		read := m.Sample.ReadNumber
		r.ReadNumber = &read
	}
	return &r
}

func toNullInt64(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
