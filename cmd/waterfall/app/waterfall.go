package app

import (
	"math"
	"time"

	"github.com/roman-kulish/radio-publisher/internal/spectrum"
)

// Waterfall collects archived spans, one image row per span in read order
type Waterfall struct {
	Width, Height                int
	FrequencyMin, FrequencyMax   float64
	TimestampStart, TimestampEnd time.Time
	Bounds                       *SmoothBounds
	Rows                         []*spectrum.Span
}

func NewWaterfall(b *SmoothBounds) *Waterfall {
	return &Waterfall{
		FrequencyMin: math.MaxFloat64,
		FrequencyMax: -math.MaxFloat64,
		Bounds:       b,
	}
}

func (w *Waterfall) Update(span *spectrum.Span) {
	if span == nil || len(span.Powers) == 0 {
		return
	}

	w.Width = max(w.Width, len(span.Powers))
	w.Height++

	w.FrequencyMin = min(w.FrequencyMin, span.FrequencyStart)
	w.FrequencyMax = max(w.FrequencyMax, span.FrequencyEnd)

	if w.TimestampStart.IsZero() || w.TimestampStart.After(span.Timestamp) {
		w.TimestampStart = span.Timestamp
	}
	if w.TimestampEnd.IsZero() || w.TimestampEnd.Before(span.Timestamp) {
		w.TimestampEnd = span.Timestamp
	}

	w.Bounds.Update(span.Powers)
	w.Rows = append(w.Rows, span)
}

// HzPerPixel is the frequency step between adjacent columns
func (w *Waterfall) HzPerPixel() float64 {
	if w.Width == 0 {
		return 0
	}
	return (w.FrequencyMax - w.FrequencyMin) / float64(w.Width)
}

// Power returns the power of row y at column x, NaN where the row's span does
// not cover the column's frequency
func (w *Waterfall) Power(x, y int) float64 {
	span := w.Rows[y]

	freq := w.FrequencyMin + (float64(x)+0.5)*w.HzPerPixel()
	if freq < span.FrequencyStart || freq >= span.FrequencyEnd {
		return math.NaN()
	}

	bin := int((freq - span.FrequencyStart) / span.BinWidth())
	if bin >= len(span.Powers) {
		bin = len(span.Powers) - 1
	}
	return span.Powers[bin]
}
