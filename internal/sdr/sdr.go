package sdr

import (
	"context"
	"time"
)

const (
	// DefaultSampleRate is 2.048 MS/s, a rate every RTL2832U tuner supports without dropping samples.
	DefaultSampleRate = 2_048_000

	// DefaultCenterFrequency is 100 MHz
	DefaultCenterFrequency = 100_000_000

	// DefaultBlockSize is the number of complex samples in one read
	DefaultBlockSize = 1024
)

// Block is one fixed-size read of complex baseband samples.
// A Block is never modified after the source hands it out.
type Block struct {
	Samples         []complex128
	CenterFrequency float64 // Hz
	SampleRate      float64 // Hz
	Simulated       bool
	Timestamp       time.Time
}

// Len returns the number of samples in the block
func (b *Block) Len() int {
	return len(b.Samples)
}

// Info describes the receiver behind a Source
type Info struct {
	Device          string // "rtl-sdr", "rtl_sdr", "simulator"
	DeviceID        string // serial number, index or generated id
	CenterFrequency float64
	SampleRate      float64
	Simulated       bool
}

// Source produces sample blocks. Read blocks until n samples are available,
// ctx is cancelled, or the device fails. Close is idempotent.
type Source interface {
	Read(ctx context.Context, n int) (*Block, error)
	Info() Info
	Close() error
}

// Opener constructs a Source. Hardware openers fail with *driver.DeviceError
// or driver.ErrDriverUnavailable.
type Opener func(ctx context.Context) (Source, error)
