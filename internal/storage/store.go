package storage

import (
	"context"

	"github.com/roman-kulish/radio-publisher/internal/spectrum"
)

// Store archives published messages per acquisition session and reads their
// spectra back for offline rendering.
type Store interface {
	// CreateSession registers a new acquisition run and returns its identifier.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - deviceType: Receiver in use (e.g., "RTL-SDR", "simulator")
	//   - deviceID: Device index, serial number or simulation mode
	//   - simulated: Whether the run streams simulated samples
	//   - config: Optional receiver configuration. Can be string, []byte, or JSON-serializable object
	CreateSession(ctx context.Context, deviceType, deviceID string, simulated bool, config any) (sessionID int64, err error)

	// Session retrieves a session by its ID.
	Session(ctx context.Context, id int64) (session *spectrum.Session, err error)

	// Sessions returns all sessions ordered by start time.
	Sessions(ctx context.Context) (sessions []*spectrum.Session, err error)

	// StoreMessages saves a batch of messages in a single transaction.
	StoreMessages(ctx context.Context, sessionID int64, records []*MessageRecord) error

	// ReadSpectra iterates over the spectra carried by a session's messages in
	// timestamp order. The returned reader must be closed after use.
	ReadSpectra(ctx context.Context, sessionID int64, opts ...ReaderOption) (SpectrumReader, error)

	// Close releases all database connections. It is safe to call Close multiple times.
	Close() error
}

// SpectrumReader is an iterator over archived spectra
type SpectrumReader interface {
	// Session returns metadata about the session being read.
	Session() *spectrum.Session

	// Next advances to the next spectrum and reports whether there is one.
	Next(context.Context) bool

	// Current returns the spectrum Next advanced to.
	Current() *spectrum.Span

	// Error returns the error that stopped the iteration, if any.
	Error() error

	Close() error
}
