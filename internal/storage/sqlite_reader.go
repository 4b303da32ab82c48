package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roman-kulish/radio-publisher/internal/message"
	"github.com/roman-kulish/radio-publisher/internal/spectrum"
)

// ErrNoData indicates that the reader has been exhausted
var ErrNoData = errors.New("no data available")

// ReaderOption configures a SqliteSpectrumReader with filtering criteria
type ReaderOption func(*SqliteSpectrumReader)

// WithStartTime excludes spectra older than t
func WithStartTime(t time.Time) ReaderOption {
	return func(r *SqliteSpectrumReader) {
		r.startTime = &t
	}
}

// WithEndTime excludes spectra newer than t
func WithEndTime(t time.Time) ReaderOption {
	return func(r *SqliteSpectrumReader) {
		r.endTime = &t
	}
}

// WithTimeRange is WithStartTime and WithEndTime combined
func WithTimeRange(startTime, endTime time.Time) ReaderOption {
	return func(r *SqliteSpectrumReader) {
		r.startTime = &startTime
		r.endTime = &endTime
	}
}

// WithMessageType only reads spectra of the given message type
func WithMessageType(t message.Type) ReaderOption {
	return func(r *SqliteSpectrumReader) {
		r.messageType = &t
	}
}

// SqliteSpectrumReader implements SpectrumReader for the SQLite archive.
// Messages without a spectrum are skipped.
type SqliteSpectrumReader struct {
	db *sql.DB

	sessionID int64
	session   *spectrum.Session

	startTime   *time.Time
	endTime     *time.Time
	messageType *message.Type

	current *spectrum.Span
	rows    *sql.Rows
	err     error
}

func newSqliteSpectrumReader(ctx context.Context, db *sql.DB, sessionID int64, opts ...ReaderOption) (*SqliteSpectrumReader, error) {
	sr := &SqliteSpectrumReader{
		db:        db,
		sessionID: sessionID,
	}
	for _, opt := range opts {
		opt(sr)
	}
	if err := sr.init(ctx); err != nil {
		return nil, fmt.Errorf("initializing reader: %w", err)
	}
	return sr, nil
}

func (sr *SqliteSpectrumReader) init(ctx context.Context) error {
	if sr.db == nil {
		return errors.New("database connection required")
	}
	if sr.sessionID <= 0 {
		return errors.New("session ID required")
	}

	steps := []struct {
		msg string
		fn  func(context.Context) error
	}{
		{msg: "loading session", fn: sr.loadSession},
		{msg: "validating filters", fn: sr.validateFilters},
		{msg: "initializing query", fn: sr.initQuery},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.msg, err)
		}
	}
	return nil
}

func (sr *SqliteSpectrumReader) loadSession(ctx context.Context) (err error) {
	sr.session, err = loadSession(ctx, sr.db, sr.sessionID)
	return
}

func (sr *SqliteSpectrumReader) validateFilters(context.Context) error {
	if sr.startTime != nil && sr.endTime != nil && sr.startTime.After(*sr.endTime) {
		return fmt.Errorf("start time %s is after end time %s", sr.startTime, sr.endTime)
	}
	return nil
}

func (sr *SqliteSpectrumReader) initQuery(ctx context.Context) (err error) {
	lo, hi := epochBounds(sr.startTime, sr.endTime)

	query := selectMessagesSQL
	args := []any{sr.sessionID, lo, hi}
	if sr.messageType != nil {
		query += " AND type = ?"
		args = append(args, sr.messageType.String())
	}
	query += " ORDER BY timestamp, id"

	sr.rows, err = sr.db.QueryContext(ctx, query, args...)
	return
}

func (sr *SqliteSpectrumReader) Session() *spectrum.Session {
	return sr.session
}

func (sr *SqliteSpectrumReader) Next(ctx context.Context) bool {
	if sr.err != nil || sr.rows == nil {
		return false
	}

	for {
		select {
		case <-ctx.Done():
			sr.err = ctx.Err()
			return false
		default:
		}

		if !sr.rows.Next() {
			sr.current = nil
			sr.err = ErrNoData
			return false
		}

		var payload []byte
		if sr.err = sr.rows.Scan(&payload); sr.err != nil {
			sr.err = fmt.Errorf("scanning message: %w", sr.err)
			return false
		}

		powers := message.PeekSpectrum(payload)
		if len(powers) == 0 {
			continue
		}

		header, err := message.Peek(payload)
		if err != nil {
			sr.err = fmt.Errorf("reading message header: %w", err)
			return false
		}

		sr.current = spectrum.NewSpan(header.Time(), header.CenterFreq, header.SampleRate, powers)
		return true
	}
}

func (sr *SqliteSpectrumReader) Current() *spectrum.Span {
	return sr.current
}

func (sr *SqliteSpectrumReader) Error() error {
	if sr.err != nil && !errors.Is(sr.err, ErrNoData) {
		return sr.err
	}
	if sr.rows != nil {
		return sr.rows.Err()
	}
	return nil
}

func (sr *SqliteSpectrumReader) Close() error {
	if sr.rows != nil {
		err := sr.rows.Close()
		sr.current = nil
		sr.rows = nil
		return err
	}
	return nil
}
