package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/roman-kulish/radio-publisher/internal/message"
	"github.com/roman-kulish/radio-publisher/internal/sdr"
)

const defaultBatchSize = 50

// ErrNoSession is returned by Record before Begin
var ErrNoSession = errors.New("storage: recorder has no session")

// WithBatchSize sets how many messages are buffered before they are written
// in a single transaction
func WithBatchSize(size int) func(*Recorder) {
	return func(r *Recorder) {
		if size > 0 {
			r.batchSize = size
		}
	}
}

// WithSessionConfig attaches the receiver configuration to the session
func WithSessionConfig(config any) func(*Recorder) {
	return func(r *Recorder) {
		r.config = config
	}
}

// Recorder archives the messages of one run into a Store
type Recorder struct {
	store     Store
	config    any
	batchSize int

	mu        sync.Mutex
	sessionID int64
	pending   []*MessageRecord
}

func NewRecorder(store Store, options ...func(*Recorder)) *Recorder {
	r := Recorder{
		store:     store,
		batchSize: defaultBatchSize,
	}

	for _, option := range options {
		option(&r)
	}

	return &r
}

// Begin creates the session for the source the run streams from
func (r *Recorder) Begin(ctx context.Context, info sdr.Info) error {
	id, err := r.store.CreateSession(ctx, info.Device, info.DeviceID, info.Simulated, r.config)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	r.mu.Lock()
	r.sessionID = id
	r.mu.Unlock()
	return nil
}

// SessionID returns the session created by Begin, 0 before that
func (r *Recorder) SessionID() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessionID
}

// Record buffers the message and writes the buffer once it is full
func (r *Recorder) Record(ctx context.Context, m *message.Message, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessionID == 0 {
		return ErrNoSession
	}

	r.pending = append(r.pending, NewMessageRecord(m, payload))
	if len(r.pending) < r.batchSize {
		return nil
	}
	return r.flush(ctx)
}

// Flush writes buffered messages
func (r *Recorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flush(ctx)
}

func (r *Recorder) flush(ctx context.Context) error {
	if len(r.pending) == 0 {
		return nil
	}

	// failed batches are dropped
	batch := r.pending
	r.pending = nil

	if err := r.store.StoreMessages(ctx, r.sessionID, batch); err != nil {
		return fmt.Errorf("storing %d messages: %w", len(batch), err)
	}
	return nil
}

// Close flushes what is left. It does not close the store.
func (r *Recorder) Close() error {
	return r.Flush(context.Background())
}
