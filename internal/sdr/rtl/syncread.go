package rtl

import (
	"context"
	"sync"

	"github.com/roman-kulish/radio-publisher/internal/sdr"
)

// syncDevice is the blocking part of a librtlsdr handle
type syncDevice interface {
	ReadSync(buf []uint8, leng int) (int, error)
	Close() error
}

// syncReader runs blocking reads off the caller's goroutine. A cancelled
// Read returns at once and leaves the pending read to finish on its own;
// closing the device is what unblocks it.
type syncReader struct {
	dev syncDevice

	busy chan struct{} // held while a ReadSync is in flight

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

func newSyncReader(dev syncDevice) *syncReader {
	return &syncReader{
		dev:  dev,
		busy: make(chan struct{}, 1),
	}
}

type readResult struct {
	n   int
	err error
}

// read fills buf and returns the number of bytes read. buf must not be
// reused after a cancelled read.
func (r *syncReader) read(ctx context.Context, buf []byte) (int, error) {
	select {
	case r.busy <- struct{}{}:
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.busy
		return 0, sdr.ErrDeviceStopped
	}
	if err := ctx.Err(); err != nil {
		r.mu.Unlock()
		<-r.busy
		return 0, err
	}

	done := make(chan readResult, 1)
	go func() {
		n, err := r.dev.ReadSync(buf, len(buf))
		<-r.busy
		done <- readResult{n, err}
	}()
	r.mu.Unlock()

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case res := <-done:
		return res.n, res.err
	}
}

// close marks the reader stopped and closes the device, failing any read in
// flight. Only the first call reaches the device.
func (r *syncReader) close() error {
	var err error
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()

		err = r.dev.Close()
	})
	return err
}
