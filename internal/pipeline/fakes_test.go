package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roman-kulish/radio-publisher/internal/broker"
	"github.com/roman-kulish/radio-publisher/internal/message"
	"github.com/roman-kulish/radio-publisher/internal/sdr"
)

type fakePublisher struct {
	connectErr error
	failSends  map[int]error // 1-based send number

	mu          sync.Mutex
	payloads    [][]byte
	sends       int
	connects    int
	disconnects int
	stats       broker.Stats
}

func (p *fakePublisher) Connect(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connects++
	return p.connectErr
}

func (p *fakePublisher) Send(_ context.Context, _ string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.sends++
	if err := p.failSends[p.sends]; err != nil {
		p.stats.Failed++
		return err
	}
	p.payloads = append(p.payloads, payload)
	p.stats.Sent++
	p.stats.BytesSent += uint64(len(payload))
	return nil
}

func (p *fakePublisher) Disconnect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disconnects++
	return nil
}

func (p *fakePublisher) Stats() broker.Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func (p *fakePublisher) messages() []*message.Message {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]*message.Message, 0, len(p.payloads))
	for _, payload := range p.payloads {
		m, err := message.Decode(payload)
		if err != nil {
			panic(err)
		}
		out = append(out, m)
	}
	return out
}

// fakeSource delegates reads to readFn, or to a seeded simulator when nil
type fakeSource struct {
	readFn func(ctx context.Context, call, n int) (*sdr.Block, error)
	sim    *sdr.Simulator
	info   sdr.Info

	reads  atomic.Int32
	closes atomic.Int32
}

func newFakeSource() *fakeSource {
	sim := sdr.NewSimulator(sdr.WithSeed(1, 2))
	return &fakeSource{sim: sim, info: sim.Info()}
}

func (s *fakeSource) Read(ctx context.Context, n int) (*sdr.Block, error) {
	call := int(s.reads.Add(1))
	if s.readFn != nil {
		return s.readFn(ctx, call, n)
	}
	return s.sim.Read(ctx, n)
}

func (s *fakeSource) Info() sdr.Info {
	return s.info
}

func (s *fakeSource) Close() error {
	s.closes.Add(1)
	return nil
}

func (s *fakeSource) opener() sdr.Opener {
	return func(context.Context) (sdr.Source, error) {
		return s, nil
	}
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return ctx.Err()
}

func (c *fakeClock) slept() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// recordingHandler keeps every log record for inspection
type recordingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r.Clone())
	return nil
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler {
	return h
}

func (h *recordingHandler) WithGroup(string) slog.Handler {
	return h
}

func (h *recordingHandler) count(level slog.Level, msg string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for _, r := range h.records {
		if r.Level == level && r.Message == msg {
			n++
		}
	}
	return n
}

type fakeArchive struct {
	mu       sync.Mutex
	info     sdr.Info
	began    int
	recorded []message.Type
}

func (a *fakeArchive) Begin(_ context.Context, info sdr.Info) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.info = info
	a.began++
	return nil
}

func (a *fakeArchive) Record(_ context.Context, m *message.Message, _ []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recorded = append(a.recorded, m.Type)
	return nil
}
