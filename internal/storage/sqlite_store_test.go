package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/radio-publisher/internal/message"
	"github.com/roman-kulish/radio-publisher/internal/sdr"
	"github.com/roman-kulish/radio-publisher/internal/spectrum"
	"github.com/roman-kulish/radio-publisher/internal/stats"
)

func newTestStore(t *testing.T) *SqliteStore {
	t.Helper()

	s := NewSqliteStore(filepath.Join(t.TempDir(), "archive.sqlite"))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func encoded(t *testing.T, m *message.Message) (*message.Message, []byte) {
	t.Helper()

	payload, err := message.Encode(m)
	require.NoError(t, err)
	return m, payload
}

func testMessages(t *testing.T, base time.Time) []*message.Message {
	t.Helper()

	tick := base
	b := message.NewBuilder(message.WithClock(func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}))

	block := &sdr.Block{
		Samples:         make([]complex128, 8),
		CenterFrequency: 433.92e6,
		SampleRate:      1e6,
		Simulated:       true,
	}
	info := sdr.Info{CenterFrequency: 433.92e6, SampleRate: 1e6, Simulated: true}

	return []*message.Message{
		b.Sample(block, 1, stats.BlockStats{}, nil, spectrum.Frame{-10, -20, -30, -40}),
		b.Sample(block, 2, stats.BlockStats{}, nil, nil),
		b.Sample(block, 3, stats.BlockStats{}, nil, spectrum.Frame{-11, -21, -31, -41}),
		b.Summary(info, stats.RollingStats{TotalSamples: 24}, spectrum.Frame{-1, -2, -3, -4}),
	}
}

func TestSqliteStore_Sessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id1, err := s.CreateSession(ctx, "RTL-SDR", "0", false, map[string]int{"sampleRate": 2048000})
	require.NoError(t, err)
	id2, err := s.CreateSession(ctx, "simulator", "peaks", true, nil)
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	sess, err := s.Session(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, "RTL-SDR", sess.DeviceType)
	assert.Equal(t, "0", sess.DeviceID)
	assert.False(t, sess.Simulated)
	require.NotNil(t, sess.Config)
	assert.JSONEq(t, `{"sampleRate":2048000}`, *sess.Config)
	assert.WithinDuration(t, time.Now(), sess.StartTime, time.Minute)

	sessions, err := s.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.True(t, sessions[1].Simulated)
	assert.Nil(t, sessions[1].Config)

	_, err = s.Session(ctx, 999)
	assert.Error(t, err)
}

func TestSqliteStore_StoreAndReadSpectra(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Unix(1700000000, 0)

	id, err := s.CreateSession(ctx, "simulator", "peaks", true, nil)
	require.NoError(t, err)

	var records []*MessageRecord
	for _, m := range testMessages(t, base) {
		records = append(records, NewMessageRecord(encoded(t, m)))
	}
	require.NoError(t, s.StoreMessages(ctx, id, records))

	n, err := s.CountMessages(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	reader, err := s.ReadSpectra(ctx, id)
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, id, reader.Session().ID)

	var spans []*spectrum.Span
	for reader.Next(ctx) {
		spans = append(spans, reader.Current())
	}
	require.NoError(t, reader.Error())

	// the second sample has no spectrum
	require.Len(t, spans, 3)
	assert.Equal(t, []float64{-10, -20, -30, -40}, spans[0].Powers)
	assert.Equal(t, []float64{-1, -2, -3, -4}, spans[2].Powers)
	assert.Equal(t, base.Add(time.Second).UTC(), spans[0].Timestamp)
	assert.InDelta(t, 433.42e6, spans[0].FrequencyStart, 1e-3)
	assert.InDelta(t, 434.42e6, spans[0].FrequencyEnd, 1e-3)
	assert.InDelta(t, 250e3, spans[0].BinWidth(), 1e-6)
}

func TestSqliteStore_ReadSpectraFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Unix(1700000000, 0)

	id, err := s.CreateSession(ctx, "simulator", "peaks", true, nil)
	require.NoError(t, err)

	var records []*MessageRecord
	for _, m := range testMessages(t, base) {
		records = append(records, NewMessageRecord(encoded(t, m)))
	}
	require.NoError(t, s.StoreMessages(ctx, id, records))

	count := func(opts ...ReaderOption) int {
		reader, err := s.ReadSpectra(ctx, id, opts...)
		require.NoError(t, err)
		defer reader.Close()

		n := 0
		for reader.Next(ctx) {
			n++
		}
		require.NoError(t, reader.Error())
		return n
	}

	assert.Equal(t, 1, count(WithMessageType(message.TypeSummary)))
	assert.Equal(t, 2, count(WithMessageType(message.TypeSample)))
	assert.Equal(t, 2, count(WithStartTime(base.Add(2*time.Second))))
	assert.Equal(t, 1, count(WithEndTime(base.Add(time.Second))))
	assert.Equal(t, 1, count(WithTimeRange(base.Add(3*time.Second), base.Add(3*time.Second))))

	_, err = s.ReadSpectra(ctx, id, WithTimeRange(base.Add(time.Hour), base))
	assert.Error(t, err)

	_, err = s.ReadSpectra(ctx, 0)
	assert.Error(t, err)
}

func TestSqliteStore_StoreMessagesEmpty(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.StoreMessages(context.Background(), 1, nil))
}

func TestSqliteStore_CloseIdempotent(t *testing.T) {
	s := NewSqliteStore(filepath.Join(t.TempDir(), "archive.sqlite"))
	_, err := s.CreateSession(context.Background(), "simulator", "peaks", true, "raw config")
	require.NoError(t, err)

	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}

func TestRecorder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := NewRecorder(s, WithBatchSize(3), WithSessionConfig("mode=peaks"))

	msgs := testMessages(t, time.Unix(1700000000, 0))
	m, payload := encoded(t, msgs[0])
	assert.ErrorIs(t, r.Record(ctx, m, payload), ErrNoSession)

	require.NoError(t, r.Begin(ctx, sdr.Info{Device: "simulator", DeviceID: "peaks", Simulated: true}))
	id := r.SessionID()
	require.NotZero(t, id)

	for _, msg := range msgs {
		m, payload := encoded(t, msg)
		require.NoError(t, r.Record(ctx, m, payload))
	}

	// one full batch written, one message pending
	n, err := s.CountMessages(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, r.Close())
	n, err = s.CountMessages(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	sess, err := s.Session(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "simulator", sess.DeviceType)
	assert.Equal(t, "mode=peaks", *sess.Config)
}
