package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/radio-publisher/internal/broker"
	"github.com/roman-kulish/radio-publisher/internal/message"
	"github.com/roman-kulish/radio-publisher/internal/sdr"
	"github.com/roman-kulish/radio-publisher/internal/sdr/driver"
)

func newTestDriver(t *testing.T, pub broker.Publisher, sim sdr.Opener, options ...func(d *Driver)) *Driver {
	t.Helper()

	options = append([]func(d *Driver){WithClock(newFakeClock())}, options...)
	d, err := New(pub, sim, options...)
	require.NoError(t, err)
	return d
}

func TestDriver_TenReadsPublishSamplesThenSummary(t *testing.T) {
	pub := &fakePublisher{}
	src := newFakeSource()
	archive := &fakeArchive{}

	d := newTestDriver(t, pub, src.opener(), WithMaxReads(10), WithArchive(archive))
	require.NoError(t, d.Run(context.Background()))

	messages := pub.messages()
	require.Len(t, messages, 11)

	for i, m := range messages[:10] {
		require.Equal(t, message.TypeSample, m.Type, "message %d", i)
		assert.Equal(t, i+1, m.Sample.ReadNumber)
		assert.Equal(t, sdr.DefaultBlockSize, m.Sample.SampleCount)
		assert.Len(t, m.SpectrumDB, sdr.DefaultBlockSize)
		assert.True(t, m.Simulated)
	}

	summary := messages[10]
	require.Equal(t, message.TypeSummary, summary.Type)
	assert.Equal(t, 10*sdr.DefaultBlockSize, summary.Summary.TotalSamples)
	assert.Len(t, summary.SpectrumDB, sdr.DefaultBlockSize)

	for i := 1; i < len(messages); i++ {
		assert.GreaterOrEqual(t, messages[i].Timestamp, messages[i-1].Timestamp)
	}

	// ten sample reads plus the fresh summary block
	assert.Equal(t, int32(11), src.reads.Load())
	assert.Equal(t, int32(1), src.closes.Load())
	assert.Equal(t, 1, pub.disconnects)
	assert.Len(t, archive.recorded, 11)
	assert.Equal(t, 1, archive.began)
	assert.True(t, archive.info.Simulated)
	assert.Equal(t, StateShutdown, d.State())
}

func TestDriver_SummaryWithoutFreshBlock(t *testing.T) {
	pub := &fakePublisher{}
	src := newFakeSource()

	d := newTestDriver(t, pub, src.opener(), WithMaxReads(4), WithSummary(2, 1), WithFreshSummaryBlock(false))
	require.NoError(t, d.Run(context.Background()))

	messages := pub.messages()
	require.Len(t, messages, 6)
	assert.Equal(t, message.TypeSummary, messages[2].Type)
	assert.Equal(t, message.TypeSummary, messages[5].Type)
	assert.Nil(t, messages[5].SpectrumDB)
	assert.Equal(t, sdr.DefaultBlockSize, messages[5].Summary.TotalSamples)
	assert.Equal(t, int32(4), src.reads.Load())
}

func TestDriver_FailedFreshBlockStillSummarises(t *testing.T) {
	pub := &fakePublisher{}
	src := newFakeSource()
	src.readFn = func(ctx context.Context, call, n int) (*sdr.Block, error) {
		if call == 3 {
			return nil, errors.New("transient")
		}
		return src.sim.Read(ctx, n)
	}

	d := newTestDriver(t, pub, src.opener(), WithMaxReads(2), WithSummary(2, 10))
	require.NoError(t, d.Run(context.Background()))

	messages := pub.messages()
	require.Len(t, messages, 3)
	assert.Equal(t, message.TypeSummary, messages[2].Type)
	assert.Nil(t, messages[2].SpectrumDB)
}

func TestDriver_ShortBlockEndsSession(t *testing.T) {
	pub := &fakePublisher{}
	src := newFakeSource()
	src.readFn = func(ctx context.Context, call, n int) (*sdr.Block, error) {
		if call == 2 {
			return src.sim.Read(ctx, n/2)
		}
		return src.sim.Read(ctx, n)
	}

	d := newTestDriver(t, pub, src.opener(), WithMaxReads(5))
	err := d.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read 2")
	assert.Len(t, pub.messages(), 1)
	assert.Equal(t, int32(1), src.closes.Load())
}

func TestDriver_ProbeExhaustionFallsBackToSimulator(t *testing.T) {
	pub := &fakePublisher{}
	src := newFakeSource()
	clock := newFakeClock()

	var probes atomic.Int32
	hardware := func(context.Context) (sdr.Source, error) {
		probes.Add(1)
		return nil, driver.NewDeviceError("open", "RTL-SDR", errors.New("usb_claim_interface error -6"))
	}

	d := newTestDriver(t, pub, src.opener(), WithClock(clock), WithHardware(hardware), WithMaxReads(12))
	require.NoError(t, d.Run(context.Background()))

	assert.Equal(t, int32(3), probes.Load())
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, clock.slept())

	messages := pub.messages()
	require.Len(t, messages, 13)
	for _, m := range messages {
		assert.True(t, m.Simulated)
	}
}

func TestDriver_DriverUnavailableSkipsRetries(t *testing.T) {
	pub := &fakePublisher{}
	src := newFakeSource()
	clock := newFakeClock()

	var probes atomic.Int32
	hardware := func(context.Context) (sdr.Source, error) {
		probes.Add(1)
		return nil, fmt.Errorf("%w: built without rtlsdr tag", driver.ErrDriverUnavailable)
	}

	d := newTestDriver(t, pub, src.opener(), WithClock(clock), WithHardware(hardware), WithMaxReads(1))
	require.NoError(t, d.Run(context.Background()))

	assert.Equal(t, int32(1), probes.Load())
	assert.Empty(t, clock.slept())
	assert.Len(t, pub.messages(), 1)
}

func TestDriver_HardwareFoundOnRetry(t *testing.T) {
	pub := &fakePublisher{}
	hw := newFakeSource()
	hw.info = sdr.Info{Device: "RTL-SDR", DeviceID: "0", CenterFrequency: 100e6, SampleRate: 2.048e6}
	hw.readFn = func(_ context.Context, _, n int) (*sdr.Block, error) {
		return &sdr.Block{Samples: make([]complex128, n), CenterFrequency: 100e6, SampleRate: 2.048e6}, nil
	}

	var probes atomic.Int32
	hardware := func(context.Context) (sdr.Source, error) {
		if probes.Add(1) == 1 {
			return nil, errors.New("device busy")
		}
		return hw, nil
	}

	sim := newFakeSource()
	d := newTestDriver(t, pub, sim.opener(), WithHardware(hardware), WithMaxReads(2))
	require.NoError(t, d.Run(context.Background()))

	assert.Equal(t, int32(2), probes.Load())
	assert.Equal(t, int32(0), sim.reads.Load())
	assert.Equal(t, int32(1), hw.closes.Load())

	for _, m := range pub.messages() {
		assert.False(t, m.Simulated)
	}
}

func TestDriver_SendFailureIsLoggedOnceAndStreamingContinues(t *testing.T) {
	pub := &fakePublisher{failSends: map[int]error{3: broker.ErrSendTimeout}}
	src := newFakeSource()
	logs := &recordingHandler{}

	d := newTestDriver(t, pub, src.opener(), WithMaxReads(5), WithLogger(slog.New(logs)))
	require.NoError(t, d.Run(context.Background()))

	assert.Equal(t, 1, logs.count(slog.LevelError, "sending message failed"))
	assert.Equal(t, 5, pub.sends)

	var reads []int
	for _, m := range pub.messages() {
		reads = append(reads, m.Sample.ReadNumber)
	}
	assert.Equal(t, []int{1, 2, 4, 5}, reads)
}

func TestDriver_InterruptDuringBlockedRead(t *testing.T) {
	pub := &fakePublisher{}
	src := newFakeSource()
	blocked := make(chan struct{})
	src.readFn = func(ctx context.Context, call, n int) (*sdr.Block, error) {
		if call == 1 {
			return src.sim.Read(ctx, n)
		}
		close(blocked)
		<-ctx.Done()
		return nil, ctx.Err()
	}

	d := newTestDriver(t, pub, src.opener())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- d.Run(ctx)
	}()

	select {
	case <-blocked:
	case <-time.After(5 * time.Second):
		t.Fatal("driver never reached the second read")
	}
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("driver did not stop after cancellation")
	}

	assert.Equal(t, int32(1), src.closes.Load())
	assert.Equal(t, 1, pub.disconnects)
	assert.Len(t, pub.messages(), 1)
}

func TestDriver_ReadErrorTerminatesAfterCleanup(t *testing.T) {
	pub := &fakePublisher{}
	src := newFakeSource()
	readErr := driver.NewDeviceError("read", "RTL-SDR", sdr.ErrDeviceStopped)
	src.readFn = func(ctx context.Context, call, n int) (*sdr.Block, error) {
		if call == 3 {
			return nil, readErr
		}
		return src.sim.Read(ctx, n)
	}

	d := newTestDriver(t, pub, src.opener())
	err := d.Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, sdr.ErrDeviceStopped)
	assert.Equal(t, int32(1), src.closes.Load())
	assert.Equal(t, 1, pub.disconnects)
	assert.Len(t, pub.messages(), 2)
}

func TestDriver_ConnectFailure(t *testing.T) {
	pub := &fakePublisher{connectErr: errors.New("connection refused")}
	src := newFakeSource()

	var probes atomic.Int32
	hardware := func(context.Context) (sdr.Source, error) {
		probes.Add(1)
		return nil, errors.New("unreachable")
	}

	d := newTestDriver(t, pub, src.opener(), WithHardware(hardware))
	err := d.Run(context.Background())

	assert.ErrorIs(t, err, ErrConnect)
	assert.Equal(t, int32(0), probes.Load())
	assert.Equal(t, int32(0), src.reads.Load())
	assert.Equal(t, 1, pub.disconnects)
}

func TestDriver_IntervalPacing(t *testing.T) {
	pub := &fakePublisher{}
	src := newFakeSource()
	clock := newFakeClock()

	d := newTestDriver(t, pub, src.opener(), WithClock(clock), WithMaxReads(3), WithInterval(time.Second))
	require.NoError(t, d.Run(context.Background()))

	assert.Equal(t, []time.Duration{time.Second, time.Second}, clock.slept())
}

func TestNew_Invalid(t *testing.T) {
	src := newFakeSource()

	_, err := New(nil, src.opener())
	assert.Error(t, err)

	_, err = New(&fakePublisher{}, nil)
	assert.Error(t, err)

	_, err = New(&fakePublisher{}, src.opener(), WithBlockSize(0))
	assert.Error(t, err)

	_, err = New(&fakePublisher{}, src.opener(), WithMaxReads(-1))
	assert.Error(t, err)

	_, err = New(&fakePublisher{}, src.opener(), WithRetryPolicy(RetryPolicy{}))
	assert.Error(t, err)
}
