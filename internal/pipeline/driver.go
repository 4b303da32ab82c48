package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mdobak/go-xerrors"

	"github.com/roman-kulish/radio-publisher/internal/broker"
	"github.com/roman-kulish/radio-publisher/internal/message"
	"github.com/roman-kulish/radio-publisher/internal/sdr"
	"github.com/roman-kulish/radio-publisher/internal/sdr/driver"
	"github.com/roman-kulish/radio-publisher/internal/spectrum"
	"github.com/roman-kulish/radio-publisher/internal/stats"
)

// ErrConnect is returned by Run when the publisher cannot connect
var ErrConnect = errors.New("pipeline: publisher connect failed")

type State int32

const (
	StateInit State = iota
	StateDeviceProbe
	StateStreaming
	StateShutdown
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateDeviceProbe:
		return "device-probe"
	case StateStreaming:
		return "streaming"
	case StateShutdown:
		return "shutdown"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Archive receives every message after it was handed to the publisher.
// Begin is called once the source is known.
type Archive interface {
	Begin(ctx context.Context, info sdr.Info) error
	Record(ctx context.Context, m *message.Message, payload []byte) error
}

// Driver runs one acquisition session: it connects the publisher, acquires a
// source and streams sample and summary messages until the context is
// cancelled, maxReads is reached or the source fails.
type Driver struct {
	publisher broker.Publisher
	hardware  sdr.Opener
	simulator sdr.Opener

	logger  *slog.Logger
	clock   Clock
	retry   RetryPolicy
	engine  *spectrum.Engine
	archive Archive

	destination  string
	blockSize    int
	windowBlocks int
	summaryEvery int
	maxReads     int
	interval     time.Duration
	freshSummary bool
	stride       int

	state atomic.Int32
}

func WithLogger(logger *slog.Logger) func(d *Driver) {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func WithClock(clock Clock) func(d *Driver) {
	return func(d *Driver) {
		d.clock = clock
	}
}

func WithRetryPolicy(policy RetryPolicy) func(d *Driver) {
	return func(d *Driver) {
		d.retry = policy
	}
}

// WithHardware sets the opener probed before falling back to the simulator.
// Without it the driver streams simulated data straight away.
func WithHardware(opener sdr.Opener) func(d *Driver) {
	return func(d *Driver) {
		d.hardware = opener
	}
}

func WithEngine(engine *spectrum.Engine) func(d *Driver) {
	return func(d *Driver) {
		d.engine = engine
	}
}

func WithArchive(archive Archive) func(d *Driver) {
	return func(d *Driver) {
		d.archive = archive
	}
}

func WithDestination(destination string) func(d *Driver) {
	return func(d *Driver) {
		d.destination = destination
	}
}

func WithBlockSize(n int) func(d *Driver) {
	return func(d *Driver) {
		d.blockSize = n
	}
}

// WithSummary sets the summary cadence in reads and the rolling window in blocks
func WithSummary(every, windowBlocks int) func(d *Driver) {
	return func(d *Driver) {
		d.summaryEvery = every
		d.windowBlocks = windowBlocks
	}
}

// WithFreshSummaryBlock controls whether a dedicated block is read for the summary spectrum
func WithFreshSummaryBlock(enabled bool) func(d *Driver) {
	return func(d *Driver) {
		d.freshSummary = enabled
	}
}

// WithMaxReads stops the run after n reads, 0 streams until cancelled
func WithMaxReads(n int) func(d *Driver) {
	return func(d *Driver) {
		d.maxReads = n
	}
}

// WithInterval pauses between reads
func WithInterval(interval time.Duration) func(d *Driver) {
	return func(d *Driver) {
		d.interval = interval
	}
}

func WithSpectrumStride(stride int) func(d *Driver) {
	return func(d *Driver) {
		d.stride = stride
	}
}

func New(publisher broker.Publisher, simulator sdr.Opener, options ...func(d *Driver)) (*Driver, error) {
	d := Driver{
		publisher:    publisher,
		simulator:    simulator,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
		clock:        SystemClock,
		retry:        DefaultRetryPolicy,
		destination:  broker.DefaultDestination,
		blockSize:    sdr.DefaultBlockSize,
		windowBlocks: stats.DefaultWindowBlocks,
		summaryEvery: stats.DefaultSummaryEvery,
		freshSummary: true,
		stride:       1,
	}

	for _, option := range options {
		option(&d)
	}

	if d.publisher == nil {
		return nil, errors.New("pipeline: publisher is required")
	}
	if d.simulator == nil {
		return nil, errors.New("pipeline: simulator opener is required")
	}
	if d.blockSize <= 0 {
		return nil, fmt.Errorf("pipeline: block size must be positive: %d", d.blockSize)
	}
	if d.maxReads < 0 {
		return nil, fmt.Errorf("pipeline: max reads must not be negative: %d", d.maxReads)
	}
	if err := d.retry.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if d.engine == nil {
		d.engine = spectrum.NewEngine()
	}

	return &d, nil
}

// State returns the current lifecycle state
func (d *Driver) State() State {
	return State(d.state.Load())
}

func (d *Driver) setState(s State) {
	d.state.Store(int32(s))
	d.logger.Debug("state changed", slog.String("state", s.String()))
}

// Run blocks until the session ends. Cancellation of ctx is a clean exit and
// returns nil. Publisher and source are released exactly once on every path.
func (d *Driver) Run(ctx context.Context) error {
	d.setState(StateInit)
	defer d.release("publisher", d.publisher.Disconnect)

	if err := d.publisher.Connect(ctx); err != nil {
		d.setState(StateShutdown)
		if ctx.Err() != nil {
			d.logger.Info("interrupted while connecting")
			return nil
		}
		return fmt.Errorf("%w: %w", ErrConnect, err)
	}

	d.setState(StateDeviceProbe)
	source, err := d.acquire(ctx)
	if err != nil {
		d.setState(StateShutdown)
		if ctx.Err() != nil {
			d.logger.Info("interrupted while probing for a device")
			return nil
		}
		return err
	}
	defer d.release("source", source.Close)

	if d.archive != nil {
		if err = d.archive.Begin(ctx, source.Info()); err != nil {
			d.logger.Warn("archiving disabled", slog.Any("error", err))
			d.archive = nil
		}
	}

	d.setState(StateStreaming)
	err = d.stream(ctx, source)
	d.setState(StateShutdown)

	st := d.publisher.Stats()
	d.logger.Info(fmt.Sprintf("published %s messages (%s), %s failed",
		humanize.Comma(int64(st.Sent)),
		humanize.Bytes(st.BytesSent),
		humanize.Comma(int64(st.Failed))))

	if err != nil {
		d.logger.Error("streaming stopped", slog.Any("error", xerrors.New(err)))
		return err
	}
	return nil
}

func (d *Driver) release(name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		d.logger.Warn(fmt.Sprintf("releasing %s", name), slog.Any("error", err))
	}
}

// acquire probes the hardware opener under the retry policy and falls back to
// the simulator for the rest of the run when the device cannot be opened
func (d *Driver) acquire(ctx context.Context) (sdr.Source, error) {
	if d.hardware != nil {
		var source sdr.Source
		err := d.retry.Do(ctx, d.clock, func(attempt int) error {
			s, err := d.hardware(ctx)
			if err != nil {
				d.logger.Warn("device not available",
					slog.Int("attempt", attempt),
					slog.Int("maxAttempts", d.retry.MaxAttempts),
					slog.Any("error", err))

				if errors.Is(err, driver.ErrDriverUnavailable) {
					return Permanent(err)
				}
				return err
			}
			source = s
			return nil
		})

		if err == nil {
			info := source.Info()
			d.logger.Info(fmt.Sprintf("device found: %s, tuned to %s at %s",
				info.Device,
				humanize.SIWithDigits(info.CenterFrequency, 3, "Hz"),
				humanize.SIWithDigits(info.SampleRate, 3, "S/s")),
				slog.String("deviceId", info.DeviceID))
			return source, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		d.logger.Warn("falling back to simulated data", slog.Any("error", err))
	}

	source, err := d.simulator(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening simulator: %w", err)
	}

	info := source.Info()
	d.logger.Info(fmt.Sprintf("streaming simulated data (%s), %s at %s",
		info.DeviceID,
		humanize.SIWithDigits(info.CenterFrequency, 3, "Hz"),
		humanize.SIWithDigits(info.SampleRate, 3, "S/s")))

	return source, nil
}

func (d *Driver) stream(ctx context.Context, source sdr.Source) error {
	agg, err := stats.NewAggregator(d.blockSize, d.windowBlocks, d.summaryEvery)
	if err != nil {
		return err
	}

	builderOptions := []func(b *message.Builder){
		message.WithClock(d.clock.Now),
		message.WithSpectrumStride(d.stride),
	}
	if d.maxReads > 0 {
		builderOptions = append(builderOptions, message.WithTotalReads(d.maxReads))
	}
	builder := message.NewBuilder(builderOptions...)

	d.logger.Debug("streaming",
		slog.Int("blockSize", d.blockSize),
		slog.Int("windowBlocks", d.windowBlocks),
		slog.String("window", d.engine.Window().String()))

	windowFull := false
	for read := 1; d.maxReads == 0 || read <= d.maxReads; read++ {
		block, err := source.Read(ctx, d.blockSize)
		if err != nil {
			if ctx.Err() != nil {
				d.logger.Info("interrupted", slog.Int("reads", read-1))
				return nil
			}
			return fmt.Errorf("read %d: %w", read, err)
		}

		if block.Len() != d.blockSize {
			return fmt.Errorf("read %d: %d samples, expected %d", read, block.Len(), d.blockSize)
		}

		frame := d.engine.Compute(block.Samples)
		st := agg.Observe(block.Samples)

		if !windowFull && agg.WindowFull() {
			windowFull = true
			d.logger.Info(fmt.Sprintf("rolling window full after %s reads", humanize.Comma(int64(read))))
		}

		var peakRef *stats.Peak
		if peak, ok := stats.FindPeak(block.Samples, block.SampleRate); ok {
			peakRef = &peak
		}

		d.logger.Info(fmt.Sprintf("read %s: mean power %.4f, SNR %.2f, peak %s",
			humanize.Comma(int64(read)), st.Mean, st.SNR, formatPeak(peakRef)))

		d.publish(ctx, builder.Sample(block, read, st, peakRef, frame))

		if agg.Due(read) {
			if err := d.summarize(ctx, source, builder, agg); err != nil {
				return err
			}
		}

		if ctx.Err() != nil {
			d.logger.Info("interrupted", slog.Int("reads", read))
			return nil
		}

		if d.interval > 0 && read != d.maxReads {
			if err := d.clock.Sleep(ctx, d.interval); err != nil {
				d.logger.Info("interrupted", slog.Int("reads", read))
				return nil
			}
		}
	}

	d.logger.Info(fmt.Sprintf("completed %s reads", humanize.Comma(int64(d.maxReads))))
	return nil
}

// summarize publishes the rolling statistics. A failed fresh read still
// produces a summary, only without a spectrum.
func (d *Driver) summarize(ctx context.Context, source sdr.Source, builder *message.Builder, agg *stats.Aggregator) error {
	rolling := agg.Rolling()

	var frame spectrum.Frame
	if d.freshSummary {
		block, err := source.Read(ctx, d.blockSize)
		switch {
		case err == nil:
			frame = d.engine.Compute(block.Samples)
		case ctx.Err() != nil:
			return nil
		default:
			d.logger.Warn("summary block read failed", slog.Any("error", err))
		}
	}

	d.logger.Info(fmt.Sprintf("summary over %s samples: mean power %.4f, median %.4f, SNR %.2f",
		humanize.Comma(int64(rolling.TotalSamples)), rolling.Mean, rolling.Median, rolling.SNR))

	d.publish(ctx, builder.Summary(source.Info(), rolling, frame))
	return nil
}

// publish encodes, sends and archives m. Failures are logged once and never
// interrupt streaming.
func (d *Driver) publish(ctx context.Context, m *message.Message) {
	payload, err := message.Encode(m)
	if err != nil {
		d.logger.Error("encoding message", slog.String("type", m.Type.String()), slog.Any("error", err))
		return
	}

	if err = d.publisher.Send(ctx, d.destination, payload); err != nil {
		if ctx.Err() == nil {
			d.logger.Error("sending message failed",
				slog.String("type", m.Type.String()),
				slog.String("destination", d.destination),
				slog.Any("error", err))
		}
	} else {
		d.logger.Debug("message sent",
			slog.String("type", m.Type.String()),
			slog.String("size", humanize.Bytes(uint64(len(payload)))))
	}

	if d.archive != nil {
		if err = d.archive.Record(ctx, m, payload); err != nil {
			d.logger.Warn("archiving message", slog.Any("error", err))
		}
	}
}

func formatPeak(p *stats.Peak) string {
	if p == nil {
		return "n/a"
	}
	return fmt.Sprintf("%s (%.1f)", humanize.SIWithDigits(p.FrequencyHz, 3, "Hz"), p.Power)
}
