package sdr

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roman-kulish/radio-publisher/internal/sdr/driver"
)

// bytesPerSample is the size of one interleaved 8-bit I/Q pair
const bytesPerSample = 2

var (
	// ErrDeviceStopped is returned by Read after the device process has exited or was closed
	ErrDeviceStopped = errors.New("device stopped")

	// ErrBrokenPipe is returned when there's an error reading from stdout or stderr
	ErrBrokenPipe = errors.New("broken pipe")
)

// Handler describes an external tool streaming raw I/Q samples to stdout
type Handler interface {
	Cmd(ctx context.Context) *exec.Cmd
	Decode(dst []complex128, raw []byte) []complex128
	Device() string
	Tuning() (centerFrequency, sampleRate float64)
}

// WithLogger sets the logger for the device
func WithLogger(logger *slog.Logger) func(d *Device) {
	return func(d *Device) {
		if logger == nil {
			return
		}
		d.logger = logger.With(
			slog.String("device", d.handler.Device()),
			slog.String("deviceID", d.deviceID),
		)
	}
}

// Device is a Source backed by an external process such as `rtl_sdr`.
// The process is started by StartDevice and killed by Close or by
// cancellation of a pending Read.
type Device struct {
	deviceID string
	handler  Handler

	cmd    *exec.Cmd
	stdout *bufio.Reader
	cancel context.CancelFunc
	wg     sync.WaitGroup

	readMu    sync.Mutex
	isRunning atomic.Bool
	closeOnce sync.Once
	closeErr  error

	logger *slog.Logger
}

// StartDevice spawns the handler's command and returns a running Device
func StartDevice(ctx context.Context, deviceID string, h Handler, options ...func(d *Device)) (*Device, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	d := Device{
		deviceID: deviceID,
		handler:  h,
		logger:   logger,
	}

	for _, option := range options {
		option(&d)
	}

	ctx, d.cancel = context.WithCancel(ctx)
	d.cmd = h.Cmd(ctx)

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		d.cancel()
		return nil, driver.NewDeviceError("open", h.Device(), fmt.Errorf("error creating stdout pipe: %w", err))
	}

	stderr, err := d.cmd.StderrPipe()
	if err != nil {
		d.cancel()
		return nil, driver.NewDeviceError("open", h.Device(), fmt.Errorf("error creating stderr pipe: %w", err))
	}

	if err = d.cmd.Start(); err != nil {
		d.cancel()
		return nil, driver.NewDeviceError("open", h.Device(), fmt.Errorf("error starting command: %w", err))
	}

	d.stdout = bufio.NewReaderSize(stdout, 64*1024)
	d.isRunning.Store(true)

	d.wg.Add(1)
	go d.handleStderr(stderr)

	d.logger.Info("device process started", slog.String("cmd", d.cmd.String()))

	return &d, nil
}

// Read blocks until n samples have been read from the process output.
// Cancelling ctx kills the process; the device is unusable afterwards.
func (d *Device) Read(ctx context.Context, n int) (*Block, error) {
	d.readMu.Lock()
	defer d.readMu.Unlock()

	if !d.isRunning.Load() {
		return nil, driver.NewDeviceError("read", d.handler.Device(), ErrDeviceStopped)
	}

	raw := make([]byte, n*bytesPerSample)
	done := make(chan error, 1)
	go func() {
		_, err := io.ReadFull(d.stdout, raw)
		done <- err
	}()

	select {
	case <-ctx.Done():
		d.cancel()
		<-done
		d.isRunning.Store(false)
		return nil, ctx.Err()

	case err := <-done:
		if err != nil {
			d.isRunning.Store(false)
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				err = ErrDeviceStopped
			} else if !errors.Is(err, fs.ErrClosed) {
				err = fmt.Errorf("%w: error reading stdout: %w", ErrBrokenPipe, err)
			}
			return nil, driver.NewDeviceError("read", d.handler.Device(), err)
		}
	}

	centerFrequency, sampleRate := d.handler.Tuning()
	return &Block{
		Samples:         d.handler.Decode(nil, raw),
		CenterFrequency: centerFrequency,
		SampleRate:      sampleRate,
		Timestamp:       time.Now(),
	}, nil
}

func (d *Device) Info() Info {
	centerFrequency, sampleRate := d.handler.Tuning()
	return Info{
		Device:          d.handler.Device(),
		DeviceID:        d.deviceID,
		CenterFrequency: centerFrequency,
		SampleRate:      sampleRate,
	}
}

// IsRunning returns true while the device process is producing samples
func (d *Device) IsRunning() bool {
	return d.isRunning.Load()
}

// Close kills the process and waits for it to exit. Exit caused by Close is not an error.
func (d *Device) Close() error {
	d.closeOnce.Do(func() {
		d.isRunning.Store(false)
		d.cancel()
		d.wg.Wait()

		if err := d.cmd.Wait(); err != nil {
			var exitErr *exec.ExitError
			if !errors.As(err, &exitErr) && !errors.Is(err, context.Canceled) {
				d.closeErr = fmt.Errorf("command exited with error: %w", err)
			}
		}

		d.logger.Info("device process stopped")
	})

	return d.closeErr
}

// handleStderr reads from stderr and logs every line as a warning
func (d *Device) handleStderr(stderr io.Reader) {
	defer d.wg.Done()

	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		d.logger.Warn(fmt.Sprintf("%s >> %s", d.handler.Device(), line))
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		d.logger.Warn(fmt.Sprintf("%s: error reading stderr: %s", ErrBrokenPipe, err))
	}
}
