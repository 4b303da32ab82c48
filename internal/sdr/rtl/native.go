//go:build rtlsdr

package rtl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	rtlsdr "github.com/jpoirier/gortlsdr"

	"github.com/roman-kulish/radio-publisher/internal/sdr"
	"github.com/roman-kulish/radio-publisher/internal/sdr/driver"
)

// NativeAvailable reports whether the librtlsdr driver is compiled in
const NativeAvailable = true

// nativeDevice reads samples through librtlsdr
type nativeDevice struct {
	dev    *rtlsdr.Context
	reader *syncReader
	config Config
	serial string

	closeOnce sync.Once

	logger *slog.Logger
}

// OpenNative returns an Opener for the librtlsdr driver
func OpenNative(config *Config, logger *slog.Logger) sdr.Opener {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return func(ctx context.Context) (sdr.Source, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := config.Validate(); err != nil {
			return nil, driver.NewConfigError(err.Error())
		}

		count := rtlsdr.GetDeviceCount()
		if count == 0 {
			return nil, driver.NewDeviceError("open", Device, fmt.Errorf("no devices found"))
		}
		if config.DeviceIndex >= count {
			return nil, driver.NewDeviceError("open", Device, fmt.Errorf("device index %d out of range, %d device(s) found", config.DeviceIndex, count))
		}

		dev, err := rtlsdr.Open(config.DeviceIndex)
		if err != nil {
			return nil, driver.NewDeviceError("open", Device, err)
		}

		d := &nativeDevice{
			dev:    dev,
			reader: newSyncReader(dev),
			config: *config,
			serial: strconv.Itoa(config.DeviceIndex),
			logger: logger.With(slog.String("device", Device), slog.Int("index", config.DeviceIndex)),
		}

		if err = d.configure(); err != nil {
			_ = dev.Close()
			return nil, driver.NewDeviceError("configure", Device, err)
		}

		d.logInfo()

		return d, nil
	}
}

func (d *nativeDevice) configure() error {
	steps := []struct {
		msg string
		fn  func() error
	}{
		{msg: "setting sample rate", fn: func() error { return d.dev.SetSampleRate(d.config.SampleRate) }},
		{msg: "setting center frequency", fn: func() error { return d.dev.SetCenterFreq(int(d.config.CenterFrequency)) }},
		{msg: "setting frequency correction", fn: d.setFreqCorrection},
		{msg: "setting gain", fn: d.setGain},
		{msg: "resetting buffer", fn: d.dev.ResetBuffer},
	}
	for _, s := range steps {
		if err := s.fn(); err != nil {
			return fmt.Errorf("%s: %w", s.msg, err)
		}
	}
	return nil
}

func (d *nativeDevice) setFreqCorrection() error {
	if d.config.PPMCorrection == 0 {
		return nil
	}
	return d.dev.SetFreqCorrection(d.config.PPMCorrection)
}

func (d *nativeDevice) setGain() error {
	if d.config.Gain == nil {
		return d.dev.SetTunerGainMode(false)
	}
	if err := d.dev.SetTunerGainMode(true); err != nil {
		return err
	}
	return d.dev.SetTunerGain(d.config.tenthsDB())
}

func (d *nativeDevice) logInfo() {
	attrs := []any{
		slog.String("name", rtlsdr.GetDeviceName(d.config.DeviceIndex)),
		slog.String("tuner", d.dev.GetTunerType()),
	}

	if manufacturer, product, serial, err := d.dev.GetUsbStrings(); err == nil {
		d.serial = serial
		attrs = append(attrs,
			slog.String("manufacturer", manufacturer),
			slog.String("product", product),
			slog.String("serial", serial))
	}

	if gains, err := d.dev.GetTunerGains(); err == nil {
		values := make([]string, len(gains))
		for i, g := range gains {
			values[i] = strconv.FormatFloat(float64(g)/10, 'f', 1, 64)
		}
		attrs = append(attrs, slog.String("gains", strings.Join(values, ",")))
	}

	d.logger.Info("device opened", attrs...)
}

// Read fills a block of n samples with ReadSync. librtlsdr cannot abort a
// synchronous read: a cancelled Read returns immediately and Close unblocks
// the read left behind.
func (d *nativeDevice) Read(ctx context.Context, n int) (*sdr.Block, error) {
	raw := make([]byte, n*2)

	nRead, err := d.reader.read(ctx, raw)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, driver.NewDeviceError("read", Device, err)
	}
	if nRead < len(raw) {
		return nil, driver.NewDeviceError("read", Device, fmt.Errorf("short read: %d of %d bytes", nRead, len(raw)))
	}

	return &sdr.Block{
		Samples:         sdr.ConvertU8(nil, raw),
		CenterFrequency: float64(d.config.CenterFrequency),
		SampleRate:      float64(d.config.SampleRate),
		Timestamp:       time.Now(),
	}, nil
}

func (d *nativeDevice) Info() sdr.Info {
	return sdr.Info{
		Device:          Device,
		DeviceID:        d.serial,
		CenterFrequency: float64(d.config.CenterFrequency),
		SampleRate:      float64(d.config.SampleRate),
	}
}

func (d *nativeDevice) Close() error {
	var err error
	d.closeOnce.Do(func() {
		err = d.reader.close()
		d.logger.Info("device closed")
	})
	return err
}
