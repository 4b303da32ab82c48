package rtl

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"

	"github.com/roman-kulish/radio-publisher/internal/sdr"
	"github.com/roman-kulish/radio-publisher/internal/sdr/driver"
)

const (
	Runtime = "rtl_sdr"
	Device  = "RTL-SDR"
)

// handler runs `rtl_sdr` and decodes its unsigned 8-bit I/Q output
type handler struct {
	binPath string
	args    []string
	config  Config
}

// New creates a new `rtl_sdr` handler
func New(config *Config) (sdr.Handler, error) {
	binPath, err := driver.FindRuntime(Runtime)
	if err != nil {
		return nil, fmt.Errorf("error finding runtime: %w", err)
	}

	args, err := config.Args()
	if err != nil {
		return nil, driver.NewConfigError(err.Error())
	}

	return &handler{binPath, args, *config}, nil
}

// Cmd returns an exec.Cmd for the `rtl_sdr` handler
func (h handler) Cmd(ctx context.Context) *exec.Cmd {
	return exec.CommandContext(ctx, h.binPath, h.args...)
}

func (h handler) Decode(dst []complex128, raw []byte) []complex128 {
	return sdr.ConvertU8(dst, raw)
}

func (h handler) Device() string {
	return Device
}

func (h handler) Tuning() (float64, float64) {
	return float64(h.config.CenterFrequency), float64(h.config.SampleRate)
}

// OpenProcess returns an Opener spawning `rtl_sdr` for the configured device
func OpenProcess(config *Config, logger *slog.Logger) sdr.Opener {
	return func(ctx context.Context) (sdr.Source, error) {
		h, err := New(config)
		if err != nil {
			return nil, err
		}

		d, err := sdr.StartDevice(ctx, strconv.Itoa(config.DeviceIndex), h, sdr.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return d, nil
	}
}
