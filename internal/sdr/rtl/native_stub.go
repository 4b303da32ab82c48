//go:build !rtlsdr

package rtl

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roman-kulish/radio-publisher/internal/sdr"
	"github.com/roman-kulish/radio-publisher/internal/sdr/driver"
)

// NativeAvailable reports whether the librtlsdr driver is compiled in
const NativeAvailable = false

// OpenNative returns an Opener that always fails with driver.ErrDriverUnavailable.
// Build with `-tags rtlsdr` to link librtlsdr.
func OpenNative(_ *Config, _ *slog.Logger) sdr.Opener {
	return func(context.Context) (sdr.Source, error) {
		return nil, fmt.Errorf("%w: built without rtlsdr tag", driver.ErrDriverUnavailable)
	}
}
