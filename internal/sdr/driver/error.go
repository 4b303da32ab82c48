package driver

import (
	"errors"
	"fmt"
)

// ErrDriverUnavailable is returned when the receiver driver is not compiled in
// or its runtime cannot be located. Probing does not retry on it.
var ErrDriverUnavailable = errors.New("sdr driver unavailable")

// ConfigError is a custom error type for configuration errors
type ConfigError struct {
	msg string
}

func NewConfigError(msg string) *ConfigError {
	return &ConfigError{msg}
}

func (e *ConfigError) Error() string {
	return e.msg
}

// DeviceError reports a failure to open or read from a receiver.
type DeviceError struct {
	Op     string // "open", "configure", "read"
	Device string
	Err    error
}

func NewDeviceError(op, device string, err error) *DeviceError {
	return &DeviceError{Op: op, Device: device, Err: err}
}

func (e *DeviceError) Error() string {
	if e.Device == "" {
		return fmt.Sprintf("device %s: %s", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: device %s: %s", e.Device, e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}
