package rtl

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/roman-kulish/radio-publisher/internal/sdr/driver"
)

func gain(v float64) *float64 {
	return &v
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name:   "defaults",
			config: Config{SampleRate: 2_048_000, CenterFrequency: 100_000_000, PPMCorrection: 60},
		},
		{
			name:   "low rate window with manual gain",
			config: Config{SampleRate: 250_000, CenterFrequency: 433_920_000, Gain: gain(49.6)},
		},
		{
			name:    "rate in the gap",
			config:  Config{SampleRate: 500_000, CenterFrequency: 100_000_000},
			wantErr: "invalid sample rate",
		},
		{
			name:    "frequency too low",
			config:  Config{SampleRate: 2_048_000, CenterFrequency: 1_000_000},
			wantErr: "invalid center frequency",
		},
		{
			name:    "ppm out of range",
			config:  Config{SampleRate: 2_048_000, CenterFrequency: 100_000_000, PPMCorrection: 5000},
			wantErr: "ppm correction",
		},
		{
			name:    "gain out of range",
			config:  Config{SampleRate: 2_048_000, CenterFrequency: 100_000_000, Gain: gain(60)},
			wantErr: "gain must be",
		},
		{
			name:    "negative index",
			config:  Config{DeviceIndex: -1, SampleRate: 2_048_000, CenterFrequency: 100_000_000},
			wantErr: "device index",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfig_Args(t *testing.T) {
	c := Config{DeviceIndex: 1, SampleRate: 2_048_000, CenterFrequency: 100_000_000, PPMCorrection: 60, Gain: gain(20.7)}

	args, err := c.Args()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	expected := "-f 100000000 -s 2048000 -d 1 -p 60 -g 20.7 -"
	if got := strings.Join(args, " "); got != expected {
		t.Errorf("Expected args %q, got %q", expected, got)
	}
	if got := c.tenthsDB(); got != 207 {
		t.Errorf("Expected gain 207 tenths of dB, got %d", got)
	}

	auto := Config{SampleRate: 2_048_000, CenterFrequency: 100_000_000}
	args, _ = auto.Args()
	if got := strings.Join(args, " "); got != "-f 100000000 -s 2048000 -d 0 -" {
		t.Errorf("Unexpected args for automatic gain: %q", got)
	}
}

func TestOpenNative_WithoutDriver(t *testing.T) {
	if NativeAvailable {
		t.Skip("built with librtlsdr")
	}

	c := Config{SampleRate: 2_048_000, CenterFrequency: 100_000_000}
	_, err := OpenNative(&c, nil)(context.Background())
	if !errors.Is(err, driver.ErrDriverUnavailable) {
		t.Fatalf("Expected ErrDriverUnavailable, got %v", err)
	}
}
