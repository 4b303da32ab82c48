package rtl

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RTL2832U sample rate windows, see librtlsdr rtlsdr_set_sample_rate
const (
	SampleRateLowMin  = 225_001
	SampleRateLowMax  = 300_000
	SampleRateHighMin = 900_001
	SampleRateHighMax = 3_200_000

	// R820T/R820T2 tuning range
	FrequencyMin = 24_000_000
	FrequencyMax = 1_766_000_000

	PPMMax  = 1000
	GainMax = 50 // dB

	DefaultPPMCorrection = 60
)

// Config is the receiver configuration shared by the native driver and `rtl_sdr`
type Config struct {
	DeviceIndex     int      `yaml:"index" json:"index"`                     // -d device_index (default: 0)
	SampleRate      int      `yaml:"sampleRate" json:"sampleRate"`           // -s samplerate (Hz)
	CenterFrequency int64    `yaml:"centerFrequency" json:"centerFrequency"` // -f frequency (Hz)
	PPMCorrection   int      `yaml:"ppmCorrection" json:"ppmCorrection"`     // -p ppm_error
	Gain            *float64 `yaml:"gain" json:"gain"`                       // -g gain (dB), nil for automatic
}

func (c *Config) Validate() error {
	if c.DeviceIndex < 0 {
		return fmt.Errorf("rtl.Config: device index must not be negative: %d", c.DeviceIndex)
	}

	inLow := c.SampleRate >= SampleRateLowMin && c.SampleRate <= SampleRateLowMax
	inHigh := c.SampleRate >= SampleRateHighMin && c.SampleRate <= SampleRateHighMax
	if !inLow && !inHigh {
		return fmt.Errorf("rtl.Config: invalid sample rate: %d, must be within %d-%d or %d-%d Hz",
			c.SampleRate, SampleRateLowMin, SampleRateLowMax, SampleRateHighMin, SampleRateHighMax)
	}

	if c.CenterFrequency < FrequencyMin || c.CenterFrequency > FrequencyMax {
		return fmt.Errorf("rtl.Config: invalid center frequency: %d, must be between %d and %d Hz",
			c.CenterFrequency, FrequencyMin, FrequencyMax)
	}

	if c.PPMCorrection < -PPMMax || c.PPMCorrection > PPMMax {
		return fmt.Errorf("rtl.Config: ppm correction must be between %d and %d: %d given", -PPMMax, PPMMax, c.PPMCorrection)
	}

	if c.Gain != nil && (*c.Gain < 0 || *c.Gain > GainMax) {
		return fmt.Errorf("rtl.Config: gain must be between 0 and %d dB: %0.1f given", GainMax, *c.Gain)
	}

	return nil
}

// Args returns the command line arguments for `rtl_sdr` writing to stdout.
// See https://manpages.debian.org/bookworm/rtl-sdr/rtl_sdr.1.en.html
func (c *Config) Args() ([]string, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	args := []string{
		"-f", strconv.FormatInt(c.CenterFrequency, 10),
		"-s", strconv.Itoa(c.SampleRate),
		"-d", strconv.Itoa(c.DeviceIndex),
	}

	if c.PPMCorrection != 0 {
		args = append(args, "-p", strconv.Itoa(c.PPMCorrection))
	}

	if c.Gain != nil {
		args = append(args, "-g", strconv.FormatFloat(*c.Gain, 'f', 1, 64))
	}

	args = append(args, "-") // Always dump to stdout

	return args, nil
}

// tenthsDB converts a gain in dB into librtlsdr units
func (c *Config) tenthsDB() int {
	if c.Gain == nil {
		return 0
	}
	return int(math.Round(*c.Gain * 10))
}

func (c *Config) String() string {
	args, err := c.Args()
	if err != nil {
		return fmt.Sprintf("rtl.Config: failed to build args: %s", err)
	}
	return fmt.Sprintf("%s %s", Runtime, strings.Join(args, " "))
}
