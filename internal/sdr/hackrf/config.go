package hackrf

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	MaxLNAGain  = 40
	MaxVGAGain  = 62
	LNAGainStep = 8
	VGAGainStep = 2

	SampleRateMin = 2_000_000
	SampleRateMax = 20_000_000

	FrequencyMin = 1_000_000
	FrequencyMax = 6_000_000_000
)

// Usage example from man page:
// https://manpages.debian.org/bookworm/hackrf/hackrf_transfer.1.en.html

/*
	hackrfConfig := hackrf.Config{
        CenterFrequency: 100_000_000, // 100 MHz
        SampleRate:      2_048_000,
        LNAGain:         16,
        VGAGain:         20,
    }
    // Executes: hackrf_transfer -r - -f 100000000 -s 2048000 -l 16 -g 20
*/

// Config is a struct for configuring the `hackrf_transfer` tool in receive mode
type Config struct {
	SerialNumber    string `yaml:"serialNumber" json:"serialNumber"`       // -d serial_number
	CenterFrequency int64  `yaml:"centerFrequency" json:"centerFrequency"` // -f freq_hz
	SampleRate      int    `yaml:"sampleRate" json:"sampleRate"`           // -s sample_rate_hz, 2-20 MHz

	LNAGain *int `yaml:"lnaGain" json:"lnaGain"` // -l gain_db LNA (IF) gain, 0-40dB, 8dB steps
	VGAGain *int `yaml:"vgaGain" json:"vgaGain"` // -g gain_db VGA (baseband) gain, 0-62dB, 2dB steps

	EnableAmp    bool `yaml:"enableAmp" json:"enableAmp"`       // -a amp_enable RX RF amplifier 1=Enable, 0=Disable
	AntennaPower bool `yaml:"antennaPower" json:"antennaPower"` // -p antenna_enable Antenna port power, 1=Enable, 0=Disable
}

func (c *Config) Validate() error {
	if c.CenterFrequency < FrequencyMin || c.CenterFrequency > FrequencyMax {
		return fmt.Errorf("hackrf.Config: center frequency must be between %d and %d Hz: %d given", FrequencyMin, FrequencyMax, c.CenterFrequency)
	}

	if c.SampleRate < SampleRateMin || c.SampleRate > SampleRateMax {
		return fmt.Errorf("hackrf.Config: sample rate must be between %d and %d Hz: %d given", SampleRateMin, SampleRateMax, c.SampleRate)
	}

	// LNA gain validation (0-40dB in 8dB steps)
	if c.LNAGain != nil {
		if *c.LNAGain < 0 || *c.LNAGain > MaxLNAGain {
			return fmt.Errorf("hackrf.Config: LNA gain must be between 0 and 40 dB: %d given", *c.LNAGain)
		}
		if *c.LNAGain%LNAGainStep != 0 {
			return errors.New("hackrf.Config: LNA gain must be a multiple of 8 dB")
		}
	}

	// VGA gain validation (0-62dB in 2dB steps)
	if c.VGAGain != nil {
		if *c.VGAGain < 0 || *c.VGAGain > MaxVGAGain {
			return fmt.Errorf("hackrf.Config: VGA gain must be between 0 and 62 dB: %d given", *c.VGAGain)
		}
		if *c.VGAGain%VGAGainStep != 0 {
			return errors.New("hackrf.Config: VGA gain must be a multiple of 2 dB")
		}
	}

	return nil
}

// Args builds the command line arguments for `hackrf_transfer` streaming to stdout
func (c *Config) Args() ([]string, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	args := []string{
		"-r", "-",
		"-f", strconv.FormatInt(c.CenterFrequency, 10),
		"-s", strconv.Itoa(c.SampleRate),
	}

	if c.SerialNumber != "" {
		args = append(args, "-d", c.SerialNumber)
	}

	if c.LNAGain != nil {
		args = append(args, "-l", strconv.Itoa(*c.LNAGain))
	}

	if c.VGAGain != nil {
		args = append(args, "-g", strconv.Itoa(*c.VGAGain))
	}

	if c.EnableAmp {
		args = append(args, "-a", "1")
	}

	if c.AntennaPower {
		args = append(args, "-p", "1")
	}

	return args, nil
}

func (c *Config) String() string {
	args, err := c.Args()
	if err != nil {
		return fmt.Sprintf("hackrf.Config: failed to build args: %s", err)
	}
	return fmt.Sprintf("%s %s", Runtime, strings.Join(args, " "))
}
