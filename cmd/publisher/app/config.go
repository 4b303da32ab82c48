package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/radio-publisher/internal/broker"
	"github.com/roman-kulish/radio-publisher/internal/pipeline"
	"github.com/roman-kulish/radio-publisher/internal/sdr"
	"github.com/roman-kulish/radio-publisher/internal/sdr/hackrf"
	"github.com/roman-kulish/radio-publisher/internal/sdr/rtl"
	"github.com/roman-kulish/radio-publisher/internal/spectrum"
	"github.com/roman-kulish/radio-publisher/internal/stats"
)

const (
	// DeviceAuto uses the native RTL-SDR driver when compiled in, `rtl_sdr` otherwise
	DeviceAuto DeviceType = "auto"

	DeviceRTLSDRNative DeviceType = "rtlsdr-native"
	DeviceRTLSDR       DeviceType = "rtlsdr"
	DeviceHackRF       DeviceType = "hackrf"
	DeviceSimulated    DeviceType = "simulated"
)

// Environment variables overriding the broker section
const (
	EnvBrokerHost        = "ACTIVEMQ_HOST"
	EnvBrokerPort        = "ACTIVEMQ_PORT"
	EnvBrokerUser        = "ACTIVEMQ_USER"
	EnvBrokerPassword    = "ACTIVEMQ_PASS"
	EnvBrokerDestination = "ACTIVEMQ_SDR_DEST"
)

const defaultCredential = "admin"

type DeviceType string

func (t DeviceType) String() string {
	return string(t)
}

type TimeDuration time.Duration

func (d *TimeDuration) UnmarshalYAML(value *yaml.Node) error {
	duration, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("app.TimeDuration: failed to parse: %s", err)
	}

	*d = TimeDuration(duration)
	return nil
}

func (d TimeDuration) MarshalYAML() (interface{}, error) {
	return d.Duration().String(), nil
}

func (d TimeDuration) Duration() time.Duration {
	return time.Duration(d)
}

// Config represents the main application configuration
type Config struct {
	Settings Settings       `yaml:"settings"`
	Broker   BrokerConfig   `yaml:"broker"`
	Device   DeviceConfig   `yaml:"device"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Storage  StorageConfig  `yaml:"storage"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// Level parses LogLevel, an empty value is INFO
func (s *Settings) Level() (slog.Level, error) {
	var level slog.Level
	if s.LogLevel == "" {
		return level, nil
	}
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return level, fmt.Errorf("settings: %w", err)
	}
	return level, nil
}

// BrokerConfig represents the message broker connection
type BrokerConfig struct {
	Protocol       broker.Protocol `yaml:"protocol"`
	Host           string          `yaml:"host"`
	Port           int             `yaml:"port"`
	User           string          `yaml:"user"`
	Password       string          `yaml:"password"`
	Destination    string          `yaml:"destination"`
	ConnectTimeout TimeDuration    `yaml:"connectTimeout"`
	SendTimeout    TimeDuration    `yaml:"sendTimeout"`
	Receipt        bool            `yaml:"receipt"`
	QoS            byte            `yaml:"qos"`
	ClientID       string          `yaml:"clientId"`
}

func (b *BrokerConfig) ToBroker() broker.Config {
	return broker.Config{
		Protocol:       b.Protocol,
		Host:           b.Host,
		Port:           b.Port,
		Login:          b.User,
		Passcode:       b.Password,
		Destination:    b.Destination,
		ConnectTimeout: b.ConnectTimeout.Duration(),
		SendTimeout:    b.SendTimeout.Duration(),
		Receipt:        b.Receipt,
		QoS:            b.QoS,
		ClientID:       b.ClientID,
	}
}

// DeviceConfig selects and configures the sample source
type DeviceConfig struct {
	Type       DeviceType         `yaml:"type" json:"type"`
	RTLSDR     *rtl.Config        `yaml:"rtlsdr" json:"rtlsdr,omitempty"`
	HackRF     *hackrf.Config     `yaml:"hackrf" json:"hackrf,omitempty"`
	Simulation sdr.SimulationMode `yaml:"simulation" json:"simulation"`
	Seed       *uint64            `yaml:"seed" json:"seed,omitempty"`
}

// PipelineConfig represents the acquisition loop settings
type PipelineConfig struct {
	BlockSize         int             `yaml:"blockSize"`
	SummaryEvery      int             `yaml:"summaryEvery"`
	WindowBlocks      int             `yaml:"windowBlocks"`
	FreshSummaryBlock *bool           `yaml:"freshSummaryBlock"`
	MaxReads          int             `yaml:"maxReads"`
	Interval          TimeDuration    `yaml:"interval"`
	Window            spectrum.Window `yaml:"window"`
	SpectrumStride    int             `yaml:"spectrumStride"`
	Retry             RetryConfig     `yaml:"retry"`
}

// RetryConfig represents the device probe policy
type RetryConfig struct {
	Attempts   int          `yaml:"attempts"`
	Delay      TimeDuration `yaml:"delay"`
	Multiplier float64      `yaml:"multiplier"`
}

func (r *RetryConfig) Policy() pipeline.RetryPolicy {
	return pipeline.RetryPolicy{
		MaxAttempts: r.Attempts,
		Delay:       r.Delay.Duration(),
		Multiplier:  r.Multiplier,
	}
}

// StorageConfig represents the optional message archive
type StorageConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DataDirectory string `yaml:"dataDirectory"`
	MaxBatchSize  int    `yaml:"maxBatchSize"`
}

// NewConfig returns a configuration with every default applied
func NewConfig() *Config {
	fresh := true
	return &Config{
		Settings: Settings{LogLevel: "info"},
		Broker: BrokerConfig{
			Protocol:       broker.ProtocolSTOMP,
			Host:           broker.DefaultHost,
			Port:           broker.DefaultSTOMPPort,
			User:           defaultCredential,
			Password:       defaultCredential,
			Destination:    broker.DefaultDestination,
			ConnectTimeout: TimeDuration(broker.DefaultConnectTimeout),
			SendTimeout:    TimeDuration(broker.DefaultSendTimeout),
		},
		Device: DeviceConfig{
			Type:       DeviceAuto,
			RTLSDR:     defaultRTLConfig(),
			HackRF:     defaultHackRFConfig(),
			Simulation: sdr.SimulationPeaks,
		},
		Pipeline: PipelineConfig{
			BlockSize:         sdr.DefaultBlockSize,
			SummaryEvery:      stats.DefaultSummaryEvery,
			WindowBlocks:      stats.DefaultWindowBlocks,
			FreshSummaryBlock: &fresh,
			Window:            spectrum.WindowNone,
			SpectrumStride:    1,
			Retry: RetryConfig{
				Attempts:   pipeline.DefaultRetryPolicy.MaxAttempts,
				Delay:      TimeDuration(pipeline.DefaultRetryPolicy.Delay),
				Multiplier: pipeline.DefaultRetryPolicy.Multiplier,
			},
		},
		Storage: StorageConfig{
			DataDirectory: storageDir,
			MaxBatchSize:  maxBatchSize,
		},
	}
}

func defaultRTLConfig() *rtl.Config {
	return &rtl.Config{
		SampleRate:      sdr.DefaultSampleRate,
		CenterFrequency: sdr.DefaultCenterFrequency,
		PPMCorrection:   rtl.DefaultPPMCorrection,
	}
}

func defaultHackRFConfig() *hackrf.Config {
	return &hackrf.Config{
		SampleRate:      sdr.DefaultSampleRate,
		CenterFrequency: sdr.DefaultCenterFrequency,
	}
}

// LoadConfig reads the YAML file at path over the defaults. An empty path
// keeps the defaults. Environment overrides are not applied.
func LoadConfig(path string) (*Config, error) {
	c := NewConfig()
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}

	if err = yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	c.fillDevice()
	return c, nil
}

// fillDevice restores sections cleared by the file and the MQTT port default
func (c *Config) fillDevice() {
	if c.Device.RTLSDR == nil {
		c.Device.RTLSDR = defaultRTLConfig()
	}
	if c.Device.HackRF == nil {
		c.Device.HackRF = defaultHackRFConfig()
	}
	if c.Broker.Protocol == broker.ProtocolMQTT && c.Broker.Port == broker.DefaultSTOMPPort {
		c.Broker.Port = broker.DefaultMQTTPort
	}
}

// ApplyEnv overrides the broker section from ACTIVEMQ_* variables
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvBrokerHost); ok && v != "" {
		c.Broker.Host = v
	}
	if v, ok := lookup(EnvBrokerPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: invalid port: %w", EnvBrokerPort, err)
		}
		c.Broker.Port = port
	}
	if v, ok := lookup(EnvBrokerUser); ok {
		c.Broker.User = v
	}
	if v, ok := lookup(EnvBrokerPassword); ok {
		c.Broker.Password = v
	}
	if v, ok := lookup(EnvBrokerDestination); ok && v != "" {
		c.Broker.Destination = v
	}
	return nil
}

func (c *Config) Validate() error {
	if _, err := c.Settings.Level(); err != nil {
		return err
	}

	bc := c.Broker.ToBroker()
	if err := bc.Validate(); err != nil {
		return err
	}

	switch c.Device.Type {
	case DeviceAuto, DeviceRTLSDRNative, DeviceRTLSDR:
		if err := c.Device.RTLSDR.Validate(); err != nil {
			return err
		}
	case DeviceHackRF:
		if err := c.Device.HackRF.Validate(); err != nil {
			return err
		}
	case DeviceSimulated:
	default:
		return fmt.Errorf("device: unknown type '%s'", c.Device.Type)
	}
	if err := c.Device.Simulation.Validate(); err != nil {
		return err
	}

	p := &c.Pipeline
	if p.BlockSize <= 0 {
		return fmt.Errorf("pipeline: block size must be positive: %d", p.BlockSize)
	}
	if p.SummaryEvery <= 0 {
		return fmt.Errorf("pipeline: summaryEvery must be positive: %d", p.SummaryEvery)
	}
	if p.WindowBlocks <= 0 {
		return fmt.Errorf("pipeline: windowBlocks must be positive: %d", p.WindowBlocks)
	}
	if p.MaxReads < 0 {
		return fmt.Errorf("pipeline: maxReads must not be negative: %d", p.MaxReads)
	}
	if p.Interval < 0 {
		return fmt.Errorf("pipeline: interval must not be negative: %s", p.Interval.Duration())
	}
	if p.SpectrumStride <= 0 {
		return fmt.Errorf("pipeline: spectrumStride must be positive: %d", p.SpectrumStride)
	}
	if err := p.Window.Validate(); err != nil {
		return err
	}
	if err := p.Retry.Policy().Validate(); err != nil {
		return err
	}

	if c.Storage.Enabled && c.Storage.DataDirectory == "" {
		return errors.New("storage: dataDirectory is required")
	}

	return nil
}
