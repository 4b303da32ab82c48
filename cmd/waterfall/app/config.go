package app

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/roman-kulish/radio-publisher/internal/message"
)

const (
	ImagePNG  ImageFormat = "png"
	ImageJPEG ImageFormat = "jpeg"
)

type ImageFormat string

var validImageFormats = map[ImageFormat]struct{}{
	ImagePNG:  {},
	ImageJPEG: {},
}

var validMessageTypes = map[message.Type]struct{}{
	message.TypeSample:  {},
	message.TypeSummary: {},
}

type Config struct {
	DBPath        string
	SessionID     int64 // 0 renders the latest session
	OutputFile    string
	Format        ImageFormat
	Theme         ColorTheme
	MessageType   message.Type // empty renders every message with a spectrum
	MinPower      *float64
	MaxPower      *float64
	StartTime     *time.Time
	EndTime       *time.Time
	TimeZone      *time.Location
	Verbose       bool
	NoAnnotations bool
}

func NewConfig() *Config {
	return &Config{
		Format:   ImagePNG,
		Theme:    DefaultTheme,
		TimeZone: time.Local,
	}
}

// ParseConfig reads the command line arguments, without the program name
func ParseConfig(args []string, output io.Writer) (*Config, error) {
	c := NewConfig()

	fs := flag.NewFlagSet("waterfall", flag.ContinueOnError)
	fs.SetOutput(output)

	var (
		imageFormat, theme, messageType string
		startTime, endTime, timeZone    string
		minPower, maxPower              float64
	)
	fs.StringVar(&c.DBPath, "db", "", "Path to the archive database file")
	fs.Int64Var(&c.SessionID, "s", 0, "Session ID, the latest session when omitted")
	fs.StringVar(&c.OutputFile, "o", "", "Path to the output file, without extension")
	fs.StringVar(&imageFormat, "f", string(ImagePNG), "Output image format. [png, jpeg]")
	fs.StringVar(&theme, "theme", string(DefaultTheme), "Color theme. [enhanced, classic, grayscale, jungle, thermal, marine]")
	fs.StringVar(&messageType, "type", "", "Render only one message type. [sample, summary]")
	fs.StringVar(&startTime, "from", "", "Render messages at or after this RFC 3339 time")
	fs.StringVar(&endTime, "to", "", "Render messages at or before this RFC 3339 time")
	fs.StringVar(&timeZone, "tz", "", "Time zone of the time scale, local when omitted")
	fs.Float64Var(&minPower, "min-power", 0, "Define a manual minimum power (format nn.n)")
	fs.Float64Var(&maxPower, "max-power", 0, "Define a manual maximum power (format nn.n)")
	fs.BoolVar(&c.Verbose, "verbose", false, "Enable more verbose output")
	fs.BoolVar(&c.NoAnnotations, "no-annotations", false, "Disable annotations such as time and frequency scales")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "min-power":
			c.MinPower = &minPower
		case "max-power":
			c.MaxPower = &maxPower
		}
	})

	c.Format = ImageFormat(strings.ToLower(imageFormat))
	c.Theme = ColorTheme(strings.ToLower(theme))
	c.MessageType = message.Type(strings.ToLower(messageType))

	var err error
	if c.StartTime, err = parseTime(startTime); err != nil {
		return nil, fmt.Errorf("invalid start time: %w", err)
	}
	if c.EndTime, err = parseTime(endTime); err != nil {
		return nil, fmt.Errorf("invalid end time: %w", err)
	}
	if timeZone != "" {
		if c.TimeZone, err = time.LoadLocation(timeZone); err != nil {
			return nil, fmt.Errorf("invalid time zone: %w", err)
		}
	}

	if err = c.Validate(); err != nil {
		fs.Usage()
		return nil, err
	}

	c.OutputFile = fmt.Sprintf("%s.%s", c.OutputFile, c.Format)
	return c, nil
}

func (c *Config) Validate() error {
	switch {
	case c.DBPath == "":
		return errors.New("db path is required")
	case c.SessionID < 0:
		return fmt.Errorf("invalid session id: %d", c.SessionID)
	case c.OutputFile == "":
		return errors.New("output file is required")
	}

	if _, ok := validImageFormats[c.Format]; !ok {
		return fmt.Errorf("invalid image format: %s", c.Format)
	}
	if _, ok := themes[c.Theme]; !ok {
		return fmt.Errorf("invalid color theme: %s", c.Theme)
	}
	if c.MessageType != "" {
		if _, ok := validMessageTypes[c.MessageType]; !ok {
			return fmt.Errorf("invalid message type: %s", c.MessageType)
		}
	}
	if c.MinPower != nil && c.MaxPower != nil && *c.MinPower >= *c.MaxPower {
		return fmt.Errorf("min power %0.1f must be below max power %0.1f", *c.MinPower, *c.MaxPower)
	}
	if c.StartTime != nil && c.EndTime != nil && c.StartTime.After(*c.EndTime) {
		return errors.New("start time is after end time")
	}

	return nil
}

func parseTime(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
