package broker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync/atomic"
	"time"
)

const (
	ProtocolSTOMP Protocol = "stomp"
	ProtocolMQTT  Protocol = "mqtt"

	DefaultHost           = "localhost"
	DefaultSTOMPPort      = 61613
	DefaultMQTTPort       = 1883
	DefaultDestination    = "/queue/sdr"
	DefaultConnectTimeout = 10 * time.Second
	DefaultSendTimeout    = 2 * time.Second
)

var (
	// ErrNotConnected is returned by Send before Connect succeeded or after Disconnect
	ErrNotConnected = errors.New("broker: not connected")

	// ErrSendTimeout is returned when a send does not complete within the send timeout
	ErrSendTimeout = errors.New("broker: send timeout")
)

type Protocol string

func (p Protocol) String() string {
	return string(p)
}

// Publisher owns one broker connection for the lifetime of a run.
// Send failures are returned to the caller and counted, they never close the
// connection. Disconnect is idempotent.
type Publisher interface {
	Connect(ctx context.Context) error
	Send(ctx context.Context, destination string, payload []byte) error
	Disconnect() error
	Stats() Stats
}

// Config holds the broker endpoint and credentials
type Config struct {
	Protocol       Protocol
	Host           string
	Port           int
	Login          string
	Passcode       string
	Destination    string
	ConnectTimeout time.Duration
	SendTimeout    time.Duration
	Receipt        bool   // STOMP: wait for a RECEIPT frame per send
	QoS            byte   // MQTT
	ClientID       string // MQTT, generated when empty
}

// Address returns host:port
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *Config) Validate() error {
	switch c.Protocol {
	case ProtocolSTOMP, ProtocolMQTT:
	default:
		return fmt.Errorf("broker.Config: unsupported protocol: %s", c.Protocol)
	}
	if c.Host == "" {
		return errors.New("broker.Config: host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("broker.Config: invalid port: %d", c.Port)
	}
	if c.Destination == "" {
		return errors.New("broker.Config: destination is required")
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("broker.Config: connect timeout must be positive: %s", c.ConnectTimeout)
	}
	if c.SendTimeout <= 0 {
		return fmt.Errorf("broker.Config: send timeout must be positive: %s", c.SendTimeout)
	}
	if c.QoS > 2 {
		return fmt.Errorf("broker.Config: QoS must be 0, 1 or 2: %d given", c.QoS)
	}
	return nil
}

// New creates a Publisher for the configured protocol
func New(config Config, options ...Option) (Publisher, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Protocol {
	case ProtocolMQTT:
		return NewMQTT(config, options...), nil
	default:
		return NewSTOMP(config, options...), nil
	}
}

// Stats is a snapshot of publisher counters
type Stats struct {
	Sent      uint64
	Failed    uint64
	BytesSent uint64
}

type counters struct {
	sent   atomic.Uint64
	failed atomic.Uint64
	bytes  atomic.Uint64
}

func (c *counters) success(n int) {
	c.sent.Add(1)
	c.bytes.Add(uint64(n))
}

func (c *counters) failure() {
	c.failed.Add(1)
}

func (c *counters) snapshot() Stats {
	return Stats{
		Sent:      c.sent.Load(),
		Failed:    c.failed.Load(),
		BytesSent: c.bytes.Load(),
	}
}

type options struct {
	logger *slog.Logger
}

type Option func(o *options)

// WithLogger sets the logger for the publisher
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func newOptions(protocol Protocol, opts []Option) options {
	o := options{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.With(slog.String("broker", protocol.String()))
	return o
}
