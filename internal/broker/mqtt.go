package broker

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// disconnectQuiesce is the time in milliseconds paho waits for pending work on disconnect
const disconnectQuiesce = 250

// MQTT publishes to an MQTT broker. The destination is used as the topic.
type MQTT struct {
	config Config
	logger *slog.Logger

	mu     sync.RWMutex
	client mqtt.Client

	stats          counters
	disconnectOnce sync.Once
}

func NewMQTT(config Config, opts ...Option) *MQTT {
	o := newOptions(ProtocolMQTT, opts)
	if config.ClientID == "" {
		config.ClientID = "radio-publisher-" + uuid.NewString()
	}
	return &MQTT{
		config: config,
		logger: o.logger.With(slog.String("client_id", config.ClientID)),
	}
}

func (m *MQTT) Connect(ctx context.Context) error {
	broker := (&url.URL{Scheme: "tcp", Host: m.config.Address()}).String()

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(m.config.ClientID)
	opts.SetUsername(m.config.Login)
	opts.SetPassword(m.config.Passcode)
	opts.SetConnectTimeout(m.config.ConnectTimeout)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetCleanSession(true)
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		m.logger.Warn("mqtt connection lost", slog.Any("error", err))
	}

	client := mqtt.NewClient(opts)

	m.logger.Info("connecting to broker", slog.String("broker", broker))

	token := client.Connect()
	if err := wait(ctx, token, m.config.ConnectTimeout); err != nil {
		return fmt.Errorf("mqtt connect to %s: %w", broker, err)
	}

	m.mu.Lock()
	m.client = client
	m.mu.Unlock()

	m.logger.Info("connected to broker",
		slog.String("broker", broker),
		slog.String("topic", m.config.Destination))

	return nil
}

func (m *MQTT) Send(ctx context.Context, destination string, payload []byte) error {
	m.mu.RLock()
	client := m.client
	m.mu.RUnlock()

	if client == nil || !client.IsConnectionOpen() {
		m.stats.failure()
		return ErrNotConnected
	}

	token := client.Publish(destination, m.config.QoS, false, payload)
	if err := wait(ctx, token, m.config.SendTimeout); err != nil {
		m.stats.failure()
		return fmt.Errorf("publishing to %s: %w", destination, err)
	}

	m.stats.success(len(payload))
	return nil
}

func (m *MQTT) Disconnect() error {
	m.disconnectOnce.Do(func() {
		m.mu.Lock()
		client := m.client
		m.client = nil
		m.mu.Unlock()

		if client == nil {
			return
		}

		client.Disconnect(disconnectQuiesce)
		m.logger.Info("disconnected from broker")
	})

	return nil
}

func (m *MQTT) Stats() Stats {
	return m.stats.snapshot()
}

// wait blocks until the token completes, the timeout elapses or ctx is done
func wait(ctx context.Context, token mqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return ErrSendTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}
