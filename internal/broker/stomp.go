package broker

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/go-stomp/stomp/v3"
	"github.com/go-stomp/stomp/v3/frame"
)

const contentTypeJSON = "application/json"

// STOMP publishes to an ActiveMQ compatible STOMP endpoint
type STOMP struct {
	config Config
	logger *slog.Logger

	mu       sync.Mutex
	conn     *stomp.Conn
	inflight chan struct{} // at most one send outstanding

	stats          counters
	disconnectOnce sync.Once
	disconnectErr  error
}

func NewSTOMP(config Config, opts ...Option) *STOMP {
	o := newOptions(ProtocolSTOMP, opts)
	return &STOMP{
		config:   config,
		logger:   o.logger,
		inflight: make(chan struct{}, 1),
	}
}

// Connect dials the broker and waits for the CONNECTED frame
func (s *STOMP) Connect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ConnectTimeout)
	defer cancel()

	addr := s.config.Address()
	s.logger.Info("connecting to broker", slog.String("address", addr))

	var dialer net.Dialer
	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", addr, err)
	}

	// stomp.Connect has no context: the socket deadline bounds the handshake
	// and cancellation closes the socket under it.
	deadline, _ := ctx.Deadline()
	_ = netConn.SetDeadline(deadline)
	stop := context.AfterFunc(ctx, func() { _ = netConn.Close() })

	conn, err := stomp.Connect(netConn,
		stomp.ConnOpt.Login(s.config.Login, s.config.Passcode),
		stomp.ConnOpt.Host(s.config.Host),
		stomp.ConnOpt.HeartBeat(0, 0),
	)
	if !stop() {
		return fmt.Errorf("stomp handshake with %s: %w", addr, ctx.Err())
	}
	if err != nil {
		_ = netConn.Close()
		return fmt.Errorf("stomp handshake with %s: %w", addr, err)
	}

	_ = netConn.SetDeadline(time.Time{})

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	s.logger.Info("connected to broker",
		slog.String("address", addr),
		slog.Any("version", conn.Version()),
		slog.String("destination", s.config.Destination))

	return nil
}

// Send publishes payload as application/json. The call returns ErrSendTimeout
// after the send timeout even if the frame is still being written.
func (s *STOMP) Send(ctx context.Context, destination string, payload []byte) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		s.stats.failure()
		return ErrNotConnected
	}

	timer := time.NewTimer(s.config.SendTimeout)
	defer timer.Stop()

	select {
	case s.inflight <- struct{}{}:
	case <-timer.C:
		s.stats.failure()
		return fmt.Errorf("%w: previous send still pending", ErrSendTimeout)
	case <-ctx.Done():
		s.stats.failure()
		return ctx.Err()
	}

	var sendOpts []func(*frame.Frame) error
	if s.config.Receipt {
		sendOpts = append(sendOpts, stomp.SendOpt.Receipt)
	}

	done := make(chan error, 1)
	go func() {
		defer func() { <-s.inflight }()
		done <- conn.Send(destination, contentTypeJSON, payload, sendOpts...)
	}()

	select {
	case err := <-done:
		if err != nil {
			s.stats.failure()
			return fmt.Errorf("sending to %s: %w", destination, err)
		}
		s.stats.success(len(payload))
		return nil

	case <-timer.C:
		s.stats.failure()
		return ErrSendTimeout

	case <-ctx.Done():
		s.stats.failure()
		return ctx.Err()
	}
}

// Disconnect closes the session gracefully, falling back to dropping the socket
func (s *STOMP) Disconnect() error {
	s.disconnectOnce.Do(func() {
		s.mu.Lock()
		conn := s.conn
		s.conn = nil
		s.mu.Unlock()

		if conn == nil {
			return
		}

		done := make(chan error, 1)
		go func() {
			done <- conn.Disconnect()
		}()

		select {
		case err := <-done:
			if err != nil {
				s.disconnectErr = fmt.Errorf("disconnecting: %w", err)
			}
		case <-time.After(s.config.SendTimeout):
			s.disconnectErr = fmt.Errorf("disconnecting: %w", conn.MustDisconnect())
		}

		s.logger.Info("disconnected from broker")
	})

	return s.disconnectErr
}

func (s *STOMP) Stats() Stats {
	return s.stats.snapshot()
}
