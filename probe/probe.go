// Package probe implements the interactive probe client: it connects to an
// OT gateway over WebSocket, logs in, and hands every inbound message to a
// Handler until the connection closes or the caller interrupts it.
package probe

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/qntx/otprobe"
	"github.com/qntx/otprobe/command"
	"github.com/qntx/otprobe/config"
	"github.com/qntx/otprobe/logger"
	"github.com/qntx/otprobe/websocket"
)

// SessionHeader carries the probe session ID in the handshake request.
const SessionHeader = "X-Probe-Session"

var (
	// ErrNilHandler indicates that no event handler was provided.
	ErrNilHandler = errors.New("otprobe/probe: handler cannot be nil")
)

// Option configures a Probe.
type Option func(*Probe) error

// Probe drives a single connection through connect, login and receive.
type Probe struct {
	cfg       config.Config
	handler   otprobe.Handler
	logger    logger.Interface
	session   string
	wsOpts    []websocket.Option
	transport otprobe.Transport

	closeOnce sync.Once
	closeErr  error
}

// New creates a probe for cfg that reports events to h.
//
// The connection is not opened until Connect or Start is called.
func New(cfg config.Config, h otprobe.Handler, opts ...Option) (*Probe, error) {
	if h == nil {
		return nil, ErrNilHandler
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Probe{
		cfg:     cfg,
		handler: h,
		logger:  logger.Nop(),
		session: uuid.NewString(),
	}

	for i, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(p); err != nil {
			return nil, fmt.Errorf("failed to apply option at index %d: %w", i, err)
		}
	}

	p.logger = p.logger.With("session", p.session)

	wsOpts := []websocket.Option{
		websocket.WithLogger(p.logger),
		websocket.WithTimeout(cfg.Timeout),
		websocket.WithCloseTimeout(cfg.CloseTimeout),
		websocket.WithSubprotocols(cfg.Subprotocols...),
		websocket.WithReadLimit(cfg.ReadLimit),
		websocket.WithHeader(SessionHeader, p.session),
		websocket.OnConnect(func(*websocket.Client) { h.OnOpened() }),
		websocket.OnText(func(data []byte, _ *websocket.Client) { h.OnMessage(data) }),
		websocket.OnBinary(func(data []byte, _ *websocket.Client) { h.OnMessage(data) }),
		websocket.OnClose(func(code int, reason string, _ *websocket.Client) { h.OnClosed(code, reason) }),
	}

	if cfg.PingInterval > 0 {
		wsOpts = append(wsOpts, websocket.WithKeepAlive(cfg.PingInterval, []byte(websocket.DefaultPingMessage)))
	}

	client, err := websocket.New(cfg.URL, append(wsOpts, p.wsOpts...)...)
	if err != nil {
		return nil, fmt.Errorf("otprobe/probe: transport: %w", err)
	}

	p.transport = client

	return p, nil
}

// Session returns the ID attached to this probe's logs and handshake.
func (p *Probe) Session() string {
	return p.session
}

// Start connects, logs in and sends any configured follow-up commands. If
// a command cannot be sent the connection is closed before returning.
func (p *Probe) Start(ctx context.Context) error {
	if err := p.Connect(ctx); err != nil {
		return err
	}

	if err := p.greet(); err != nil {
		if cerr := p.Close(); cerr != nil {
			p.logger.Warn("Close after failed start: %v", cerr)
		}

		return err
	}

	return nil
}

func (p *Probe) greet() error {
	if err := p.Login(); err != nil {
		return err
	}

	for _, cmd := range p.cfg.Commands {
		if err := p.Send(cmd); err != nil {
			return err
		}
	}

	return nil
}

// Connect opens the connection. It fails for good once the probe has closed.
func (p *Probe) Connect(ctx context.Context) error {
	if err := p.transport.Connect(ctx); err != nil {
		return fmt.Errorf("otprobe/probe: connect: %w", err)
	}

	return nil
}

// Login sends the login command with the configured credentials.
func (p *Probe) Login() error {
	p.logger.Info("Logging in as %s", p.cfg.Username)

	return p.Send(command.Login(p.cfg.Username, p.cfg.Password))
}

// Send encodes cmd and writes it as one text frame. No reply is awaited.
func (p *Probe) Send(cmd command.Command) error {
	data, err := cmd.Encode()
	if err != nil {
		return err
	}

	if err := p.transport.SendText(data); err != nil {
		return fmt.Errorf("otprobe/probe: send %s: %w", cmd.Name(), err)
	}

	p.logger.Debug("Sent %s command", cmd.Name())

	return nil
}

// RunForever blocks until the connection closes or ctx is done. When ctx
// ends first, the connection is closed before returning.
func (p *Probe) RunForever(ctx context.Context) error {
	select {
	case <-p.transport.Done():
		return nil
	case <-ctx.Done():
		p.logger.Info("Interrupted, closing connection")

		return p.Close()
	}
}

// Close closes the connection once; later calls return the first result.
func (p *Probe) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.transport.Close()
	})

	return p.closeErr
}

// Done is closed once the connection has shut down.
func (p *Probe) Done() <-chan struct{} {
	return p.transport.Done()
}

// --------------------------------------------------------------------------------
// Option Functions

// WithLogger sets the logger used by the probe and its transport.
func WithLogger(l logger.Interface) Option {
	return func(p *Probe) error {
		if l == nil {
			return errors.New("logger cannot be nil")
		}

		p.logger = l

		return nil
	}
}

// WithTransportOptions appends options applied to the WebSocket client
// after the probe's own.
func WithTransportOptions(opts ...websocket.Option) Option {
	return func(p *Probe) error {
		p.wsOpts = append(p.wsOpts, opts...)

		return nil
	}
}
