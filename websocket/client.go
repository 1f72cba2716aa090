// Package websocket provides a single-use WebSocket client with event-driven
// callbacks. It leverages the gorilla/websocket library for framing, the
// handshake and control frames.
//
// A Client connects once. Closure, whether requested locally or initiated by
// the peer, is terminal: there is no reconnection.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/qntx/otprobe"
	"github.com/qntx/otprobe/logger"
)

// --------------------------------------------------------------------------------
// Constants

// Constants defining default configuration values for the WebSocket client.
const (
	DefaultTimeout      = 30 * time.Second // Handshake and write timeout.
	DefaultCloseTimeout = 2 * time.Second  // Wait for the peer's close frame after sending ours.
	DefaultPingInterval = 30 * time.Second // Interval for keep-alive pings once enabled.
	DefaultPingMessage  = "ping"           // Default payload for ping messages.
)

// --------------------------------------------------------------------------------
// Errors

var (
	ErrNotConnected     = errors.New("otprobe/websocket: client is not connected")
	ErrAlreadyConnected = errors.New("otprobe/websocket: client is already connected")
	ErrClosed           = errors.New("otprobe/websocket: client is closed")
)

// --------------------------------------------------------------------------------
// Types

// Option defines a function that configures a Client and returns an error if configuration fails.
type Option func(*Client) error

// Config encapsulates settings for a WebSocket client.
//
// All fields are optional; unset values fall back to the defaults above.
type Config struct {
	Timeout      time.Duration // Timeout for handshake and writes; 0 disables it.
	CloseTimeout time.Duration // Wait for the peer's close frame; 0 drops the connection right away.
	Subprotocols []string      // Requested subprotocols; nil for none.
	ReadLimit    int64         // Max message size in bytes; 0 for no limit.
	KeepAlive    bool          // Enables periodic pings if true.
	PingInterval time.Duration // Interval between ping messages.
	PingMessage  []byte        // Ping payload; must fit in a control frame.
}

// Client manages one WebSocket connection and dispatches its events.
//
// Callbacks run on the client's reader goroutine, one at a time, except
// OnConnect which runs on the goroutine calling Connect before reading starts.
// Callbacks must not call Close.
type Client struct {
	config Config
	url    string
	header http.Header
	logger logger.Interface

	conn      *websocket.Conn
	state     State
	closing   bool         // A close frame has been sent or received.
	connMu    sync.RWMutex // Protects conn, state and closing.
	sendMu    sync.Mutex   // Serializes data frame writes.
	wg        sync.WaitGroup
	done      chan struct{}
	doneOnce  sync.Once
	closeOnce sync.Once // Guards the OnClose callback.
	stopWatch func() bool

	ctx    context.Context // Lifecycle context; cancelled once the client is closed.
	cancel context.CancelFunc

	onConnected     func(*Client)
	onTextMessage   func([]byte, *Client)
	onBinaryMessage func([]byte, *Client)
	onClosed        func(int, string, *Client)
	onError         func(error, *Client)
}

var _ otprobe.Transport = (*Client)(nil)

// --------------------------------------------------------------------------------
// Initialization

// New creates a new WebSocket client with the specified endpoint and options.
//
// The client is not connected until Connect is called.
func New(endpoint string, opts ...Option) (*Client, error) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		config: Config{
			Timeout:      DefaultTimeout,
			CloseTimeout: DefaultCloseTimeout,
			PingInterval: DefaultPingInterval,
			PingMessage:  []byte(DefaultPingMessage),
		},
		url:    endpoint,
		header: make(http.Header),
		logger: logger.Nop(),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}

	return c.With(opts...)
}

// With applies a list of options to the Client and returns the modified instance along with any error.
func (c *Client) With(opts ...Option) (*Client, error) {
	for i, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(c); err != nil {
			return c, fmt.Errorf("failed to apply option at index %d: %w", i, err)
		}
	}

	return c, nil
}

// --------------------------------------------------------------------------------
// Connection Management

// Connect performs the WebSocket handshake.
//
// On success OnConnect has already run when Connect returns, and the reader
// goroutine is started. A failed handshake closes the client for good.
func (c *Client) Connect(ctx context.Context) error {
	c.connMu.Lock()
	switch c.state {
	case StateConnecting, StateOpen:
		c.connMu.Unlock()

		return ErrAlreadyConnected
	case StateClosed:
		c.connMu.Unlock()

		return ErrClosed
	}

	c.state = StateConnecting
	c.connMu.Unlock()

	dialCtx, stopDial := context.WithCancel(ctx)
	defer stopDial()

	stopLink := context.AfterFunc(c.ctx, stopDial)
	defer stopLink()

	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.config.Timeout,
		Subprotocols:     c.config.Subprotocols,
	}

	conn, resp, err := dialer.DialContext(dialCtx, c.url, c.header)
	if err != nil {
		c.logger.Error("Connect failed: %v", err)

		if resp != nil {
			c.logger.Error("HTTP response: %s", resp.Status)
		}

		c.markClosed()

		return fmt.Errorf("dial %s failed: %w", c.url, err)
	}

	c.connMu.Lock()
	if c.state != StateConnecting || c.ctx.Err() != nil {
		c.state = StateClosed
		c.connMu.Unlock()

		_ = conn.Close()
		c.release()

		return ErrClosed
	}

	c.conn = conn
	c.state = StateOpen
	c.connMu.Unlock()

	if c.config.ReadLimit > 0 {
		conn.SetReadLimit(c.config.ReadLimit)
	}

	c.setupHandlers(conn)

	c.logger.Info("Connected to %s (subprotocol %q)", c.url, conn.Subprotocol())

	if c.onConnected != nil {
		c.onConnected(c)
	}

	// A cancelled parent context closes the connection.
	c.stopWatch = context.AfterFunc(c.ctx, func() { _ = c.Close() })

	if c.config.KeepAlive {
		c.wg.Add(1)

		go func() {
			defer c.wg.Done()
			c.keepAlive(conn)
		}()
	}

	c.wg.Add(1)

	go c.run(conn)

	return nil
}

// Close performs the closing handshake and waits for the reader to stop.
//
// It sends a 1000 close frame, then waits up to the close timeout for the
// peer to answer before dropping the TCP connection. Calling Close more
// than once is safe; later calls only wait for shutdown.
func (c *Client) Close() error {
	c.connMu.Lock()

	switch {
	case c.state == StateDisconnected:
		c.state = StateClosed
		c.connMu.Unlock()
		c.release()

		return nil
	case c.state == StateConnecting:
		c.connMu.Unlock()
		c.cancel() // aborts the dial
		<-c.done

		return nil
	case c.state == StateClosed || c.closing:
		c.connMu.Unlock()
		<-c.done

		return nil
	}

	c.closing = true
	conn := c.conn
	c.connMu.Unlock()

	c.logger.Debug("Sending close frame")

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")

	err := conn.WriteControl(websocket.CloseMessage, msg, c.deadline())
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		c.logger.Warn("Failed to send close frame: %v", err)
		_ = conn.Close()
	} else {
		err = nil
	}

	select {
	case <-c.done:
	case <-time.After(c.closeWait()):
		c.logger.Warn("Close handshake timed out after %v", c.closeWait())
		_ = conn.Close()
		<-c.done
	}

	c.wg.Wait()

	if err != nil {
		return fmt.Errorf("close frame write failed: %w", err)
	}

	return nil
}

// State reports the client's lifecycle state.
func (c *Client) State() State {
	c.connMu.RLock()
	defer c.connMu.RUnlock()

	return c.state
}

// Connected reports whether the client is currently connected to the server.
func (c *Client) Connected() bool {
	return c.State() == StateOpen
}

// Closed reports whether the client has been permanently shut down.
func (c *Client) Closed() bool {
	return c.State() == StateClosed
}

// Subprotocol returns the subprotocol negotiated during the handshake.
func (c *Client) Subprotocol() string {
	c.connMu.RLock()
	defer c.connMu.RUnlock()

	if c.conn == nil {
		return ""
	}

	return c.conn.Subprotocol()
}

// Context returns the client's lifecycle context for external monitoring.
func (c *Client) Context() context.Context {
	return c.ctx
}

// Done is closed once the client has shut down.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// --------------------------------------------------------------------------------
// Message Handling

// SendText sends a text message over the WebSocket connection.
func (c *Client) SendText(msg []byte) error {
	return c.send(websocket.TextMessage, msg)
}

// SendBinary sends a binary message over the WebSocket connection.
func (c *Client) SendBinary(data []byte) error {
	return c.send(websocket.BinaryMessage, data)
}

// --------------------------------------------------------------------------------
// Lifecycle Management (Private)

// run reads messages until the connection fails or closes, dispatching each
// to the registered callbacks in arrival order.
func (c *Client) run(conn *websocket.Conn) {
	defer c.wg.Done()
	defer c.finish()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)

			return
		}

		c.logger.Debug("Received message [type=%d, size=%d]", msgType, len(data))

		switch msgType {
		case websocket.TextMessage:
			if c.onTextMessage != nil {
				c.onTextMessage(data, c)
			}
		case websocket.BinaryMessage:
			if c.onBinaryMessage != nil {
				c.onBinaryMessage(data, c)
			}
		}
	}
}

// setupHandlers configures handlers for ping, pong and close control frames.
func (c *Client) setupHandlers(conn *websocket.Conn) {
	conn.SetPingHandler(func(data string) error {
		c.logger.Debug("Ping received: %s", data)

		err := conn.WriteControl(websocket.PongMessage, []byte(data), c.deadline())
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}

		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil
		}

		return err
	})

	conn.SetPongHandler(func(data string) error {
		c.logger.Debug("Pong received: %s", data)

		return nil
	})

	conn.SetCloseHandler(func(code int, text string) error {
		c.logger.Info("Connection closed: %d - %s", code, text)

		c.connMu.Lock()
		echo := !c.closing
		c.closing = true
		c.connMu.Unlock()

		if echo {
			msg := websocket.FormatCloseMessage(code, "")
			if err := conn.WriteControl(websocket.CloseMessage, msg, c.deadline()); err != nil {
				c.logger.Debug("Failed to echo close frame: %v", err)
			}
		}

		c.notifyClosed(code, text)

		return nil
	})
}

// keepAlive sends periodic ping messages until the client shuts down.
func (c *Client) keepAlive(conn *websocket.Conn) {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, c.config.PingMessage, c.deadline()); err != nil {
				c.reportError(fmt.Errorf("keep-alive ping failed: %w", err))

				return
			}
		}
	}
}

// finish tears down the connection after the reader stops.
func (c *Client) finish() {
	if c.stopWatch != nil {
		c.stopWatch()
	}

	c.connMu.Lock()
	conn := c.conn
	c.conn = nil
	c.state = StateClosed
	c.connMu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			c.logger.Debug("Failed to close connection: %v", err)
		}
	}

	// Without a close frame the connection ended abnormally.
	c.notifyClosed(websocket.CloseAbnormalClosure, "")
	c.logger.Info("Disconnected from %s", c.url)
	c.release()
}

// markClosed moves the client to its terminal state without a connection.
func (c *Client) markClosed() {
	c.connMu.Lock()
	c.state = StateClosed
	c.connMu.Unlock()

	c.release()
}

// release signals Done and cancels the lifecycle context.
func (c *Client) release() {
	c.cancel()
	c.doneOnce.Do(func() { close(c.done) })
}

// --------------------------------------------------------------------------------
// Message Handling (Private)

// send transmits a data frame with a write deadline.
func (c *Client) send(msgType int, data []byte) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	c.connMu.RLock()
	conn, open := c.conn, c.state == StateOpen && !c.closing
	c.connMu.RUnlock()

	if conn == nil || !open {
		return ErrNotConnected
	}

	if err := conn.SetWriteDeadline(c.deadline()); err != nil {
		return fmt.Errorf("set write deadline failed: %w", err)
	}

	if err := conn.WriteMessage(msgType, data); err != nil {
		err = fmt.Errorf("write failed: %w", err)
		c.reportError(err)

		return err
	}

	c.logger.Debug("Sent message [type=%d, size=%d]", msgType, len(data))

	return nil
}

// --------------------------------------------------------------------------------
// Utilities (Private)

// handleReadError classifies the error that ended the read loop.
func (c *Client) handleReadError(err error) {
	// An unexpected EOF surfaces as a 1006 CloseError; 1006 never travels in
	// a real close frame.
	var ce *websocket.CloseError
	if errors.As(err, &ce) && ce.Code != websocket.CloseAbnormalClosure {
		c.logger.Debug("Read loop ended by close frame: %v", ce)

		return
	}

	c.connMu.RLock()
	closing := c.closing
	c.connMu.RUnlock()

	if closing {
		c.logger.Debug("Read loop ended during close: %v", err)

		return
	}

	c.reportError(fmt.Errorf("message read failed: %w", err))
}

// reportError logs an error and forwards it to the OnError callback.
func (c *Client) reportError(err error) {
	c.logger.Error("Error: %v", err)

	if c.onError != nil {
		c.onError(err, c)
	}
}

// notifyClosed invokes OnClose once per client.
func (c *Client) notifyClosed(code int, text string) {
	c.closeOnce.Do(func() {
		if c.onClosed != nil {
			c.onClosed(code, text, c)
		}
	})
}

// deadline returns the write deadline; zero means none.
func (c *Client) deadline() time.Time {
	if c.config.Timeout <= 0 {
		return time.Time{}
	}

	return time.Now().Add(c.config.Timeout)
}

// closeWait bounds how long Close waits for the peer's close frame.
func (c *Client) closeWait() time.Duration {
	return max(c.config.CloseTimeout, 0)
}

// --------------------------------------------------------------------------------
// Option Functions

// WithTimeout sets the timeout for handshakes and writes.
//
// Returns an error if the timeout is negative.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		if timeout < 0 {
			return fmt.Errorf("timeout cannot be negative: %v", timeout)
		}

		c.config.Timeout = timeout

		return nil
	}
}

// WithCloseTimeout sets how long Close waits for the peer to answer the close
// frame. Zero drops the connection as soon as the frame is written.
//
// Returns an error if the timeout is negative.
func WithCloseTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		if timeout < 0 {
			return fmt.Errorf("close timeout cannot be negative: %v", timeout)
		}

		c.config.CloseTimeout = timeout

		return nil
	}
}

// WithSubprotocols specifies the subprotocols requested during the handshake.
func WithSubprotocols(protos ...string) Option {
	return func(c *Client) error {
		for _, p := range protos {
			if p == "" {
				return errors.New("subprotocol cannot be empty")
			}
		}

		c.config.Subprotocols = protos

		return nil
	}
}

// WithReadLimit sets the maximum allowed message size in bytes.
//
// Returns an error if the limit is negative.
func WithReadLimit(limit int64) Option {
	return func(c *Client) error {
		if limit < 0 {
			return fmt.Errorf("read limit cannot be negative: %d", limit)
		}

		c.config.ReadLimit = limit

		return nil
	}
}

// WithKeepAlive enables periodic ping messages with a custom interval and payload.
//
// Returns an error if the interval is not positive.
func WithKeepAlive(interval time.Duration, msg []byte) Option {
	return func(c *Client) error {
		if interval <= 0 {
			return fmt.Errorf("ping interval must be positive: %v", interval)
		}

		c.config.KeepAlive = true
		c.config.PingInterval = interval
		c.config.PingMessage = msg

		return nil
	}
}

// WithLogger sets a custom logger for the client.
//
// Returns an error if the logger is nil.
func WithLogger(l logger.Interface) Option {
	return func(c *Client) error {
		if l == nil {
			return errors.New("logger cannot be nil")
		}

		c.logger = l

		return nil
	}
}

// WithHeader adds a single key-value pair to the handshake headers.
//
// Returns an error if the key is empty.
func WithHeader(key, value string) Option {
	return func(c *Client) error {
		if key == "" {
			return errors.New("header key cannot be empty")
		}

		c.header.Set(key, value)

		return nil
	}
}

// WithContext replaces the default lifecycle context with a child of ctx.
//
// Cancelling ctx closes the client.
func WithContext(ctx context.Context) Option {
	return func(c *Client) error {
		if ctx == nil {
			return errors.New("context cannot be nil")
		}

		c.cancel()
		c.ctx, c.cancel = context.WithCancel(ctx)

		return nil
	}
}

// OnConnect registers a callback for successful connection.
func OnConnect(fn func(*Client)) Option {
	return func(c *Client) error {
		c.onConnected = fn

		return nil
	}
}

// OnText registers a callback for incoming text messages.
func OnText(fn func([]byte, *Client)) Option {
	return func(c *Client) error {
		c.onTextMessage = fn

		return nil
	}
}

// OnBinary registers a callback for incoming binary messages.
func OnBinary(fn func([]byte, *Client)) Option {
	return func(c *Client) error {
		c.onBinaryMessage = fn

		return nil
	}
}

// OnClose registers a callback for connection closure.
//
// It receives the peer's close code and reason, or 1006 when the connection
// ended without a close frame.
func OnClose(fn func(int, string, *Client)) Option {
	return func(c *Client) error {
		c.onClosed = fn

		return nil
	}
}

// OnError registers a callback for read, write and keep-alive errors.
func OnError(fn func(error, *Client)) Option {
	return func(c *Client) error {
		c.onError = fn

		return nil
	}
}
