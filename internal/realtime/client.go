package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	pkgerrors "github.com/angelmondragon/tableside/pkg/errors"
	"github.com/angelmondragon/tableside/pkg/logger"
	"github.com/angelmondragon/tableside/pkg/metrics"
	"github.com/gorilla/websocket"
	"go.uber.org/multierr"
)

const (
	DefaultMaxReconnectAttempts = 5
	DefaultBaseDelay            = 3 * time.Second
)

// ErrNotConnected is returned by Send when no socket is open. Messages are never queued.
var ErrNotConnected = pkgerrors.New(pkgerrors.CodeNotConnected, "realtime connection is not open")

// MessageHandler receives every parsed inbound frame.
type MessageHandler func(ctx context.Context, msg Message) error

// ConnectHandler runs after each successful open.
type ConnectHandler func(ctx context.Context)

// DisconnectHandler runs after each close with the websocket close code.
type DisconnectHandler func(ctx context.Context, code int)

// TokenProvider returns the token for the next connect attempt.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// tokenInvalidator is implemented by providers that can drop a token the
// server refused.
type tokenInvalidator interface {
	Invalidate(ctx context.Context)
}

type Params struct {
	BaseURL     string
	Credentials Credentials
	Tokens      TokenProvider

	MaxReconnectAttempts int
	BaseDelay            time.Duration
	WriteTimeout         time.Duration

	Dialer    Dialer
	Scheduler Scheduler
	Logger    *logger.Logger
	Metrics   *metrics.RealtimeMetrics
}

type connState int

const (
	stateIdle connState = iota
	stateConnecting
	stateOpen
	stateClosed
)

// Client keeps one websocket session alive, reconnecting with exponential
// backoff after abnormal closes. A clean close (code 1000) or Disconnect
// ends the session for good until Reconnect is called.
type Client struct {
	baseURL      string
	creds        Credentials
	tokens       TokenProvider
	maxAttempts  int
	baseDelay    time.Duration
	writeTimeout time.Duration
	dialer       Dialer
	scheduler    Scheduler
	logg         *logger.Logger
	metrics      *metrics.RealtimeMetrics

	mu        sync.Mutex
	state     connState
	conn      Conn
	gen       uint64
	attempts  int
	exhausted bool
	pending   Timer
	stopped   bool
	ctx       context.Context

	writeMu sync.Mutex

	onMessage    registry[MessageHandler]
	onConnect    registry[ConnectHandler]
	onDisconnect registry[DisconnectHandler]
}

// NewClient validates params without connecting. Register handlers, then call Connect.
func NewClient(params Params) (*Client, error) {
	if params.Tokens == nil {
		return nil, fmt.Errorf("token provider is required")
	}
	if _, err := BuildURL(params.BaseURL, params.Credentials, ""); err != nil {
		return nil, err
	}
	if params.MaxReconnectAttempts < 0 {
		return nil, fmt.Errorf("max reconnect attempts must not be negative")
	}
	if params.BaseDelay <= 0 {
		params.BaseDelay = DefaultBaseDelay
	}
	if params.Dialer == nil {
		params.Dialer = NewDialer(0)
	}
	if params.Scheduler == nil {
		params.Scheduler = timeScheduler{}
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	return &Client{
		baseURL:      params.BaseURL,
		creds:        params.Credentials,
		tokens:       params.Tokens,
		maxAttempts:  params.MaxReconnectAttempts,
		baseDelay:    params.BaseDelay,
		writeTimeout: params.WriteTimeout,
		dialer:       params.Dialer,
		scheduler:    params.Scheduler,
		logg:         params.Logger,
		metrics:      params.Metrics,
		ctx:          context.Background(),
	}, nil
}

// Open builds a client and immediately attempts the first connection.
func Open(ctx context.Context, params Params) (*Client, error) {
	client, err := NewClient(params)
	if err != nil {
		return nil, err
	}
	client.Connect(ctx)
	return client, nil
}

// Connect attempts a connection. Failures are handled like an abnormal
// close, so the reconnect schedule takes over.
func (c *Client) Connect(ctx context.Context) {
	c.mu.Lock()
	c.stopped = false
	c.ctx = c.logg.WithFields(context.WithoutCancel(ctx), map[string]any{
		"role":    c.creds.Role.String(),
		"user_id": c.creds.UserID,
	})
	c.mu.Unlock()
	c.connect()
}

// Reconnect starts over after the attempts ran out or after Disconnect.
func (c *Client) Reconnect(ctx context.Context) {
	c.mu.Lock()
	c.attempts = 0
	c.exhausted = false
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
	c.mu.Unlock()
	c.Connect(ctx)
}

func (c *Client) connect() {
	c.mu.Lock()
	if c.stopped || c.state == stateOpen || c.state == stateConnecting {
		c.mu.Unlock()
		return
	}
	c.state = stateConnecting
	ctx := c.ctx
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		c.logg.Error(ctx, "realtime connect attempt failed", err)
		c.mu.Lock()
		if c.state == stateConnecting {
			c.state = stateClosed
		}
		stopped := c.stopped
		c.mu.Unlock()
		if stopped {
			return
		}
		c.closed(ctx, websocket.CloseAbnormalClosure)
		return
	}

	c.mu.Lock()
	if c.stopped {
		c.state = stateClosed
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.gen++
	gen := c.gen
	c.conn = conn
	c.state = stateOpen
	c.attempts = 0
	c.exhausted = false
	c.mu.Unlock()

	c.metrics.IncConnect()
	c.logg.Info(ctx, "realtime connection open")
	for _, handler := range c.onConnect.snapshot() {
		c.safely(ctx, "connect", func() error {
			handler(ctx)
			return nil
		})
	}

	go c.readLoop(ctx, gen, conn)
}

func (c *Client) dial(ctx context.Context) (Conn, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch realtime token: %w", err)
	}
	target, err := BuildURL(c.baseURL, c.creds, token)
	if err != nil {
		return nil, err
	}
	conn, err := c.dialer.DialContext(ctx, target, nil)
	if err != nil && (pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) || pkgerrors.IsCode(err, pkgerrors.CodeForbidden)) {
		if inv, ok := c.tokens.(tokenInvalidator); ok {
			c.logg.Warn(ctx, "realtime token rejected; next attempt fetches a new one")
			inv.Invalidate(ctx)
		}
	}
	return conn, err
}

func (c *Client) readLoop(ctx context.Context, gen uint64, conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			code := closeCodeOf(err)
			c.mu.Lock()
			if c.gen != gen {
				c.mu.Unlock()
				return
			}
			c.conn = nil
			c.state = stateClosed
			c.mu.Unlock()
			conn.Close()
			c.closed(ctx, code)
			return
		}
		c.dispatch(ctx, data)
	}
}

// closed runs disconnect handlers and decides whether to schedule a reconnect.
func (c *Client) closed(ctx context.Context, code int) {
	clean := code == websocket.CloseNormalClosure
	c.metrics.IncDisconnect(clean)
	c.logg.Info(c.logg.WithField(ctx, "close_code", code), "realtime connection closed")

	for _, handler := range c.onDisconnect.snapshot() {
		c.safely(ctx, "disconnect", func() error {
			handler(ctx, code)
			return nil
		})
	}

	if clean {
		return
	}
	c.scheduleReconnect(ctx)
}

func (c *Client) scheduleReconnect(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	if c.attempts >= c.maxAttempts {
		c.exhausted = true
		c.metrics.IncReconnectsExhausted()
		c.logg.Warn(ctx, "max reconnect attempts reached")
		return
	}
	c.attempts++
	attempt := c.attempts
	delay := Backoff(c.baseDelay, attempt)
	c.metrics.IncReconnectScheduled(attempt)
	c.logg.Info(c.logg.WithFields(ctx, map[string]any{
		"attempt":  attempt,
		"delay_ms": delay.Milliseconds(),
	}), "realtime reconnect scheduled")

	c.pending = c.scheduler.AfterFunc(delay, func() {
		c.mu.Lock()
		c.pending = nil
		c.mu.Unlock()
		c.connect()
	})
}

// Backoff returns base × 2^(attempt-1).
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base * time.Duration(1<<(attempt-1))
}

func (c *Client) dispatch(ctx context.Context, data []byte) {
	msg, err := ParseMessage(data)
	if err != nil {
		c.metrics.IncMalformedFrame()
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "discarding malformed realtime frame")
		return
	}
	c.metrics.IncFrame(string(msg.Type), string(msg.Action))

	var errs error
	for _, handler := range c.onMessage.snapshot() {
		errs = multierr.Append(errs, c.safely(ctx, "message", func() error {
			return handler(ctx, msg)
		}))
	}
	if errs != nil {
		c.logg.Error(c.logg.WithFields(ctx, map[string]any{
			"type":     msg.Type,
			"action":   msg.Action,
			"failures": len(multierr.Errors(errs)),
		}), "realtime message handlers failed", errs)
	}
}

// safely runs fn, turning a panic into an error so one handler cannot
// stop the others or the read loop.
func (c *Client) safely(ctx context.Context, kind string, fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%s handler panicked: %v", kind, rec)
		}
		if err != nil {
			c.metrics.IncHandlerFailure()
			if kind != "message" {
				c.logg.Error(ctx, "realtime handler failed", err)
			}
		}
	}()
	return fn()
}

// Send writes msg to the open socket. When the socket is not open the
// message is dropped and ErrNotConnected returned.
func (c *Client) Send(ctx context.Context, msg Message) error {
	c.mu.Lock()
	conn := c.conn
	open := c.state == stateOpen
	c.mu.Unlock()

	if !open || conn == nil {
		c.metrics.IncDroppedSend()
		c.logg.Warn(c.logg.WithFields(ctx, map[string]any{
			"type":   msg.Type,
			"action": msg.Action,
		}), "dropping realtime message: socket not open")
		return ErrNotConnected
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode realtime message: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.writeTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write realtime message: %w", err)
	}
	return nil
}

// Disconnect closes the socket with code 1000 and cancels any pending
// reconnect. No reconnect follows.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.stopped = true
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
	conn := c.conn
	c.conn = nil
	c.gen++
	wasOpen := c.state == stateOpen
	c.state = stateClosed
	ctx := c.ctx
	c.mu.Unlock()

	if conn == nil {
		return
	}

	c.writeMu.Lock()
	deadline := time.Now().Add(time.Second)
	if err := conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline); err != nil {
		c.logg.Debug(c.logg.WithField(ctx, "error", err.Error()), "close frame not delivered")
	}
	c.writeMu.Unlock()
	conn.Close()

	if wasOpen {
		c.closed(ctx, websocket.CloseNormalClosure)
	}
}

// IsConnected reports whether the socket is currently open.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateOpen
}

// Exhausted reports whether the last scheduled reconnect failed and no
// further attempt will be made until Reconnect.
func (c *Client) Exhausted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exhausted
}

// Attempts returns the number of reconnects scheduled since the last open.
func (c *Client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// OnMessage registers h and returns a function that removes exactly that registration.
func (c *Client) OnMessage(h MessageHandler) func() {
	return c.onMessage.add(h)
}

func (c *Client) OnConnect(h ConnectHandler) func() {
	return c.onConnect.add(h)
}

func (c *Client) OnDisconnect(h DisconnectHandler) func() {
	return c.onDisconnect.add(h)
}
