package realtime

import (
	"context"
	"errors"
	"net/http"
	"time"

	pkgerrors "github.com/angelmondragon/tableside/pkg/errors"
	"github.com/gorilla/websocket"
)

// Conn is the subset of *websocket.Conn the client relies on.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Dialer opens websocket connections.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, header http.Header) (Conn, error)
}

// Timer is a pending reconnect.
type Timer interface {
	Stop() bool
}

// Scheduler runs f after d on its own goroutine.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// NewDialer wraps gorilla's dialer with the given handshake timeout.
func NewDialer(handshakeTimeout time.Duration) Dialer {
	return gorillaDialer{dialer: &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
	}}
}

type gorillaDialer struct {
	dialer *websocket.Dialer
}

func (g gorillaDialer) DialContext(ctx context.Context, urlStr string, header http.Header) (Conn, error) {
	conn, resp, err := g.dialer.DialContext(ctx, urlStr, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			switch resp.StatusCode {
			case http.StatusUnauthorized, http.StatusForbidden:
				return nil, pkgerrors.Wrap(pkgerrors.FromStatus(resp.StatusCode), err, "realtime handshake rejected the token")
			}
		}
		return nil, err
	}
	return conn, nil
}

type timeScheduler struct{}

func (timeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// closeCodeOf extracts the websocket close code from a read error. Anything
// that is not a close frame counts as an abnormal closure.
func closeCodeOf(err error) int {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return closeErr.Code
	}
	return websocket.CloseAbnormalClosure
}
