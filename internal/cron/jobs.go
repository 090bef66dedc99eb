package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/tableside/internal/orders"
)

// Connection is the slice of the realtime client the jobs look at.
type Connection interface {
	IsConnected() bool
}

// Refresher reloads the order board.
type Refresher interface {
	Refresh(ctx context.Context) (*orders.OrderPage, error)
}

// Reconnector restarts a realtime client whose reconnect budget ran out.
type Reconnector interface {
	Connection
	Exhausted() bool
	Reconnect(ctx context.Context)
}

// BoardPollJob refreshes the board while no socket is open, so the
// display keeps up with new orders through REST alone.
type BoardPollJob struct {
	conn  Connection
	board Refresher
}

func NewBoardPollJob(conn Connection, board Refresher) (*BoardPollJob, error) {
	if conn == nil {
		return nil, fmt.Errorf("connection required")
	}
	if board == nil {
		return nil, fmt.Errorf("board required")
	}
	return &BoardPollJob{conn: conn, board: board}, nil
}

func (j *BoardPollJob) Name() string { return "board_poll" }

func (j *BoardPollJob) Run(ctx context.Context) error {
	if j.conn.IsConnected() {
		return ErrSkip
	}
	_, err := j.board.Refresh(ctx)
	return err
}

// ReconnectJob restarts the realtime client after its last scheduled
// reconnect failed. While an attempt is pending the client's own backoff is
// in charge and the job does nothing.
type ReconnectJob struct {
	client Reconnector
}

func NewReconnectJob(client Reconnector) (*ReconnectJob, error) {
	if client == nil {
		return nil, fmt.Errorf("client required")
	}
	return &ReconnectJob{client: client}, nil
}

func (j *ReconnectJob) Name() string { return "realtime_reconnect" }

func (j *ReconnectJob) Run(ctx context.Context) error {
	if j.client.IsConnected() || !j.client.Exhausted() {
		return ErrSkip
	}
	j.client.Reconnect(ctx)
	return nil
}
