package persistence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/tableside/internal/orders"
	"github.com/angelmondragon/tableside/pkg/logger"
)

const defaultSaveTimeout = 5 * time.Second

type MirrorParams struct {
	Persister   Persister
	Logger      *logger.Logger
	SaveTimeout time.Duration
}

// Mirror writes store snapshots to a Persister off the caller's goroutine.
// Only the newest pending snapshot is kept; intermediate states are skipped.
type Mirror struct {
	persister Persister
	logg      *logger.Logger
	timeout   time.Duration

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
	once sync.Once

	mu        sync.Mutex
	pending   *orders.Snapshot
	closed    bool
	lastSaved uint64
}

func NewMirror(params MirrorParams) (*Mirror, error) {
	if params.Persister == nil {
		return nil, fmt.Errorf("persister is required")
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	if params.SaveTimeout <= 0 {
		params.SaveTimeout = defaultSaveTimeout
	}
	m := &Mirror{
		persister: params.Persister,
		logg:      params.Logger,
		timeout:   params.SaveTimeout,
		wake:      make(chan struct{}, 1),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go m.run()
	return m, nil
}

// Publish implements orders.SnapshotSink and never blocks.
func (m *Mirror) Publish(snapshot orders.Snapshot) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	if m.pending == nil || snapshot.Version >= m.pending.Version {
		m.pending = &snapshot
	}
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Close stops accepting snapshots and waits for the pending one to be written.
func (m *Mirror) Close(ctx context.Context) error {
	m.once.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()
		close(m.stop)
	})
	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Mirror) run() {
	defer close(m.done)
	for {
		select {
		case <-m.wake:
			m.flush()
		case <-m.stop:
			m.flush()
			return
		}
	}
}

func (m *Mirror) flush() {
	m.mu.Lock()
	snapshot := m.pending
	m.pending = nil
	if snapshot != nil && snapshot.Version <= m.lastSaved {
		snapshot = nil
	}
	m.mu.Unlock()
	if snapshot == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	ctx = m.logg.WithSessionID(ctx, snapshot.SessionID)

	if err := m.persister.Save(ctx, *snapshot); err != nil {
		m.logg.Error(m.logg.WithField(ctx, "version", snapshot.Version), "snapshot mirror save failed", err)
		return
	}

	m.mu.Lock()
	if snapshot.Version > m.lastSaved {
		m.lastSaved = snapshot.Version
	}
	m.mu.Unlock()
}
