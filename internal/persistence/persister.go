package persistence

import (
	"context"

	"github.com/angelmondragon/tableside/internal/orders"
	pkgerrors "github.com/angelmondragon/tableside/pkg/errors"
)

// ErrNotFound is returned by Load when no snapshot exists for a session.
var ErrNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "snapshot not found")

// Persister stores the latest snapshot per session. Save must ignore a
// snapshot whose version is not newer than the stored one.
type Persister interface {
	Save(ctx context.Context, snapshot orders.Snapshot) error
	Load(ctx context.Context, sessionID string) (orders.Snapshot, error)
	Delete(ctx context.Context, sessionID string) error
}
