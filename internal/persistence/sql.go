package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/tableside/internal/orders"
	"github.com/angelmondragon/tableside/pkg/db"
	"github.com/angelmondragon/tableside/pkg/db/models"
	dbtypes "github.com/angelmondragon/tableside/pkg/db/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLPersister keeps snapshots in the session_snapshots table, which the
// goose migrations in pkg/migrate create.
type SQLPersister struct {
	db    *db.Client
	clock func() time.Time
}

func NewSQLPersister(client *db.Client) (*SQLPersister, error) {
	if client == nil {
		return nil, fmt.Errorf("db client is required")
	}
	return &SQLPersister{db: client, clock: time.Now}, nil
}

// Save upserts the snapshot. The update only applies when the stored version
// is older, so a late write can never roll a session back.
func (p *SQLPersister) Save(ctx context.Context, snapshot orders.Snapshot) error {
	if snapshot.SessionID == "" {
		return fmt.Errorf("session id is required")
	}
	payload, err := dbtypes.Marshal(snapshot)
	if err != nil {
		return err
	}
	row := models.SessionSnapshot{
		SessionID: snapshot.SessionID,
		Version:   snapshot.Version,
		Payload:   payload,
		UpdatedAt: p.clock().UTC(),
	}
	return p.db.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"version", "payload", "updated_at"}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "session_snapshots.version < excluded.version"},
			}},
		}).Create(&row).Error
	})
}

func (p *SQLPersister) Load(ctx context.Context, sessionID string) (orders.Snapshot, error) {
	var row models.SessionSnapshot
	err := p.db.DB().WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return orders.Snapshot{}, ErrNotFound
		}
		return orders.Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	var snapshot orders.Snapshot
	if err := row.Payload.Unmarshal(&snapshot); err != nil {
		return orders.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snapshot, nil
}

func (p *SQLPersister) Delete(ctx context.Context, sessionID string) error {
	return p.db.DB().WithContext(ctx).
		Where("session_id = ?", sessionID).
		Delete(&models.SessionSnapshot{}).Error
}
