package models

import (
	"time"

	dbtypes "github.com/angelmondragon/tableside/pkg/db/types"
)

// SessionSnapshot mirrors the latest state of one ordering session.
type SessionSnapshot struct {
	SessionID string       `gorm:"primaryKey;size:191"`
	Version   uint64       `gorm:"not null"`
	Payload   dbtypes.JSON `gorm:"type:text;not null"`
	UpdatedAt time.Time    `gorm:"not null"`
}

func (SessionSnapshot) TableName() string {
	return "session_snapshots"
}
