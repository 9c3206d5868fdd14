package model

import "time"

const PullScope = "pull_transactions"

// SyncCursor holds the pull watermark per scope.
type SyncCursor struct {
	Scope         string     `gorm:"primaryKey;column:scope;type:varchar(64)"`
	Watermark     *time.Time `gorm:"column:watermark"`
	LastSuccessAt *time.Time `gorm:"column:last_success_at"`
	UpdatedAt     time.Time  `gorm:"column:updated_at"`
}

func (SyncCursor) TableName() string {
	return "sync_states"
}
