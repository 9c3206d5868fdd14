package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"accessadmin.com/accessadmin/attendance/model"
	"accessadmin.com/accessadmin/utils"
	"gorm.io/gorm"
)

// maxErrorLength bounds the stored failure detail.
const maxErrorLength = 2000

// Ledger is the append-only record of sync attempts. Rows are never updated
// or deleted.
type Ledger struct {
	db  *gorm.DB
	now func() time.Time
}

func New(db *gorm.DB) *Ledger {
	return &Ledger{db: db, now: time.Now}
}

// Record appends attempt. CreatedAt is stamped here when unset.
func (l *Ledger) Record(ctx context.Context, attempt *model.SyncAttempt) error {
	if attempt.ID != 0 {
		return errors.New("sync attempt already recorded")
	}
	if attempt.TargetID == "" {
		attempt.TargetID = model.BatchTarget
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = l.now()
	}
	attempt.CreatedAt = attempt.CreatedAt.UTC()
	if attempt.Error != nil {
		attempt.Error = utils.Ptr(utils.Truncate(*attempt.Error, maxErrorLength))
	}
	if err := l.db.WithContext(ctx).Create(attempt).Error; err != nil {
		return fmt.Errorf("record %s attempt for %s: %w", attempt.Operation, attempt.TargetID, err)
	}
	return nil
}

type Stat struct {
	Operation model.Operation     `json:"operation"`
	Status    model.AttemptStatus `json:"status"`
	Count     int64               `gorm:"column:total" json:"count"`
}

// StatsSince counts attempts since the given instant grouped by operation and
// status.
func (l *Ledger) StatsSince(ctx context.Context, since time.Time) ([]Stat, error) {
	var stats []Stat
	err := l.db.WithContext(ctx).
		Model(&model.SyncAttempt{}).
		Select("operation, status, count(*) as total").
		Where("created_at >= ?", since.UTC()).
		Group("operation, status").
		Order("operation, status").
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("sync stats: %w", err)
	}
	return stats, nil
}

// HasSucceeded reports whether a SUCCESS row exists for op and target since
// the given instant.
func (l *Ledger) HasSucceeded(ctx context.Context, op model.Operation, targetID string, since time.Time) (bool, error) {
	var count int64
	err := l.db.WithContext(ctx).
		Model(&model.SyncAttempt{}).
		Where("operation = ? AND target_id = ? AND status = ? AND created_at >= ?", op, targetID, model.AttemptSuccess, since.UTC()).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("look up %s success for %s: %w", op, targetID, err)
	}
	return count > 0, nil
}

// LastAttempt returns the most recent attempt for op and target, nil when
// there is none.
func (l *Ledger) LastAttempt(ctx context.Context, op model.Operation, targetID string) (*model.SyncAttempt, error) {
	var attempt model.SyncAttempt
	err := l.db.WithContext(ctx).
		Where("operation = ? AND target_id = ?", op, targetID).
		Order("created_at DESC, id DESC").
		First(&attempt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last %s attempt for %s: %w", op, targetID, err)
	}
	return &attempt, nil
}

// Recent returns up to limit attempts, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]model.SyncAttempt, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var attempts []model.SyncAttempt
	err := l.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&attempts).Error
	if err != nil {
		return nil, fmt.Errorf("recent attempts: %w", err)
	}
	return attempts, nil
}
