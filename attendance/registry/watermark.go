package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"accessadmin.com/accessadmin/attendance/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetWatermark returns the stored watermark of scope, nil before the first
// successful pass.
func (r *Registry) GetWatermark(ctx context.Context, scope string) (*time.Time, error) {
	var state model.SyncCursor
	err := r.db.WithContext(ctx).Where("scope = ?", scope).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get watermark %s: %w", scope, err)
	}
	return state.Watermark, nil
}

// SetWatermark advances the watermark of scope to at. It never moves it
// backwards; an older value only refreshes LastSuccessAt.
func (r *Registry) SetWatermark(ctx context.Context, scope string, at time.Time) error {
	now := r.now().UTC()
	at = at.UTC()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var state model.SyncCursor
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("scope = ?", scope).First(&state).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			state = model.SyncCursor{Scope: scope, Watermark: &at, LastSuccessAt: &now}
			if err := tx.Create(&state).Error; err != nil {
				return fmt.Errorf("create watermark %s: %w", scope, err)
			}
			return nil
		case err != nil:
			return fmt.Errorf("load watermark %s: %w", scope, err)
		}

		updates := map[string]any{"last_success_at": now}
		if state.Watermark == nil || at.After(*state.Watermark) {
			updates["watermark"] = at
		}
		if err := tx.Model(&model.SyncCursor{}).Where("scope = ?", scope).Updates(updates).Error; err != nil {
			return fmt.Errorf("update watermark %s: %w", scope, err)
		}
		return nil
	})
}
