package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"accessadmin.com/accessadmin/attendance/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrRemoteCodeAssigned is returned when an identity already holds a remote
// employee code.
var ErrRemoteCodeAssigned = errors.New("remote code already assigned")

// DuplicateError means the (identity, remote transaction) key already exists.
type DuplicateError struct {
	IdentityID uint
	RemoteTxID string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("attendance event for identity %d and remote transaction %s already exists", e.IdentityID, e.RemoteTxID)
}

// Registry is the local system of record for identities and attendance
// events. Every write touches a single row.
type Registry struct {
	db  *gorm.DB
	now func() time.Time
}

func New(db *gorm.DB) *Registry {
	return &Registry{db: db, now: time.Now}
}

func (r *Registry) FindIdentityByRemoteCode(ctx context.Context, code string) (*model.Identity, error) {
	var identity model.Identity
	err := r.db.WithContext(ctx).Where("remote_code = ?", code).First(&identity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find identity by remote code: %w", err)
	}
	return &identity, nil
}

func (r *Registry) FindIdentityByNationalID(ctx context.Context, nationalID string) (*model.Identity, error) {
	var identity model.Identity
	err := r.db.WithContext(ctx).Where("national_id = ?", nationalID).First(&identity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find identity by national id: %w", err)
	}
	return &identity, nil
}

func (r *Registry) CreateIdentity(ctx context.Context, identity *model.Identity) error {
	if identity.NationalID == "" {
		return errors.New("identity requires a national id")
	}
	if err := r.db.WithContext(ctx).Create(identity).Error; err != nil {
		return fmt.Errorf("create identity %s: %w", identity.NationalID, err)
	}
	return nil
}

// ListIdentitiesWithoutRemoteCode returns identities not yet registered on
// the device API, oldest first.
func (r *Registry) ListIdentitiesWithoutRemoteCode(ctx context.Context) ([]model.Identity, error) {
	var identities []model.Identity
	err := r.db.WithContext(ctx).
		Where("remote_code IS NULL OR remote_code = ''").
		Order("id").
		Find(&identities).Error
	if err != nil {
		return nil, fmt.Errorf("list identities without remote code: %w", err)
	}
	return identities, nil
}

// AssignRemoteCode sets the remote employee code once. A second assignment
// fails with ErrRemoteCodeAssigned and leaves the row untouched.
func (r *Registry) AssignRemoteCode(ctx context.Context, identityID uint, code string, remoteID int64) error {
	result := r.db.WithContext(ctx).
		Model(&model.Identity{}).
		Where("id = ? AND (remote_code IS NULL OR remote_code = '')", identityID).
		Updates(map[string]any{"remote_code": code, "remote_id": remoteID})
	if result.Error != nil {
		if isDuplicate(result.Error) {
			return fmt.Errorf("remote code %s belongs to another identity: %w", code, ErrRemoteCodeAssigned)
		}
		return fmt.Errorf("assign remote code: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRemoteCodeAssigned
	}
	return nil
}

// AppendAttendanceEvent inserts event and relies on the unique key alone to
// reject duplicates. An empty ID is filled with a new uuid.
func (r *Registry) AppendAttendanceEvent(ctx context.Context, event *model.AttendanceEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if !event.Direction.Valid() {
		return fmt.Errorf("invalid direction %q", event.Direction)
	}
	event.Timestamp = event.Timestamp.UTC()

	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(event).Error
	if err == nil {
		return nil
	}
	if isDuplicate(err) {
		dup := &DuplicateError{IdentityID: event.IdentityID}
		if event.RemoteTxID != nil {
			dup.RemoteTxID = *event.RemoteTxID
		}
		return dup
	}
	return fmt.Errorf("append attendance event: %w", err)
}

// LocalPunch is an entry or exit recorded on this side.
type LocalPunch struct {
	IdentityID uint
	Direction  model.Direction
	Timestamp  time.Time
	TerminalSN string
}

// RecordLocalEvent stores a LOCAL punch awaiting push.
func (r *Registry) RecordLocalEvent(ctx context.Context, punch LocalPunch) (*model.AttendanceEvent, error) {
	event := &model.AttendanceEvent{
		IdentityID: punch.IdentityID,
		Direction:  punch.Direction,
		Timestamp:  punch.Timestamp.UTC(),
		Origin:     model.OriginLocal,
		TerminalSN: punch.TerminalSN,
		SyncState:  model.SyncStatePending,
	}
	if err := r.AppendAttendanceEvent(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// HasLocalEvent reports whether a LOCAL punch with the same identity,
// direction and timestamp was already recorded.
func (r *Registry) HasLocalEvent(ctx context.Context, punch LocalPunch) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.AttendanceEvent{}).
		Where("identity_id = ? AND origin = ? AND direction = ? AND timestamp = ?", punch.IdentityID, model.OriginLocal, punch.Direction, punch.Timestamp.UTC()).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("look up local event: %w", err)
	}
	return count > 0, nil
}

// ListPendingLocalEvents returns LOCAL events awaiting push, oldest first,
// with their identity loaded.
func (r *Registry) ListPendingLocalEvents(ctx context.Context) ([]model.AttendanceEvent, error) {
	var events []model.AttendanceEvent
	err := r.db.WithContext(ctx).
		Preload("Identity").
		Where("origin = ? AND sync_state = ?", model.OriginLocal, model.SyncStatePending).
		Order("timestamp, created_at").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("list pending local events: %w", err)
	}
	return events, nil
}

func (r *Registry) MarkEventSynced(ctx context.Context, eventID string) error {
	now := r.now()
	result := r.db.WithContext(ctx).
		Model(&model.AttendanceEvent{}).
		Where("id = ?", eventID).
		Updates(map[string]any{
			"sync_state": model.SyncStateSynced,
			"synced_at":  now,
			"last_error": nil,
		})
	if result.Error != nil {
		return fmt.Errorf("mark event %s synced: %w", eventID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("mark event %s synced: %w", eventID, gorm.ErrRecordNotFound)
	}
	return nil
}

// MarkEventFailed counts a failed push. The event stays PENDING so the next
// push pass picks it up again.
func (r *Registry) MarkEventFailed(ctx context.Context, eventID string, reason string) error {
	result := r.db.WithContext(ctx).
		Model(&model.AttendanceEvent{}).
		Where("id = ? AND sync_state <> ?", eventID, model.SyncStateSynced).
		Updates(map[string]any{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": reason,
		})
	if result.Error != nil {
		return fmt.Errorf("mark event %s failed: %w", eventID, result.Error)
	}
	return nil
}

func (r *Registry) GetEvent(ctx context.Context, eventID string) (*model.AttendanceEvent, error) {
	var event model.AttendanceEvent
	err := r.db.WithContext(ctx).Where("id = ?", eventID).First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", eventID, err)
	}
	return &event, nil
}

// CountEvents returns the number of events per sync state, for the status page.
func (r *Registry) CountEvents(ctx context.Context) (map[model.SyncState]int64, error) {
	var rows []struct {
		SyncState model.SyncState
		Total     int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.AttendanceEvent{}).
		Select("sync_state, count(*) as total").
		Group("sync_state").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	out := make(map[model.SyncState]int64, len(rows))
	for _, row := range rows {
		out[row.SyncState] = row.Total
	}
	return out, nil
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "Duplicate entry")
}
