package model

import "time"

type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

func (d Direction) Valid() bool {
	return d == DirectionIn || d == DirectionOut
}

type Origin string

const (
	OriginLocal  Origin = "LOCAL"
	OriginRemote Origin = "REMOTE"
)

type SyncState string

const (
	SyncStatePending SyncState = "PENDING"
	SyncStateSynced  SyncState = "SYNCED"
	SyncStateFailed  SyncState = "FAILED"
)

// AttendanceEvent is a single check-in or check-out punch. For REMOTE events
// the pair (IdentityID, RemoteTxID) is unique; NULL remote ids do not collide.
type AttendanceEvent struct {
	ID         string    `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	IdentityID uint      `gorm:"column:identity_id;not null;uniqueIndex:idx_identity_remote_tx,priority:1" json:"identityId"`
	Direction  Direction `gorm:"column:direction;type:varchar(8);not null" json:"direction"`
	Timestamp  time.Time `gorm:"column:timestamp;not null;index" json:"timestamp"`
	Origin     Origin    `gorm:"column:origin;type:varchar(8);not null;index:idx_origin_state,priority:1" json:"origin"`
	RemoteTxID *string   `gorm:"column:remote_tx_id;type:varchar(64);uniqueIndex:idx_identity_remote_tx,priority:2" json:"remoteTxId"`
	TerminalSN string    `gorm:"column:terminal_sn;type:varchar(64)" json:"terminalSn"`

	SyncState SyncState  `gorm:"column:sync_state;type:varchar(8);not null;index:idx_origin_state,priority:2" json:"syncState"`
	Attempts  int        `gorm:"column:attempts;not null;default:0" json:"attempts"`
	LastError *string    `gorm:"column:last_error;type:text" json:"lastError"`
	SyncedAt  *time.Time `gorm:"column:synced_at" json:"syncedAt"`

	CreatedAt time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updatedAt"`

	Identity *Identity `gorm:"foreignKey:IdentityID;references:ID" json:"identity,omitempty"`
}

func (AttendanceEvent) TableName() string {
	return "attendance_events"
}
