package model

import "time"

type Operation string

const (
	OperationPullTransactions Operation = "PULL_TRANSACTIONS"
	OperationPushEvent        Operation = "PUSH_EVENT"
	OperationSyncIdentity     Operation = "SYNC_IDENTITY"
)

type AttemptStatus string

const (
	AttemptSuccess AttemptStatus = "SUCCESS"
	AttemptFailed  AttemptStatus = "FAILED"
)

// ErrorKind classifies a failed attempt for grouping on the dashboard.
type ErrorKind string

const (
	ErrorKindNone            ErrorKind = ""
	ErrorKindAuth            ErrorKind = "auth"
	ErrorKindRemote          ErrorKind = "remote"
	ErrorKindConflict        ErrorKind = "conflict"
	ErrorKindUnknownIdentity ErrorKind = "unknown_identity"
	ErrorKindMalformed       ErrorKind = "malformed"
	ErrorKindInternal        ErrorKind = "internal"
)

// BatchTarget is the target id for failures concerning a whole pass.
const BatchTarget = "batch"

// SyncAttempt is an immutable ledger row describing one reconciliation
// operation.
type SyncAttempt struct {
	ID        uint          `gorm:"primaryKey;column:id" json:"id"`
	Operation Operation     `gorm:"column:operation;type:varchar(32);not null;index:idx_attempt_target,priority:1" json:"operation"`
	TargetID  string        `gorm:"column:target_id;type:varchar(64);not null;index:idx_attempt_target,priority:2" json:"targetId"`
	Status    AttemptStatus `gorm:"column:status;type:varchar(8);not null" json:"status"`
	ErrorKind ErrorKind     `gorm:"column:error_kind;type:varchar(32)" json:"errorKind,omitempty"`
	Error     *string       `gorm:"column:error;type:text" json:"error,omitempty"`
	CreatedAt time.Time     `gorm:"column:created_at;index" json:"createdAt"`
}

func (SyncAttempt) TableName() string {
	return "sync_attempts"
}
