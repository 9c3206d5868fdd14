package core

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"accessadmin.com/accessadmin/attendance/model"
	"accessadmin.com/accessadmin/config"
	v1 "accessadmin.com/accessadmin/deviceapi/v1"
	"github.com/sirupsen/logrus"
)

// DeviceAPI is the slice of the device API the engine drives.
type DeviceAPI interface {
	Transactions(ctx context.Context, filter v1.TransactionFilter) iter.Seq2[v1.RemoteTransaction, error]
	PushTransaction(ctx context.Context, spec v1.TransactionSpec) error
	CreateEmployee(ctx context.Context, spec v1.EmployeeSpec) (int64, error)
}

type Registry interface {
	FindIdentityByRemoteCode(ctx context.Context, code string) (*model.Identity, error)
	AppendAttendanceEvent(ctx context.Context, event *model.AttendanceEvent) error
	ListPendingLocalEvents(ctx context.Context) ([]model.AttendanceEvent, error)
	MarkEventSynced(ctx context.Context, eventID string) error
	MarkEventFailed(ctx context.Context, eventID string, reason string) error
	ListIdentitiesWithoutRemoteCode(ctx context.Context) ([]model.Identity, error)
	AssignRemoteCode(ctx context.Context, identityID uint, code string, remoteID int64) error
	GetWatermark(ctx context.Context, scope string) (*time.Time, error)
	SetWatermark(ctx context.Context, scope string, at time.Time) error
}

type Ledger interface {
	Record(ctx context.Context, attempt *model.SyncAttempt) error
	HasSucceeded(ctx context.Context, op model.Operation, targetID string, since time.Time) (bool, error)
	LastAttempt(ctx context.Context, op model.Operation, targetID string) (*model.SyncAttempt, error)
}

// Notifier alerts operators about failures that need a human.
type Notifier interface {
	Error(ctx context.Context, message string) error
}

type Options struct {
	// Lookback bounds the first pull, before any watermark exists.
	Lookback time.Duration
	// GuardWindow is how far back a SUCCESS push suppresses another push.
	GuardWindow time.Duration
	Now         func() time.Time
	Logger      *logrus.Logger
}

// Engine reconciles the local registry with the device API. Pull, Push and
// SyncIdentities touch disjoint rows and may run concurrently with each
// other, but each must not overlap with itself.
type Engine struct {
	device   DeviceAPI
	registry Registry
	ledger   Ledger
	notifier Notifier

	lookback    time.Duration
	guardWindow time.Duration
	now         func() time.Time
	logger      *logrus.Logger
}

func NewEngine(device DeviceAPI, registry Registry, ledger Ledger, notifier Notifier, opts Options) *Engine {
	if opts.Lookback <= 0 {
		opts.Lookback = 24 * time.Hour
	}
	if opts.GuardWindow <= 0 {
		opts.GuardWindow = time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = config.GetLogger()
	}
	return &Engine{
		device:      device,
		registry:    registry,
		ledger:      ledger,
		notifier:    notifier,
		lookback:    opts.Lookback,
		guardWindow: opts.GuardWindow,
		now:         opts.Now,
		logger:      opts.Logger,
	}
}

// Report summarises one pass. Aborted is set when the pass stopped early on
// an authentication or page fetch failure.
type Report struct {
	Operation  model.Operation `json:"operation"`
	Processed  int             `json:"processed"`
	Succeeded  int             `json:"succeeded"`
	Duplicates int             `json:"duplicates"`
	Failed     int             `json:"failed"`
	Skipped    int             `json:"skipped"`
	Aborted    bool            `json:"aborted"`
}

// Partial reports whether the pass finished with some failures.
func (r *Report) Partial() bool {
	return r.Failed > 0 || r.Aborted
}

func (r *Report) fields() logrus.Fields {
	return logrus.Fields{
		"operation":  r.Operation,
		"processed":  r.Processed,
		"succeeded":  r.Succeeded,
		"duplicates": r.Duplicates,
		"failed":     r.Failed,
		"skipped":    r.Skipped,
		"aborted":    r.Aborted,
	}
}

// UnknownIdentityError marks a punch that cannot be mapped across systems:
// a remote employee code with no local identity, or a local identity that
// has no remote employee code yet.
type UnknownIdentityError struct {
	EmpCode    string
	TxID       string
	IdentityID uint
}

func (e *UnknownIdentityError) Error() string {
	if e.EmpCode == "" {
		return fmt.Sprintf("unknown identity: identity %d has no remote employee code", e.IdentityID)
	}
	return fmt.Sprintf("unknown identity: no local identity for employee code %s (transaction %s)", e.EmpCode, e.TxID)
}

// ErrorKindOf classifies err for the ledger.
func ErrorKindOf(err error) model.ErrorKind {
	var (
		authErr      *v1.AuthError
		remoteErr    *v1.RemoteError
		conflictErr  *v1.ConflictError
		malformedErr *v1.MalformedError
		unknownErr   *UnknownIdentityError
	)
	switch {
	case err == nil:
		return model.ErrorKindNone
	case errors.As(err, &authErr):
		return model.ErrorKindAuth
	case errors.As(err, &conflictErr):
		return model.ErrorKindConflict
	case errors.As(err, &malformedErr):
		return model.ErrorKindMalformed
	case errors.As(err, &unknownErr):
		return model.ErrorKindUnknownIdentity
	case errors.As(err, &remoteErr):
		return model.ErrorKindRemote
	default:
		return model.ErrorKindInternal
	}
}

func (e *Engine) succeeded(ctx context.Context, op model.Operation, target string) error {
	return e.ledger.Record(ctx, &model.SyncAttempt{
		Operation: op,
		TargetID:  target,
		Status:    model.AttemptSuccess,
		CreatedAt: e.now(),
	})
}

func (e *Engine) failed(ctx context.Context, op model.Operation, target string, cause error) error {
	detail := cause.Error()
	e.logger.WithFields(logrus.Fields{
		"module":    "attendance/core",
		"operation": op,
		"target":    target,
		"kind":      ErrorKindOf(cause),
	}).Warn(detail)
	return e.ledger.Record(ctx, &model.SyncAttempt{
		Operation: op,
		TargetID:  target,
		Status:    model.AttemptFailed,
		ErrorKind: ErrorKindOf(cause),
		Error:     &detail,
		CreatedAt: e.now(),
	})
}

func (e *Engine) notify(ctx context.Context, message string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Error(ctx, message); err != nil {
		config.LogError(e.logger, "attendance/core", "notify", "operator notification failed", message, err)
	}
}

func (e *Engine) finish(report *Report) *Report {
	entry := e.logger.WithFields(report.fields())
	if report.Partial() {
		entry.Warn("sync pass finished with failures")
	} else {
		entry.Info("sync pass finished")
	}
	return report
}
