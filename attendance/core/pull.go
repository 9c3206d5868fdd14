package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"accessadmin.com/accessadmin/attendance/model"
	"accessadmin.com/accessadmin/attendance/registry"
	v1 "accessadmin.com/accessadmin/deviceapi/v1"
)

// Pull ingests remote transactions punched since the watermark (or within
// the lookback on the first run). Transactions are handled in the order the
// device API returns them. The returned error is non-nil only when the local
// store fails.
func (e *Engine) Pull(ctx context.Context) (*Report, error) {
	const op = model.OperationPullTransactions
	report := &Report{Operation: op}
	now := e.now()

	watermark, err := e.registry.GetWatermark(ctx, model.PullScope)
	if err != nil {
		return report, err
	}
	start := now.Add(-e.lookback)
	if watermark != nil {
		start = *watermark
	}

	var progress watermarkProgress
	identities := map[string]*model.Identity{}

	for tx, err := range e.device.Transactions(ctx, v1.TransactionFilter{StartTime: start, EndTime: now}) {
		if err != nil {
			var malformed *v1.MalformedError
			if errors.As(err, &malformed) {
				report.Processed++
				report.Failed++
				target := malformed.ID
				if target == "" {
					target = model.BatchTarget
				}
				if err := e.failed(ctx, op, target, err); err != nil {
					return report, err
				}
				continue
			}

			report.Aborted = true
			if err := e.failed(ctx, op, model.BatchTarget, err); err != nil {
				return report, err
			}
			break
		}

		report.Processed++
		identity, ok := identities[tx.EmpCode]
		if !ok {
			identity, err = e.registry.FindIdentityByRemoteCode(ctx, tx.EmpCode)
			if err != nil {
				return report, err
			}
			identities[tx.EmpCode] = identity
		}
		if identity == nil {
			report.Failed++
			if err := e.failed(ctx, op, tx.ID, &UnknownIdentityError{EmpCode: tx.EmpCode, TxID: tx.ID}); err != nil {
				return report, err
			}
			continue
		}

		event := &model.AttendanceEvent{
			IdentityID: identity.ID,
			Direction:  directionOf(tx.PunchState),
			Timestamp:  tx.PunchTime,
			Origin:     model.OriginRemote,
			RemoteTxID: &tx.ID,
			TerminalSN: tx.TerminalSN,
			SyncState:  model.SyncStateSynced,
			SyncedAt:   &now,
		}
		err = e.registry.AppendAttendanceEvent(ctx, event)
		var dup *registry.DuplicateError
		switch {
		case err == nil:
			report.Succeeded++
			progress.done(tx.PunchTime)
			if err := e.succeeded(ctx, op, tx.ID); err != nil {
				return report, err
			}
		case errors.As(err, &dup):
			report.Duplicates++
			progress.done(tx.PunchTime)
		default:
			report.Failed++
			progress.retry(tx.PunchTime)
			if err := e.failed(ctx, op, tx.ID, fmt.Errorf("append event: %w", err)); err != nil {
				return report, err
			}
		}
	}

	if next, ok := progress.next(); ok {
		if err := e.registry.SetWatermark(ctx, model.PullScope, next); err != nil {
			return report, err
		}
	}
	return e.finish(report), nil
}

// watermarkProgress tracks how far the watermark may move: up to the latest
// ingested punch, but never past a punch that must be read again.
type watermarkProgress struct {
	latestDone    time.Time
	earliestRetry time.Time
}

func (p *watermarkProgress) done(at time.Time) {
	if at.After(p.latestDone) {
		p.latestDone = at
	}
}

func (p *watermarkProgress) retry(at time.Time) {
	if p.earliestRetry.IsZero() || at.Before(p.earliestRetry) {
		p.earliestRetry = at
	}
}

func (p *watermarkProgress) next() (time.Time, bool) {
	if p.latestDone.IsZero() {
		return time.Time{}, false
	}
	if !p.earliestRetry.IsZero() && p.earliestRetry.Before(p.latestDone) {
		return p.earliestRetry, true
	}
	return p.latestDone, true
}

func directionOf(state v1.PunchState) model.Direction {
	if state.IsCheckIn() {
		return model.DirectionIn
	}
	return model.DirectionOut
}

func punchStateOf(direction model.Direction) v1.PunchState {
	if direction == model.DirectionIn {
		return v1.PunchCheckIn
	}
	return v1.PunchCheckOut
}
