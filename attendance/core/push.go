package core

import (
	"context"
	"errors"

	"accessadmin.com/accessadmin/attendance/model"
	v1 "accessadmin.com/accessadmin/deviceapi/v1"
)

// Push sends pending LOCAL events to the device API. A failed push leaves the
// event PENDING for the next pass; there is no retry inside a pass. The
// device API de-duplicates by employee and punch time.
func (e *Engine) Push(ctx context.Context) (*Report, error) {
	const op = model.OperationPushEvent
	report := &Report{Operation: op}

	events, err := e.registry.ListPendingLocalEvents(ctx)
	if err != nil {
		return report, err
	}

	guardSince := e.now().Add(-e.guardWindow)
	for _, event := range events {
		report.Processed++

		// a push that reached the device but was never marked synced
		pushed, err := e.ledger.HasSucceeded(ctx, op, event.ID, guardSince)
		if err != nil {
			return report, err
		}
		if pushed {
			report.Skipped++
			if err := e.registry.MarkEventSynced(ctx, event.ID); err != nil {
				return report, err
			}
			continue
		}

		if event.Identity == nil || !event.Identity.HasRemoteCode() {
			report.Failed++
			cause := &UnknownIdentityError{IdentityID: event.IdentityID}
			if err := e.registry.MarkEventFailed(ctx, event.ID, cause.Error()); err != nil {
				return report, err
			}
			if err := e.failed(ctx, op, event.ID, cause); err != nil {
				return report, err
			}
			continue
		}

		err = e.device.PushTransaction(ctx, v1.TransactionSpec{
			EmpCode:    *event.Identity.RemoteCode,
			PunchTime:  event.Timestamp,
			PunchState: punchStateOf(event.Direction),
			TerminalSN: event.TerminalSN,
		})

		var authErr *v1.AuthError
		switch {
		case err == nil:
			report.Succeeded++
			if err := e.succeeded(ctx, op, event.ID); err != nil {
				return report, err
			}
			if err := e.registry.MarkEventSynced(ctx, event.ID); err != nil {
				return report, err
			}
		case errors.As(err, &authErr):
			report.Aborted = true
			if err := e.failed(ctx, op, model.BatchTarget, err); err != nil {
				return report, err
			}
			return e.finish(report), nil
		default:
			report.Failed++
			if err := e.registry.MarkEventFailed(ctx, event.ID, err.Error()); err != nil {
				return report, err
			}
			if err := e.failed(ctx, op, event.ID, err); err != nil {
				return report, err
			}
		}
	}
	return e.finish(report), nil
}
