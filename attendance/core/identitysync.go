package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"accessadmin.com/accessadmin/attendance/model"
	"accessadmin.com/accessadmin/attendance/registry"
	v1 "accessadmin.com/accessadmin/deviceapi/v1"
)

// SyncIdentities registers identities without a remote employee code on the
// device API, using the national id as the employee code. A conflict is
// never retried automatically: the identity is skipped until an operator
// edits it.
func (e *Engine) SyncIdentities(ctx context.Context) (*Report, error) {
	const op = model.OperationSyncIdentity
	report := &Report{Operation: op}

	identities, err := e.registry.ListIdentitiesWithoutRemoteCode(ctx)
	if err != nil {
		return report, err
	}

	for _, identity := range identities {
		report.Processed++
		target := strconv.FormatUint(uint64(identity.ID), 10)

		blocked, err := e.blockedByConflict(ctx, &identity, target)
		if err != nil {
			return report, err
		}
		if blocked {
			report.Skipped++
			continue
		}

		firstName := identity.FirstName
		if firstName == "" {
			firstName = identity.NationalID
		}
		remoteID, err := e.device.CreateEmployee(ctx, v1.EmployeeSpec{
			EmpCode:   identity.NationalID,
			FirstName: firstName,
			LastName:  identity.LastName,
		})

		var (
			authErr     *v1.AuthError
			conflictErr *v1.ConflictError
		)
		switch {
		case err == nil:
			if err := e.registry.AssignRemoteCode(ctx, identity.ID, identity.NationalID, remoteID); err != nil {
				if !errors.Is(err, registry.ErrRemoteCodeAssigned) {
					return report, err
				}
				report.Failed++
				if err := e.failed(ctx, op, target, fmt.Errorf("created remote employee %d: %w", remoteID, err)); err != nil {
					return report, err
				}
				continue
			}
			report.Succeeded++
			if err := e.succeeded(ctx, op, target); err != nil {
				return report, err
			}
		case errors.As(err, &authErr):
			report.Aborted = true
			if err := e.failed(ctx, op, model.BatchTarget, err); err != nil {
				return report, err
			}
			return e.finish(report), nil
		case errors.As(err, &conflictErr):
			report.Failed++
			if err := e.failed(ctx, op, target, err); err != nil {
				return report, err
			}
			e.notify(ctx, fmt.Sprintf("Identity %d (%s %s) could not be registered on the device: employee code %s already exists. Resolve it manually, then edit the identity to retry.",
				identity.ID, identity.FirstName, identity.LastName, identity.NationalID))
		default:
			report.Failed++
			if err := e.failed(ctx, op, target, err); err != nil {
				return report, err
			}
		}
	}
	return e.finish(report), nil
}

// blockedByConflict reports whether the last attempt for the identity was a
// conflict that nobody has addressed since.
func (e *Engine) blockedByConflict(ctx context.Context, identity *model.Identity, target string) (bool, error) {
	last, err := e.ledger.LastAttempt(ctx, model.OperationSyncIdentity, target)
	if err != nil {
		return false, err
	}
	if last == nil || last.Status != model.AttemptFailed || last.ErrorKind != model.ErrorKindConflict {
		return false, nil
	}
	return !identity.UpdatedAt.After(last.CreatedAt), nil
}
