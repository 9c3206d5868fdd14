package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"accessadmin.com/accessadmin/attendance/model"
	"accessadmin.com/accessadmin/core"
	"accessadmin.com/accessadmin/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	dm, err := core.OpenSQLite("file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })
	return New(dm.DB)
}

func createIdentity(t *testing.T, r *Registry, nationalID string, remoteCode *string) *model.Identity {
	t.Helper()
	identity := &model.Identity{NationalID: nationalID, FirstName: "Ana", LastName: "Silva", RemoteCode: remoteCode}
	require.NoError(t, r.CreateIdentity(context.Background(), identity))
	return identity
}

func TestFindIdentity(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	created := createIdentity(t, r, "123456789", utils.Ptr("E001"))

	found, err := r.FindIdentityByRemoteCode(ctx, "E001")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)

	found, err = r.FindIdentityByNationalID(ctx, "123456789")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "E001", *found.RemoteCode)

	missing, err := r.FindIdentityByRemoteCode(ctx, "E999")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestAppendAttendanceEventRejectsDuplicateRemoteTx(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	identity := createIdentity(t, r, "123456789", utils.Ptr("E001"))
	at := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	first := &model.AttendanceEvent{
		IdentityID: identity.ID,
		Direction:  model.DirectionIn,
		Timestamp:  at,
		Origin:     model.OriginRemote,
		RemoteTxID: utils.Ptr("1001"),
		SyncState:  model.SyncStateSynced,
	}
	require.NoError(t, r.AppendAttendanceEvent(ctx, first))
	assert.NotEmpty(t, first.ID)

	second := &model.AttendanceEvent{
		IdentityID: identity.ID,
		Direction:  model.DirectionIn,
		Timestamp:  at,
		Origin:     model.OriginRemote,
		RemoteTxID: utils.Ptr("1001"),
		SyncState:  model.SyncStateSynced,
	}
	err := r.AppendAttendanceEvent(ctx, second)
	var dup *DuplicateError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "1001", dup.RemoteTxID)

	counts, err := r.CountEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[model.SyncStateSynced])
}

func TestLocalEventsWithoutRemoteTxDoNotCollide(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	identity := createIdentity(t, r, "123456789", nil)
	at := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		_, err := r.RecordLocalEvent(ctx, LocalPunch{IdentityID: identity.ID, Direction: model.DirectionIn, Timestamp: at})
		require.NoError(t, err)
	}

	pending, err := r.ListPendingLocalEvents(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 3)
}

func TestListPendingLocalEvents(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	identity := createIdentity(t, r, "123456789", utils.Ptr("E001"))
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	late, err := r.RecordLocalEvent(ctx, LocalPunch{IdentityID: identity.ID, Direction: model.DirectionOut, Timestamp: base.Add(8 * time.Hour)})
	require.NoError(t, err)
	early, err := r.RecordLocalEvent(ctx, LocalPunch{IdentityID: identity.ID, Direction: model.DirectionIn, Timestamp: base})
	require.NoError(t, err)
	synced, err := r.RecordLocalEvent(ctx, LocalPunch{IdentityID: identity.ID, Direction: model.DirectionIn, Timestamp: base.Add(24 * time.Hour)})
	require.NoError(t, err)
	require.NoError(t, r.MarkEventSynced(ctx, synced.ID))

	require.NoError(t, r.AppendAttendanceEvent(ctx, &model.AttendanceEvent{
		IdentityID: identity.ID,
		Direction:  model.DirectionIn,
		Timestamp:  base,
		Origin:     model.OriginRemote,
		RemoteTxID: utils.Ptr("1"),
		SyncState:  model.SyncStatePending,
	}))

	pending, err := r.ListPendingLocalEvents(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, early.ID, pending[0].ID)
	assert.Equal(t, late.ID, pending[1].ID)
	require.NotNil(t, pending[0].Identity)
	assert.Equal(t, "E001", *pending[0].Identity.RemoteCode)
}

func TestMarkEventFailedKeepsEventPending(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	identity := createIdentity(t, r, "123456789", utils.Ptr("E001"))
	event, err := r.RecordLocalEvent(ctx, LocalPunch{IdentityID: identity.ID, Direction: model.DirectionIn, Timestamp: time.Now()})
	require.NoError(t, err)

	require.NoError(t, r.MarkEventFailed(ctx, event.ID, "status 500"))
	require.NoError(t, r.MarkEventFailed(ctx, event.ID, "status 502"))

	stored, err := r.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SyncStatePending, stored.SyncState)
	assert.Equal(t, 2, stored.Attempts)
	require.NotNil(t, stored.LastError)
	assert.Equal(t, "status 502", *stored.LastError)

	require.NoError(t, r.MarkEventSynced(ctx, event.ID))
	stored, err = r.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SyncStateSynced, stored.SyncState)
	assert.NotNil(t, stored.SyncedAt)
	assert.Nil(t, stored.LastError)
}

func TestMarkEventSyncedUnknownEvent(t *testing.T) {
	r := newTestRegistry(t)
	assert.Error(t, r.MarkEventSynced(context.Background(), "does-not-exist"))
}

func TestAssignRemoteCodeOnce(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	identity := createIdentity(t, r, "123456789", nil)
	other := createIdentity(t, r, "987654321", nil)

	without, err := r.ListIdentitiesWithoutRemoteCode(ctx)
	require.NoError(t, err)
	assert.Len(t, without, 2)

	require.NoError(t, r.AssignRemoteCode(ctx, identity.ID, "123456789", 42))
	assert.ErrorIs(t, r.AssignRemoteCode(ctx, identity.ID, "X", 43), ErrRemoteCodeAssigned)
	assert.ErrorIs(t, r.AssignRemoteCode(ctx, other.ID, "123456789", 44), ErrRemoteCodeAssigned)

	stored, err := r.FindIdentityByNationalID(ctx, "123456789")
	require.NoError(t, err)
	assert.Equal(t, "123456789", *stored.RemoteCode)
	assert.Equal(t, int64(42), *stored.RemoteID)

	without, err = r.ListIdentitiesWithoutRemoteCode(ctx)
	require.NoError(t, err)
	require.Len(t, without, 1)
	assert.Equal(t, other.ID, without[0].ID)
}

func TestWatermarkNeverMovesBackwards(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	wm, err := r.GetWatermark(ctx, model.PullScope)
	require.NoError(t, err)
	assert.Nil(t, wm)

	t1 := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, r.SetWatermark(ctx, model.PullScope, t1))
	require.NoError(t, r.SetWatermark(ctx, model.PullScope, t1.Add(-time.Hour)))

	wm, err = r.GetWatermark(ctx, model.PullScope)
	require.NoError(t, err)
	require.NotNil(t, wm)
	assert.True(t, t1.Equal(*wm))

	require.NoError(t, r.SetWatermark(ctx, model.PullScope, t1.Add(time.Hour)))
	wm, err = r.GetWatermark(ctx, model.PullScope)
	require.NoError(t, err)
	assert.True(t, t1.Add(time.Hour).Equal(*wm))
}
