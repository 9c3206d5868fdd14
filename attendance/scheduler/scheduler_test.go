package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"accessadmin.com/accessadmin/attendance/core"
	"accessadmin.com/accessadmin/attendance/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryLedger struct {
	mu       sync.Mutex
	attempts []model.SyncAttempt
}

func (l *memoryLedger) Record(ctx context.Context, attempt *model.SyncAttempt) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts = append(l.attempts, *attempt)
	return nil
}

func (l *memoryLedger) all() []model.SyncAttempt {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]model.SyncAttempt(nil), l.attempts...)
}

type memoryNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *memoryNotifier) Error(ctx context.Context, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	return nil
}

func (n *memoryNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

type denyLocker struct{}

func (denyLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	return nil, false, nil
}

func statusOf(t *testing.T, s *Scheduler, name string) JobStatus {
	t.Helper()
	for _, st := range s.Status() {
		if st.Name == name {
			return st
		}
	}
	t.Fatalf("no job %s", name)
	return JobStatus{}
}

func waitIdle(t *testing.T, s *Scheduler, name string) JobStatus {
	t.Helper()
	require.Eventually(t, func() bool {
		st := statusOf(t, s, name)
		return st.State == StateIdle && st.LastOutcome != OutcomeNone
	}, 2*time.Second, 5*time.Millisecond)
	return statusOf(t, s, name)
}

func TestTriggerSkipsWhileRunning(t *testing.T) {
	release := make(chan struct{})
	s, err := New([]Job{{
		Name:      "push",
		Operation: model.OperationPushEvent,
		Cadence:   time.Hour,
		Run: func(ctx context.Context) (*core.Report, error) {
			<-release
			return &core.Report{Operation: model.OperationPushEvent, Processed: 1, Succeeded: 1}, nil
		},
	}}, Options{})
	require.NoError(t, err)

	started, err := s.Trigger("push")
	require.NoError(t, err)
	assert.True(t, started)

	started, err = s.Trigger("push")
	require.NoError(t, err)
	assert.False(t, started)

	st := statusOf(t, s, "push")
	assert.Equal(t, StateRunning, st.State)
	assert.Equal(t, int64(1), st.Skipped)

	close(release)
	st = waitIdle(t, s, "push")
	assert.Equal(t, OutcomeSuccess, st.LastOutcome)
	assert.Equal(t, int64(1), st.Runs)
	require.NotNil(t, st.LastReport)
	assert.Equal(t, 1, st.LastReport.Succeeded)
	s.Wait()
}

func TestTicksNeverOverlap(t *testing.T) {
	var active, maxActive, runs atomic.Int32
	s, err := New([]Job{{
		Name:    "pull",
		Cadence: 10 * time.Millisecond,
		Run: func(ctx context.Context) (*core.Report, error) {
			n := active.Add(1)
			for {
				m := maxActive.Load()
				if n <= m || maxActive.CompareAndSwap(m, n) {
					break
				}
			}
			runs.Add(1)
			time.Sleep(45 * time.Millisecond)
			active.Add(-1)
			return &core.Report{}, nil
		},
	}}, Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	time.Sleep(250 * time.Millisecond)
	cancel()
	s.Wait()

	assert.Equal(t, int32(1), maxActive.Load())
	assert.GreaterOrEqual(t, runs.Load(), int32(2))
	assert.Greater(t, statusOf(t, s, "pull").Skipped, int64(0))
}

func TestFailureIsRecordedAndNotified(t *testing.T) {
	ledger := &memoryLedger{}
	notifier := &memoryNotifier{}
	s, err := New([]Job{{
		Name:      "pull",
		Operation: model.OperationPullTransactions,
		Cadence:   time.Hour,
		Run: func(ctx context.Context) (*core.Report, error) {
			return nil, errors.New("database is locked")
		},
	}}, Options{Ledger: ledger, Notifier: notifier})
	require.NoError(t, err)

	_, err = s.Trigger("pull")
	require.NoError(t, err)
	st := waitIdle(t, s, "pull")
	s.Wait()

	assert.Equal(t, OutcomeFailed, st.LastOutcome)
	assert.Contains(t, st.LastError, "database is locked")

	attempts := ledger.all()
	require.Len(t, attempts, 1)
	assert.Equal(t, model.OperationPullTransactions, attempts[0].Operation)
	assert.Equal(t, model.BatchTarget, attempts[0].TargetID)
	assert.Equal(t, model.AttemptFailed, attempts[0].Status)
	assert.Equal(t, model.ErrorKindInternal, attempts[0].ErrorKind)
	assert.Equal(t, 1, notifier.count())
}

func TestPanicIsRecovered(t *testing.T) {
	ledger := &memoryLedger{}
	s, err := New([]Job{{
		Name:      "identity_sync",
		Operation: model.OperationSyncIdentity,
		Cadence:   time.Hour,
		Run: func(ctx context.Context) (*core.Report, error) {
			panic("registry handle is nil")
		},
	}}, Options{Ledger: ledger})
	require.NoError(t, err)

	_, err = s.Trigger("identity_sync")
	require.NoError(t, err)
	st := waitIdle(t, s, "identity_sync")
	s.Wait()

	assert.Equal(t, OutcomeFailed, st.LastOutcome)
	assert.Contains(t, st.LastError, "panic")
	assert.Len(t, ledger.all(), 1)

	started, err := s.Trigger("identity_sync")
	require.NoError(t, err)
	assert.True(t, started)
	s.Wait()
}

func TestPartialOutcome(t *testing.T) {
	s, err := New([]Job{{
		Name:    "push",
		Cadence: time.Hour,
		Run: func(ctx context.Context) (*core.Report, error) {
			return &core.Report{Processed: 2, Succeeded: 1, Failed: 1}, nil
		},
	}}, Options{})
	require.NoError(t, err)

	_, err = s.Trigger("push")
	require.NoError(t, err)
	assert.Equal(t, OutcomePartial, waitIdle(t, s, "push").LastOutcome)
	s.Wait()
}

func TestLockHeldElsewhereSkips(t *testing.T) {
	var runs atomic.Int32
	s, err := New([]Job{{
		Name:    "pull",
		Cadence: time.Hour,
		Run: func(ctx context.Context) (*core.Report, error) {
			runs.Add(1)
			return &core.Report{}, nil
		},
	}}, Options{Locker: denyLocker{}})
	require.NoError(t, err)

	_, err = s.Trigger("pull")
	require.NoError(t, err)
	st := waitIdle(t, s, "pull")
	s.Wait()

	assert.Equal(t, OutcomeSkipped, st.LastOutcome)
	assert.Equal(t, int64(1), st.Skipped)
	assert.Equal(t, int32(0), runs.Load())
}

func TestTriggerUnknownJob(t *testing.T) {
	s, err := New(nil, Options{})
	require.NoError(t, err)
	_, err = s.Trigger("nope")
	assert.ErrorIs(t, err, ErrUnknownJob)
}

func TestNewRejectsInvalidJobs(t *testing.T) {
	run := func(ctx context.Context) (*core.Report, error) { return nil, nil }
	tests := []struct {
		name string
		jobs []Job
	}{
		{name: "missing run", jobs: []Job{{Name: "pull", Cadence: time.Minute}}},
		{name: "zero cadence", jobs: []Job{{Name: "pull", Run: run}}},
		{name: "duplicate", jobs: []Job{{Name: "pull", Cadence: time.Minute, Run: run}, {Name: "pull", Cadence: time.Minute, Run: run}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.jobs, Options{})
			assert.Error(t, err)
		})
	}
}

func TestStartSetsNextDue(t *testing.T) {
	s, err := New([]Job{{
		Name:    "pull",
		Cadence: time.Hour,
		Run:     func(ctx context.Context) (*core.Report, error) { return &core.Report{}, nil },
	}}, Options{RunOnStart: true})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	st := waitIdle(t, s, "pull")
	cancel()
	s.Wait()

	assert.Equal(t, OutcomeSuccess, st.LastOutcome)
	require.NotNil(t, st.NextDue)
	assert.WithinDuration(t, time.Now().Add(time.Hour), *st.NextDue, time.Minute)
}
