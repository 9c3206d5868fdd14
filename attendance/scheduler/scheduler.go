package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"accessadmin.com/accessadmin/attendance/core"
	"accessadmin.com/accessadmin/attendance/model"
	"accessadmin.com/accessadmin/config"
	"github.com/sirupsen/logrus"
)

var ErrUnknownJob = errors.New("unknown job")

type RunFunc func(ctx context.Context) (*core.Report, error)

type Job struct {
	Name      string
	Operation model.Operation
	Cadence   time.Duration
	Run       RunFunc
}

type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

type Outcome string

const (
	OutcomeNone    Outcome = ""
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

type JobStatus struct {
	Name           string       `json:"name"`
	State          State        `json:"state"`
	Cadence        string       `json:"cadence"`
	LastOutcome    Outcome      `json:"lastOutcome,omitempty"`
	LastStartedAt  *time.Time   `json:"lastStartedAt,omitempty"`
	LastFinishedAt *time.Time   `json:"lastFinishedAt,omitempty"`
	LastError      string       `json:"lastError,omitempty"`
	LastReport     *core.Report `json:"lastReport,omitempty"`
	NextDue        *time.Time   `json:"nextDue,omitempty"`
	Runs           int64        `json:"runs"`
	Skipped        int64        `json:"skipped"`
}

type Ledger interface {
	Record(ctx context.Context, attempt *model.SyncAttempt) error
}

type Notifier interface {
	Error(ctx context.Context, message string) error
}

// Locker guards a job across replicas. Acquire returns ok=false when another
// holder owns key.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

type Options struct {
	Ledger     Ledger
	Notifier   Notifier
	Locker     Locker
	LockTTL    time.Duration
	RunOnStart bool
	Logger     *logrus.Logger
	Now        func() time.Time
}

// Scheduler runs each job on its own cadence. A tick or manual trigger that
// arrives while the same job is running is skipped, never queued.
type Scheduler struct {
	jobs   []*jobState
	byName map[string]*jobState

	ledger     Ledger
	notifier   Notifier
	locker     Locker
	lockTTL    time.Duration
	runOnStart bool
	logger     *logrus.Logger
	now        func() time.Time

	mu      sync.Mutex
	baseCtx context.Context
	wg      sync.WaitGroup
}

type jobState struct {
	job     Job
	running atomic.Bool
	runs    atomic.Int64
	skipped atomic.Int64

	mu             sync.Mutex
	lastOutcome    Outcome
	lastStartedAt  *time.Time
	lastFinishedAt *time.Time
	lastError      string
	lastReport     *core.Report
	nextDue        *time.Time
}

func New(jobs []Job, opts Options) (*Scheduler, error) {
	if opts.Logger == nil {
		opts.Logger = config.GetLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 15 * time.Minute
	}

	s := &Scheduler{
		byName:     make(map[string]*jobState, len(jobs)),
		ledger:     opts.Ledger,
		notifier:   opts.Notifier,
		locker:     opts.Locker,
		lockTTL:    opts.LockTTL,
		runOnStart: opts.RunOnStart,
		logger:     opts.Logger,
		now:        opts.Now,
		baseCtx:    context.Background(),
	}
	for _, job := range jobs {
		if job.Name == "" || job.Run == nil {
			return nil, fmt.Errorf("job %q needs a name and a run function", job.Name)
		}
		if job.Cadence <= 0 {
			return nil, fmt.Errorf("job %s: cadence must be positive", job.Name)
		}
		if _, ok := s.byName[job.Name]; ok {
			return nil, fmt.Errorf("job %s registered twice", job.Name)
		}
		js := &jobState{job: job}
		s.jobs = append(s.jobs, js)
		s.byName[job.Name] = js
	}
	return s, nil
}

// Start launches one ticker goroutine per job. The goroutines stop when ctx
// is cancelled; Wait then drains runs still in flight.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	for _, js := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, js)
	}
}

func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, js *jobState) {
	defer s.wg.Done()

	ticker := time.NewTicker(js.job.Cadence)
	defer ticker.Stop()
	js.setNextDue(s.now().Add(js.job.Cadence))

	if s.runOnStart {
		s.dispatch(ctx, js)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			js.setNextDue(s.now().Add(js.job.Cadence))
			s.dispatch(ctx, js)
		}
	}
}

// Trigger runs the named job now unless it is already running. It reports
// whether a run was started.
func (s *Scheduler) Trigger(name string) (bool, error) {
	js, ok := s.byName[name]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()
	return s.dispatch(ctx, js), nil
}

// dispatch starts a run in its own goroutine so the ticker loop never blocks
// and cannot accumulate a pending tick.
func (s *Scheduler) dispatch(ctx context.Context, js *jobState) bool {
	if !js.running.CompareAndSwap(false, true) {
		js.skipped.Add(1)
		s.logger.WithFields(logrus.Fields{"module": "attendance/scheduler", "job": js.job.Name}).Info("previous run still in progress, skipping tick")
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer js.running.Store(false)
		s.run(ctx, js)
	}()
	return true
}

func (s *Scheduler) run(ctx context.Context, js *jobState) {
	logger := s.logger.WithFields(logrus.Fields{"module": "attendance/scheduler", "job": js.job.Name})

	if s.locker != nil {
		release, ok, err := s.locker.Acquire(ctx, "attendance:job:"+js.job.Name, s.lockTTL)
		if err != nil {
			s.fail(ctx, js, s.now(), fmt.Errorf("acquire job lock: %w", err))
			return
		}
		if !ok {
			js.skipped.Add(1)
			js.setOutcome(OutcomeSkipped)
			logger.Info("job held by another replica, skipping tick")
			return
		}
		defer release()
	}

	startedAt := s.now()
	js.started(startedAt)
	js.runs.Add(1)

	report, err := safeRun(ctx, js.job.Run)
	if err != nil {
		s.fail(ctx, js, startedAt, err)
		return
	}

	outcome := OutcomeSuccess
	if report != nil && report.Partial() {
		outcome = OutcomePartial
	}
	js.finished(s.now(), outcome, report, "")
	logger.WithField("outcome", outcome).Debug("job finished")
}

// fail records a failure escaping the job. It never panics or returns an
// error so the process keeps running.
func (s *Scheduler) fail(ctx context.Context, js *jobState, startedAt time.Time, err error) {
	js.finished(s.now(), OutcomeFailed, nil, err.Error())
	config.LogError(s.logger, "attendance/scheduler", js.job.Name, "job failed", nil, err)

	ctx = context.WithoutCancel(ctx)
	if s.ledger != nil && js.job.Operation != "" {
		detail := err.Error()
		recordErr := s.ledger.Record(ctx, &model.SyncAttempt{
			Operation: js.job.Operation,
			TargetID:  model.BatchTarget,
			Status:    model.AttemptFailed,
			ErrorKind: core.ErrorKindOf(err),
			Error:     &detail,
			CreatedAt: startedAt,
		})
		if recordErr != nil {
			config.LogError(s.logger, "attendance/scheduler", js.job.Name, "could not record job failure", detail, recordErr)
		}
	}
	if s.notifier != nil {
		if notifyErr := s.notifier.Error(ctx, fmt.Sprintf("Sync job %s failed: %v", js.job.Name, err)); notifyErr != nil {
			config.LogError(s.logger, "attendance/scheduler", js.job.Name, "could not notify operators", nil, notifyErr)
		}
	}
}

func safeRun(ctx context.Context, run RunFunc) (report *core.Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			report = nil
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return run(ctx)
}

// Status returns a snapshot of every job in registration order.
func (s *Scheduler) Status() []JobStatus {
	out := make([]JobStatus, 0, len(s.jobs))
	for _, js := range s.jobs {
		out = append(out, js.status())
	}
	return out
}

func (js *jobState) status() JobStatus {
	js.mu.Lock()
	defer js.mu.Unlock()
	state := StateIdle
	if js.running.Load() {
		state = StateRunning
	}
	return JobStatus{
		Name:           js.job.Name,
		State:          state,
		Cadence:        js.job.Cadence.String(),
		LastOutcome:    js.lastOutcome,
		LastStartedAt:  js.lastStartedAt,
		LastFinishedAt: js.lastFinishedAt,
		LastError:      js.lastError,
		LastReport:     js.lastReport,
		NextDue:        js.nextDue,
		Runs:           js.runs.Load(),
		Skipped:        js.skipped.Load(),
	}
}

func (js *jobState) setNextDue(at time.Time) {
	js.mu.Lock()
	defer js.mu.Unlock()
	js.nextDue = &at
}

func (js *jobState) setOutcome(outcome Outcome) {
	js.mu.Lock()
	defer js.mu.Unlock()
	js.lastOutcome = outcome
}

func (js *jobState) started(at time.Time) {
	js.mu.Lock()
	defer js.mu.Unlock()
	js.lastStartedAt = &at
}

func (js *jobState) finished(at time.Time, outcome Outcome, report *core.Report, errMsg string) {
	js.mu.Lock()
	defer js.mu.Unlock()
	js.lastFinishedAt = &at
	js.lastOutcome = outcome
	js.lastReport = report
	js.lastError = errMsg
}
