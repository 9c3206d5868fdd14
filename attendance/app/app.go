package app

import (
	"context"
	"fmt"

	"accessadmin.com/accessadmin/attendance/core"
	"accessadmin.com/accessadmin/attendance/importer"
	"accessadmin.com/accessadmin/attendance/ledger"
	"accessadmin.com/accessadmin/attendance/model"
	"accessadmin.com/accessadmin/attendance/registry"
	"accessadmin.com/accessadmin/attendance/scheduler"
	"accessadmin.com/accessadmin/config"
	dbcore "accessadmin.com/accessadmin/core"
	v1 "accessadmin.com/accessadmin/deviceapi/v1"
	"accessadmin.com/accessadmin/infrastructure/communication"
	"github.com/redis/go-redis/v9"
)

const (
	JobPull         = "pull"
	JobPush         = "push"
	JobIdentitySync = "identity_sync"
)

// App holds the wired components of the sync service. Close releases the
// database pool and the redis client.
type App struct {
	Config    *config.Config
	DB        *dbcore.DatabaseManager
	Device    *v1.DeviceClient
	Directory *core.ClientAPI
	Registry  *registry.Registry
	Ledger    *ledger.Ledger
	Notifier  communication.Notifier
	Engine    *core.Engine
	Importer  *importer.Importer
	Redis     *redis.Client
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := config.GetLogger()

	dm, err := dbcore.New(cfg.Database.Driver, cfg.Database.DSN, cfg.Database.MaxConnections, dbcore.ParseLogLevel(cfg.LogLevel))
	if err != nil {
		return nil, err
	}
	if err := dm.Migrate(ctx); err != nil {
		dm.Close()
		return nil, err
	}

	device := v1.NewDeviceClient(v1.Options{
		BaseURL:       cfg.Device.BaseURL,
		Username:      cfg.Device.Username,
		Password:      cfg.Device.Password,
		AuthScheme:    cfg.Device.AuthScheme,
		Timeout:       cfg.Device.Timeout,
		RefreshMargin: cfg.Device.TokenRefreshMargin,
		TokenTTL:      cfg.Device.TokenTTL,
		Location:      cfg.Device.Location,
		PageSize:      cfg.Device.PageSize,
	})
	device.Employees.DefaultDepartment = cfg.Device.DefaultDepartment

	a := &App{
		Config:    cfg,
		DB:        dm,
		Device:    device,
		Directory: core.NewClientAPI(device),
		Registry:  registry.New(dm.DB),
		Ledger:    ledger.New(dm.DB),
		Notifier: communication.NewNotifier(cfg.Slack.Token, communication.SlackOption{
			InfoChannelID:  cfg.Slack.InfoChannelID,
			ErrorChannelID: cfg.Slack.ErrorChannelID,
		}),
	}
	a.Engine = core.NewEngine(a.Directory, a.Registry, a.Ledger, a.Notifier, core.Options{
		Lookback:    cfg.PullLookback,
		GuardWindow: cfg.LedgerGuardWindow,
		Logger:      logger,
	})
	a.Importer = importer.New(a.Registry, cfg.Device.Location)

	if cfg.RedisAddress != "" {
		rdb, err := config.ConnectRedis(ctx, cfg.RedisAddress)
		if err != nil {
			config.LogError(logger, "attendance/app", "New", "redis unavailable, jobs are only guarded in process", cfg.RedisAddress, err)
		} else {
			a.Redis = rdb
		}
	}
	return a, nil
}

// Jobs lists the three reconciliation jobs at their configured cadences.
func (a *App) Jobs() []scheduler.Job {
	return []scheduler.Job{
		{Name: JobPull, Operation: model.OperationPullTransactions, Cadence: a.Config.Jobs.PullCadence, Run: a.Engine.Pull},
		{Name: JobPush, Operation: model.OperationPushEvent, Cadence: a.Config.Jobs.PushCadence, Run: a.Engine.Push},
		{Name: JobIdentitySync, Operation: model.OperationSyncIdentity, Cadence: a.Config.Jobs.IdentitySyncCadence, Run: a.Engine.SyncIdentities},
	}
}

func (a *App) Scheduler() (*scheduler.Scheduler, error) {
	opts := scheduler.Options{
		Ledger:     a.Ledger,
		Notifier:   a.Notifier,
		RunOnStart: a.Config.Jobs.RunOnStart,
		Logger:     config.GetLogger(),
	}
	if a.Redis != nil {
		opts.Locker = scheduler.NewRedisLocker(a.Redis)
	}
	return scheduler.New(a.Jobs(), opts)
}

// RunJob runs a single pass of the named job outside the scheduler.
func (a *App) RunJob(ctx context.Context, name string) (*core.Report, error) {
	for _, job := range a.Jobs() {
		if job.Name == name {
			return job.Run(ctx)
		}
	}
	return nil, fmt.Errorf("%w: %s", scheduler.ErrUnknownJob, name)
}

func (a *App) Close() error {
	if a.Redis != nil {
		a.Redis.Close()
	}
	return a.DB.Close()
}
