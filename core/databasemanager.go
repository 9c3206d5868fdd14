package core

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"accessadmin.com/accessadmin/attendance/model"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type LogLevel int

const (
	LogLevelSilent LogLevel = iota + 1
	LogLevelError
	LogLevelWarn
	LogLevelInfo
)

// ParseLogLevel maps the application log level onto the gorm logger. Anything
// chattier than warn stays at warn so SQL is only traced on request.
func ParseLogLevel(level string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "silent", "panic", "fatal":
		return LogLevelSilent
	case "error":
		return LogLevelError
	case "trace", "sql":
		return LogLevelInfo
	default:
		return LogLevelWarn
	}
}

type DatabaseManager struct {
	DB       *gorm.DB
	SqlDB    *sql.DB
	LogLevel LogLevel
}

// New opens the pool for driver ("mysql" or "sqlite").
func New(driver string, dsn string, maxConnection int, level LogLevel) (*DatabaseManager, error) {
	var dialector gorm.Dialector
	switch driver {
	case "mysql", "":
		dialector = mysql.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(gormLogLevel(level)),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open pool: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get pool: %w", err)
	}

	if driver == "sqlite" {
		// one long-lived connection keeps an in-memory database alive and serialises writers
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	} else {
		sqlDB.SetMaxOpenConns(maxConnection)
		sqlDB.SetMaxIdleConns(maxConnection)
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping pool: %w", err)
	}

	return &DatabaseManager{DB: db, SqlDB: sqlDB, LogLevel: level}, nil
}

// OpenSQLite is a shortcut for development and tests, e.g. "file::memory:".
func OpenSQLite(dsn string) (*DatabaseManager, error) {
	dm, err := New("sqlite", dsn, 1, LogLevelSilent)
	if err != nil {
		return nil, err
	}
	if err := dm.Migrate(context.Background()); err != nil {
		dm.Close()
		return nil, err
	}
	return dm, nil
}

func gormLogLevel(level LogLevel) logger.LogLevel {
	switch level {
	case LogLevelError:
		return logger.Error
	case LogLevelWarn:
		return logger.Warn
	case LogLevelInfo:
		return logger.Info
	case LogLevelSilent:
		return logger.Silent
	default:
		return logger.Warn
	}
}

// Migrate creates or updates the engine's tables, including the
// (identity_id, remote_tx_id) unique index the pull relies on.
func (dm *DatabaseManager) Migrate(ctx context.Context) error {
	if err := dm.DB.WithContext(ctx).AutoMigrate(
		&model.Identity{},
		&model.AttendanceEvent{},
		&model.SyncAttempt{},
		&model.SyncCursor{},
	); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

// Close closes the global pool
func (dm *DatabaseManager) Close() error {
	return dm.SqlDB.Close()
}

func (dm *DatabaseManager) Exec(ctx context.Context, fn func(db *gorm.DB) error) error {
	return fn(dm.DB.WithContext(ctx))
}
