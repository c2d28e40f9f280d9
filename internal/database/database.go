package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// SQLitePrefix selects the embedded SQLite driver for a DSN, e.g.
// "sqlite:file:recipes.db?_foreign_keys=on".
const SQLitePrefix = "sqlite:"

// DB represents the database connection
type DB struct {
	*gorm.DB
}

// Options tune how the connection is opened.
type Options struct {
	Logger *zap.Logger
	// Verbose logs warnings and slow queries through Logger.
	Verbose bool
	// MaxRetries bounds connection attempts against a database that is
	// still starting up.
	MaxRetries int
}

// New opens a gorm connection for dsn, retrying with backoff, and checks
// it with a ping.
func New(ctx context.Context, dsn string, opts Options) (*DB, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	level := gormlogger.Silent
	if opts.Verbose {
		level = gormlogger.Warn
	}

	dialector, driver := dialectorFor(dsn)
	gcfg := &gorm.Config{
		Logger:         zapGormLogger{zap: opts.Logger, level: level},
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC().Truncate(time.Microsecond)
		},
	}

	b := backoff{
		maxRetries: opts.MaxRetries,
		delay:      500 * time.Millisecond,
		maxDelay:   5 * time.Second,
	}

	var (
		gdb *gorm.DB
		err error
	)
	for attempt := 0; ; attempt++ {
		gdb, err = gorm.Open(dialector, gcfg)
		if err == nil {
			break
		}
		if attempt >= b.maxRetries {
			return nil, fmt.Errorf("open %s failed after retries: %w", driver, err)
		}
		opts.Logger.Warn("database not ready, retrying",
			zap.String("driver", driver),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("open %s canceled: %w", driver, ctx.Err())
		case <-time.After(b.nextDelay(attempt)):
		}
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("db handle error: %w", err)
	}

	// Set connection pool settings
	if driver == "postgres" {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(25)
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
	} else {
		// SQLite allows a single writer.
		sqlDB.SetMaxOpenConns(1)
	}

	db := &DB{gdb}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.HealthCheck(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	opts.Logger.Info("connected to database", zap.String("driver", driver))
	return db, nil
}

func dialectorFor(dsn string) (gorm.Dialector, string) {
	if rest, ok := strings.CutPrefix(dsn, SQLitePrefix); ok {
		return sqlite.Open(rest), "sqlite"
	}
	return postgres.Open(dsn), "postgres"
}

// HealthCheck checks if the database is accessible
func (db *DB) HealthCheck(ctx context.Context) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying connection pool.
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// IsSQLite reports whether the connection uses the SQLite dialect.
func (db *DB) IsSQLite() bool {
	return db.Dialector.Name() == "sqlite"
}

type zapGormLogger struct {
	zap   *zap.Logger
	level gormlogger.LogLevel
}

func (l zapGormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	l.level = level
	return l
}

func (l zapGormLogger) Info(ctx context.Context, s string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		l.zap.Sugar().Infof(s, args...)
	}
}

func (l zapGormLogger) Warn(ctx context.Context, s string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.zap.Sugar().Warnf(s, args...)
	}
}

func (l zapGormLogger) Error(ctx context.Context, s string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		l.zap.Sugar().Errorf(s, args...)
	}
}

func (l zapGormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level == gormlogger.Silent {
		return
	}
	sql, rows := fc()
	dur := time.Since(begin)
	switch {
	case err != nil && !isExpected(err):
		l.zap.Error("gorm query error", zap.Duration("duration", dur), zap.Int64("rows", rows), zap.String("sql", sql), zap.Error(err))
	case dur > 200*time.Millisecond:
		l.zap.Warn("slow gorm query", zap.Duration("duration", dur), zap.Int64("rows", rows), zap.String("sql", sql))
	default:
		l.zap.Debug("gorm query", zap.Duration("duration", dur), zap.Int64("rows", rows), zap.String("sql", sql))
	}
}

// isExpected filters errors the service layer maps to client responses.
func isExpected(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound) ||
		errors.Is(err, gorm.ErrDuplicatedKey) ||
		errors.Is(err, gorm.ErrForeignKeyViolated)
}

type backoff struct {
	maxRetries int
	delay      time.Duration
	maxDelay   time.Duration
}

func (b backoff) nextDelay(attempt int) time.Duration {
	d := b.delay << attempt
	if d > b.maxDelay {
		return b.maxDelay
	}
	return d
}
