package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/twosmallonions/recipes/backend/internal/model"
	"go.uber.org/zap"
)

const rollbackSuffix = "_rollback.sql"

// ErrNothingToRollback is returned by Down when no applied migration has a
// rollback file.
var ErrNothingToRollback = errors.New("no migration to roll back")

// MigrationStatus reports whether a migration file has been applied.
type MigrationStatus struct {
	Name      string
	AppliedAt *time.Time
}

// Migrator applies the SQL files of an fs.FS in lexical order and records
// them in the migrations table.
type Migrator struct {
	db     *sql.DB
	files  fs.FS
	logger *zap.Logger
}

func NewMigrator(db *sql.DB, files fs.FS, logger *zap.Logger) *Migrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Migrator{db: db, files: files, logger: logger}
}

// RunMigrations brings the schema up to date. SQLite connections use
// gorm auto-migration of the models instead of the SQL files.
func RunMigrations(ctx context.Context, db *DB, files fs.FS, logger *zap.Logger) error {
	if db.IsSQLite() {
		logger.Info("using gorm auto-migration for sqlite")
		return db.WithContext(ctx).AutoMigrate(&model.Recipe{}, &model.Instruction{}, &model.Ingredient{})
	}

	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("db handle error: %w", err)
	}
	_, err = NewMigrator(sqlDB, files, logger).Up(ctx)
	return err
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS migrations (
			name VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// upFiles lists forward migrations sorted by name.
func (m *Migrator) upFiles() ([]string, error) {
	entries, err := fs.ReadDir(m.files, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") || strings.HasSuffix(name, rollbackSuffix) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *Migrator) applied(ctx context.Context) (map[string]time.Time, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT name, applied_at FROM migrations`)
	if err != nil {
		return nil, fmt.Errorf("failed to check migration status: %w", err)
	}
	defer rows.Close()

	out := make(map[string]time.Time)
	for rows.Next() {
		var (
			name string
			at   time.Time
		)
		if err := rows.Scan(&name, &at); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		out[name] = at
	}
	return out, rows.Err()
}

// Up applies every pending migration, each in its own transaction, and
// returns the names it applied.
func (m *Migrator) Up(ctx context.Context) ([]string, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	names, err := m.upFiles()
	if err != nil {
		return nil, err
	}
	done, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	var applied []string
	for _, name := range names {
		if _, ok := done[name]; ok {
			m.logger.Debug("skipping migration (already applied)", zap.String("name", name))
			continue
		}
		content, err := fs.ReadFile(m.files, name)
		if err != nil {
			return applied, fmt.Errorf("failed to read migration file %s: %w", name, err)
		}
		err = m.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, string(content)); err != nil {
				return fmt.Errorf("failed to execute migration %s: %w", name, err)
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO migrations (name, applied_at) VALUES ($1, $2)`, name, time.Now().UTC()); err != nil {
				return fmt.Errorf("failed to record migration %s: %w", name, err)
			}
			return nil
		})
		if err != nil {
			return applied, err
		}
		m.logger.Info("applied migration", zap.String("name", name))
		applied = append(applied, name)
	}
	return applied, nil
}

// Down reverts the most recently named applied migration using its
// rollback file.
func (m *Migrator) Down(ctx context.Context) (string, error) {
	if err := m.ensureTable(ctx); err != nil {
		return "", err
	}
	done, err := m.applied(ctx)
	if err != nil {
		return "", err
	}
	if len(done) == 0 {
		return "", ErrNothingToRollback
	}
	names := make([]string, 0, len(done))
	for name := range done {
		names = append(names, name)
	}
	sort.Strings(names)
	name := names[len(names)-1]

	rollback := strings.TrimSuffix(name, ".sql") + rollbackSuffix
	content, err := fs.ReadFile(m.files, rollback)
	if err != nil {
		return "", fmt.Errorf("no rollback for %s: %w", name, err)
	}
	err = m.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("failed to execute rollback %s: %w", rollback, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM migrations WHERE name = $1`, name); err != nil {
			return fmt.Errorf("failed to unrecord migration %s: %w", name, err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	m.logger.Info("rolled back migration", zap.String("name", name))
	return name, nil
}

// Status lists every forward migration with its applied time, if any.
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	names, err := m.upFiles()
	if err != nil {
		return nil, err
	}
	done, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]MigrationStatus, 0, len(names))
	for _, name := range names {
		st := MigrationStatus{Name: name}
		if at, ok := done[name]; ok {
			st.AppliedAt = &at
		}
		out = append(out, st)
	}
	return out, nil
}

func (m *Migrator) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
