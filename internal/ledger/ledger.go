// Package ledger persists imported repositories, scaffolder tasks, task
// locations and workflow instances.
package ledger

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/pressly/goose/v3"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// Config selects the backing store.
type Config struct {
	Driver string
	DSN    string
}

// Ledger groups the per-record stores over one database handle.
type Ledger struct {
	db    *gorm.DB
	sqlDB *sql.DB

	Repositories         *Repositories
	WorkflowRepositories *Repositories
	Tasks                *Tasks
	Locations            *TaskLocations
	Workflows            *Workflows
}

// Open connects to the configured store, applies pending migrations and
// returns a ready ledger.
func Open(ctx context.Context, cfg Config) (*Ledger, error) {
	sqlDB, dialector, err := openConn(cfg)
	if err != nil {
		return nil, err
	}

	if err := Migrate(ctx, sqlDB, cfg.Driver); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to open gorm session: %w", err)
	}

	l := New(db)
	l.sqlDB = sqlDB

	return l, nil
}

// New wraps an existing gorm handle. The schema must already be migrated.
func New(db *gorm.DB) *Ledger {
	return &Ledger{
		db:                   db,
		Repositories:         NewRepositories(db, TableRepositories),
		WorkflowRepositories: NewRepositories(db, TableOrchestratorRepositories),
		Tasks:                &Tasks{db: db},
		Locations:            &TaskLocations{db: db},
		Workflows:            &Workflows{db: db},
	}
}

// DB returns the underlying gorm handle.
func (l *Ledger) DB() *gorm.DB {
	return l.db
}

// Ping checks the database connection.
func (l *Ledger) Ping(ctx context.Context) error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.PingContext(ctx)
}

// Close releases the database connection.
func (l *Ledger) Close() error {
	if l.sqlDB != nil {
		return l.sqlDB.Close()
	}

	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

// Migrate applies every pending migration for driver.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	dialect, dir := goose.DialectSQLite3, "migrations/sqlite"
	if driver == DriverPostgres {
		dialect, dir = goose.DialectPostgres, "migrations/postgres"
	}

	fsys, err := fs.Sub(migrationsFS, dir)
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func openConn(cfg Config) (*sql.DB, gorm.Dialector, error) {
	switch cfg.Driver {
	case "", DriverSQLite:
		dsn := cfg.DSN
		if dsn == "" {
			dsn = ":memory:"
		}

		memory := strings.HasPrefix(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")

		if !memory {
			if err := os.MkdirAll(filepath.Dir(dsn), 0700); err != nil {
				return nil, nil, fmt.Errorf("creating database directory: %w", err)
			}
		}

		sqlDB, err := sql.Open("sqlite", sqliteDSN(dsn))
		if err != nil {
			return nil, nil, fmt.Errorf("opening database: %w", err)
		}

		// One connection keeps an in-memory database alive and serializes writers.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		if !memory {
			sqlDB.SetConnMaxLifetime(time.Hour)
		}

		return sqlDB, sqlite.New(sqlite.Config{DriverName: "sqlite", Conn: sqlDB}), nil

	case DriverPostgres:
		sqlDB, err := sql.Open("pgx", cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("opening database: %w", err)
		}

		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetConnMaxLifetime(time.Hour)

		return sqlDB, postgres.New(postgres.Config{Conn: sqlDB}), nil
	}

	return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

func sqliteDSN(dsn string) string {
	params := []string{"_pragma=foreign_keys(1)", "_pragma=busy_timeout(5000)"}
	if !strings.HasPrefix(dsn, ":memory:") {
		params = append(params, "_pragma=journal_mode(WAL)")
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}

	return dsn + sep + strings.Join(params, "&")
}
