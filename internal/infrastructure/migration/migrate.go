package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/billing/backend/migrations"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

// Migrator applies the invoice schema migrations to a postgres database
type Migrator struct {
	migrate *migrate.Migrate
	source  fs.FS
	logger  *zap.Logger
}

type options struct {
	table       string
	lockTimeout time.Duration
}

// Option configures a Migrator
type Option func(*options)

// WithMigrationsTable overrides the table recording the applied version
func WithMigrationsTable(table string) Option {
	return func(o *options) {
		o.table = table
	}
}

// WithLockTimeout bounds the wait for the advisory migration lock
func WithLockTimeout(d time.Duration) Option {
	return func(o *options) {
		o.lockTimeout = d
	}
}

// New creates a Migrator for a postgres connection. An empty
// migrationsPath uses the migrations embedded in the binary.
func New(db *sql.DB, migrationsPath string, logger *zap.Logger, opts ...Option) (*Migrator, error) {
	o := options{lockTimeout: migrate.DefaultLockTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: o.table})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	fsys := SourceFS(migrationsPath)
	source, err := iofs.New(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to open migrations source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &zapMigrateLogger{log: logger.Named("migrate").Sugar()}
	m.LockTimeout = o.lockTimeout

	return &Migrator{migrate: m, source: fsys, logger: logger}, nil
}

// SourceFS returns the directory at path, or the embedded migrations when
// path is empty
func SourceFS(path string) fs.FS {
	if path == "" {
		return migrations.FS
	}
	return os.DirFS(path)
}

// run executes one golang-migrate operation, treating ErrNoChange as
// success, and logs the resulting version
func (m *Migrator) run(action string, fn func() error) error {
	m.logger.Info("Running migration", zap.String("action", action))

	err := fn()
	if errors.Is(err, migrate.ErrNoChange) {
		m.logger.Info("Schema already up to date", zap.String("action", action))
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration %s failed: %w", action, err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	m.logger.Info("Migration completed",
		zap.String("action", action),
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
	)
	return nil
}

// Up runs all pending migrations
func (m *Migrator) Up() error {
	return m.run("up", m.migrate.Up)
}

// Down rolls back all migrations
func (m *Migrator) Down() error {
	return m.run("down", m.migrate.Down)
}

// Steps applies n migrations (positive = up, negative = down)
func (m *Migrator) Steps(n int) error {
	return m.run("steps "+strconv.Itoa(n), func() error { return m.migrate.Steps(n) })
}

// GoTo migrates up or down to version
func (m *Migrator) GoTo(version uint) error {
	return m.run(fmt.Sprintf("goto %d", version), func() error { return m.migrate.Migrate(version) })
}

// Version returns the current migration version; zero when none is applied
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, nil
}

// Pending lists the migrations newer than the applied version
func (m *Migrator) Pending() ([]string, error) {
	version, _, err := m.Version()
	if err != nil {
		return nil, err
	}
	names, err := ListMigrations(m.source)
	if err != nil {
		return nil, err
	}
	return pendingAfter(names, version), nil
}

// Force sets the migration version without running migrations.
// It is the way out of a dirty schema state.
func (m *Migrator) Force(version int) error {
	m.logger.Warn("Forcing migration version", zap.Int("version", version))
	if err := m.migrate.Force(version); err != nil {
		return fmt.Errorf("failed to force version %d: %w", version, err)
	}
	return nil
}

// Close releases the source and the database driver. The driver closes
// the *sql.DB passed to New.
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()
	return errors.Join(sourceErr, dbErr)
}

// pendingAfter keeps the names whose numeric prefix is above version
func pendingAfter(names []string, version uint) []string {
	pending := []string{}
	for _, name := range names {
		prefix, _, _ := strings.Cut(name, "_")
		v, err := strconv.ParseUint(prefix, 10, 64)
		if err != nil {
			continue
		}
		if uint(v) > version {
			pending = append(pending, name)
		}
	}
	return pending
}

// zapMigrateLogger forwards golang-migrate's progress lines to zap
type zapMigrateLogger struct {
	log *zap.SugaredLogger
}

func (l *zapMigrateLogger) Printf(format string, v ...any) {
	l.log.Infof(strings.TrimSuffix(format, "\n"), v...)
}

func (l *zapMigrateLogger) Verbose() bool {
	return l.log.Desugar().Core().Enabled(zap.DebugLevel)
}
