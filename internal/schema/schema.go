// Package schema drives golang-migrate over the SQL files in migrations/.
package schema

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

// ErrDirty is returned when a previous run failed half way.
var ErrDirty = errors.New("schema is dirty")

// Migrator owns the connection used for migrating; Close releases it.
type Migrator struct {
	m  *migrate.Migrate
	db *sql.DB
}

// Open connects to dsn and reads migrations from dir.
func Open(dir, dsn string) (*Migrator, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating migrate driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating migrate instance: %w", err)
	}
	return &Migrator{m: m, db: db}, nil
}

func (s *Migrator) Close() error { return s.db.Close() }

// Version reports 0 for a database that was never migrated.
func (s *Migrator) Version() (uint, bool, error) {
	v, dirty, err := s.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

// Up applies pending migrations and returns the versions before and after.
// A dirty schema is refused.
func (s *Migrator) Up() (from, to uint, err error) {
	from, dirty, err := s.Version()
	if err != nil {
		return 0, 0, fmt.Errorf("checking migration version: %w", err)
	}
	if dirty {
		return from, from, fmt.Errorf("%w at version %d, force a version first", ErrDirty, from)
	}
	if err := ignoreNoChange(s.m.Up()); err != nil {
		return from, from, fmt.Errorf("applying migrations: %w", err)
	}
	to, _, err = s.Version()
	return from, to, err
}

// Steps moves n migrations forward (n > 0) or back (n < 0). n == 0 means
// all the way in the given direction.
func (s *Migrator) Steps(n int, up bool) error {
	switch {
	case n != 0:
		return ignoreNoChange(s.m.Steps(n))
	case up:
		return ignoreNoChange(s.m.Up())
	default:
		return ignoreNoChange(s.m.Down())
	}
}

func (s *Migrator) Force(version int) error { return s.m.Force(version) }

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}
