// Package migrate manages the documents schema from the SQL files embedded in package db,
// using golang-migrate.
package migrate

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"

	"user-session-service/internal/db"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

const dir = "migrations"

// Migration is one embedded schema version and its paired files.
type Migration struct {
	Version uint
	Name    string
	Up      string
	Down    string
}

// Migrations lists the embedded migrations in version order. It fails when a version is missing
// its up or down file, or when a file name does not follow golang-migrate's naming.
func Migrations() ([]Migration, error) {
	entries, err := fs.ReadDir(db.MigrationFS, dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	byVersion := make(map[uint]*Migration)
	for _, e := range entries {
		f, err := source.Parse(e.Name())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		m, ok := byVersion[f.Version]
		if !ok {
			m = &Migration{Version: f.Version, Name: f.Identifier}
			byVersion[f.Version] = m
		}
		if m.Name != f.Identifier {
			return nil, fmt.Errorf("version %d has names %q and %q", f.Version, m.Name, f.Identifier)
		}
		switch f.Direction {
		case source.Up:
			m.Up = e.Name()
		case source.Down:
			m.Down = e.Name()
		}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.Up == "" || m.Down == "" {
			return nil, fmt.Errorf("version %d (%s) needs both up and down files", m.Version, m.Name)
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Run applies every pending migration ("up") or reverts all of them ("down") on dsn.
// Being already at the target is not an error.
func Run(dsn string, direction string) error {
	if direction != "up" && direction != "down" {
		return fmt.Errorf("direction must be up or down, got %q", direction)
	}
	m, err := open(dsn)
	if err != nil {
		return err
	}
	defer func() { _, _ = m.Close() }()

	if direction == "up" {
		err = m.Up()
	} else {
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate %s: %w", direction, err)
	}
	return nil
}

// Version returns the schema version recorded in dsn. It is 0 when no migration has run.
// dirty reports a migration that failed part way and needs manual repair.
func Version(dsn string) (version uint, dirty bool, err error) {
	m, err := open(dsn)
	if err != nil {
		return 0, false, err
	}
	defer func() { _, _ = m.Close() }()

	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func open(dsn string) (*migrate.Migrate, error) {
	if dsn == "" {
		return nil, errors.New("DATABASE_URL is required for DAO=document")
	}
	src, err := iofs.New(db.MigrationFS, dir)
	if err != nil {
		return nil, fmt.Errorf("migrate source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return m, nil
}
