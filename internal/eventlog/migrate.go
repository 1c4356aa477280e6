package eventlog

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Init brings the moderation_events schema up to date. It is idempotent:
// running it against a current schema is a no-op, so every binary can call
// it unconditionally at startup.
func (s *Store) Init(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("eventlog: ping: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("eventlog: open migrations: %w", err)
	}

	driver, err := postgres.WithInstance(s.db, &postgres.Config{
		MigrationsTable: "moderation_events_migrations",
	})
	if err != nil {
		return fmt.Errorf("eventlog: migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("eventlog: migrate setup: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("eventlog: migrate up: %w", err)
	}
	return nil
}
