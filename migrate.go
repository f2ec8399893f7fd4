package main

import (
	"log/slog"

	"github.com/example/envelopes/internal/schema"
)

// ApplyMigrations brings the Postgres schema at dbURL up to date.
func ApplyMigrations(migrationsDir, dbURL string, log *slog.Logger) error {
	m, err := schema.Open(migrationsDir, dbURL)
	if err != nil {
		return err
	}
	defer m.Close()

	from, to, err := m.Up()
	if err != nil {
		return err
	}
	if from == to {
		log.Info("database schema up to date", "version", to)
	} else {
		log.Info("database migrated", "from", from, "to", to)
	}
	return nil
}
