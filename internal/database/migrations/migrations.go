package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

// Files holds the schema migrations shipped with the binary.
//
//go:embed *.sql
var Files embed.FS

// Migration represents a database migration
type Migration struct {
	Version int
	Up      string
	Down    string
}

// LoadMigrations reads NNNN_name.up.sql / NNNN_name.down.sql pairs from fsys,
// sorted by version.
func LoadMigrations(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	versionFiles := make(map[int]*Migration)

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}

		var version int
		var rest string
		if _, err := fmt.Sscanf(name, "%d_%s", &version, &rest); err != nil {
			log.Warn().Err(err).Str("file", name).Msg("Skipping invalid migration file")
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", name, err)
		}

		m, ok := versionFiles[version]
		if !ok {
			m = &Migration{Version: version}
			versionFiles[version] = m
		}
		switch {
		case strings.HasSuffix(rest, ".up.sql"):
			m.Up = string(content)
		case strings.HasSuffix(rest, ".down.sql"):
			m.Down = string(content)
		}
	}

	migrations := make([]Migration, 0, len(versionFiles))
	for _, m := range versionFiles {
		migrations = append(migrations, *m)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	log.Debug().Int("count", len(migrations)).Msg("Loaded migrations")
	return migrations, nil
}

// RunMigrations executes all pending migrations
func RunMigrations(db *sqlx.DB, migrations []Migration) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var versions []int
	if err := db.Select(&versions, "SELECT version FROM schema_migrations ORDER BY version"); err != nil {
		return fmt.Errorf("failed to query applied migrations: %w", err)
	}
	applied := make(map[int]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}

	record := db.Rebind("INSERT INTO schema_migrations (version) VALUES (?)")

	for _, migration := range migrations {
		if applied[migration.Version] {
			continue
		}
		log.Info().Int("version", migration.Version).Msg("Running migration")
		if err := applyStep(db, migration.Up, record, migration.Version); err != nil {
			return fmt.Errorf("migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// RollbackMigrations rolls back the last n applied migrations
func RollbackMigrations(db *sqlx.DB, migrations []Migration, n int) error {
	var versions []int
	if err := db.Select(&versions, db.Rebind("SELECT version FROM schema_migrations ORDER BY version DESC LIMIT ?"), n); err != nil {
		return fmt.Errorf("failed to query applied migrations: %w", err)
	}

	byVersion := make(map[int]Migration, len(migrations))
	for _, m := range migrations {
		byVersion[m.Version] = m
	}
	remove := db.Rebind("DELETE FROM schema_migrations WHERE version = ?")

	for _, version := range versions {
		migration, ok := byVersion[version]
		if !ok || migration.Down == "" {
			log.Warn().Int("version", version).Msg("No down migration found, skipping")
			continue
		}
		log.Info().Int("version", version).Msg("Rolling back migration")
		if err := applyStep(db, migration.Down, remove, version); err != nil {
			return fmt.Errorf("rollback of migration %d: %w", version, err)
		}
	}

	return nil
}

// applyStep runs script and its schema_migrations bookkeeping statement in
// one transaction.
func applyStep(db *sqlx.DB, script, bookkeeping string, version int) error {
	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(script); err != nil {
		return fmt.Errorf("failed to execute script: %w", err)
	}
	if _, err := tx.Exec(bookkeeping, version); err != nil {
		return fmt.Errorf("failed to update schema_migrations: %w", err)
	}
	return tx.Commit()
}
