package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

func execAll(tx *sql.Tx, queries ...string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}
	return nil
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial registry schema",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS identities (
					id TEXT PRIMARY KEY,
					name TEXT NOT NULL,
					name_key TEXT NOT NULL,
					phone TEXT NOT NULL DEFAULT '',
					location TEXT NOT NULL DEFAULT '',
					external_ref TEXT NOT NULL DEFAULT '',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_identities_name_key ON identities(name_key)`,
				`CREATE INDEX idx_identities_phone ON identities(phone)`,
			)
		},
	},
	{
		Version:     2,
		Description: "Add reconciliation sessions and results",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS sessions (
					id TEXT PRIMARY KEY,
					source TEXT NOT NULL,
					fingerprint TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					completed_at DATETIME
				)`,
				`CREATE INDEX idx_sessions_fingerprint ON sessions(fingerprint)`,

				`CREATE TABLE IF NOT EXISTS session_resolutions (
					session_id TEXT NOT NULL,
					cluster_key TEXT NOT NULL,
					conflict_index INTEGER NOT NULL,
					action TEXT NOT NULL,
					manual_name TEXT NOT NULL DEFAULT '',
					manual_phone TEXT NOT NULL DEFAULT '',
					resolved_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					PRIMARY KEY (session_id, cluster_key),
					FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
				)`,

				`CREATE TABLE IF NOT EXISTS reconciled_records (
					session_id TEXT NOT NULL,
					source_row INTEGER NOT NULL,
					final_name TEXT NOT NULL,
					final_phone TEXT NOT NULL DEFAULT '',
					identity_id TEXT NOT NULL DEFAULT '',
					provenance TEXT NOT NULL,
					attributes TEXT NOT NULL DEFAULT '[]',
					PRIMARY KEY (session_id, source_row),
					FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
				)`,
				`CREATE INDEX idx_reconciled_records_identity ON reconciled_records(identity_id)`,
			)
		},
	},
	{
		Version:     3,
		Description: "Add checkpoint metadata",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS checkpoint_metadata (
					id TEXT PRIMARY KEY,
					created_at DATETIME NOT NULL,
					description TEXT,
					file_size INTEGER,
					row_counts TEXT,
					schema_version INTEGER,
					is_auto BOOLEAN DEFAULT 0
				)`,
			)
		},
	},
}

// SchemaVersion returns the applied schema version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
