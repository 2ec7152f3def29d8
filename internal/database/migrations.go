package database

import (
	"database/sql"
	"fmt"
	"log"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered schema history of the on-device store. The store
// ships embedded in the binary, so migrations are code rather than .sql files.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_trips",
		SQL: `
			CREATE TABLE IF NOT EXISTS trips (
				local_id TEXT PRIMARY KEY,
				remote_id TEXT,
				activity_type TEXT NOT NULL,
				is_manual INTEGER NOT NULL DEFAULT 0,
				started_at INTEGER NOT NULL,
				ended_at INTEGER,
				distance_m REAL NOT NULL DEFAULT 0,
				duration_s INTEGER NOT NULL DEFAULT 0,
				co2_saved_kg REAL NOT NULL DEFAULT 0,
				route_summary TEXT,
				sync_state TEXT NOT NULL DEFAULT 'UNSYNCED',
				sync_attempts INTEGER NOT NULL DEFAULT 0,
				created_at INTEGER NOT NULL,
				updated_at INTEGER NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_trips_started_at ON trips(started_at);
			CREATE INDEX IF NOT EXISTS idx_trips_sync_state ON trips(sync_state);
			CREATE UNIQUE INDEX IF NOT EXISTS idx_trips_single_active
				ON trips((1)) WHERE ended_at IS NULL;
		`,
	},
	{
		Version: 2,
		Name:    "create_locations",
		SQL: `
			CREATE TABLE IF NOT EXISTS locations (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				trip_id TEXT NOT NULL REFERENCES trips(local_id) ON DELETE CASCADE,
				latitude REAL NOT NULL,
				longitude REAL NOT NULL,
				altitude REAL,
				accuracy REAL,
				speed REAL,
				heading REAL,
				captured_at INTEGER NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_locations_trip_time
				ON locations(trip_id, captured_at);
		`,
	},
	{
		Version: 3,
		Name:    "create_preferences",
		SQL: `
			CREATE TABLE IF NOT EXISTS preferences (
				key TEXT PRIMARY KEY,
				value TEXT NOT NULL,
				updated_at INTEGER NOT NULL
			);
		`,
	},
}

// InitMigrationsTable creates the migrations tracking table
func InitMigrationsTable(db *sql.DB) error {
	query := `
		CREATE TABLE IF NOT EXISTS migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// GetAppliedMigrations returns the set of applied migration versions
func GetAppliedMigrations(db *sql.DB) (map[int]bool, error) {
	rows, err := db.Query("SELECT version FROM migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}

	return applied, nil
}

// applyMigration applies a single migration inside a transaction
func applyMigration(db *sql.DB, migration Migration) error {
	err := Transaction(db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(migration.SQL); err != nil {
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}
		if _, err := tx.Exec("INSERT INTO migrations (version, name) VALUES (?, ?)",
			migration.Version, migration.Name); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Printf("[Database] Applied migration %d: %s", migration.Version, migration.Name)
	return nil
}

// Migrate runs all pending migrations
func Migrate(db *sql.DB) error {
	if err := InitMigrationsTable(db); err != nil {
		return err
	}

	applied, err := GetAppliedMigrations(db)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if applied[migration.Version] {
			continue
		}
		if err := applyMigration(db, migration); err != nil {
			return err
		}
	}

	return nil
}
