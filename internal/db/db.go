package db

import (
	"database/sql"
	"fmt"

	"kmc-grain/internal/logger"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database holding simulation results. The engine itself
// is in-memory only; this store consumes its introspection output after a
// run.
type DB struct {
	sql *sql.DB
}

// Open opens (or creates) the results database at path and runs
// migrations.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	d := &DB{sql: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	logger.Success("DB", fmt.Sprintf("Opened %s", path))
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) migrate() error {
	version := 0
	d.sql.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)

	if version < 1 {
		_, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS runs (
				id                INTEGER PRIMARY KEY AUTOINCREMENT,
				started_at        TEXT NOT NULL,
				seed              INTEGER NOT NULL,
				sigma             REAL NOT NULL,
				distance          INTEGER NOT NULL,
				walkers           INTEGER NOT NULL,
				threshold         INTEGER NOT NULL,
				time_resolution   REAL NOT NULL,
				cutoff_time       REAL NOT NULL,
				hops              INTEGER NOT NULL,
				wall_seconds      REAL NOT NULL
			);

			CREATE TABLE IF NOT EXISTS site_visits (
				run_id   INTEGER NOT NULL REFERENCES runs(id),
				site_id  INTEGER NOT NULL,
				visits   INTEGER NOT NULL,
				PRIMARY KEY (run_id, site_id)
			);

			CREATE TABLE IF NOT EXISTS clusters (
				run_id         INTEGER NOT NULL REFERENCES runs(id),
				cluster_id     INTEGER NOT NULL,
				site_count     INTEGER NOT NULL,
				members        TEXT NOT NULL,
				resolution     REAL NOT NULL,
				time_increment REAL NOT NULL,
				PRIMARY KEY (run_id, cluster_id)
			);
			CREATE INDEX IF NOT EXISTS idx_site_visits_run ON site_visits(run_id);
			CREATE INDEX IF NOT EXISTS idx_clusters_run ON clusters(run_id);

			INSERT OR REPLACE INTO schema_version (version) VALUES (1);
		`)
		if err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
	}
	return nil
}
