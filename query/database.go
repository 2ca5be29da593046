package query

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Database wraps the sqlx handle with the engine's record and rule queries.
type Database struct {
	*sqlx.DB
}

func NewDatabase(db *sqlx.DB) *Database {
	return &Database{DB: db}
}

// DefaultPath places the database under the user config dir.
func DefaultPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving config dir: %w", err)
	}
	appDir := filepath.Join(configDir, "activity-tracker")
	if err := os.MkdirAll(appDir, 0755); err != nil {
		return "", fmt.Errorf("creating app dir: %w", err)
	}
	return filepath.Join(appDir, "activity_tracker.db"), nil
}

// InitDatabase opens (or creates) the database at path and brings the
// schema up to the current version.
func InitDatabase(path string) (*Database, error) {
	dbTemp, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Single connection: sqlite has one writer anyway, and it keeps
	// :memory: databases coherent.
	dbTemp.SetMaxOpenConns(1)
	db := NewDatabase(dbTemp)

	exist, err := db.TableExists(TableDatabaseVersion)
	if err != nil {
		return nil, err
	}
	if exist {
		if err := db.updateDb(); err != nil {
			return nil, err
		}
	} else if err := db.createSchema(); err != nil {
		return nil, err
	}

	if err := db.seedCategories(); err != nil {
		return nil, err
	}
	return db, nil
}

func (db *Database) createSchema() error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS activities (
            id TEXT PRIMARY KEY,
            app_name TEXT NOT NULL,
            window_title TEXT,
            url TEXT,
            kind TEXT NOT NULL,
            category TEXT NOT NULL,
            start_time DATETIME NOT NULL,
            end_time DATETIME,
            last_seen DATETIME NOT NULL,
            date TEXT NOT NULL
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS categories (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL UNIQUE,
            kind TEXT NOT NULL
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS category_rules (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            app_pattern TEXT NOT NULL DEFAULT '',
            url_pattern TEXT NOT NULL DEFAULT '',
            title_pattern TEXT NOT NULL DEFAULT '',
            category_id INTEGER NOT NULL REFERENCES categories(id),
            created_at DATETIME NOT NULL
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
	CREATE TABLE IF NOT EXISTS database_version (
		db_version INTEGER default 0)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`INSERT INTO database_version VALUES(?)`, currentDbVersion)
	if err != nil {
		return err
	}

	// Indexes for the common lookups: per-day queries, range scans and the
	// single open record.
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_activities_date ON activities(date)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_activities_start ON activities(start_time)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_activities_open ON activities(end_time) WHERE end_time IS NULL`)
	return err
}

// seedCategories makes sure the three built-in categories always exist.
func (db *Database) seedCategories() error {
	for _, name := range []string{"productive", "neutral", "distracting"} {
		_, err := db.Exec(`INSERT INTO categories (name, kind) VALUES (?, ?)
			ON CONFLICT(name) DO NOTHING`, name, name)
		if err != nil {
			return fmt.Errorf("seeding category %s: %w", name, err)
		}
	}
	return nil
}
