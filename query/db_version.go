package query

import "fmt"

const (
	TableDatabaseVersion = "database_version"

	currentDbVersion = 1
)

func (db *Database) GetDbVersion() (int, error) {
	var dbVersion int
	query := "SELECT db_version FROM database_version LIMIT 1"
	err := db.Get(&dbVersion, query)
	if err != nil {
		return 0, fmt.Errorf("GetDbVersion: %w", err)
	}
	return dbVersion, nil
}

func (db *Database) TableExists(tableName string) (bool, error) {
	query := `
		SELECT count(name) 
		FROM sqlite_master 
		WHERE type='table' AND name=?
	`

	var count int
	err := db.QueryRow(query, tableName).Scan(&count)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

func (db *Database) updateDb() error {
	dbVersion, err := db.GetDbVersion()
	if err != nil {
		return fmt.Errorf("updateDb: %w", err)
	}
	if dbVersion >= currentDbVersion {
		return nil
	}

	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("updateDb: %w", err)
	}
	defer tx.Rollback()

	if dbVersion < 1 {
		// v0 rows predate crash recovery; backfill last_seen from whatever
		// end is known.
		if _, err := tx.Exec(`ALTER TABLE activities ADD COLUMN last_seen DATETIME`); err != nil {
			return fmt.Errorf("updateDb: %w", err)
		}
		if _, err := tx.Exec(`UPDATE activities SET last_seen = COALESCE(end_time, start_time) WHERE last_seen IS NULL`); err != nil {
			return fmt.Errorf("updateDb: %w", err)
		}
		if _, err := tx.Exec(`UPDATE database_version SET db_version=1`); err != nil {
			return fmt.Errorf("updateDb: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("updateDb: error at commit: %w", err)
	}
	return nil
}
