package query

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"main/entity"
)

// Times are stored as UTC RFC3339 strings so that lexicographic comparison
// in SQL matches chronological order.
const timeLayout = time.RFC3339

type activityRow struct {
	ID          string         `db:"id"`
	AppName     string         `db:"app_name"`
	WindowTitle sql.NullString `db:"window_title"`
	URL         sql.NullString `db:"url"`
	Kind        string         `db:"kind"`
	Category    string         `db:"category"`
	StartTime   string         `db:"start_time"`
	EndTime     sql.NullString `db:"end_time"`
	LastSeen    string         `db:"last_seen"`
}

const activityColumns = `id, app_name, window_title, url, kind, category, start_time, end_time, last_seen`

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func (row activityRow) toEntity() (entity.ActivityRecord, error) {
	start, err := time.Parse(timeLayout, row.StartTime)
	if err != nil {
		return entity.ActivityRecord{}, fmt.Errorf("parsing start_time: %w", err)
	}
	seen, err := time.Parse(timeLayout, row.LastSeen)
	if err != nil {
		return entity.ActivityRecord{}, fmt.Errorf("parsing last_seen: %w", err)
	}
	rec := entity.ActivityRecord{
		ID:          row.ID,
		AppName:     row.AppName,
		WindowTitle: row.WindowTitle.String,
		URL:         row.URL.String,
		Kind:        entity.AppKind(row.Kind),
		Category:    entity.Category(row.Category),
		StartTime:   start,
		LastSeen:    seen,
	}
	if row.EndTime.Valid {
		end, err := time.Parse(timeLayout, row.EndTime.String)
		if err != nil {
			return entity.ActivityRecord{}, fmt.Errorf("parsing end_time: %w", err)
		}
		rec.EndTime = &end
	}
	return rec, nil
}

// InsertActivity writes a record, open or closed.
func (db *Database) InsertActivity(rec *entity.ActivityRecord) error {
	var end any
	if rec.EndTime != nil {
		end = formatTime(*rec.EndTime)
	}
	seen := rec.LastSeen
	if seen.IsZero() {
		seen = rec.StartTime
	}
	_, err := db.Exec(`
        INSERT INTO activities 
        (id, app_name, window_title, url, kind, category, start_time, end_time, last_seen, date) 
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.AppName,
		rec.WindowTitle,
		rec.URL,
		string(rec.Kind),
		string(rec.Category),
		formatTime(rec.StartTime),
		end,
		formatTime(seen),
		rec.StartTime.UTC().Format("2006-01-02"),
	)
	if err != nil {
		return fmt.Errorf("inserting activity: %w", err)
	}
	return nil
}

// UpdateActivityContext updates the mutable fields of an open record in
// place; the record keeps its identity and start time.
func (db *Database) UpdateActivityContext(id, windowTitle, url string, seen time.Time) error {
	_, err := db.Exec(`UPDATE activities SET window_title = ?, url = ?, last_seen = ? WHERE id = ?`,
		windowTitle, url, formatTime(seen), id)
	if err != nil {
		return fmt.Errorf("updating activity %s: %w", id, err)
	}
	return nil
}

// TouchActivity bumps last_seen so crash recovery can close the record
// near the moment tracking actually stopped.
func (db *Database) TouchActivity(id string, seen time.Time) error {
	_, err := db.Exec(`UPDATE activities SET last_seen = ? WHERE id = ?`, formatTime(seen), id)
	if err != nil {
		return fmt.Errorf("touching activity %s: %w", id, err)
	}
	return nil
}

func (db *Database) CloseActivity(id string, end time.Time) error {
	_, err := db.Exec(`UPDATE activities SET end_time = ?, last_seen = ? WHERE id = ?`,
		formatTime(end), formatTime(end), id)
	if err != nil {
		return fmt.Errorf("closing activity %s: %w", id, err)
	}
	return nil
}

// GetRecordsBetween returns the closed records whose start falls in the
// half-open interval [from, to), ordered by start time.
func (db *Database) GetRecordsBetween(from, to time.Time) ([]entity.ActivityRecord, error) {
	rows := []activityRow{}
	q := `SELECT ` + activityColumns + ` FROM activities
	WHERE end_time IS NOT NULL AND start_time >= ? AND start_time < ?
	ORDER BY start_time ASC, id ASC`
	if err := db.Select(&rows, q, formatTime(from), formatTime(to)); err != nil {
		return nil, fmt.Errorf("querying activities: %w", err)
	}
	records := make([]entity.ActivityRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// GetOpenActivity returns the currently open record, or nil if none.
func (db *Database) GetOpenActivity() (*entity.ActivityRecord, error) {
	var row activityRow
	q := `SELECT ` + activityColumns + ` FROM activities
	WHERE end_time IS NULL ORDER BY start_time DESC LIMIT 1`
	err := db.Get(&row, q)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying open activity: %w", err)
	}
	rec, err := row.toEntity()
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CloseDanglingActivities closes records left open by a previous run at
// their last_seen time. Returns how many rows were closed.
func (db *Database) CloseDanglingActivities() (int64, error) {
	res, err := db.Exec(`UPDATE activities
	SET end_time = CASE WHEN last_seen > start_time THEN last_seen ELSE start_time END
	WHERE end_time IS NULL`)
	if err != nil {
		return 0, fmt.Errorf("closing dangling activities: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}
