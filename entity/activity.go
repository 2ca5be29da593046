package entity

import "time"

// AppKind tells what kind of foreground context produced a record.
type AppKind string

const (
	KindApp     AppKind = "app"
	KindBrowser AppKind = "browser"
	KindSystem  AppKind = "system"
)

// ActivityRecord is one contiguous tracked session of a single
// (application, category, URL host) identity.
type ActivityRecord struct {
	ID          string    `db:"id" json:"id"`
	AppName     string    `db:"app_name" json:"app_name"`
	WindowTitle string    `db:"window_title" json:"window_title,omitempty"`
	URL         string    `db:"url" json:"url,omitempty"`
	Kind        AppKind   `db:"kind" json:"kind"`
	Category    Category  `db:"category" json:"category"`
	StartTime   time.Time `db:"start_time" json:"start_time"`
	// EndTime is nil while the record is still open.
	EndTime  *time.Time `db:"end_time" json:"end_time"`
	LastSeen time.Time  `db:"last_seen" json:"last_seen"`
}

// Identity is the part of a record that forces a split when it changes.
// Title changes and URL changes within the same host update in place.
type Identity struct {
	AppName  string
	Category Category
	URLHost  string
}

func (r *ActivityRecord) Identity() Identity {
	return Identity{AppName: r.AppName, Category: r.Category, URLHost: URLHost(r.URL)}
}

// Duration returns the record length, using now for open records.
func (r *ActivityRecord) Duration(now time.Time) time.Duration {
	if r.EndTime == nil {
		return now.Sub(r.StartTime)
	}
	return r.EndTime.Sub(r.StartTime)
}

func (r *ActivityRecord) Closed() bool {
	return r.EndTime != nil
}
