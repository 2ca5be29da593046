package entity

import (
	"strings"
	"time"
)

// Category is the productivity classification of a record. Beyond the three
// built-in values any other string is a user-defined custom category name.
type Category string

const (
	CategoryProductive  Category = "productive"
	CategoryNeutral     Category = "neutral"
	CategoryDistracting Category = "distracting"
)

func (c Category) IsCustom() bool {
	switch c {
	case CategoryProductive, CategoryNeutral, CategoryDistracting:
		return false
	}
	return true
}

// CategoryInfo is a stored category. Kind is the built-in category a custom
// one counts as when scoring; for the built-ins Kind equals Name.
type CategoryInfo struct {
	ID   int64    `db:"id" json:"id"`
	Name string   `db:"name" json:"name"`
	Kind Category `db:"kind" json:"kind"`
}

// CategoryRule maps an application, URL or window-title pattern to a
// category. Empty patterns are wildcards at their level; a rule with only
// AppPattern set is an application-level rule.
type CategoryRule struct {
	ID           int64     `db:"id" json:"id"`
	AppPattern   string    `db:"app_pattern" json:"app_pattern,omitempty"`
	URLPattern   string    `db:"url_pattern" json:"url_pattern,omitempty"`
	TitlePattern string    `db:"title_pattern" json:"title_pattern,omitempty"`
	CategoryID   int64     `db:"category_id" json:"category_id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// URLHost extracts the lowercased host part of a URL without needing a
// full parse to succeed.
func URLHost(rawURL string) string {
	s := rawURL
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, '@'); i >= 0 {
		s = s[i+1:]
	}
	// Bracketed IPv6 literals carry colons of their own.
	if strings.HasPrefix(s, "[") {
		if i := strings.IndexByte(s, ']'); i >= 0 {
			s = s[:i+1]
		}
		return strings.ToLower(s)
	}
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}
	return strings.ToLower(s)
}
