package query

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"main/entity"
)

// Rule and category storage. Rules are written only through the management
// API; the categorizer consumes them through the rule cache.

func (db *Database) ListRules() ([]entity.CategoryRule, error) {
	rows := []struct {
		ID           int64  `db:"id"`
		AppPattern   string `db:"app_pattern"`
		URLPattern   string `db:"url_pattern"`
		TitlePattern string `db:"title_pattern"`
		CategoryID   int64  `db:"category_id"`
		CreatedAt    string `db:"created_at"`
	}{}
	q := `SELECT id, app_pattern, url_pattern, title_pattern, category_id, created_at
	FROM category_rules ORDER BY created_at ASC, id ASC`
	if err := db.Select(&rows, q); err != nil {
		return nil, fmt.Errorf("listing rules: %w", err)
	}
	rules := make([]entity.CategoryRule, 0, len(rows))
	for _, row := range rows {
		created, err := time.Parse(timeLayout, row.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing rule created_at: %w", err)
		}
		rules = append(rules, entity.CategoryRule{
			ID:           row.ID,
			AppPattern:   row.AppPattern,
			URLPattern:   row.URLPattern,
			TitlePattern: row.TitlePattern,
			CategoryID:   row.CategoryID,
			CreatedAt:    created,
		})
	}
	return rules, nil
}

// InsertRule stores a rule and fills in its generated id.
func (db *Database) InsertRule(rule *entity.CategoryRule) error {
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now()
	}
	res, err := db.Exec(`INSERT INTO category_rules 
	(app_pattern, url_pattern, title_pattern, category_id, created_at)
	VALUES (?, ?, ?, ?, ?)`,
		rule.AppPattern,
		rule.URLPattern,
		rule.TitlePattern,
		rule.CategoryID,
		formatTime(rule.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting rule: %w", err)
	}
	rule.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("inserting rule: %w", err)
	}
	return nil
}

func (db *Database) DeleteRule(id int64) error {
	_, err := db.Exec(`DELETE FROM category_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting rule %d: %w", id, err)
	}
	return nil
}

func (db *Database) ListCategories() ([]entity.CategoryInfo, error) {
	categories := []entity.CategoryInfo{}
	err := db.Select(&categories, `SELECT id, name, kind FROM categories ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return categories, nil
}

var ErrCategoryNotFound = errors.New("category not found")

func (db *Database) GetCategoryByID(id int64) (entity.CategoryInfo, error) {
	var cat entity.CategoryInfo
	err := db.Get(&cat, `SELECT id, name, kind FROM categories WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.CategoryInfo{}, ErrCategoryNotFound
	}
	if err != nil {
		return entity.CategoryInfo{}, fmt.Errorf("getting category %d: %w", id, err)
	}
	return cat, nil
}

// InsertCategory adds a custom category counting as kind when scoring.
// Inserting an existing name returns the existing id.
func (db *Database) InsertCategory(name string, kind entity.Category) (int64, error) {
	_, err := db.Exec(`INSERT INTO categories (name, kind) VALUES (?, ?)
	ON CONFLICT(name) DO UPDATE SET kind=excluded.kind`, name, string(kind))
	if err != nil {
		return 0, fmt.Errorf("inserting category %s: %w", name, err)
	}
	var id int64
	if err := db.Get(&id, `SELECT id FROM categories WHERE name = ?`, name); err != nil {
		return 0, fmt.Errorf("inserting category %s: %w", name, err)
	}
	return id, nil
}
