package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/entity"
)

func testDB(t *testing.T) *Database {
	t.Helper()
	db, err := InitDatabase(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func ts(hour, min int) time.Time {
	return time.Date(2025, 6, 2, hour, min, 0, 0, time.UTC)
}

func TestInitSeedsBuiltinCategories(t *testing.T) {
	db := testDB(t)

	categories, err := db.ListCategories()
	require.NoError(t, err)
	require.Len(t, categories, 3)

	names := map[string]entity.Category{}
	for _, cat := range categories {
		names[cat.Name] = cat.Kind
	}
	assert.Equal(t, entity.CategoryProductive, names["productive"])
	assert.Equal(t, entity.CategoryNeutral, names["neutral"])
	assert.Equal(t, entity.CategoryDistracting, names["distracting"])
}

func TestActivityLifecycle(t *testing.T) {
	db := testDB(t)

	rec := entity.ActivityRecord{
		ID:          "rec-1",
		AppName:     "Xcode",
		WindowTitle: "main.go",
		Kind:        entity.KindApp,
		Category:    entity.CategoryProductive,
		StartTime:   ts(9, 0),
	}
	require.NoError(t, db.InsertActivity(&rec))

	open, err := db.GetOpenActivity()
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, "rec-1", open.ID)
	assert.Nil(t, open.EndTime)
	assert.Equal(t, ts(9, 0), open.StartTime)

	require.NoError(t, db.UpdateActivityContext("rec-1", "other.go", "", ts(9, 5)))
	require.NoError(t, db.CloseActivity("rec-1", ts(9, 10)))

	open, err = db.GetOpenActivity()
	require.NoError(t, err)
	assert.Nil(t, open)

	records, err := db.GetRecordsBetween(ts(0, 0), ts(23, 59))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "other.go", records[0].WindowTitle)
	require.NotNil(t, records[0].EndTime)
	assert.Equal(t, ts(9, 10), *records[0].EndTime)
}

func TestRangeQueryIsHalfOpen(t *testing.T) {
	db := testDB(t)

	for i, start := range []time.Time{ts(9, 0), ts(10, 0)} {
		end := start.Add(30 * time.Minute)
		rec := entity.ActivityRecord{
			ID:        string(rune('a' + i)),
			AppName:   "Xcode",
			Kind:      entity.KindApp,
			Category:  entity.CategoryProductive,
			StartTime: start,
			EndTime:   &end,
		}
		require.NoError(t, db.InsertActivity(&rec))
	}

	records, err := db.GetRecordsBetween(ts(9, 0), ts(10, 0))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, ts(9, 0), records[0].StartTime)
}

func TestRangeQueryExcludesOpenRecords(t *testing.T) {
	db := testDB(t)

	rec := entity.ActivityRecord{
		ID:        "open-1",
		AppName:   "Xcode",
		Kind:      entity.KindApp,
		Category:  entity.CategoryProductive,
		StartTime: ts(9, 0),
	}
	require.NoError(t, db.InsertActivity(&rec))

	records, err := db.GetRecordsBetween(ts(0, 0), ts(23, 59))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCloseDanglingActivities(t *testing.T) {
	db := testDB(t)

	rec := entity.ActivityRecord{
		ID:        "stale-1",
		AppName:   "Xcode",
		Kind:      entity.KindApp,
		Category:  entity.CategoryProductive,
		StartTime: ts(9, 0),
		LastSeen:  ts(9, 42),
	}
	require.NoError(t, db.InsertActivity(&rec))

	n, err := db.CloseDanglingActivities()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	records, err := db.GetRecordsBetween(ts(0, 0), ts(23, 59))
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.NotNil(t, records[0].EndTime)
	assert.Equal(t, ts(9, 42), *records[0].EndTime)
}

func TestRuleCRUD(t *testing.T) {
	db := testDB(t)

	id, err := db.InsertCategory("research", entity.CategoryProductive)
	require.NoError(t, err)

	cat, err := db.GetCategoryByID(id)
	require.NoError(t, err)
	assert.Equal(t, "research", cat.Name)
	assert.Equal(t, entity.CategoryProductive, cat.Kind)

	rule := entity.CategoryRule{AppPattern: "Zotero", CategoryID: id}
	require.NoError(t, db.InsertRule(&rule))
	assert.NotZero(t, rule.ID)

	ruleList, err := db.ListRules()
	require.NoError(t, err)
	require.Len(t, ruleList, 1)
	assert.Equal(t, "Zotero", ruleList[0].AppPattern)

	require.NoError(t, db.DeleteRule(rule.ID))
	ruleList, err = db.ListRules()
	require.NoError(t, err)
	assert.Empty(t, ruleList)
}

func TestInsertCategoryIsIdempotent(t *testing.T) {
	db := testDB(t)

	first, err := db.InsertCategory("research", entity.CategoryProductive)
	require.NoError(t, err)
	second, err := db.InsertCategory("research", entity.CategoryProductive)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestGetCategoryByIDMissing(t *testing.T) {
	db := testDB(t)

	_, err := db.GetCategoryByID(9999)
	assert.ErrorIs(t, err, ErrCategoryNotFound)
}
