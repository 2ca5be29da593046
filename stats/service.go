package stats

import (
	"fmt"
	"log"
	"time"

	"main/entity"
)

// RecordStore is the read side of the record store.
type RecordStore interface {
	GetRecordsBetween(from, to time.Time) ([]entity.ActivityRecord, error)
}

// CategorySource supplies the custom-category mapping used for scoring.
type CategorySource interface {
	ListCategories() ([]entity.CategoryInfo, error)
}

// Service answers ranged statistics queries over the record store. It holds
// no state between calls.
type Service struct {
	records    RecordStore
	categories CategorySource
}

func NewService(records RecordStore, categories CategorySource) *Service {
	return &Service{records: records, categories: categories}
}

// Between aggregates the closed records in [from, to). An unreachable store
// is the only error; an empty window just returns zero statistics.
func (s *Service) Between(from, to time.Time) (entity.UsageStatistics, error) {
	records, err := s.records.GetRecordsBetween(from, to)
	if err != nil {
		return entity.UsageStatistics{}, fmt.Errorf("fetching records: %w", err)
	}

	customKinds := map[entity.Category]entity.Category{}
	if s.categories != nil {
		infos, err := s.categories.ListCategories()
		if err != nil {
			// Scoring still works, custom categories just count as neutral.
			log.Printf("stats: category lookup failed: %v", err)
		}
		for _, info := range infos {
			customKinds[entity.Category(info.Name)] = info.Kind
		}
	}

	return Aggregate(records, Options{
		From:        from,
		To:          to,
		Now:         time.Now(),
		CustomKinds: customKinds,
	}), nil
}
