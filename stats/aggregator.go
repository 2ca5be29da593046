package stats

import (
	"math"
	"sort"
	"time"

	"main/entity"
)

// streakGap is the largest pause between two productive records that still
// counts as one continuous streak.
const streakGap = 60 * time.Second

const defaultTopN = 10

// Options tunes an aggregation. Now anchors the "today" used by the
// current streak; CustomKinds maps custom category names onto the built-in
// category they count as when scoring.
type Options struct {
	From        time.Time
	To          time.Time
	Now         time.Time
	CustomKinds map[entity.Category]entity.Category
	TopN        int
}

// Aggregate computes the usage statistics over a set of closed records.
// Open records (nil end) are skipped; an empty input yields zero statistics,
// not an error.
func Aggregate(records []entity.ActivityRecord, opts Options) entity.UsageStatistics {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.TopN <= 0 {
		opts.TopN = defaultTopN
	}

	stats := entity.UsageStatistics{
		From:       opts.From,
		To:         opts.To,
		ByCategory: map[entity.Category]time.Duration{},
	}

	closed := make([]entity.ActivityRecord, 0, len(records))
	for _, rec := range records {
		if rec.EndTime == nil {
			continue
		}
		closed = append(closed, rec)
	}
	sort.SliceStable(closed, func(i, j int) bool {
		return closed[i].StartTime.Before(closed[j].StartTime)
	})

	for _, rec := range closed {
		dur := rec.EndTime.Sub(rec.StartTime)
		stats.TotalTime += dur
		stats.ByCategory[rec.Category] += dur
		switch kindOf(rec.Category, opts.CustomKinds) {
		case entity.CategoryProductive:
			stats.ProductiveTime += dur
		case entity.CategoryDistracting:
			stats.DistractingTime += dur
			if dur > stats.LongestDistractedPeriod {
				stats.LongestDistractedPeriod = dur
			}
		default:
			stats.NeutralTime += dur
		}
	}

	stats.ProductivityScore = score(stats.ProductiveTime, stats.TotalTime-stats.NeutralTime)
	stats.DistractionScore = score(stats.DistractingTime, stats.TotalTime)

	stats.TopApps = topItems(closed, opts.TopN, func(rec entity.ActivityRecord) string {
		return rec.AppName
	})
	stats.TopSites = topItems(closed, opts.TopN, func(rec entity.ActivityRecord) string {
		if rec.Kind != entity.KindBrowser {
			return ""
		}
		return entity.URLHost(rec.URL)
	})

	stats.CurrentStreak = currentStreak(closed, opts)
	stats.LongestProductiveStreak = longestStreak(closed, opts)
	stats.Patterns = patterns(closed, opts)

	return stats
}

func kindOf(cat entity.Category, customKinds map[entity.Category]entity.Category) entity.Category {
	if !cat.IsCustom() {
		return cat
	}
	if kind, ok := customKinds[cat]; ok && !kind.IsCustom() {
		return kind
	}
	return entity.CategoryNeutral
}

// score computes round(part/denominator*100) capped at 100, with the
// denominator floored at one second to avoid dividing by zero.
func score(part, denominator time.Duration) int {
	denom := denominator.Seconds()
	if denom < 1 {
		denom = 1
	}
	s := int(math.Round(part.Seconds() / denom * 100))
	if s > 100 {
		s = 100
	}
	if s < 0 {
		s = 0
	}
	return s
}

// topItems ranks records grouped by key, longest total first. Ties order
// by earliest first-seen start, then by name, so rankings are stable.
func topItems(closed []entity.ActivityRecord, n int, key func(entity.ActivityRecord) string) []entity.TopItem {
	byKey := map[string]*entity.TopItem{}
	for _, rec := range closed {
		name := key(rec)
		if name == "" {
			continue
		}
		item, ok := byKey[name]
		if !ok {
			item = &entity.TopItem{Name: name, FirstSeen: rec.StartTime}
			byKey[name] = item
		}
		item.Duration += rec.EndTime.Sub(rec.StartTime)
		if rec.StartTime.Before(item.FirstSeen) {
			item.FirstSeen = rec.StartTime
		}
	}

	items := make([]entity.TopItem, 0, len(byKey))
	for _, item := range byKey {
		items = append(items, *item)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Duration != items[j].Duration {
			return items[i].Duration > items[j].Duration
		}
		if !items[i].FirstSeen.Equal(items[j].FirstSeen) {
			return items[i].FirstSeen.Before(items[j].FirstSeen)
		}
		return items[i].Name < items[j].Name
	})
	if len(items) > n {
		items = items[:n]
	}
	return items
}

// currentStreak walks today's records newest first, accumulating productive
// time until the first non-productive record or a pause of a minute or
// more.
func currentStreak(closed []entity.ActivityRecord, opts Options) time.Duration {
	year, month, day := opts.Now.Date()
	dayStart := time.Date(year, month, day, 0, 0, 0, 0, opts.Now.Location())

	today := make([]entity.ActivityRecord, 0, len(closed))
	for _, rec := range closed {
		if !rec.StartTime.Before(dayStart) {
			today = append(today, rec)
		}
	}

	var streak time.Duration
	var laterStart time.Time
	for i := len(today) - 1; i >= 0; i-- {
		rec := today[i]
		if kindOf(rec.Category, opts.CustomKinds) != entity.CategoryProductive {
			break
		}
		if !laterStart.IsZero() && laterStart.Sub(*rec.EndTime) >= streakGap {
			break
		}
		streak += rec.EndTime.Sub(rec.StartTime)
		laterStart = rec.StartTime
	}
	return streak
}

// longestStreak accumulates productive time over the whole window, resetting
// on any non-productive record. Unlike the current streak it does not break
// on pauses between records; two productive sessions hours apart still
// extend the same streak. Kept that way on purpose to match the scoring
// users already see.
func longestStreak(closed []entity.ActivityRecord, opts Options) time.Duration {
	var longest, running time.Duration
	for _, rec := range closed {
		if kindOf(rec.Category, opts.CustomKinds) != entity.CategoryProductive {
			running = 0
			continue
		}
		running += rec.EndTime.Sub(rec.StartTime)
		if running > longest {
			longest = running
		}
	}
	return longest
}

// patterns buckets durations by the hour and weekday a record started in.
func patterns(closed []entity.ActivityRecord, opts Options) entity.UsagePattern {
	var p entity.UsagePattern
	for _, rec := range closed {
		dur := rec.EndTime.Sub(rec.StartTime)
		hour := rec.StartTime.Hour()
		day := rec.StartTime.Weekday()

		p.HourlyTotal[hour] += dur
		p.DailyTotal[day] += dur
		switch kindOf(rec.Category, opts.CustomKinds) {
		case entity.CategoryProductive:
			p.HourlyProductive[hour] += dur
			p.DailyProductive[day] += dur
		case entity.CategoryDistracting:
			p.HourlyDistracting[hour] += dur
			p.DailyDistracting[day] += dur
		default:
			p.HourlyNeutral[hour] += dur
			p.DailyNeutral[day] += dur
		}
	}

	p.PeakProductiveHour = argmaxHour(p.HourlyProductive)
	p.PeakProductiveDay = argmaxDay(p.DailyProductive)
	p.PeakDistractingHour = argmaxHour(p.HourlyDistracting)
	p.PeakDistractingDay = argmaxDay(p.DailyDistracting)
	return p
}

func argmaxHour(buckets [24]time.Duration) int {
	best := 0
	for hour, dur := range buckets {
		if dur > buckets[best] {
			best = hour
		}
	}
	return best
}

func argmaxDay(buckets [7]time.Duration) time.Weekday {
	best := 0
	for day, dur := range buckets {
		if dur > buckets[best] {
			best = day
		}
	}
	return time.Weekday(best)
}
