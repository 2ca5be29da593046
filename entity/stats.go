package entity

import (
	"time"
)

// TopItem is one row of a top-applications or top-websites ranking.
type TopItem struct {
	Name      string        `json:"name"`
	Duration  time.Duration `json:"duration"`
	FirstSeen time.Time     `json:"first_seen"`
}

// UsagePattern buckets activity by hour of day and weekday. Index 0 of the
// daily arrays is Sunday, matching time.Weekday.
type UsagePattern struct {
	HourlyTotal       [24]time.Duration `json:"hourly_total"`
	HourlyProductive  [24]time.Duration `json:"hourly_productive"`
	HourlyNeutral     [24]time.Duration `json:"hourly_neutral"`
	HourlyDistracting [24]time.Duration `json:"hourly_distracting"`

	DailyTotal       [7]time.Duration `json:"daily_total"`
	DailyProductive  [7]time.Duration `json:"daily_productive"`
	DailyNeutral     [7]time.Duration `json:"daily_neutral"`
	DailyDistracting [7]time.Duration `json:"daily_distracting"`

	PeakProductiveHour  int          `json:"peak_productive_hour"`
	PeakProductiveDay   time.Weekday `json:"peak_productive_day"`
	PeakDistractingHour int          `json:"peak_distracting_hour"`
	PeakDistractingDay  time.Weekday `json:"peak_distracting_day"`
}

// UsageStatistics is the computed view over a queried window of closed
// records. It is never persisted.
type UsageStatistics struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`

	TotalTime       time.Duration              `json:"total_time"`
	ByCategory      map[Category]time.Duration `json:"by_category"`
	ProductiveTime  time.Duration              `json:"productive_time"`
	NeutralTime     time.Duration              `json:"neutral_time"`
	DistractingTime time.Duration              `json:"distracting_time"`

	TopApps  []TopItem `json:"top_apps"`
	TopSites []TopItem `json:"top_sites"`

	ProductivityScore int `json:"productivity_score"`
	DistractionScore  int `json:"distraction_score"`

	CurrentStreak           time.Duration `json:"current_streak"`
	LongestProductiveStreak time.Duration `json:"longest_productive_streak"`
	LongestDistractedPeriod time.Duration `json:"longest_distracted_period"`

	Patterns UsagePattern `json:"patterns"`
}
