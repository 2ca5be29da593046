package stats

import "time"

// PeriodRange maps a period alias to the half-open interval it covers,
// anchored at now. Unknown aliases fall back to the current day.
func PeriodRange(period string, now time.Time) (time.Time, time.Time) {
	year, month, day := now.Date()
	dayStart := time.Date(year, month, day, 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	switch period {
	case "week":
		return dayEnd.AddDate(0, 0, -7), dayEnd
	case "month":
		return dayEnd.AddDate(0, -1, 0), dayEnd
	default:
		return dayStart, dayEnd
	}
}
