package grouper

import (
	"fmt"
	"time"

	"alliance-observatory/internal/models"
)

// BearWindow is the minimum trap cooldown. Two observations for the same
// trap within this span belong to one hunt.
const BearWindow = 47 * time.Hour

// WeekStart truncates t to the Monday 00:00 UTC that opens its game week.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	daysSinceMonday := (int(t.Weekday()) + 6) % 7
	day := t.AddDate(0, 0, -daysSinceMonday)
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
}

// NextSunday returns the Sunday after t. A capture taken on a Sunday is a
// signup for the following week's foundry, so Sunday rolls forward.
func NextSunday(t time.Time) time.Time {
	t = t.UTC()
	days := (7 - int(t.Weekday())) % 7
	if days == 0 {
		days = 7
	}
	day := t.AddDate(0, 0, days)
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
}

// PreviousSunday returns the Sunday on or before t. Result screens appear
// after the foundry runs, so a Sunday capture is that same Sunday's event.
func PreviousSunday(t time.Time) time.Time {
	t = t.UTC()
	day := t.AddDate(0, 0, -int(t.Weekday()))
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
}

// DayStart truncates t to 00:00 UTC.
func DayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// BearKey identifies a hunt by trap; the time window separates hunts.
func BearKey(trapID int) string {
	return fmt.Sprintf("trap:%d", trapID)
}

// FoundryKey identifies a foundry event by legion and the Sunday it runs.
func FoundryKey(legion int, eventDate time.Time) string {
	return fmt.Sprintf("legion:%d:%s", legion, eventDate.UTC().Format("2006-01-02"))
}

// ChampionshipKey identifies a championship signup by its game week.
func ChampionshipKey(weekStart time.Time) string {
	return "week:" + weekStart.UTC().Format("2006-01-02")
}

// ContributionKey identifies a contribution period by its game week.
func ContributionKey(weekStart time.Time) string {
	return "week:" + weekStart.UTC().Format("2006-01-02")
}

// RosterKey identifies a daily roster snapshot.
func RosterKey(day time.Time) string {
	return "day:" + day.UTC().Format("2006-01-02")
}

// windowFor returns how long an event of a variant stays open after its
// start. Past the window the event is CLOSED: queryable but no longer
// accepting attachments.
func windowFor(variant models.EventVariant) time.Duration {
	switch variant {
	case models.VariantBear:
		return BearWindow
	case models.VariantContribution, models.VariantChampionship, models.VariantFoundry:
		return 7 * 24 * time.Hour
	case models.VariantRoster:
		return 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}
