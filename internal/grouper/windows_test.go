package grouper

import (
	"testing"
	"time"
)

func TestWeekStart(t *testing.T) {
	cases := []struct {
		in   time.Time
		want time.Time
	}{
		// Wednesday mid-week
		{time.Date(2025, 1, 15, 13, 30, 0, 0, time.UTC), time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC)},
		// Monday stays its own week start
		{time.Date(2025, 1, 13, 0, 0, 1, 0, time.UTC), time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC)},
		// Sunday belongs to the week opened the previous Monday
		{time.Date(2025, 1, 19, 23, 59, 0, 0, time.UTC), time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		if got := WeekStart(tc.in); !got.Equal(tc.want) {
			t.Errorf("WeekStart(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNextSunday_RollsForwardOnSunday(t *testing.T) {
	// Saturday capture signs up for the next day's foundry
	sat := time.Date(2025, 1, 18, 10, 0, 0, 0, time.UTC)
	if got := NextSunday(sat); !got.Equal(time.Date(2025, 1, 19, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("NextSunday(Saturday) = %v", got)
	}

	// a Sunday capture is a signup for the following week
	sun := time.Date(2025, 1, 19, 10, 0, 0, 0, time.UTC)
	if got := NextSunday(sun); !got.Equal(time.Date(2025, 1, 26, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("NextSunday(Sunday) = %v, want the following Sunday", got)
	}
}

func TestPreviousSunday_IncludesSunday(t *testing.T) {
	// result screens on Sunday belong to that same Sunday's event
	sun := time.Date(2025, 1, 19, 22, 0, 0, 0, time.UTC)
	if got := PreviousSunday(sun); !got.Equal(time.Date(2025, 1, 19, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("PreviousSunday(Sunday) = %v, want same day", got)
	}

	tue := time.Date(2025, 1, 21, 9, 0, 0, 0, time.UTC)
	if got := PreviousSunday(tue); !got.Equal(time.Date(2025, 1, 19, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("PreviousSunday(Tuesday) = %v", got)
	}
}

func TestEventKeys(t *testing.T) {
	sunday := time.Date(2025, 1, 19, 0, 0, 0, 0, time.UTC)

	if got := BearKey(2); got != "trap:2" {
		t.Errorf("BearKey = %q", got)
	}
	if got := FoundryKey(1, sunday); got != "legion:1:2025-01-19" {
		t.Errorf("FoundryKey = %q", got)
	}
	if got := ChampionshipKey(WeekStart(sunday)); got != "week:2025-01-13" {
		t.Errorf("ChampionshipKey = %q", got)
	}
	if got := RosterKey(sunday); got != "day:2025-01-19" {
		t.Errorf("RosterKey = %q", got)
	}
}
