package fisco

import "testing"

func TestWeekdayCalendar(t *testing.T) {
	c := NewWeekdayCalendar(map[string][]Date{
		"MIL": {MustParseDate("2024-01-01")},
	})

	if !c.IsOpen("MIL", MustParseDate("2024-01-02")) {
		t.Error("regular Tuesday closed")
	}
	if c.IsOpen("MIL", MustParseDate("2024-01-06")) || c.IsOpen("MIL", MustParseDate("2024-01-07")) {
		t.Error("weekend open")
	}
	if c.IsOpen("MIL", MustParseDate("2024-01-01")) {
		t.Error("venue holiday open")
	}
	// The holiday set is per venue.
	if !c.IsOpen("XET", MustParseDate("2024-01-01")) {
		t.Error("holiday leaked to another venue")
	}
}

func TestWeekdayCalendarNoHolidays(t *testing.T) {
	c := NewWeekdayCalendar(nil)
	if !c.IsOpen("MIL", MustParseDate("2024-12-25")) {
		t.Error("calendar without holidays closed a weekday")
	}
}
