package fisco

import "time"

// TradingCalendar bounds the simulated date range: the engine only visits
// days on which the venue is open. It has no other role in the simulation.
type TradingCalendar interface {
	IsOpen(venue string, on Date) bool
}

// WeekdayCalendar is a TradingCalendar that treats every weekday as open,
// minus an explicit per-venue holiday set.
type WeekdayCalendar struct {
	holidays map[string]map[Date]struct{}
}

// NewWeekdayCalendar creates a calendar with the given per-venue holidays
// (ISO dates keyed by venue code).
func NewWeekdayCalendar(holidays map[string][]Date) *WeekdayCalendar {
	c := &WeekdayCalendar{holidays: make(map[string]map[Date]struct{})}
	for venue, days := range holidays {
		set := make(map[Date]struct{}, len(days))
		for _, d := range days {
			set[d] = struct{}{}
		}
		c.holidays[venue] = set
	}
	return c
}

// IsOpen implements TradingCalendar.
func (c *WeekdayCalendar) IsOpen(venue string, on Date) bool {
	if wd := on.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	if set, ok := c.holidays[venue]; ok {
		if _, holiday := set[on]; holiday {
			return false
		}
	}
	return true
}
