package activity

import (
	"fmt"
	"time"
)

// DayPart is the coarse time-of-day label used in generated activity names.
type DayPart string

const (
	Morning   DayPart = "Morning"
	Afternoon DayPart = "Afternoon"
	Evening   DayPart = "Evening"
	Night     DayPart = "Night"
)

// dayParts is indexed by local start hour. The bands are not contiguous and
// Afternoon wraps past midnight into the early hours. Activities created by
// earlier runs carry names derived from this exact table, so the existence
// check only works while it stays unchanged.
var dayParts = [24]DayPart{
	0:  Night,
	1:  Afternoon,
	2:  Afternoon,
	3:  Morning,
	4:  Morning,
	5:  Evening,
	6:  Evening,
	7:  Evening,
	8:  Night,
	9:  Morning,
	10: Morning,
	11: Morning,
	12: Afternoon,
	13: Afternoon,
	14: Afternoon,
	15: Afternoon,
	16: Afternoon,
	17: Evening,
	18: Evening,
	19: Evening,
	20: Night,
	21: Night,
	22: Night,
	23: Night,
}

// DayPartForHour returns the day part for a local hour. Hours outside 0-23
// are Night.
func DayPartForHour(hour int) DayPart {
	if hour < 0 || hour >= len(dayParts) {
		return Night
	}
	return dayParts[hour]
}

// ManualName builds the deterministic name for a manually created activity,
// e.g. "Morning run (Manual)".
func ManualName(start time.Time, kind Kind) string {
	return fmt.Sprintf("%s %s (Manual)", DayPartForHour(start.Hour()), kind)
}
