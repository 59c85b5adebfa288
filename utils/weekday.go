package utils

import (
	"strings"
	"time"
)

// Rule schedules name weekdays ("monday"), business hours number them
// 0=Sunday..6=Saturday. All conversions between the two go through here.

var weekdayNames = [7]string{
	"sunday",
	"monday",
	"tuesday",
	"wednesday",
	"thursday",
	"friday",
	"saturday",
}

// WeekdayName returns the lowercase English name of t's weekday.
func WeekdayName(t time.Time) string {
	return weekdayNames[t.Weekday()]
}

// WeekdayIndex returns t's weekday as 0=Sunday..6=Saturday.
func WeekdayIndex(t time.Time) int {
	return int(t.Weekday())
}

// WeekdayNameToIndex converts a weekday name to its 0..6 index.
func WeekdayNameToIndex(name string) (int, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range weekdayNames {
		if n == name {
			return i, true
		}
	}
	return -1, false
}

// WeekdayIndexToName converts a 0..6 index to its weekday name.
func WeekdayIndexToName(index int) (string, bool) {
	if index < 0 || index > 6 {
		return "", false
	}
	return weekdayNames[index], true
}

// IsValidWeekdayName reports whether name is one of the seven lowercase names.
func IsValidWeekdayName(name string) bool {
	for _, n := range weekdayNames {
		if n == name {
			return true
		}
	}
	return false
}

// ContainsWeekdayName reports whether days lists t's weekday by name.
func ContainsWeekdayName(days []string, t time.Time) bool {
	today := WeekdayName(t)
	for _, d := range days {
		if d == today {
			return true
		}
	}
	return false
}

// ContainsWeekdayIndex reports whether days lists t's weekday by index.
func ContainsWeekdayIndex(days []int, t time.Time) bool {
	today := WeekdayIndex(t)
	for _, d := range days {
		if d == today {
			return true
		}
	}
	return false
}
