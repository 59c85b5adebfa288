package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"schoolfee/models"
	"schoolfee/utils"
)

// DefaultGraceMinutes is the tolerance around a rule's scheduled time.
const DefaultGraceMinutes = 5

const minutesPerDay = 24 * 60

// ScheduleMatcher decides whether a rule's schedule is due at a given time.
//
// The grace comparison uses plain minutes-of-day, so a rule at 23:58 is not
// due at 00:02 unless WrapMidnight is set.
type ScheduleMatcher struct {
	GraceMinutes int
	WrapMidnight bool
}

func NewScheduleMatcher(wrapMidnight bool) *ScheduleMatcher {
	return &ScheduleMatcher{
		GraceMinutes: DefaultGraceMinutes,
		WrapMidnight: wrapMidnight,
	}
}

// Matches reports whether now falls on the schedule's time (exactly or within
// the grace window) on an eligible day.
func (sm *ScheduleMatcher) Matches(schedule models.Schedule, now time.Time) bool {
	currentTime := now.Format("15:04")

	if currentTime != schedule.Time {
		ruleMinutes, err := ParseClock(schedule.Time)
		if err != nil {
			return false
		}
		currentMinutes := now.Hour()*60 + now.Minute()
		if sm.minuteDistance(currentMinutes, ruleMinutes) > sm.GraceMinutes {
			return false
		}
	}

	return frequencyEligible(schedule, now)
}

func (sm *ScheduleMatcher) minuteDistance(a, b int) int {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	if sm.WrapMidnight && minutesPerDay-diff < diff {
		diff = minutesPerDay - diff
	}
	return diff
}

func frequencyEligible(schedule models.Schedule, now time.Time) bool {
	switch schedule.Frequency {
	case models.FrequencyDaily:
		return true
	case models.FrequencyWeekly:
		return utils.ContainsWeekdayName(schedule.DaysOfWeek, now)
	default:
		return false
	}
}

// WindowKey identifies one firing of a rule: the scheduled slot on a
// calendar date. Ticks within the same grace window share the key.
func (sm *ScheduleMatcher) WindowKey(ruleID string, schedule models.Schedule, now time.Time) string {
	date := now
	if sm.WrapMidnight {
		// A match reached across midnight belongs to the slot's own date.
		if ruleMinutes, err := ParseClock(schedule.Time); err == nil {
			current := now.Hour()*60 + now.Minute()
			if current-ruleMinutes > minutesPerDay/2 {
				date = now.AddDate(0, 0, 1)
			} else if ruleMinutes-current > minutesPerDay/2 {
				date = now.AddDate(0, 0, -1)
			}
		}
	}
	return fmt.Sprintf("%s|%s|%s", ruleID, date.Format("2006-01-02"), schedule.Time)
}

// NextOccurrence returns the first scheduled slot strictly after from, in
// from's location. Unknown frequencies or weekly schedules without days
// return nil.
func NextOccurrence(schedule models.Schedule, from time.Time) *time.Time {
	minutes, err := ParseClock(schedule.Time)
	if err != nil {
		return nil
	}

	candidate := time.Date(from.Year(), from.Month(), from.Day(), minutes/60, minutes%60, 0, 0, from.Location())
	if !candidate.After(from) {
		candidate = candidate.AddDate(0, 0, 1)
	}

	for i := 0; i < 8; i++ {
		if frequencyEligible(schedule, candidate) {
			return &candidate
		}
		candidate = candidate.AddDate(0, 0, 1)
	}
	return nil
}

// ParseClock converts "HH:MM" into minutes since midnight.
func ParseClock(value string) (int, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", value)
	}
	return hour*60 + minute, nil
}
