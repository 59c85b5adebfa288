package services

import (
	"testing"
	"time"

	"schoolfee/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2024-03-04 is a Monday.
func at(day, hour, minute int) time.Time {
	return time.Date(2024, time.March, day, hour, minute, 0, 0, time.UTC)
}

func TestScheduleMatcherGraceWindow(t *testing.T) {
	matcher := NewScheduleMatcher(false)
	daily := models.Schedule{Time: "09:00", Frequency: models.FrequencyDaily}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"exact", at(4, 9, 0), true},
		{"five minutes late", at(4, 9, 5), true},
		{"six minutes late", at(4, 9, 6), false},
		{"five minutes early", at(4, 8, 55), true},
		{"six minutes early", at(4, 8, 54), false},
		{"different hour", at(4, 10, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matcher.Matches(daily, tt.now))
		})
	}
}

func TestScheduleMatcherWeekly(t *testing.T) {
	matcher := NewScheduleMatcher(false)
	weekly := models.Schedule{
		Time:       "09:00",
		Frequency:  models.FrequencyWeekly,
		DaysOfWeek: []string{"monday", "thursday"},
	}

	assert.True(t, matcher.Matches(weekly, at(4, 9, 0)), "monday")
	assert.False(t, matcher.Matches(weekly, at(5, 9, 0)), "tuesday")
	assert.True(t, matcher.Matches(weekly, at(7, 9, 3)), "thursday within grace")

	empty := models.Schedule{Time: "09:00", Frequency: models.FrequencyWeekly}
	assert.False(t, matcher.Matches(empty, at(4, 9, 0)))
}

func TestScheduleMatcherRejectsUnknownFrequencyAndBadTime(t *testing.T) {
	matcher := NewScheduleMatcher(false)

	assert.False(t, matcher.Matches(models.Schedule{Time: "09:00", Frequency: "monthly"}, at(4, 9, 0)))
	assert.False(t, matcher.Matches(models.Schedule{Time: "9am", Frequency: models.FrequencyDaily}, at(4, 9, 0)))
}

func TestScheduleMatcherMidnight(t *testing.T) {
	lateRule := models.Schedule{Time: "23:58", Frequency: models.FrequencyDaily}
	justAfterMidnight := at(5, 0, 1)

	assert.False(t, NewScheduleMatcher(false).Matches(lateRule, justAfterMidnight))

	wrapping := NewScheduleMatcher(true)
	assert.True(t, wrapping.Matches(lateRule, justAfterMidnight))
	assert.Equal(t,
		wrapping.WindowKey("r1", lateRule, at(4, 23, 58)),
		wrapping.WindowKey("r1", lateRule, justAfterMidnight),
		"a firing that crosses midnight keeps one window")
}

func TestWindowKeySharedWithinGrace(t *testing.T) {
	matcher := NewScheduleMatcher(false)
	daily := models.Schedule{Time: "09:00", Frequency: models.FrequencyDaily}

	first := matcher.WindowKey("rule-1", daily, at(4, 9, 0))
	assert.Equal(t, first, matcher.WindowKey("rule-1", daily, at(4, 9, 4)))
	assert.NotEqual(t, first, matcher.WindowKey("rule-1", daily, at(5, 9, 0)))
	assert.NotEqual(t, first, matcher.WindowKey("rule-2", daily, at(4, 9, 0)))
}

func TestNextOccurrence(t *testing.T) {
	daily := models.Schedule{Time: "09:00", Frequency: models.FrequencyDaily}

	next := NextOccurrence(daily, at(4, 9, 0))
	require.NotNil(t, next)
	assert.Equal(t, at(5, 9, 0), *next, "strictly after the current slot")

	next = NextOccurrence(daily, at(4, 8, 0))
	require.NotNil(t, next)
	assert.Equal(t, at(4, 9, 0), *next)

	friday := models.Schedule{Time: "07:30", Frequency: models.FrequencyWeekly, DaysOfWeek: []string{"friday"}}
	next = NextOccurrence(friday, at(4, 9, 0))
	require.NotNil(t, next)
	assert.Equal(t, at(8, 7, 30), *next)

	assert.Nil(t, NextOccurrence(models.Schedule{Time: "09:00", Frequency: models.FrequencyWeekly}, at(4, 9, 0)))
	assert.Nil(t, NextOccurrence(models.Schedule{Time: "25:00", Frequency: models.FrequencyDaily}, at(4, 9, 0)))
}

func TestParseClock(t *testing.T) {
	minutes, err := ParseClock("07:30")
	require.NoError(t, err)
	assert.Equal(t, 450, minutes)

	for _, bad := range []string{"24:00", "12:60", "1230", "ab:cd", ""} {
		_, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
}
