package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"schoolfee/interfaces"
	"schoolfee/models"
	"schoolfee/repositories"

	"github.com/stretchr/testify/assert"
)

type brokenCounterStore struct{}

func (brokenCounterStore) IncrementIfBelow(ctx context.Context, counters []interfaces.WindowCounter) (bool, error) {
	return false, errors.New("connection refused")
}

func (brokenCounterStore) Get(ctx context.Context, key string) (int64, error) {
	return 0, errors.New("connection refused")
}

func weekdayHours() models.BusinessHours {
	return models.BusinessHours{
		Enabled:    true,
		StartHour:  8,
		EndHour:    18,
		DaysOfWeek: []int{1, 2, 3, 4, 5},
	}
}

func TestWithinBusinessHours(t *testing.T) {
	hours := weekdayHours()

	assert.True(t, WithinBusinessHours(hours, at(4, 8, 0)), "start hour is inclusive")
	assert.True(t, WithinBusinessHours(hours, at(4, 17, 59)))
	assert.False(t, WithinBusinessHours(hours, at(4, 18, 0)), "end hour is exclusive")
	assert.False(t, WithinBusinessHours(hours, at(4, 7, 59)))
	assert.False(t, WithinBusinessHours(hours, at(3, 10, 0)), "sunday")
	assert.False(t, WithinBusinessHours(hours, at(9, 10, 0)), "saturday")

	hours.Enabled = false
	assert.True(t, WithinBusinessHours(hours, at(3, 3, 0)))
}

func TestRateLimiterHourlyLimit(t *testing.T) {
	ctx := context.Background()
	limiter := NewRateLimiter(repositories.NewMemoryCounterStore())
	rules := models.RateLimitingRule{
		HourlyLimit: models.MessageLimit{Enabled: true, MaxMessages: 2},
	}
	now := at(4, 9, 0)

	assert.True(t, limiter.CanSendNow(ctx, "org-1", rules, now).Allowed)
	assert.True(t, limiter.CanSendNow(ctx, "org-1", rules, now.Add(10*time.Minute)).Allowed)

	denied := limiter.CanSendNow(ctx, "org-1", rules, now.Add(20*time.Minute))
	assert.False(t, denied.Allowed)
	assert.Equal(t, ReasonHourlyLimit, denied.Reason)
	assert.Equal(t, ReasonHourlyLimit, limiter.Check(ctx, "org-1", rules, now).Reason)

	assert.True(t, limiter.CanSendNow(ctx, "org-1", rules, at(4, 10, 0)).Allowed, "next clock hour")
	assert.True(t, limiter.CanSendNow(ctx, "org-2", rules, now).Allowed, "other organizations are independent")
}

func TestRateLimiterDailyLimit(t *testing.T) {
	ctx := context.Background()
	limiter := NewRateLimiter(repositories.NewMemoryCounterStore())
	rules := models.RateLimitingRule{
		HourlyLimit: models.MessageLimit{Enabled: true, MaxMessages: 10},
		DailyLimit:  models.MessageLimit{Enabled: true, MaxMessages: 3},
	}

	for hour := 9; hour < 12; hour++ {
		assert.True(t, limiter.CanSendNow(ctx, "org-1", rules, at(4, hour, 0)).Allowed)
	}

	denied := limiter.CanSendNow(ctx, "org-1", rules, at(4, 15, 0))
	assert.False(t, denied.Allowed)
	assert.Equal(t, ReasonDailyLimit, denied.Reason)

	assert.True(t, limiter.CanSendNow(ctx, "org-1", rules, at(5, 9, 0)).Allowed, "next calendar day")
}

func TestRateLimiterDeniedSendDoesNotConsumeQuota(t *testing.T) {
	ctx := context.Background()
	counters := repositories.NewMemoryCounterStore()
	limiter := NewRateLimiter(counters)
	rules := models.RateLimitingRule{
		HourlyLimit: models.MessageLimit{Enabled: true, MaxMessages: 1},
		DailyLimit:  models.MessageLimit{Enabled: true, MaxMessages: 5},
	}
	now := at(4, 9, 0)

	assert.True(t, limiter.CanSendNow(ctx, "org-1", rules, now).Allowed)
	assert.False(t, limiter.CanSendNow(ctx, "org-1", rules, now).Allowed)

	daily, err := counters.Get(ctx, dailyKey("org-1", now))
	assert.NoError(t, err)
	assert.EqualValues(t, 1, daily)
}

func TestRateLimiterBusinessHoursAndNoLimits(t *testing.T) {
	ctx := context.Background()
	limiter := NewRateLimiter(repositories.NewMemoryCounterStore())

	closed := models.RateLimitingRule{BusinessHours: weekdayHours()}
	decision := limiter.CanSendNow(ctx, "org-1", closed, at(4, 20, 0))
	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonOutsideBusinessHours, decision.Reason)
	assert.Equal(t, ReasonOutsideBusinessHours, limiter.Check(ctx, "org-1", closed, at(4, 20, 0)).Reason)

	for i := 0; i < 50; i++ {
		assert.True(t, limiter.CanSendNow(ctx, "org-1", models.RateLimitingRule{}, at(4, 20, 0)).Allowed)
	}
}

func TestRateLimiterFailsClosed(t *testing.T) {
	ctx := context.Background()
	limiter := NewRateLimiter(brokenCounterStore{})
	rules := models.RateLimitingRule{
		HourlyLimit: models.MessageLimit{Enabled: true, MaxMessages: 100},
	}

	decision := limiter.CanSendNow(ctx, "org-1", rules, at(4, 9, 0))
	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonCounterUnavailable, decision.Reason)

	decision = limiter.Check(ctx, "org-1", rules, at(4, 9, 0))
	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonCounterUnavailable, decision.Reason)
}

func TestPacing(t *testing.T) {
	assert.Zero(t, Pacing(models.RateLimitingRule{}))
	assert.Zero(t, Pacing(models.RateLimitingRule{
		DelayBetweenMessages: models.MessageDelay{Enabled: true, DelaySeconds: 0},
	}))
	assert.Zero(t, Pacing(models.RateLimitingRule{
		DelayBetweenMessages: models.MessageDelay{Enabled: false, DelaySeconds: 5},
	}))
	assert.Equal(t, 3*time.Second, Pacing(models.RateLimitingRule{
		DelayBetweenMessages: models.MessageDelay{Enabled: true, DelaySeconds: 3},
	}))
}
