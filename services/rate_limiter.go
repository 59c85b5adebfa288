package services

import (
	"context"
	"fmt"
	"time"

	"schoolfee/interfaces"
	"schoolfee/models"
	"schoolfee/utils"

	"github.com/sirupsen/logrus"
)

// Reasons a send is held back
const (
	ReasonOutsideBusinessHours = "outside_business_hours"
	ReasonHourlyLimit          = "hourly_limit_reached"
	ReasonDailyLimit           = "daily_limit_reached"
	ReasonCounterUnavailable   = "counter_store_unavailable"
)

type RateDecision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// RateLimiter gates sends per organization on business hours and
// hourly/daily message counts. The hourly window is the current clock hour
// and the daily window the calendar day of the supplied time.
type RateLimiter struct {
	counters interfaces.CounterStore
}

func NewRateLimiter(counters interfaces.CounterStore) *RateLimiter {
	return &RateLimiter{counters: counters}
}

// Check reports whether sending is currently permitted without reserving a
// slot.
func (rl *RateLimiter) Check(ctx context.Context, organizationID string, rules models.RateLimitingRule, now time.Time) RateDecision {
	if !WithinBusinessHours(rules.BusinessHours, now) {
		return RateDecision{Reason: ReasonOutsideBusinessHours}
	}

	if rules.HourlyLimit.Enabled {
		count, err := rl.counters.Get(ctx, hourlyKey(organizationID, now))
		if err != nil {
			logrus.WithError(err).WithField("organization_id", organizationID).Error("Failed to read hourly send counter")
			return RateDecision{Reason: ReasonCounterUnavailable}
		}
		if count >= int64(rules.HourlyLimit.MaxMessages) {
			return RateDecision{Reason: ReasonHourlyLimit}
		}
	}

	if rules.DailyLimit.Enabled {
		count, err := rl.counters.Get(ctx, dailyKey(organizationID, now))
		if err != nil {
			logrus.WithError(err).WithField("organization_id", organizationID).Error("Failed to read daily send counter")
			return RateDecision{Reason: ReasonCounterUnavailable}
		}
		if count >= int64(rules.DailyLimit.MaxMessages) {
			return RateDecision{Reason: ReasonDailyLimit}
		}
	}

	return RateDecision{Allowed: true}
}

// CanSendNow reserves one message slot when allowed. Hourly and daily
// counters are checked and incremented together atomically.
func (rl *RateLimiter) CanSendNow(ctx context.Context, organizationID string, rules models.RateLimitingRule, now time.Time) RateDecision {
	if !WithinBusinessHours(rules.BusinessHours, now) {
		return RateDecision{Reason: ReasonOutsideBusinessHours}
	}

	var counters []interfaces.WindowCounter
	if rules.HourlyLimit.Enabled {
		counters = append(counters, interfaces.WindowCounter{
			Key:   hourlyKey(organizationID, now),
			Limit: int64(rules.HourlyLimit.MaxMessages),
			TTL:   2 * time.Hour,
		})
	}
	if rules.DailyLimit.Enabled {
		counters = append(counters, interfaces.WindowCounter{
			Key:   dailyKey(organizationID, now),
			Limit: int64(rules.DailyLimit.MaxMessages),
			TTL:   48 * time.Hour,
		})
	}
	if len(counters) == 0 {
		return RateDecision{Allowed: true}
	}

	allowed, err := rl.counters.IncrementIfBelow(ctx, counters)
	if err != nil {
		logrus.WithError(err).WithField("organization_id", organizationID).Error("Failed to update send counters")
		return RateDecision{Reason: ReasonCounterUnavailable}
	}
	if !allowed {
		return RateDecision{Reason: rl.limitReason(ctx, organizationID, rules, now)}
	}
	return RateDecision{Allowed: true}
}

func (rl *RateLimiter) limitReason(ctx context.Context, organizationID string, rules models.RateLimitingRule, now time.Time) string {
	if rules.HourlyLimit.Enabled {
		if count, err := rl.counters.Get(ctx, hourlyKey(organizationID, now)); err == nil && count >= int64(rules.HourlyLimit.MaxMessages) {
			return ReasonHourlyLimit
		}
	}
	return ReasonDailyLimit
}

// Pacing returns the pause to insert between consecutive sends of a pass.
func Pacing(rules models.RateLimitingRule) time.Duration {
	if !rules.DelayBetweenMessages.Enabled || rules.DelayBetweenMessages.DelaySeconds <= 0 {
		return 0
	}
	return time.Duration(rules.DelayBetweenMessages.DelaySeconds) * time.Second
}

// WithinBusinessHours reports whether now is inside the configured window.
// Disabled business hours never block.
func WithinBusinessHours(hours models.BusinessHours, now time.Time) bool {
	if !hours.Enabled {
		return true
	}
	if !utils.ContainsWeekdayIndex(hours.DaysOfWeek, now) {
		return false
	}
	return hours.StartHour <= now.Hour() && now.Hour() < hours.EndHour
}

func hourlyKey(organizationID string, now time.Time) string {
	return fmt.Sprintf("rate:%s:hourly:%s", organizationID, now.Format("2006-01-02T15"))
}

func dailyKey(organizationID string, now time.Time) string {
	return fmt.Sprintf("rate:%s:daily:%s", organizationID, now.Format("2006-01-02"))
}
