package services

import (
	"math"
	"strings"
	"time"

	"schoolfee/models"
	"schoolfee/utils"
)

// MatchCriteria reports whether the recipient satisfies every populated field
// of criteria. Empty criteria match everyone.
func MatchCriteria(criteria models.Criteria, recipient models.Recipient, now time.Time) bool {
	if criteria.PaymentStatus != "" && criteria.PaymentStatus != recipient.PaymentStatus {
		return false
	}

	if criteria.DueDate != nil && !MatchDueDate(*criteria.DueDate, recipient.DueDate, now) {
		return false
	}

	if criteria.ClassID != "" && criteria.ClassID != recipient.ClassID {
		return false
	}

	if criteria.CourseID != "" && criteria.CourseID != recipient.CourseID {
		return false
	}

	if criteria.Amount != nil {
		if recipient.Amount == nil || *recipient.Amount != *criteria.Amount {
			return false
		}
	}

	for _, filter := range criteria.CustomFilters {
		if !MatchCustomFilter(filter, recipient) {
			return false
		}
	}

	return true
}

// DaysUntil returns whole days from now until dueDate, rounded down, so the
// result is negative exactly when dueDate is in the past.
func DaysUntil(dueDate, now time.Time) int {
	return int(math.Floor(dueDate.Sub(now).Hours() / 24))
}

// MatchDueDate applies a due-date condition. Recipients without a due date
// never match.
func MatchDueDate(criteria models.DueDateCriteria, dueDate *time.Time, now time.Time) bool {
	if dueDate == nil {
		return false
	}

	days := DaysUntil(*dueDate, now)

	switch criteria.Condition {
	case models.DueDateOverdue:
		return days < 0
	case models.DueDateBefore:
		return days >= 0 && days <= criteria.Days
	case models.DueDateAfter:
		return days >= criteria.Days
	default:
		return false
	}
}

// MatchCustomFilter evaluates one tagged custom filter. Unknown kinds never
// match; they are rejected at authoring time and reported at evaluation.
func MatchCustomFilter(filter models.CustomFilter, recipient models.Recipient) bool {
	switch filter.Kind {
	case models.FilterFieldEquals:
		value, ok := recipient.FieldValue(filter.Field)
		return ok && value == filter.Value

	case models.FilterFieldNotEquals:
		value, ok := recipient.FieldValue(filter.Field)
		return ok && value != filter.Value

	case models.FilterFieldIn:
		value, ok := recipient.FieldValue(filter.Field)
		return ok && utils.StringSliceContains(filter.Values, value)

	case models.FilterAmountAtLeast:
		return recipient.Amount != nil && filter.Min != nil && *recipient.Amount >= *filter.Min

	case models.FilterAmountAtMost:
		return recipient.Amount != nil && filter.Max != nil && *recipient.Amount <= *filter.Max

	case models.FilterAmountBetween:
		return recipient.Amount != nil && filter.Min != nil && filter.Max != nil &&
			*recipient.Amount >= *filter.Min && *recipient.Amount <= *filter.Max

	case models.FilterHasWhatsApp:
		return recipient.Address() != ""

	case models.FilterNameContains:
		return filter.Value != "" &&
			strings.Contains(strings.ToLower(recipient.Name), strings.ToLower(filter.Value))

	default:
		return false
	}
}

// FilterRecipients returns the recipients matching criteria, in input order.
func FilterRecipients(criteria models.Criteria, recipients []models.Recipient, now time.Time) []models.Recipient {
	matched := make([]models.Recipient, 0, len(recipients))
	for _, r := range recipients {
		if MatchCriteria(criteria, r, now) {
			matched = append(matched, r)
		}
	}
	return matched
}
