package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"schoolfee/models"

	"github.com/go-playground/validator/v10"
)

var (
	clockRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
	phoneRegex = regexp.MustCompile(`^\+?[1-9]\d{9,14}$`)
)

type ValidationService struct {
	validator *validator.Validate
}

type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

func NewValidationService() *ValidationService {
	v := validator.New()

	// Register custom validators
	v.RegisterValidation("hhmm", validateClock)
	v.RegisterValidation("weekday", validateWeekday)
	v.RegisterValidation("payment_status", validatePaymentStatus)
	v.RegisterValidation("due_condition", validateDueCondition)
	v.RegisterValidation("filter_kind", validateFilterKind)
	v.RegisterValidation("phone", validatePhone)

	v.RegisterStructValidation(scheduleStructLevel, models.Schedule{})
	v.RegisterStructValidation(customFilterStructLevel, models.CustomFilter{})

	return &ValidationService{
		validator: v,
	}
}

func (vs *ValidationService) ValidateStruct(s interface{}) []ValidationError {
	var validationErrors []ValidationError

	err := vs.validator.Struct(s)
	if err != nil {
		var fieldErrors validator.ValidationErrors
		if !errors.As(err, &fieldErrors) {
			return []ValidationError{{Message: err.Error()}}
		}
		for _, fe := range fieldErrors {
			validationErrors = append(validationErrors, ValidationError{
				Field:   fe.Namespace(),
				Tag:     fe.Tag(),
				Value:   fmt.Sprintf("%v", fe.Value()),
				Message: vs.getErrorMessage(fe),
			})
		}
	}

	return validationErrors
}

// ValidateSchedule checks a stored schedule before evaluation; a failure is a
// configuration error for the rule.
func (vs *ValidationService) ValidateSchedule(schedule models.Schedule) error {
	if errs := vs.ValidateStruct(schedule); len(errs) > 0 {
		return NewValidationError("Invalid schedule", errs[0].Message)
	}
	return nil
}

// ValidateCriteria checks stored criteria before evaluation.
func (vs *ValidationService) ValidateCriteria(criteria models.Criteria) error {
	if errs := vs.ValidateStruct(criteria); len(errs) > 0 {
		return NewValidationError("Invalid criteria", errs[0].Message)
	}
	return nil
}

func (vs *ValidationService) getErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "hhmm":
		return "Time must be in 24-hour HH:MM format"
	case "weekday":
		return "Day must be a lowercase weekday name such as monday"
	case "weekly_days":
		return "Weekly schedules require at least one day of week"
	case "payment_status":
		return "Payment status must be one of paid, unpaid, overdue, partial"
	case "due_condition":
		return "Due date condition must be one of before, after, overdue"
	case "filter_kind":
		return "Unknown custom filter kind"
	case "filter_params":
		return fmt.Sprintf("Custom filter is missing %s", fe.Param())
	case "phone":
		return "Invalid phone number format"
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// Custom validation functions
func validateClock(fl validator.FieldLevel) bool {
	return clockRegex.MatchString(fl.Field().String())
}

func validateWeekday(fl validator.FieldLevel) bool {
	return IsValidWeekdayName(fl.Field().String())
}

func validatePaymentStatus(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case models.PaymentStatusPaid, models.PaymentStatusUnpaid, models.PaymentStatusOverdue, models.PaymentStatusPartial:
		return true
	}
	return false
}

func validateDueCondition(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case models.DueDateBefore, models.DueDateAfter, models.DueDateOverdue:
		return true
	}
	return false
}

func validateFilterKind(fl validator.FieldLevel) bool {
	return IsKnownFilterKind(fl.Field().String())
}

func validatePhone(fl validator.FieldLevel) bool {
	phone := NormalizePhoneNumber(fl.Field().String())
	return phoneRegex.MatchString(phone)
}

// IsKnownFilterKind reports whether kind is a supported custom filter.
func IsKnownFilterKind(kind string) bool {
	switch kind {
	case models.FilterFieldEquals, models.FilterFieldNotEquals, models.FilterFieldIn,
		models.FilterAmountAtLeast, models.FilterAmountAtMost, models.FilterAmountBetween,
		models.FilterHasWhatsApp, models.FilterNameContains:
		return true
	}
	return false
}

func scheduleStructLevel(sl validator.StructLevel) {
	schedule := sl.Current().Interface().(models.Schedule)
	if schedule.Frequency == models.FrequencyWeekly && len(schedule.DaysOfWeek) == 0 {
		sl.ReportError(schedule.DaysOfWeek, "DaysOfWeek", "daysOfWeek", "weekly_days", "")
	}
}

func customFilterStructLevel(sl validator.StructLevel) {
	filter := sl.Current().Interface().(models.CustomFilter)
	switch filter.Kind {
	case models.FilterFieldEquals, models.FilterFieldNotEquals:
		if filter.Field == "" {
			sl.ReportError(filter.Field, "Field", "field", "filter_params", "field")
		}
	case models.FilterFieldIn:
		if filter.Field == "" || len(filter.Values) == 0 {
			sl.ReportError(filter.Values, "Values", "values", "filter_params", "field and values")
		}
	case models.FilterAmountAtLeast:
		if filter.Min == nil {
			sl.ReportError(filter.Min, "Min", "min", "filter_params", "min")
		}
	case models.FilterAmountAtMost:
		if filter.Max == nil {
			sl.ReportError(filter.Max, "Max", "max", "filter_params", "max")
		}
	case models.FilterAmountBetween:
		if filter.Min == nil || filter.Max == nil {
			sl.ReportError(filter.Min, "Min", "min", "filter_params", "min and max")
		}
	case models.FilterNameContains:
		if strings.TrimSpace(filter.Value) == "" {
			sl.ReportError(filter.Value, "Value", "value", "filter_params", "value")
		}
	}
}

// ValidateTimeFormat validates time format (HH:MM)
func ValidateTimeFormat(timeStr string) bool {
	return clockRegex.MatchString(timeStr)
}
