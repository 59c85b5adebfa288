package models

import "time"

// Schedule frequencies
const (
	FrequencyDaily  = "daily"
	FrequencyWeekly = "weekly"
)

// Payment statuses
const (
	PaymentStatusPaid    = "paid"
	PaymentStatusUnpaid  = "unpaid"
	PaymentStatusOverdue = "overdue"
	PaymentStatusPartial = "partial"
)

// Due date conditions
const (
	DueDateBefore  = "before"
	DueDateAfter   = "after"
	DueDateOverdue = "overdue"
)

// Custom filter kinds
const (
	FilterFieldEquals    = "field_equals"
	FilterFieldNotEquals = "field_not_equals"
	FilterFieldIn        = "field_in"
	FilterAmountAtLeast  = "amount_at_least"
	FilterAmountAtMost   = "amount_at_most"
	FilterAmountBetween  = "amount_between"
	FilterHasWhatsApp    = "has_whatsapp"
	FilterNameContains   = "name_contains"
)

// Automation Rules
type AutomationRule struct {
	ID             string     `json:"id" bson:"_id" firestore:"id"`
	OrganizationID string     `json:"organizationId" bson:"organizationId" firestore:"organizationId"`
	Name           string     `json:"name" bson:"name" firestore:"name"`
	Enabled        bool       `json:"enabled" bson:"enabled" firestore:"enabled"`
	TemplateID     string     `json:"templateId" bson:"templateId" firestore:"templateId"`
	Schedule       Schedule   `json:"schedule" bson:"schedule" firestore:"schedule"`
	Criteria       Criteria   `json:"criteria" bson:"criteria" firestore:"criteria"`
	RunCount       int64      `json:"runCount" bson:"runCount" firestore:"runCount"`
	SuccessCount   int64      `json:"successCount" bson:"successCount" firestore:"successCount"`
	FailureCount   int64      `json:"failureCount" bson:"failureCount" firestore:"failureCount"`
	LastRun        *time.Time `json:"lastRun,omitempty" bson:"lastRun,omitempty" firestore:"lastRun,omitempty"`
	NextRun        *time.Time `json:"nextRun,omitempty" bson:"nextRun,omitempty" firestore:"nextRun,omitempty"`
	CreatedAt      time.Time  `json:"createdAt" bson:"createdAt" firestore:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt" bson:"updatedAt" firestore:"updatedAt"`
}

type Schedule struct {
	Time       string   `json:"time" bson:"time" firestore:"time" validate:"required,hhmm"`
	Frequency  string   `json:"frequency" bson:"frequency" firestore:"frequency" validate:"required,oneof=daily weekly"`
	DaysOfWeek []string `json:"daysOfWeek,omitempty" bson:"daysOfWeek,omitempty" firestore:"daysOfWeek,omitempty" validate:"omitempty,dive,weekday"`
	Timezone   string   `json:"timezone,omitempty" bson:"timezone,omitempty" firestore:"timezone,omitempty"`
}

// Criteria fields are ANDed; nil/empty fields impose no constraint.
type Criteria struct {
	PaymentStatus string           `json:"paymentStatus,omitempty" bson:"paymentStatus,omitempty" firestore:"paymentStatus,omitempty" validate:"omitempty,payment_status"`
	DueDate       *DueDateCriteria `json:"dueDate,omitempty" bson:"dueDate,omitempty" firestore:"dueDate,omitempty" validate:"omitempty"`
	ClassID       string           `json:"classId,omitempty" bson:"classId,omitempty" firestore:"classId,omitempty"`
	CourseID      string           `json:"courseId,omitempty" bson:"courseId,omitempty" firestore:"courseId,omitempty"`
	Amount        *float64         `json:"amount,omitempty" bson:"amount,omitempty" firestore:"amount,omitempty"`
	CustomFilters []CustomFilter   `json:"customFilters,omitempty" bson:"customFilters,omitempty" firestore:"customFilters,omitempty" validate:"omitempty,dive"`
}

type DueDateCriteria struct {
	Condition string `json:"condition" bson:"condition" firestore:"condition" validate:"required,due_condition"`
	Days      int    `json:"days" bson:"days" firestore:"days" validate:"gte=0"`
}

// CustomFilter is a tagged variant; Kind selects which parameters apply.
type CustomFilter struct {
	Kind   string   `json:"kind" bson:"kind" firestore:"kind" validate:"required,filter_kind"`
	Field  string   `json:"field,omitempty" bson:"field,omitempty" firestore:"field,omitempty"`
	Value  string   `json:"value,omitempty" bson:"value,omitempty" firestore:"value,omitempty"`
	Values []string `json:"values,omitempty" bson:"values,omitempty" firestore:"values,omitempty"`
	Min    *float64 `json:"min,omitempty" bson:"min,omitempty" firestore:"min,omitempty"`
	Max    *float64 `json:"max,omitempty" bson:"max,omitempty" firestore:"max,omitempty"`
}

// Message Templates
type MessageTemplate struct {
	ID             string    `json:"id" bson:"_id" firestore:"id"`
	OrganizationID string    `json:"organizationId" bson:"organizationId" firestore:"organizationId"`
	Name           string    `json:"name" bson:"name" firestore:"name"`
	Content        string    `json:"content" bson:"content" firestore:"content"`
	Category       string    `json:"category" bson:"category" firestore:"category"`
	Enabled        bool      `json:"enabled" bson:"enabled" firestore:"enabled"`
	UsageCount     int64     `json:"usageCount" bson:"usageCount" firestore:"usageCount"`
	SuccessCount   int64     `json:"successCount" bson:"successCount" firestore:"successCount"`
	FailureCount   int64     `json:"failureCount" bson:"failureCount" firestore:"failureCount"`
	CreatedAt      time.Time `json:"createdAt" bson:"createdAt" firestore:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt" bson:"updatedAt" firestore:"updatedAt"`
}

// RunOutcome is the counter a rule or template run contributes to.
type RunOutcome string

const (
	OutcomeRun     RunOutcome = "run"
	OutcomeSuccess RunOutcome = "success"
	OutcomeFailure RunOutcome = "failure"
)

// Request models

type CreateAutomationRuleRequest struct {
	Name       string   `json:"name" validate:"required,min=1,max=100"`
	TemplateID string   `json:"templateId" validate:"required"`
	Enabled    bool     `json:"enabled"`
	Schedule   Schedule `json:"schedule" validate:"required"`
	Criteria   Criteria `json:"criteria"`
}

type ToggleAutomationRuleRequest struct {
	Enabled bool `json:"enabled"`
}

type CreateTemplateRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=100"`
	Content  string `json:"content" validate:"required,max=4096"`
	Category string `json:"category" validate:"required"`
	Enabled  bool   `json:"enabled"`
}

type PreviewTemplateRequest struct {
	Content   string    `json:"content" validate:"required"`
	Recipient Recipient `json:"recipient"`
}
