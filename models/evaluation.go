package models

import "time"

// Delivery statuses reported by the delivery sink and its callbacks
const (
	DeliveryAccepted  = "accepted"
	DeliveryDelivered = "delivered"
	DeliveryFailed    = "failed"
)

// Rule evaluation statuses
const (
	RuleStatusFired        = "fired"
	RuleStatusNotScheduled = "not_scheduled"
	RuleStatusDeferred     = "deferred"
	RuleStatusNoRecipients = "no_recipients"
	RuleStatusConfigError  = "configuration_error"
	RuleStatusFailed       = "failed"
)

// SendInstruction is one rendered message for one recipient.
type SendInstruction struct {
	ID             string    `json:"id"`
	RunID          string    `json:"runId"`
	OrganizationID string    `json:"organizationId"`
	RuleID         string    `json:"ruleId"`
	TemplateID     string    `json:"templateId"`
	RecipientID    string    `json:"recipientId"`
	To             string    `json:"to"`
	Message        string    `json:"message"`
	WindowKey      string    `json:"windowKey"`
	CreatedAt      time.Time `json:"createdAt"`
}

// DeliveryReceipt is what the delivery sink returns synchronously. A receipt
// with Status DeliveryAccepted settles later through a status callback.
type DeliveryReceipt struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
}

// PendingRun tracks the deliveries of one rule run until they all report.
type PendingRun struct {
	RunID          string    `json:"runId"`
	OrganizationID string    `json:"organizationId"`
	RuleID         string    `json:"ruleId"`
	TemplateID     string    `json:"templateId"`
	Pending        int64     `json:"pending"`
	Failed         bool      `json:"failed"`
	Closed         bool      `json:"closed"`
	CreatedAt      time.Time `json:"createdAt"`
}

// DeliveryStatusUpdate is a normalized asynchronous delivery outcome.
type DeliveryStatusUpdate struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
	ErrorCode string `json:"errorCode,omitempty"`
}

type RuleEvaluation struct {
	OrganizationID string   `json:"organizationId"`
	RuleID         string   `json:"ruleId"`
	RuleName       string   `json:"ruleName"`
	Status         string   `json:"status"`
	Reason         string   `json:"reason,omitempty"`
	Matched        int      `json:"matched"`
	Duplicates     int      `json:"duplicates"`
	Dispatched     int      `json:"dispatched"`
	Failed         int      `json:"failed"`
	Deferred       int      `json:"deferred"`
	Errors         []string `json:"errors,omitempty"`
}

type EvaluationFailure struct {
	OrganizationID string `json:"organizationId"`
	RuleID         string `json:"ruleId,omitempty"`
	Code           string `json:"code"`
	Message        string `json:"message"`
}

// EvaluationReport summarises one RunOnce pass.
type EvaluationReport struct {
	ID            string              `json:"id"`
	StartedAt     time.Time           `json:"startedAt"`
	FinishedAt    time.Time           `json:"finishedAt"`
	EvaluatedAt   time.Time           `json:"evaluatedAt"`
	Organizations int                 `json:"organizations"`
	RulesChecked  int                 `json:"rulesChecked"`
	RulesFired    int                 `json:"rulesFired"`
	Dispatched    int                 `json:"dispatched"`
	Rules         []RuleEvaluation    `json:"rules"`
	Failures      []EvaluationFailure `json:"failures,omitempty"`
}
