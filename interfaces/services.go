package interfaces

import (
	"context"
	"time"

	"schoolfee/models"
)

// Collaborators of the automation engine. Persistence, student data and the
// WhatsApp transport sit behind these.

type OrganizationSource interface {
	ListOrganizations(ctx context.Context) ([]models.Organization, error)
	GetOrganization(ctx context.Context, organizationID string) (*models.Organization, error)
}

type RecipientSource interface {
	ListRecipients(ctx context.Context, organizationID string) ([]models.Recipient, error)
}

type RuleStore interface {
	ListEnabledRules(ctx context.Context, organizationID string) ([]models.AutomationRule, error)
	GetTemplate(ctx context.Context, organizationID, templateID string) (*models.MessageTemplate, error)
	IncrementRunCounters(ctx context.Context, organizationID, ruleID string, outcome models.RunOutcome) error
	SetLastRun(ctx context.Context, organizationID, ruleID string, lastRun time.Time, nextRun *time.Time) error
	IncrementTemplateUsage(ctx context.Context, organizationID, templateID string, outcome models.RunOutcome) error
}

// AutomationStore adds the tenant admin operations served by the API.
type AutomationStore interface {
	OrganizationSource
	RecipientSource
	RuleStore

	CreateRule(ctx context.Context, rule *models.AutomationRule) error
	GetRule(ctx context.Context, organizationID, ruleID string) (*models.AutomationRule, error)
	ListRules(ctx context.Context, organizationID string) ([]models.AutomationRule, error)
	SetRuleEnabled(ctx context.Context, organizationID, ruleID string, enabled bool) error
	CreateTemplate(ctx context.Context, template *models.MessageTemplate) error
	ListTemplates(ctx context.Context, organizationID string) ([]models.MessageTemplate, error)
}

type DeliverySink interface {
	Send(ctx context.Context, instruction models.SendInstruction) (*models.DeliveryReceipt, error)
}

// CounterStore holds per-organization send counters. IncrementIfBelow must
// check every key against its limit and increment all of them atomically.
type CounterStore interface {
	IncrementIfBelow(ctx context.Context, counters []WindowCounter) (bool, error)
	Get(ctx context.Context, key string) (int64, error)
}

type WindowCounter struct {
	Key   string
	Limit int64
	TTL   time.Duration
}

// SendGuardStore records (rule, recipient, window) marks.
type SendGuardStore interface {
	SetIfAbsent(ctx context.Context, key string, at time.Time, ttl time.Duration) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// DeliveryTracker follows accepted messages until their run settles. A run
// is opened before its first message is tracked and settles once it is
// closed and every tracked message has reported. Reports for messages not
// tracked yet are held and applied by Track, which returns the held status.
type DeliveryTracker interface {
	Open(ctx context.Context, run models.PendingRun) error
	Track(ctx context.Context, runID, messageID string) (string, error)
	Close(ctx context.Context, runID string, failed bool) (*models.PendingRun, bool, error)
	Resolve(ctx context.Context, messageID string, delivered bool) (*models.PendingRun, bool, error)
	Prune(ctx context.Context, olderThan time.Time) (int, error)
}

type Clock interface {
	Now() time.Time
}
