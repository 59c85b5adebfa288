package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"schoolfee/models"
	"schoolfee/utils"
)

// MemoryAutomationStore keeps tenants, rules, templates and students in
// process memory. Used for local runs and tests.
type MemoryAutomationStore struct {
	mu            sync.RWMutex
	organizations map[string]models.Organization
	rules         map[string]map[string]*models.AutomationRule
	templates     map[string]map[string]*models.MessageTemplate
	students      map[string][]models.Recipient

	// RecipientErr, when set, is returned by ListRecipients.
	RecipientErr error
}

func NewMemoryAutomationStore() *MemoryAutomationStore {
	return &MemoryAutomationStore{
		organizations: make(map[string]models.Organization),
		rules:         make(map[string]map[string]*models.AutomationRule),
		templates:     make(map[string]map[string]*models.MessageTemplate),
		students:      make(map[string][]models.Recipient),
	}
}

func (ms *MemoryAutomationStore) PutOrganization(org models.Organization) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.organizations[org.ID] = org
}

func (ms *MemoryAutomationStore) PutRecipients(organizationID string, recipients ...models.Recipient) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	for i := range recipients {
		recipients[i].OrganizationID = organizationID
	}
	ms.students[organizationID] = append(ms.students[organizationID], recipients...)
}

func (ms *MemoryAutomationStore) ListOrganizations(ctx context.Context) ([]models.Organization, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	orgs := make([]models.Organization, 0, len(ms.organizations))
	for _, org := range ms.organizations {
		orgs = append(orgs, org)
	}
	sort.Slice(orgs, func(i, j int) bool { return orgs[i].ID < orgs[j].ID })
	return orgs, nil
}

func (ms *MemoryAutomationStore) GetOrganization(ctx context.Context, organizationID string) (*models.Organization, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	org, ok := ms.organizations[organizationID]
	if !ok {
		return nil, utils.NewOrganizationNotFoundError()
	}
	return &org, nil
}

func (ms *MemoryAutomationStore) ListRecipients(ctx context.Context, organizationID string) ([]models.Recipient, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	if ms.RecipientErr != nil {
		return nil, ms.RecipientErr
	}
	return append([]models.Recipient(nil), ms.students[organizationID]...), nil
}

func (ms *MemoryAutomationStore) CreateRule(ctx context.Context, rule *models.AutomationRule) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if rule.ID == "" {
		rule.ID = utils.GenerateUUID()
	}
	now := time.Now()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	if ms.rules[rule.OrganizationID] == nil {
		ms.rules[rule.OrganizationID] = make(map[string]*models.AutomationRule)
	}
	stored := *rule
	ms.rules[rule.OrganizationID][rule.ID] = &stored
	return nil
}

func (ms *MemoryAutomationStore) GetRule(ctx context.Context, organizationID, ruleID string) (*models.AutomationRule, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	rule, ok := ms.rules[organizationID][ruleID]
	if !ok {
		return nil, utils.NewRuleNotFoundError()
	}
	copied := *rule
	return &copied, nil
}

func (ms *MemoryAutomationStore) ListRules(ctx context.Context, organizationID string) ([]models.AutomationRule, error) {
	return ms.listRules(organizationID, false), nil
}

func (ms *MemoryAutomationStore) ListEnabledRules(ctx context.Context, organizationID string) ([]models.AutomationRule, error) {
	return ms.listRules(organizationID, true), nil
}

func (ms *MemoryAutomationStore) listRules(organizationID string, enabledOnly bool) []models.AutomationRule {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	rules := make([]models.AutomationRule, 0, len(ms.rules[organizationID]))
	for _, rule := range ms.rules[organizationID] {
		if enabledOnly && !rule.Enabled {
			continue
		}
		rules = append(rules, *rule)
	}
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].CreatedAt.Equal(rules[j].CreatedAt) {
			return rules[i].ID < rules[j].ID
		}
		return rules[i].CreatedAt.Before(rules[j].CreatedAt)
	})
	return rules
}

func (ms *MemoryAutomationStore) SetRuleEnabled(ctx context.Context, organizationID, ruleID string, enabled bool) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	rule, ok := ms.rules[organizationID][ruleID]
	if !ok {
		return utils.NewRuleNotFoundError()
	}
	rule.Enabled = enabled
	rule.UpdatedAt = time.Now()
	return nil
}

func (ms *MemoryAutomationStore) IncrementRunCounters(ctx context.Context, organizationID, ruleID string, outcome models.RunOutcome) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	rule, ok := ms.rules[organizationID][ruleID]
	if !ok {
		return utils.NewRuleNotFoundError()
	}
	switch outcome {
	case models.OutcomeRun:
		rule.RunCount++
	case models.OutcomeSuccess:
		rule.SuccessCount++
	case models.OutcomeFailure:
		rule.FailureCount++
	}
	return nil
}

func (ms *MemoryAutomationStore) SetLastRun(ctx context.Context, organizationID, ruleID string, lastRun time.Time, nextRun *time.Time) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	rule, ok := ms.rules[organizationID][ruleID]
	if !ok {
		return utils.NewRuleNotFoundError()
	}
	rule.LastRun = &lastRun
	rule.NextRun = nextRun
	rule.UpdatedAt = time.Now()
	return nil
}

func (ms *MemoryAutomationStore) CreateTemplate(ctx context.Context, template *models.MessageTemplate) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if template.ID == "" {
		template.ID = utils.GenerateUUID()
	}
	now := time.Now()
	template.CreatedAt = now
	template.UpdatedAt = now

	if ms.templates[template.OrganizationID] == nil {
		ms.templates[template.OrganizationID] = make(map[string]*models.MessageTemplate)
	}
	stored := *template
	ms.templates[template.OrganizationID][template.ID] = &stored
	return nil
}

func (ms *MemoryAutomationStore) GetTemplate(ctx context.Context, organizationID, templateID string) (*models.MessageTemplate, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	template, ok := ms.templates[organizationID][templateID]
	if !ok {
		return nil, utils.NewTemplateNotFoundError()
	}
	copied := *template
	return &copied, nil
}

func (ms *MemoryAutomationStore) ListTemplates(ctx context.Context, organizationID string) ([]models.MessageTemplate, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	templates := make([]models.MessageTemplate, 0, len(ms.templates[organizationID]))
	for _, t := range ms.templates[organizationID] {
		templates = append(templates, *t)
	}
	sort.Slice(templates, func(i, j int) bool { return templates[i].Name < templates[j].Name })
	return templates, nil
}

func (ms *MemoryAutomationStore) IncrementTemplateUsage(ctx context.Context, organizationID, templateID string, outcome models.RunOutcome) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	template, ok := ms.templates[organizationID][templateID]
	if !ok {
		return utils.NewTemplateNotFoundError()
	}
	switch outcome {
	case models.OutcomeRun:
		template.UsageCount++
	case models.OutcomeSuccess:
		template.SuccessCount++
	case models.OutcomeFailure:
		template.FailureCount++
	}
	return nil
}
