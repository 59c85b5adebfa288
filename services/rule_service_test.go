package services

import (
	"context"
	"testing"
	"time"

	"schoolfee/models"
	"schoolfee/repositories"
	"schoolfee/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRuleService(t *testing.T) (*RuleService, *models.MessageTemplate) {
	t.Helper()

	service := NewRuleService(repositories.NewMemoryAutomationStore(), nil)
	service.now = func() time.Time { return at(4, 10, 0) }

	template, err := service.CreateTemplate(context.Background(), "org-1", models.CreateTemplateRequest{
		Name:     "Reminder",
		Content:  "Hi {name}, {amount} due {dueDate}",
		Category: "reminder",
		Enabled:  true,
	})
	require.NoError(t, err)
	return service, template
}

func TestRuleServiceCreateRule(t *testing.T) {
	ctx := context.Background()
	service, template := newTestRuleService(t)

	rule, err := service.CreateRule(ctx, "org-1", models.CreateAutomationRuleRequest{
		Name:       "  Weekly reminder ",
		TemplateID: template.ID,
		Enabled:    true,
		Schedule: models.Schedule{
			Time:       "09:00",
			Frequency:  models.FrequencyWeekly,
			DaysOfWeek: []string{"Monday", " FRIDAY"},
		},
		Criteria: models.Criteria{PaymentStatus: models.PaymentStatusUnpaid},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, rule.ID)
	assert.Equal(t, "Weekly reminder", rule.Name)
	assert.Equal(t, []string{"monday", "friday"}, rule.Schedule.DaysOfWeek)
	require.NotNil(t, rule.NextRun)
	assert.Equal(t, at(8, 9, 0), *rule.NextRun)

	stored, err := service.GetRule(ctx, "org-1", rule.ID)
	require.NoError(t, err)
	assert.Equal(t, rule.Name, stored.Name)

	rules, err := service.ListRules(ctx, "org-1")
	require.NoError(t, err)
	assert.Len(t, rules, 1)

	rules, err = service.ListRules(ctx, "org-2")
	require.NoError(t, err)
	assert.Empty(t, rules, "rules are scoped to their organization")
}

func TestRuleServiceCreateRuleValidation(t *testing.T) {
	ctx := context.Background()
	service, template := newTestRuleService(t)

	valid := func() models.CreateAutomationRuleRequest {
		return models.CreateAutomationRuleRequest{
			Name:       "Reminder",
			TemplateID: template.ID,
			Schedule:   models.Schedule{Time: "09:00", Frequency: models.FrequencyDaily},
		}
	}

	tests := []struct {
		name   string
		mutate func(*models.CreateAutomationRuleRequest)
	}{
		{"bad time", func(r *models.CreateAutomationRuleRequest) { r.Schedule.Time = "9:00" }},
		{"unknown frequency", func(r *models.CreateAutomationRuleRequest) { r.Schedule.Frequency = "monthly" }},
		{"weekly without days", func(r *models.CreateAutomationRuleRequest) { r.Schedule.Frequency = models.FrequencyWeekly }},
		{"bad weekday", func(r *models.CreateAutomationRuleRequest) {
			r.Schedule.Frequency = models.FrequencyWeekly
			r.Schedule.DaysOfWeek = []string{"funday"}
		}},
		{"bad payment status", func(r *models.CreateAutomationRuleRequest) { r.Criteria.PaymentStatus = "maybe" }},
		{"unknown filter", func(r *models.CreateAutomationRuleRequest) {
			r.Criteria.CustomFilters = []models.CustomFilter{{Kind: "shoe_size"}}
		}},
		{"filter missing params", func(r *models.CreateAutomationRuleRequest) {
			r.Criteria.CustomFilters = []models.CustomFilter{{Kind: models.FilterAmountBetween, Min: utils.Float64Ptr(1)}}
		}},
		{"missing name", func(r *models.CreateAutomationRuleRequest) { r.Name = "" }},
		{"unknown template", func(r *models.CreateAutomationRuleRequest) { r.TemplateID = "nope" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(&req)

			_, err := service.CreateRule(ctx, "org-1", req)
			require.Error(t, err)
			assert.Equal(t, utils.ErrCodeValidation, utils.ErrorCode(err))
		})
	}

	_, err := service.CreateRule(ctx, "org-1", valid())
	assert.NoError(t, err)
}

func TestRuleServiceToggleRule(t *testing.T) {
	ctx := context.Background()
	service, template := newTestRuleService(t)

	rule, err := service.CreateRule(ctx, "org-1", models.CreateAutomationRuleRequest{
		Name:       "Reminder",
		TemplateID: template.ID,
		Enabled:    true,
		Schedule:   models.Schedule{Time: "09:00", Frequency: models.FrequencyDaily},
	})
	require.NoError(t, err)

	toggled, err := service.ToggleRule(ctx, "org-1", rule.ID, false)
	require.NoError(t, err)
	assert.False(t, toggled.Enabled)

	_, err = service.ToggleRule(ctx, "org-2", rule.ID, true)
	assert.Equal(t, utils.ErrCodeNotFound, utils.ErrorCode(err))
}

func TestRuleServiceTemplates(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestRuleService(t)

	_, err := service.CreateTemplate(ctx, "org-1", models.CreateTemplateRequest{
		Name:     "Broken",
		Content:  "Hi {name}, your {balance} is due",
		Category: "reminder",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "balance")

	_, err = service.CreateTemplate(ctx, "org-1", models.CreateTemplateRequest{Name: "Empty", Category: "reminder"})
	assert.Equal(t, utils.ErrCodeValidation, utils.ErrorCode(err))

	templates, err := service.ListTemplates(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, "Reminder", templates[0].Name)
}

func TestRuleServicePreviewTemplate(t *testing.T) {
	service, _ := newTestRuleService(t)

	preview, err := service.PreviewTemplate(models.PreviewTemplateRequest{
		Content:   "Hi {name}, {school} says {amount}",
		Recipient: models.Recipient{Name: "Ana", Amount: utils.Float64Ptr(99.5)},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi Ana, {school} says 99.50", preview.Message)
	assert.Equal(t, []string{"name", "school", "amount"}, preview.Placeholders)
	assert.Equal(t, []string{"school"}, preview.UnknownPlaceholders)

	_, err = service.PreviewTemplate(models.PreviewTemplateRequest{Content: "   "})
	assert.Equal(t, utils.ErrCodeValidation, utils.ErrorCode(err))
}
