package services

import (
	"context"
	"strings"
	"time"

	"schoolfee/interfaces"
	"schoolfee/models"
	"schoolfee/utils"

	"github.com/sirupsen/logrus"
)

// RuleService backs the tenant admin API for rules and templates.
type RuleService struct {
	store     interfaces.AutomationStore
	validator *utils.ValidationService
	now       func() time.Time
}

func NewRuleService(store interfaces.AutomationStore, validator *utils.ValidationService) *RuleService {
	if validator == nil {
		validator = utils.NewValidationService()
	}
	return &RuleService{
		store:     store,
		validator: validator,
		now:       time.Now,
	}
}

func (rs *RuleService) CreateRule(ctx context.Context, organizationID string, req models.CreateAutomationRuleRequest) (*models.AutomationRule, error) {
	for i, day := range req.Schedule.DaysOfWeek {
		req.Schedule.DaysOfWeek[i] = strings.ToLower(strings.TrimSpace(day))
	}
	if errs := rs.validator.ValidateStruct(req); len(errs) > 0 {
		return nil, utils.NewValidationError("Invalid automation rule", errs[0].Message)
	}

	template, err := rs.store.GetTemplate(ctx, organizationID, req.TemplateID)
	if err != nil {
		if utils.ErrorCode(err) == utils.ErrCodeNotFound {
			return nil, utils.NewValidationError("Invalid automation rule", "templateId does not reference a template")
		}
		return nil, err
	}

	schedule := req.Schedule

	rule := &models.AutomationRule{
		OrganizationID: organizationID,
		Name:           strings.TrimSpace(req.Name),
		Enabled:        req.Enabled,
		TemplateID:     template.ID,
		Schedule:       schedule,
		Criteria:       req.Criteria,
		NextRun:        NextOccurrence(schedule, rs.now()),
	}

	if err := rs.store.CreateRule(ctx, rule); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"organization_id": organizationID,
		"rule_id":         rule.ID,
	}).Info("Automation rule created")

	return rule, nil
}

func (rs *RuleService) GetRule(ctx context.Context, organizationID, ruleID string) (*models.AutomationRule, error) {
	return rs.store.GetRule(ctx, organizationID, ruleID)
}

func (rs *RuleService) ListRules(ctx context.Context, organizationID string) ([]models.AutomationRule, error) {
	return rs.store.ListRules(ctx, organizationID)
}

func (rs *RuleService) ToggleRule(ctx context.Context, organizationID, ruleID string, enabled bool) (*models.AutomationRule, error) {
	if err := rs.store.SetRuleEnabled(ctx, organizationID, ruleID, enabled); err != nil {
		return nil, err
	}
	return rs.store.GetRule(ctx, organizationID, ruleID)
}

func (rs *RuleService) CreateTemplate(ctx context.Context, organizationID string, req models.CreateTemplateRequest) (*models.MessageTemplate, error) {
	if errs := rs.validator.ValidateStruct(req); len(errs) > 0 {
		return nil, utils.NewValidationError("Invalid template", errs[0].Message)
	}
	if unknown := UnknownPlaceholders(req.Content); len(unknown) > 0 {
		return nil, utils.NewValidationError("Invalid template", "unknown placeholders: "+strings.Join(unknown, ", "))
	}

	template := &models.MessageTemplate{
		OrganizationID: organizationID,
		Name:           strings.TrimSpace(req.Name),
		Content:        req.Content,
		Category:       req.Category,
		Enabled:        req.Enabled,
	}

	if err := rs.store.CreateTemplate(ctx, template); err != nil {
		return nil, err
	}
	return template, nil
}

func (rs *RuleService) ListTemplates(ctx context.Context, organizationID string) ([]models.MessageTemplate, error) {
	return rs.store.ListTemplates(ctx, organizationID)
}

// TemplatePreview is a rendered template plus any placeholders left as-is.
type TemplatePreview struct {
	Message             string   `json:"message"`
	Placeholders        []string `json:"placeholders"`
	UnknownPlaceholders []string `json:"unknownPlaceholders,omitempty"`
}

func (rs *RuleService) PreviewTemplate(req models.PreviewTemplateRequest) (*TemplatePreview, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, utils.NewValidationError("Invalid preview", "content is required")
	}

	return &TemplatePreview{
		Message:             RenderTemplate(req.Content, req.Recipient),
		Placeholders:        ExtractPlaceholders(req.Content),
		UnknownPlaceholders: UnknownPlaceholders(req.Content),
	}, nil
}
