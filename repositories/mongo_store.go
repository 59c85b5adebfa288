package repositories

import (
	"context"
	"time"

	"schoolfee/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoAutomationStore serves the automation engine from MongoDB.
type MongoAutomationStore struct {
	Organizations *OrganizationRepository
	Students      *StudentRepository
	Rules         *AutomationRepository
	Templates     *TemplateRepository
}

func NewMongoAutomationStore(db *mongo.Database) *MongoAutomationStore {
	return &MongoAutomationStore{
		Organizations: NewOrganizationRepository(db),
		Students:      NewStudentRepository(db),
		Rules:         NewAutomationRepository(db),
		Templates:     NewTemplateRepository(db),
	}
}

func (s *MongoAutomationStore) ListOrganizations(ctx context.Context) ([]models.Organization, error) {
	return s.Organizations.ListActive(ctx)
}

func (s *MongoAutomationStore) GetOrganization(ctx context.Context, organizationID string) (*models.Organization, error) {
	return s.Organizations.GetByID(ctx, organizationID)
}

func (s *MongoAutomationStore) ListRecipients(ctx context.Context, organizationID string) ([]models.Recipient, error) {
	return s.Students.ListByOrganization(ctx, organizationID)
}

func (s *MongoAutomationStore) ListEnabledRules(ctx context.Context, organizationID string) ([]models.AutomationRule, error) {
	return s.Rules.List(ctx, organizationID, true)
}

func (s *MongoAutomationStore) ListRules(ctx context.Context, organizationID string) ([]models.AutomationRule, error) {
	return s.Rules.List(ctx, organizationID, false)
}

func (s *MongoAutomationStore) GetRule(ctx context.Context, organizationID, ruleID string) (*models.AutomationRule, error) {
	return s.Rules.GetByID(ctx, organizationID, ruleID)
}

func (s *MongoAutomationStore) CreateRule(ctx context.Context, rule *models.AutomationRule) error {
	return s.Rules.Create(ctx, rule)
}

func (s *MongoAutomationStore) SetRuleEnabled(ctx context.Context, organizationID, ruleID string, enabled bool) error {
	return s.Rules.Update(ctx, organizationID, ruleID, bson.M{"enabled": enabled})
}

func (s *MongoAutomationStore) IncrementRunCounters(ctx context.Context, organizationID, ruleID string, outcome models.RunOutcome) error {
	return s.Rules.IncrementCounter(ctx, organizationID, ruleID, outcome)
}

func (s *MongoAutomationStore) SetLastRun(ctx context.Context, organizationID, ruleID string, lastRun time.Time, nextRun *time.Time) error {
	return s.Rules.SetLastRun(ctx, organizationID, ruleID, lastRun, nextRun)
}

func (s *MongoAutomationStore) GetTemplate(ctx context.Context, organizationID, templateID string) (*models.MessageTemplate, error) {
	return s.Templates.GetByID(ctx, organizationID, templateID)
}

func (s *MongoAutomationStore) CreateTemplate(ctx context.Context, template *models.MessageTemplate) error {
	return s.Templates.Create(ctx, template)
}

func (s *MongoAutomationStore) ListTemplates(ctx context.Context, organizationID string) ([]models.MessageTemplate, error) {
	return s.Templates.List(ctx, organizationID)
}

func (s *MongoAutomationStore) IncrementTemplateUsage(ctx context.Context, organizationID, templateID string, outcome models.RunOutcome) error {
	return s.Templates.IncrementUsage(ctx, organizationID, templateID, outcome)
}
