package repositories

import (
	"context"
	"time"

	"schoolfee/models"
	"schoolfee/utils"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreAutomationStore reads tenants from the Firestore layout the school
// dashboard writes:
//
//	organizations/{org}
//	organizations/{org}/automationRules/{rule}
//	organizations/{org}/templates/{template}
//	organizations/{org}/students/{student}
type FirestoreAutomationStore struct {
	client *firestore.Client
}

func NewFirestoreAutomationStore(client *firestore.Client) *FirestoreAutomationStore {
	return &FirestoreAutomationStore{client: client}
}

func (fs *FirestoreAutomationStore) org(organizationID string) *firestore.DocumentRef {
	return fs.client.Collection("organizations").Doc(organizationID)
}

func (fs *FirestoreAutomationStore) rules(organizationID string) *firestore.CollectionRef {
	return fs.org(organizationID).Collection("automationRules")
}

func (fs *FirestoreAutomationStore) templates(organizationID string) *firestore.CollectionRef {
	return fs.org(organizationID).Collection("templates")
}

func (fs *FirestoreAutomationStore) ListOrganizations(ctx context.Context) ([]models.Organization, error) {
	iter := fs.client.Collection("organizations").Where("isActive", "==", true).Documents(ctx)
	defer iter.Stop()

	orgs := []models.Organization{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, utils.WrapDatabaseError(err, "list organizations")
		}

		var org models.Organization
		if err := doc.DataTo(&org); err != nil {
			return nil, utils.WrapDatabaseError(err, "decode organization")
		}
		org.ID = doc.Ref.ID
		orgs = append(orgs, org)
	}
	return orgs, nil
}

func (fs *FirestoreAutomationStore) GetOrganization(ctx context.Context, organizationID string) (*models.Organization, error) {
	doc, err := fs.org(organizationID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, utils.NewOrganizationNotFoundError()
		}
		return nil, utils.WrapDatabaseError(err, "get organization")
	}

	var org models.Organization
	if err := doc.DataTo(&org); err != nil {
		return nil, utils.WrapDatabaseError(err, "decode organization")
	}
	org.ID = doc.Ref.ID
	return &org, nil
}

func (fs *FirestoreAutomationStore) ListRecipients(ctx context.Context, organizationID string) ([]models.Recipient, error) {
	iter := fs.org(organizationID).Collection("students").Documents(ctx)
	defer iter.Stop()

	recipients := []models.Recipient{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, utils.NewRecipientSourceError(organizationID, err)
		}

		var r models.Recipient
		if err := doc.DataTo(&r); err != nil {
			return nil, utils.NewRecipientSourceError(organizationID, err)
		}
		r.ID = doc.Ref.ID
		r.OrganizationID = organizationID
		recipients = append(recipients, r)
	}
	return recipients, nil
}

func (fs *FirestoreAutomationStore) ListEnabledRules(ctx context.Context, organizationID string) ([]models.AutomationRule, error) {
	return fs.listRules(ctx, organizationID, fs.rules(organizationID).Where("enabled", "==", true))
}

func (fs *FirestoreAutomationStore) ListRules(ctx context.Context, organizationID string) ([]models.AutomationRule, error) {
	return fs.listRules(ctx, organizationID, fs.rules(organizationID).OrderBy("createdAt", firestore.Asc))
}

func (fs *FirestoreAutomationStore) listRules(ctx context.Context, organizationID string, query firestore.Query) ([]models.AutomationRule, error) {
	iter := query.Documents(ctx)
	defer iter.Stop()

	rules := []models.AutomationRule{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, utils.WrapDatabaseError(err, "list automation rules")
		}

		var rule models.AutomationRule
		if err := doc.DataTo(&rule); err != nil {
			return nil, utils.WrapDatabaseError(err, "decode automation rule")
		}
		rule.ID = doc.Ref.ID
		rule.OrganizationID = organizationID
		rules = append(rules, rule)
	}
	return rules, nil
}

func (fs *FirestoreAutomationStore) GetRule(ctx context.Context, organizationID, ruleID string) (*models.AutomationRule, error) {
	doc, err := fs.rules(organizationID).Doc(ruleID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, utils.NewRuleNotFoundError()
		}
		return nil, utils.WrapDatabaseError(err, "get automation rule")
	}

	var rule models.AutomationRule
	if err := doc.DataTo(&rule); err != nil {
		return nil, utils.WrapDatabaseError(err, "decode automation rule")
	}
	rule.ID = doc.Ref.ID
	rule.OrganizationID = organizationID
	return &rule, nil
}

func (fs *FirestoreAutomationStore) CreateRule(ctx context.Context, rule *models.AutomationRule) error {
	if rule.ID == "" {
		rule.ID = utils.GenerateUUID()
	}
	rule.CreatedAt = time.Now()
	rule.UpdatedAt = time.Now()

	_, err := fs.rules(rule.OrganizationID).Doc(rule.ID).Create(ctx, rule)
	return utils.WrapDatabaseError(err, "create automation rule")
}

func (fs *FirestoreAutomationStore) SetRuleEnabled(ctx context.Context, organizationID, ruleID string, enabled bool) error {
	return fs.updateRule(ctx, organizationID, ruleID, []firestore.Update{
		{Path: "enabled", Value: enabled},
	})
}

func (fs *FirestoreAutomationStore) IncrementRunCounters(ctx context.Context, organizationID, ruleID string, outcome models.RunOutcome) error {
	return fs.updateRule(ctx, organizationID, ruleID, []firestore.Update{
		{Path: ruleCounterField(outcome), Value: firestore.Increment(1)},
	})
}

func (fs *FirestoreAutomationStore) SetLastRun(ctx context.Context, organizationID, ruleID string, lastRun time.Time, nextRun *time.Time) error {
	updates := []firestore.Update{{Path: "lastRun", Value: lastRun}}
	if nextRun != nil {
		updates = append(updates, firestore.Update{Path: "nextRun", Value: *nextRun})
	} else {
		updates = append(updates, firestore.Update{Path: "nextRun", Value: firestore.Delete})
	}
	return fs.updateRule(ctx, organizationID, ruleID, updates)
}

func (fs *FirestoreAutomationStore) updateRule(ctx context.Context, organizationID, ruleID string, updates []firestore.Update) error {
	updates = append(updates, firestore.Update{Path: "updatedAt", Value: time.Now()})

	_, err := fs.rules(organizationID).Doc(ruleID).Update(ctx, updates)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return utils.NewRuleNotFoundError()
		}
		return utils.WrapDatabaseError(err, "update automation rule")
	}
	return nil
}

func (fs *FirestoreAutomationStore) GetTemplate(ctx context.Context, organizationID, templateID string) (*models.MessageTemplate, error) {
	doc, err := fs.templates(organizationID).Doc(templateID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, utils.NewTemplateNotFoundError()
		}
		return nil, utils.WrapDatabaseError(err, "get template")
	}

	var template models.MessageTemplate
	if err := doc.DataTo(&template); err != nil {
		return nil, utils.WrapDatabaseError(err, "decode template")
	}
	template.ID = doc.Ref.ID
	template.OrganizationID = organizationID
	return &template, nil
}

func (fs *FirestoreAutomationStore) CreateTemplate(ctx context.Context, template *models.MessageTemplate) error {
	if template.ID == "" {
		template.ID = utils.GenerateUUID()
	}
	template.CreatedAt = time.Now()
	template.UpdatedAt = time.Now()

	_, err := fs.templates(template.OrganizationID).Doc(template.ID).Create(ctx, template)
	return utils.WrapDatabaseError(err, "create template")
}

func (fs *FirestoreAutomationStore) ListTemplates(ctx context.Context, organizationID string) ([]models.MessageTemplate, error) {
	iter := fs.templates(organizationID).OrderBy("name", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	templates := []models.MessageTemplate{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, utils.WrapDatabaseError(err, "list templates")
		}

		var template models.MessageTemplate
		if err := doc.DataTo(&template); err != nil {
			return nil, utils.WrapDatabaseError(err, "decode template")
		}
		template.ID = doc.Ref.ID
		template.OrganizationID = organizationID
		templates = append(templates, template)
	}
	return templates, nil
}

func (fs *FirestoreAutomationStore) IncrementTemplateUsage(ctx context.Context, organizationID, templateID string, outcome models.RunOutcome) error {
	field := "usageCount"
	switch outcome {
	case models.OutcomeSuccess:
		field = "successCount"
	case models.OutcomeFailure:
		field = "failureCount"
	}

	_, err := fs.templates(organizationID).Doc(templateID).Update(ctx, []firestore.Update{
		{Path: field, Value: firestore.Increment(1)},
		{Path: "updatedAt", Value: time.Now()},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return utils.NewTemplateNotFoundError()
		}
		return utils.WrapDatabaseError(err, "update template usage")
	}
	return nil
}
