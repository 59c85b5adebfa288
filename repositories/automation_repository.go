package repositories

import (
	"context"
	"time"

	"schoolfee/models"
	"schoolfee/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type AutomationRepository struct {
	collection *mongo.Collection
}

func NewAutomationRepository(db *mongo.Database) *AutomationRepository {
	return &AutomationRepository{
		collection: db.Collection("automation_rules"),
	}
}

func (ar *AutomationRepository) Create(ctx context.Context, rule *models.AutomationRule) error {
	if rule.ID == "" {
		rule.ID = utils.GenerateUUID()
	}
	rule.CreatedAt = time.Now()
	rule.UpdatedAt = time.Now()

	_, err := ar.collection.InsertOne(ctx, rule)
	return utils.WrapDatabaseError(err, "create automation rule")
}

func (ar *AutomationRepository) GetByID(ctx context.Context, organizationID, ruleID string) (*models.AutomationRule, error) {
	var rule models.AutomationRule
	err := ar.collection.FindOne(ctx, bson.M{
		"_id":            ruleID,
		"organizationId": organizationID,
	}).Decode(&rule)

	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, utils.NewRuleNotFoundError()
		}
		return nil, utils.WrapDatabaseError(err, "get automation rule")
	}

	return &rule, nil
}

func (ar *AutomationRepository) List(ctx context.Context, organizationID string, enabledOnly bool) ([]models.AutomationRule, error) {
	filter := bson.M{"organizationId": organizationID}
	if enabledOnly {
		filter["enabled"] = true
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})

	cursor, err := ar.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, utils.WrapDatabaseError(err, "list automation rules")
	}
	defer cursor.Close(ctx)

	rules := []models.AutomationRule{}
	if err := cursor.All(ctx, &rules); err != nil {
		return nil, utils.WrapDatabaseError(err, "decode automation rules")
	}
	return rules, nil
}

func (ar *AutomationRepository) Update(ctx context.Context, organizationID, ruleID string, update bson.M) error {
	update["updatedAt"] = time.Now()
	return ar.updateOne(ctx, organizationID, ruleID, bson.M{"$set": update})
}

// IncrementCounter bumps runCount, successCount or failureCount by one.
func (ar *AutomationRepository) IncrementCounter(ctx context.Context, organizationID, ruleID string, outcome models.RunOutcome) error {
	return ar.updateOne(ctx, organizationID, ruleID, bson.M{
		"$inc": bson.M{ruleCounterField(outcome): 1},
		"$set": bson.M{"updatedAt": time.Now()},
	})
}

func (ar *AutomationRepository) SetLastRun(ctx context.Context, organizationID, ruleID string, lastRun time.Time, nextRun *time.Time) error {
	set := bson.M{
		"lastRun":   lastRun,
		"updatedAt": time.Now(),
	}
	update := bson.M{"$set": set}
	if nextRun != nil {
		set["nextRun"] = *nextRun
	} else {
		update["$unset"] = bson.M{"nextRun": ""}
	}
	return ar.updateOne(ctx, organizationID, ruleID, update)
}

func (ar *AutomationRepository) updateOne(ctx context.Context, organizationID, ruleID string, update bson.M) error {
	result, err := ar.collection.UpdateOne(
		ctx,
		bson.M{
			"_id":            ruleID,
			"organizationId": organizationID,
		},
		update,
	)

	if err != nil {
		return utils.WrapDatabaseError(err, "update automation rule")
	}

	if result.MatchedCount == 0 {
		return utils.NewRuleNotFoundError()
	}

	return nil
}

func ruleCounterField(outcome models.RunOutcome) string {
	switch outcome {
	case models.OutcomeSuccess:
		return "successCount"
	case models.OutcomeFailure:
		return "failureCount"
	default:
		return "runCount"
	}
}
