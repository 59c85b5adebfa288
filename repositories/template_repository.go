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

type TemplateRepository struct {
	collection *mongo.Collection
}

func NewTemplateRepository(db *mongo.Database) *TemplateRepository {
	return &TemplateRepository{
		collection: db.Collection("message_templates"),
	}
}

func (tr *TemplateRepository) Create(ctx context.Context, template *models.MessageTemplate) error {
	if template.ID == "" {
		template.ID = utils.GenerateUUID()
	}
	template.CreatedAt = time.Now()
	template.UpdatedAt = time.Now()

	_, err := tr.collection.InsertOne(ctx, template)
	return utils.WrapDatabaseError(err, "create template")
}

func (tr *TemplateRepository) GetByID(ctx context.Context, organizationID, templateID string) (*models.MessageTemplate, error) {
	var template models.MessageTemplate
	err := tr.collection.FindOne(ctx, bson.M{
		"_id":            templateID,
		"organizationId": organizationID,
	}).Decode(&template)

	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, utils.NewTemplateNotFoundError()
		}
		return nil, utils.WrapDatabaseError(err, "get template")
	}

	return &template, nil
}

func (tr *TemplateRepository) List(ctx context.Context, organizationID string) ([]models.MessageTemplate, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})

	cursor, err := tr.collection.Find(ctx, bson.M{"organizationId": organizationID}, opts)
	if err != nil {
		return nil, utils.WrapDatabaseError(err, "list templates")
	}
	defer cursor.Close(ctx)

	templates := []models.MessageTemplate{}
	if err := cursor.All(ctx, &templates); err != nil {
		return nil, utils.WrapDatabaseError(err, "decode templates")
	}
	return templates, nil
}

// IncrementUsage bumps usageCount, successCount or failureCount by one.
func (tr *TemplateRepository) IncrementUsage(ctx context.Context, organizationID, templateID string, outcome models.RunOutcome) error {
	field := "usageCount"
	switch outcome {
	case models.OutcomeSuccess:
		field = "successCount"
	case models.OutcomeFailure:
		field = "failureCount"
	}

	result, err := tr.collection.UpdateOne(
		ctx,
		bson.M{
			"_id":            templateID,
			"organizationId": organizationID,
		},
		bson.M{
			"$inc": bson.M{field: 1},
			"$set": bson.M{"updatedAt": time.Now()},
		},
	)

	if err != nil {
		return utils.WrapDatabaseError(err, "update template usage")
	}

	if result.MatchedCount == 0 {
		return utils.NewTemplateNotFoundError()
	}

	return nil
}
