package repositories

import (
	"context"

	"schoolfee/models"
	"schoolfee/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// StudentRepository reads recipients from the students collection the
// school management side maintains.
type StudentRepository struct {
	collection *mongo.Collection
}

func NewStudentRepository(db *mongo.Database) *StudentRepository {
	return &StudentRepository{
		collection: db.Collection("students"),
	}
}

func (sr *StudentRepository) ListByOrganization(ctx context.Context, organizationID string) ([]models.Recipient, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})

	cursor, err := sr.collection.Find(ctx, bson.M{"organizationId": organizationID}, opts)
	if err != nil {
		return nil, utils.NewRecipientSourceError(organizationID, err)
	}
	defer cursor.Close(ctx)

	recipients := []models.Recipient{}
	if err := cursor.All(ctx, &recipients); err != nil {
		return nil, utils.NewRecipientSourceError(organizationID, err)
	}
	return recipients, nil
}

func (sr *StudentRepository) Upsert(ctx context.Context, recipient models.Recipient) error {
	_, err := sr.collection.ReplaceOne(
		ctx,
		bson.M{"_id": recipient.ID},
		recipient,
		options.Replace().SetUpsert(true),
	)
	return utils.WrapDatabaseError(err, "upsert student")
}
