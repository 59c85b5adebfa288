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

type OrganizationRepository struct {
	collection *mongo.Collection
}

func NewOrganizationRepository(db *mongo.Database) *OrganizationRepository {
	return &OrganizationRepository{
		collection: db.Collection("organizations"),
	}
}

func (or *OrganizationRepository) Create(ctx context.Context, org *models.Organization) error {
	if org.ID == "" {
		org.ID = utils.GenerateUUID()
	}
	org.CreatedAt = time.Now()
	org.UpdatedAt = time.Now()

	_, err := or.collection.InsertOne(ctx, org)
	return utils.WrapDatabaseError(err, "create organization")
}

func (or *OrganizationRepository) GetByID(ctx context.Context, id string) (*models.Organization, error) {
	var org models.Organization
	err := or.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&org)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, utils.NewOrganizationNotFoundError()
		}
		return nil, utils.WrapDatabaseError(err, "get organization")
	}
	return &org, nil
}

// ListActive returns every active organization.
func (or *OrganizationRepository) ListActive(ctx context.Context) ([]models.Organization, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})

	cursor, err := or.collection.Find(ctx, bson.M{"isActive": true}, opts)
	if err != nil {
		return nil, utils.WrapDatabaseError(err, "list organizations")
	}
	defer cursor.Close(ctx)

	orgs := []models.Organization{}
	if err := cursor.All(ctx, &orgs); err != nil {
		return nil, utils.WrapDatabaseError(err, "decode organizations")
	}
	return orgs, nil
}
