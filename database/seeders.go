package database

import (
	"context"
	"fmt"
	"time"

	"schoolfee/models"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Seeder represents a database seeder
type Seeder struct {
	Name        string
	Description string
	Seed        func(*mongo.Database) error
}

const demoOrganizationID = "demo-school"

var seeders = []Seeder{
	{
		Name:        "demo_organization",
		Description: "Create a demo school with rate limiting settings",
		Seed:        seedDemoOrganization,
	},
	{
		Name:        "demo_automation",
		Description: "Create a demo reminder template and rule",
		Seed:        seedDemoAutomation,
	},
	{
		Name:        "demo_students",
		Description: "Create demo students with outstanding fees",
		Seed:        seedDemoStudents,
	},
}

// RunSeeders executes all database seeders once
func RunSeeders(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	seedersCol := db.Collection("seeders")
	count, err := seedersCol.CountDocuments(ctx, bson.M{})
	if err == nil && count > 0 {
		logrus.Info("🌱 Seeders already run, skipping...")
		return nil
	}

	logrus.Info("🌱 Running database seeders...")

	for _, seeder := range seeders {
		logrus.Infof("🔄 Running seeder: %s", seeder.Name)

		if err := seeder.Seed(db); err != nil {
			logrus.Errorf("❌ Seeder %s failed: %v", seeder.Name, err)
			continue
		}

		_, err := seedersCol.InsertOne(ctx, bson.M{
			"name":      seeder.Name,
			"createdAt": time.Now(),
		})
		if err != nil {
			logrus.Warnf("Failed to record seeder %s: %v", seeder.Name, err)
		}

		logrus.Infof("✅ Seeder %s completed", seeder.Name)
	}

	logrus.Info("🌱 All seeders completed")
	return nil
}

func upsertByID(ctx context.Context, col *mongo.Collection, id string, doc interface{}) error {
	_, err := col.ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	return err
}

func seedDemoOrganization(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	now := time.Now()
	org := models.Organization{
		ID:       demoOrganizationID,
		Name:     "Demo School",
		IsActive: true,
		RateLimiting: models.RateLimitingRule{
			BusinessHours: models.BusinessHours{
				Enabled:    true,
				StartHour:  8,
				EndHour:    18,
				DaysOfWeek: []int{1, 2, 3, 4, 5},
			},
			HourlyLimit:          models.MessageLimit{Enabled: true, MaxMessages: 100},
			DailyLimit:           models.MessageLimit{Enabled: true, MaxMessages: 500},
			DelayBetweenMessages: models.MessageDelay{Enabled: true, DelaySeconds: 2},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	return upsertByID(ctx, db.Collection("organizations"), org.ID, org)
}

func seedDemoAutomation(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	now := time.Now()
	template := models.MessageTemplate{
		ID:             "demo-fee-reminder",
		OrganizationID: demoOrganizationID,
		Name:           "Fee reminder",
		Content:        "Hello {name}, the fee of {amount} for {class} is due on {dueDate}. Reply to this message if you have already paid.",
		Category:       "reminder",
		Enabled:        true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := upsertByID(ctx, db.Collection("message_templates"), template.ID, template); err != nil {
		return fmt.Errorf("failed to seed template: %w", err)
	}

	rule := models.AutomationRule{
		ID:             "demo-weekday-reminder",
		OrganizationID: demoOrganizationID,
		Name:           "Weekday unpaid reminder",
		Enabled:        true,
		TemplateID:     template.ID,
		Schedule: models.Schedule{
			Time:       "09:00",
			Frequency:  models.FrequencyWeekly,
			DaysOfWeek: []string{"monday", "wednesday", "friday"},
		},
		Criteria: models.Criteria{
			PaymentStatus: models.PaymentStatusUnpaid,
			DueDate:       &models.DueDateCriteria{Condition: models.DueDateBefore, Days: 7},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := upsertByID(ctx, db.Collection("automation_rules"), rule.ID, rule); err != nil {
		return fmt.Errorf("failed to seed rule: %w", err)
	}

	return nil
}

func seedDemoStudents(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dueSoon := time.Now().AddDate(0, 0, 5)
	overdue := time.Now().AddDate(0, 0, -10)
	amount := 1500.0

	students := []models.Recipient{
		{
			ID:             "demo-student-1",
			OrganizationID: demoOrganizationID,
			Name:           "Ana Souza",
			WhatsAppNumber: "+5511999990001",
			ClassID:        "class-5a",
			ClassName:      "5A",
			DueDate:        &dueSoon,
			Amount:         &amount,
			PaymentStatus:  models.PaymentStatusUnpaid,
		},
		{
			ID:             "demo-student-2",
			OrganizationID: demoOrganizationID,
			Name:           "Bruno Lima",
			Phone:          "+5511999990002",
			ClassID:        "class-5b",
			ClassName:      "5B",
			DueDate:        &overdue,
			Amount:         &amount,
			PaymentStatus:  models.PaymentStatusOverdue,
		},
	}

	col := db.Collection("students")
	for _, student := range students {
		if err := upsertByID(ctx, col, student.ID, student); err != nil {
			return fmt.Errorf("failed to seed student %s: %w", student.ID, err)
		}
	}

	return nil
}
