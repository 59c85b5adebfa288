package models

import "time"

// Organization is a tenant. Rate limiting settings live with it.
type Organization struct {
	ID           string           `json:"id" bson:"_id" firestore:"id"`
	Name         string           `json:"name" bson:"name" firestore:"name"`
	IsActive     bool             `json:"isActive" bson:"isActive" firestore:"isActive"`
	RateLimiting RateLimitingRule `json:"rateLimiting" bson:"rateLimiting" firestore:"rateLimiting"`
	CreatedAt    time.Time        `json:"createdAt" bson:"createdAt" firestore:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt" bson:"updatedAt" firestore:"updatedAt"`
}

type RateLimitingRule struct {
	BusinessHours        BusinessHours `json:"businessHours" bson:"businessHours" firestore:"businessHours"`
	HourlyLimit          MessageLimit  `json:"hourlyLimit" bson:"hourlyLimit" firestore:"hourlyLimit"`
	DailyLimit           MessageLimit  `json:"dailyLimit" bson:"dailyLimit" firestore:"dailyLimit"`
	DelayBetweenMessages MessageDelay  `json:"delayBetweenMessages" bson:"delayBetweenMessages" firestore:"delayBetweenMessages"`
}

// BusinessHours.DaysOfWeek uses 0=Sunday..6=Saturday, unlike Schedule.DaysOfWeek.
type BusinessHours struct {
	Enabled    bool  `json:"enabled" bson:"enabled" firestore:"enabled"`
	StartHour  int   `json:"startHour" bson:"startHour" firestore:"startHour" validate:"gte=0,lte=23"`
	EndHour    int   `json:"endHour" bson:"endHour" firestore:"endHour" validate:"gte=0,lte=24"`
	DaysOfWeek []int `json:"daysOfWeek" bson:"daysOfWeek" firestore:"daysOfWeek" validate:"dive,gte=0,lte=6"`
}

type MessageLimit struct {
	Enabled     bool `json:"enabled" bson:"enabled" firestore:"enabled"`
	MaxMessages int  `json:"maxMessages" bson:"maxMessages" firestore:"maxMessages" validate:"gte=0"`
}

type MessageDelay struct {
	Enabled      bool `json:"enabled" bson:"enabled" firestore:"enabled"`
	DelaySeconds int  `json:"delaySeconds" bson:"delaySeconds" firestore:"delaySeconds" validate:"gte=0"`
}
