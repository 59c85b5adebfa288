package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// Store and counter drivers
const (
	StoreMongo     = "mongo"
	StoreFirestore = "firestore"
	StoreMemory    = "memory"

	CounterRedis  = "redis"
	CounterMemory = "memory"
)

type Config struct {
	Environment   string
	Port          string
	StoreDriver   string
	DatabaseURL   string
	CounterDriver string
	RedisURL      string
	JWTSecret     string
	JWTTTL        time.Duration
	CORSOrigins   []string

	// Firebase Config
	FirebaseCredentialsPath string
	FirebaseProjectID       string

	// Twilio Config
	TwilioAccountSID        string
	TwilioAuthToken         string
	TwilioWhatsAppNumber    string
	TwilioStatusCallbackURL string

	// Automation Settings
	AutomationTick         time.Duration
	AutomationParallelism  int
	AutomationWrapMidnight bool
	SendLogRetentionDays   int
}

func Load() *Config {
	return &Config{
		Environment:   getEnv("ENVIRONMENT", "development"),
		Port:          getEnv("PORT", "8080"),
		StoreDriver:   getEnv("STORE_DRIVER", StoreMongo),
		DatabaseURL:   getEnv("DATABASE_URL", "mongodb://localhost:27017/schoolfee"),
		CounterDriver: getEnv("COUNTER_DRIVER", CounterRedis),
		RedisURL:      getEnv("REDIS_URL", "redis://localhost:6379"),
		JWTSecret:     getEnv("JWT_SECRET", "change-me-in-production"),
		JWTTTL:        time.Duration(getEnvAsInt("JWT_TTL_HOURS", 24)) * time.Hour,
		CORSOrigins:   getEnvAsList("CORS_ALLOWED_ORIGINS"),

		// Firebase
		FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
		FirebaseProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),

		// Twilio
		TwilioAccountSID:        getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:         getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioWhatsAppNumber:    getEnv("TWILIO_WHATSAPP_NUMBER", ""),
		TwilioStatusCallbackURL: getEnv("TWILIO_STATUS_CALLBACK_URL", ""),

		// Automation
		AutomationTick:         time.Duration(getEnvAsInt("AUTOMATION_TICK_SECONDS", 60)) * time.Second,
		AutomationParallelism:  getEnvAsInt("AUTOMATION_PARALLELISM", 4),
		AutomationWrapMidnight: getEnvAsBool("AUTOMATION_WRAP_MIDNIGHT", false),
		SendLogRetentionDays:   getEnvAsInt("SEND_LOG_RETENTION_DAYS", 3),
	}
}

// TwilioEnabled reports whether WhatsApp messages can actually be sent.
func (c *Config) TwilioEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioWhatsAppNumber != ""
}

func InitRedis(cfg *Config) *redis.Client {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		// Fallback to default config
		opt = &redis.Options{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
		}
	}

	return redis.NewClient(opt)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var values []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	return values
}
