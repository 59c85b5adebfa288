package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"ENVIRONMENT", "STORE_DRIVER", "COUNTER_DRIVER", "AUTOMATION_TICK_SECONDS", "AUTOMATION_PARALLELISM", "AUTOMATION_WRAP_MIDNIGHT", "CORS_ALLOWED_ORIGINS", "TWILIO_ACCOUNT_SID"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, StoreMongo, cfg.StoreDriver)
	assert.Equal(t, CounterRedis, cfg.CounterDriver)
	assert.Equal(t, time.Minute, cfg.AutomationTick)
	assert.Equal(t, 4, cfg.AutomationParallelism)
	assert.False(t, cfg.AutomationWrapMidnight)
	assert.Empty(t, cfg.CORSOrigins)
	assert.False(t, cfg.TwilioEnabled())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("STORE_DRIVER", StoreMemory)
	t.Setenv("AUTOMATION_TICK_SECONDS", "15")
	t.Setenv("AUTOMATION_PARALLELISM", "not-a-number")
	t.Setenv("AUTOMATION_WRAP_MIDNIGHT", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com")
	t.Setenv("TWILIO_ACCOUNT_SID", "AC123")
	t.Setenv("TWILIO_AUTH_TOKEN", "token")
	t.Setenv("TWILIO_WHATSAPP_NUMBER", "+14155238886")

	cfg := Load()

	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, 15*time.Second, cfg.AutomationTick)
	assert.Equal(t, 4, cfg.AutomationParallelism, "unparseable values fall back to the default")
	assert.True(t, cfg.AutomationWrapMidnight)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSOrigins)
	assert.True(t, cfg.TwilioEnabled())
}

func TestInitRedisFallsBackOnBadURL(t *testing.T) {
	client := InitRedis(&Config{RedisURL: "::not a url"})
	defer client.Close()
	assert.Equal(t, "localhost:6379", client.Options().Addr)

	client = InitRedis(&Config{RedisURL: "redis://cache.internal:6380/2"})
	defer client.Close()
	assert.Equal(t, "cache.internal:6380", client.Options().Addr)
	assert.Equal(t, 2, client.Options().DB)
}
