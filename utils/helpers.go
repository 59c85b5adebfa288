package utils

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var nonDigitRegex = regexp.MustCompile(`\D`)

// GetOrganizationID retrieves the tenant id the auth middleware stored in context.
func GetOrganizationID(c *gin.Context) string {
	if orgID, exists := c.Get("organizationID"); exists {
		if idStr, ok := orgID.(string); ok {
			return idStr
		}
	}
	return ""
}

// GetUserID retrieves the user ID from the Gin context
func GetUserID(c *gin.Context) string {
	if userID, exists := c.Get("userID"); exists {
		if idStr, ok := userID.(string); ok {
			return idStr
		}
	}
	return ""
}

// UUID Generation
func GenerateUUID() string {
	return uuid.New().String()
}

// Phone Number Utilities
func NormalizePhoneNumber(phone string) string {
	phone = strings.TrimPrefix(strings.TrimSpace(phone), "whatsapp:")
	cleaned := nonDigitRegex.ReplaceAllString(phone, "")
	if cleaned == "" {
		return ""
	}
	return "+" + cleaned
}

// WhatsAppAddress formats a phone number for the Twilio WhatsApp channel.
func WhatsAppAddress(phone string) string {
	normalized := NormalizePhoneNumber(phone)
	if normalized == "" {
		return ""
	}
	return "whatsapp:" + normalized
}

func MaskPhoneNumber(phone string) string {
	cleaned := nonDigitRegex.ReplaceAllString(phone, "")
	if len(cleaned) < 4 {
		return phone
	}

	visible := cleaned[len(cleaned)-4:]
	masked := strings.Repeat("*", len(cleaned)-4) + visible
	return "+" + masked
}

func StringSliceContains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func TimePtr(t time.Time) *time.Time {
	return &t
}

func Float64Ptr(f float64) *float64 {
	return &f
}

// FormatAmount renders a fee amount with two decimals.
func FormatAmount(amount float64) string {
	return fmt.Sprintf("%.2f", amount)
}

func FormatDuration(duration time.Duration) string {
	if duration < time.Minute {
		return fmt.Sprintf("%.0fs", duration.Seconds())
	}
	if duration < time.Hour {
		return fmt.Sprintf("%.0fm", duration.Minutes())
	}
	if duration < 24*time.Hour {
		return fmt.Sprintf("%.1fh", duration.Hours())
	}
	return fmt.Sprintf("%.0fd", math.Floor(duration.Hours()/24))
}
