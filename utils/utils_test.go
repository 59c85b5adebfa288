package utils

import (
	"testing"
	"time"

	"schoolfee/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeekdayConversions(t *testing.T) {
	monday := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, "monday", WeekdayName(monday))
	assert.Equal(t, 1, WeekdayIndex(monday))

	idx, ok := WeekdayNameToIndex(" Sunday ")
	assert.True(t, ok)
	assert.Equal(t, 0, idx)
	_, ok = WeekdayNameToIndex("funday")
	assert.False(t, ok)

	name, ok := WeekdayIndexToName(6)
	assert.True(t, ok)
	assert.Equal(t, "saturday", name)
	_, ok = WeekdayIndexToName(7)
	assert.False(t, ok)

	assert.True(t, ContainsWeekdayName([]string{"friday", "monday"}, monday))
	assert.False(t, ContainsWeekdayName([]string{"Monday"}, monday), "names are stored lowercase")
	assert.True(t, ContainsWeekdayIndex([]int{1, 2}, monday))
	assert.False(t, ContainsWeekdayIndex([]int{0, 6}, monday))
}

func TestPhoneHelpers(t *testing.T) {
	assert.Equal(t, "+5511999990000", NormalizePhoneNumber("+55 (11) 99999-0000"))
	assert.Equal(t, "+5511999990000", NormalizePhoneNumber("whatsapp:+5511999990000"))
	assert.Equal(t, "", NormalizePhoneNumber("n/a"))

	assert.Equal(t, "whatsapp:+14155238886", WhatsAppAddress("+1 415 523 8886"))
	assert.Equal(t, "", WhatsAppAddress(""))

	assert.Equal(t, "+*********0000", MaskPhoneNumber("+5511999990000"))
	assert.Equal(t, "123", MaskPhoneNumber("123"))
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "1500.00", FormatAmount(1500))
	assert.Equal(t, "99.95", FormatAmount(99.95))

	assert.Equal(t, "45s", FormatDuration(45*time.Second))
	assert.Equal(t, "5m", FormatDuration(5*time.Minute))
	assert.Equal(t, "2.5h", FormatDuration(150*time.Minute))
	assert.Equal(t, "3d", FormatDuration(80*time.Hour))
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, ErrCodeNotFound, ErrorCode(NewRuleNotFoundError()))
	assert.Equal(t, ErrCodeConfiguration, ErrorCode(NewConfigurationError("bad", nil)))
	assert.Equal(t, ErrCodeInternal, ErrorCode(assert.AnError))

	wrapped := NewDeliveryError("send failed", assert.AnError)
	assert.ErrorIs(t, wrapped, assert.AnError)
	assert.Contains(t, wrapped.Error(), ErrCodeDelivery)
}

func TestJWTService(t *testing.T) {
	service := NewJWTService("test-secret", time.Hour)

	token, expiresAt, err := service.GenerateToken("user-1", "org-1", RoleAdmin)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "org-1", claims.OrganizationID)
	assert.Equal(t, RoleAdmin, claims.Role)

	_, err = NewJWTService("other-secret", time.Hour).ValidateToken(token)
	assert.Error(t, err)

	noOrg, _, err := service.GenerateToken("user-1", "", RoleAdmin)
	require.NoError(t, err)
	_, err = service.ValidateToken(noOrg)
	assert.Error(t, err)

	fallback, _, err := NewJWTService("test-secret", -time.Hour).GenerateToken("user-1", "org-1", RoleAdmin)
	require.NoError(t, err)
	_, err = service.ValidateToken(fallback)
	assert.NoError(t, err, "non-positive TTLs fall back to the default")
}

func TestValidateSchedule(t *testing.T) {
	vs := NewValidationService()

	assert.NoError(t, vs.ValidateSchedule(models.Schedule{Time: "09:00", Frequency: models.FrequencyDaily}))
	assert.NoError(t, vs.ValidateSchedule(models.Schedule{
		Time:       "23:59",
		Frequency:  models.FrequencyWeekly,
		DaysOfWeek: []string{"monday"},
	}))

	invalid := []models.Schedule{
		{Time: "24:00", Frequency: models.FrequencyDaily},
		{Time: "9:00", Frequency: models.FrequencyDaily},
		{Time: "09:00", Frequency: "hourly"},
		{Time: "09:00", Frequency: models.FrequencyWeekly},
		{Time: "09:00", Frequency: models.FrequencyWeekly, DaysOfWeek: []string{"Monday"}},
	}
	for _, schedule := range invalid {
		err := vs.ValidateSchedule(schedule)
		assert.Error(t, err, "%+v", schedule)
		assert.Equal(t, ErrCodeValidation, ErrorCode(err))
	}
}

func TestValidateCriteria(t *testing.T) {
	vs := NewValidationService()

	assert.NoError(t, vs.ValidateCriteria(models.Criteria{}))
	assert.NoError(t, vs.ValidateCriteria(models.Criteria{
		PaymentStatus: models.PaymentStatusOverdue,
		DueDate:       &models.DueDateCriteria{Condition: models.DueDateOverdue},
		CustomFilters: []models.CustomFilter{
			{Kind: models.FilterFieldIn, Field: "classId", Values: []string{"a"}},
			{Kind: models.FilterAmountAtLeast, Min: Float64Ptr(10)},
			{Kind: models.FilterHasWhatsApp},
		},
	}))

	invalid := []models.Criteria{
		{PaymentStatus: "maybe"},
		{DueDate: &models.DueDateCriteria{Condition: "soon"}},
		{DueDate: &models.DueDateCriteria{Condition: models.DueDateBefore, Days: -1}},
		{CustomFilters: []models.CustomFilter{{Kind: "shoe_size"}}},
		{CustomFilters: []models.CustomFilter{{Kind: models.FilterFieldEquals, Value: "x"}}},
		{CustomFilters: []models.CustomFilter{{Kind: models.FilterFieldIn, Field: "classId"}}},
		{CustomFilters: []models.CustomFilter{{Kind: models.FilterAmountAtMost}}},
		{CustomFilters: []models.CustomFilter{{Kind: models.FilterNameContains, Value: " "}}},
	}
	for _, criteria := range invalid {
		assert.Error(t, vs.ValidateCriteria(criteria), "%+v", criteria)
	}
}

func TestValidationMessages(t *testing.T) {
	vs := NewValidationService()

	errs := vs.ValidateStruct(models.CreateTemplateRequest{Name: "x", Category: "c"})
	require.Len(t, errs, 1)
	assert.Equal(t, "required", errs[0].Tag)
	assert.Equal(t, "Content is required", errs[0].Message)

	errs = vs.ValidateStruct(models.Schedule{Time: "09:00", Frequency: models.FrequencyWeekly})
	require.Len(t, errs, 1)
	assert.Equal(t, "Weekly schedules require at least one day of week", errs[0].Message)
}
