package services

import (
	"context"
	"fmt"
	"strings"

	"schoolfee/models"
	"schoolfee/utils"

	"github.com/sirupsen/logrus"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// messageCreator is the slice of the Twilio REST API the sink needs.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// WhatsAppService delivers messages through Twilio's WhatsApp channel.
type WhatsAppService struct {
	api               messageCreator
	fromNumber        string
	statusCallbackURL string
}

func NewWhatsAppService(accountSID, authToken, fromNumber, statusCallbackURL string) *WhatsAppService {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})

	return newWhatsAppService(client.Api, fromNumber, statusCallbackURL)
}

func newWhatsAppService(api messageCreator, fromNumber, statusCallbackURL string) *WhatsAppService {
	return &WhatsAppService{
		api:               api,
		fromNumber:        fromNumber,
		statusCallbackURL: statusCallbackURL,
	}
}

// Send submits one message. Without a status callback Twilio never reports
// back, so an accepted send counts as delivered.
func (ws *WhatsAppService) Send(ctx context.Context, instruction models.SendInstruction) (*models.DeliveryReceipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	to := utils.NormalizePhoneNumber(instruction.To)
	if to == "" {
		return nil, fmt.Errorf("invalid WhatsApp number %q", instruction.To)
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(utils.WhatsAppAddress(to))
	params.SetFrom(utils.WhatsAppAddress(ws.fromNumber))
	params.SetBody(instruction.Message)
	if ws.statusCallbackURL != "" {
		params.SetStatusCallback(ws.statusCallbackURL)
	}

	resp, err := ws.api.CreateMessage(params)
	if err != nil {
		return nil, fmt.Errorf("twilio create message: %w", err)
	}

	receipt := &models.DeliveryReceipt{Status: models.DeliveryDelivered}
	if resp != nil && resp.Sid != nil {
		receipt.MessageID = *resp.Sid
	}
	if resp != nil && resp.Status != nil && strings.EqualFold(*resp.Status, "failed") {
		return nil, fmt.Errorf("twilio rejected message %s", receipt.MessageID)
	}
	if ws.statusCallbackURL != "" && receipt.MessageID != "" {
		receipt.Status = models.DeliveryAccepted
	}

	logrus.WithFields(logrus.Fields{
		"organization_id": instruction.OrganizationID,
		"rule_id":         instruction.RuleID,
		"to":              utils.MaskPhoneNumber(to),
		"message_id":      receipt.MessageID,
	}).Debug("WhatsApp message submitted")

	return receipt, nil
}

// LogDeliverySink writes messages to the log instead of sending them. Used
// when Twilio is not configured.
type LogDeliverySink struct{}

func NewLogDeliverySink() *LogDeliverySink {
	return &LogDeliverySink{}
}

func (LogDeliverySink) Send(ctx context.Context, instruction models.SendInstruction) (*models.DeliveryReceipt, error) {
	logrus.WithFields(logrus.Fields{
		"organization_id": instruction.OrganizationID,
		"rule_id":         instruction.RuleID,
		"recipient_id":    instruction.RecipientID,
		"to":              utils.MaskPhoneNumber(instruction.To),
	}).Infof("WhatsApp message (not sent): %s", instruction.Message)

	return &models.DeliveryReceipt{
		MessageID: instruction.ID,
		Status:    models.DeliveryDelivered,
	}, nil
}
