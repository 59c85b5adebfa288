package controllers

import (
	"net/http"

	"schoolfee/models"
	"schoolfee/services"
	"schoolfee/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/twilio/twilio-go/client"
)

type signatureValidator interface {
	Validate(url string, params map[string]string, expectedSignature string) bool
}

// WebhookController receives Twilio message status callbacks.
type WebhookController struct {
	deliveryService *services.DeliveryService
	validator       signatureValidator
	callbackURL     string
}

// NewWebhookController checks signatures against callbackURL, the public URL
// Twilio was told to post to. An empty authToken disables the check.
func NewWebhookController(deliveryService *services.DeliveryService, authToken, callbackURL string) *WebhookController {
	wc := &WebhookController{
		deliveryService: deliveryService,
		callbackURL:     callbackURL,
	}
	if authToken != "" {
		rv := client.NewRequestValidator(authToken)
		wc.validator = &rv
	}
	return wc
}

// TwilioStatus handles a message status callback
// @Summary Twilio message status callback
// @Tags Webhooks
// @Accept x-www-form-urlencoded
// @Success 204
// @Failure 403 {object} models.APIResponse
// @Router /webhooks/twilio/status [post]
func (wc *WebhookController) TwilioStatus(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		utils.BadRequestResponse(c, "Invalid form body")
		return
	}

	params := make(map[string]string, len(c.Request.PostForm))
	for key, values := range c.Request.PostForm {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}

	if wc.validator != nil && !wc.validator.Validate(wc.callbackURL, params, c.GetHeader("X-Twilio-Signature")) {
		logrus.WithField("ip", c.ClientIP()).Warn("Rejected Twilio callback with invalid signature")
		utils.ForbiddenResponse(c, "Invalid signature")
		return
	}

	messageID := params["MessageSid"]
	if messageID == "" {
		utils.BadRequestResponse(c, "MessageSid is required")
		return
	}

	update := models.DeliveryStatusUpdate{
		MessageID: messageID,
		Status:    services.NormalizeTwilioStatus(params["MessageStatus"]),
		ErrorCode: params["ErrorCode"],
	}

	if _, err := wc.deliveryService.HandleStatusUpdate(c.Request.Context(), update); err != nil {
		logrus.WithError(err).WithField("message_id", messageID).Error("Failed to handle delivery status")
		utils.HandleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
