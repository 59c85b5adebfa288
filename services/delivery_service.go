package services

import (
	"context"
	"strings"

	"schoolfee/interfaces"
	"schoolfee/models"

	"github.com/sirupsen/logrus"
)

// DeliveryService settles rule runs from asynchronous delivery reports.
type DeliveryService struct {
	tracker interfaces.DeliveryTracker
	rules   interfaces.RuleStore
}

func NewDeliveryService(tracker interfaces.DeliveryTracker, rules interfaces.RuleStore) *DeliveryService {
	return &DeliveryService{
		tracker: tracker,
		rules:   rules,
	}
}

// NormalizeTwilioStatus maps a Twilio MessageStatus onto a terminal delivery
// status. Intermediate states (queued, sending, sent) return "".
func NormalizeTwilioStatus(status string) string {
	switch strings.ToLower(status) {
	case "delivered", "read":
		return models.DeliveryDelivered
	case "failed", "undelivered", "canceled":
		return models.DeliveryFailed
	default:
		return ""
	}
}

// HandleStatusUpdate records one terminal delivery outcome. It returns false
// when the update was ignored: not terminal, already resolved, or unknown.
func (ds *DeliveryService) HandleStatusUpdate(ctx context.Context, update models.DeliveryStatusUpdate) (bool, error) {
	if update.Status != models.DeliveryDelivered && update.Status != models.DeliveryFailed {
		return false, nil
	}

	delivered := update.Status == models.DeliveryDelivered
	run, settled, err := ds.tracker.Resolve(ctx, update.MessageID, delivered)
	if err != nil {
		return false, err
	}
	if run == nil {
		logrus.WithField("message_id", update.MessageID).Debug("Ignoring status for untracked message")
		return false, nil
	}

	log := logrus.WithFields(logrus.Fields{
		"organization_id": run.OrganizationID,
		"rule_id":         run.RuleID,
		"run_id":          run.RunID,
		"message_id":      update.MessageID,
	})

	outcome := models.OutcomeSuccess
	if !delivered {
		outcome = models.OutcomeFailure
		log.WithField("error_code", update.ErrorCode).Warn("WhatsApp message was not delivered")
	}
	if err := ds.rules.IncrementTemplateUsage(ctx, run.OrganizationID, run.TemplateID, outcome); err != nil {
		log.WithError(err).Warn("Failed to record template delivery outcome")
	}

	if !settled {
		return true, nil
	}

	runOutcome := models.OutcomeSuccess
	if run.Failed {
		runOutcome = models.OutcomeFailure
	}
	if err := ds.rules.IncrementRunCounters(ctx, run.OrganizationID, run.RuleID, runOutcome); err != nil {
		log.WithError(err).Error("Failed to record rule run outcome")
		return true, err
	}

	log.WithField("outcome", runOutcome).Info("Automation run settled")
	return true, nil
}
