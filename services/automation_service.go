package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"schoolfee/interfaces"
	"schoolfee/models"
	"schoolfee/utils"

	"github.com/sirupsen/logrus"
)

// Template references the authoring UI stores before a real template is picked.
var placeholderTemplateIDs = []string{"", "placeholder", "none", "null", "undefined", "default"}

type AutomationDependencies struct {
	Organizations interfaces.OrganizationSource
	Recipients    interfaces.RecipientSource
	Rules         interfaces.RuleStore
	Sink          interfaces.DeliverySink
	Tracker       interfaces.DeliveryTracker
	Limiter       *RateLimiter
	Guard         *SendGuard
	Matcher       *ScheduleMatcher
	Validator     *utils.ValidationService
}

type AutomationConfig struct {
	// Parallelism bounds how many organizations are evaluated at once.
	Parallelism int
}

// AutomationService runs automation rules for every tenant.
type AutomationService struct {
	orgs       interfaces.OrganizationSource
	recipients interfaces.RecipientSource
	rules      interfaces.RuleStore
	sink       interfaces.DeliverySink
	tracker    interfaces.DeliveryTracker
	limiter    *RateLimiter
	guard      *SendGuard
	matcher    *ScheduleMatcher
	validator  *utils.ValidationService
	config     AutomationConfig

	// sleep paces consecutive sends; replaced in tests.
	sleep func(ctx context.Context, d time.Duration)
}

func NewAutomationService(deps AutomationDependencies, config AutomationConfig) *AutomationService {
	if config.Parallelism <= 0 {
		config.Parallelism = 4
	}
	if deps.Matcher == nil {
		deps.Matcher = NewScheduleMatcher(false)
	}
	if deps.Validator == nil {
		deps.Validator = utils.NewValidationService()
	}

	return &AutomationService{
		orgs:       deps.Organizations,
		recipients: deps.Recipients,
		rules:      deps.Rules,
		sink:       deps.Sink,
		tracker:    deps.Tracker,
		limiter:    deps.Limiter,
		guard:      deps.Guard,
		matcher:    deps.Matcher,
		validator:  deps.Validator,
		config:     config,
		sleep:      sleepContext,
	}
}

// RunOnce evaluates every enabled rule of every active organization against
// now. Cancelling ctx stops new rules from starting; rules already in flight
// finish with their sends intact.
func (as *AutomationService) RunOnce(ctx context.Context, now time.Time) *models.EvaluationReport {
	report := &models.EvaluationReport{
		ID:          utils.GenerateUUID(),
		StartedAt:   time.Now(),
		EvaluatedAt: now,
	}
	work := context.WithoutCancel(ctx)

	orgs, err := as.orgs.ListOrganizations(work)
	if err != nil {
		logrus.WithError(err).Error("Failed to list organizations for automation pass")
		report.Failures = append(report.Failures, models.EvaluationFailure{
			Code:    utils.ErrCodeDatabase,
			Message: err.Error(),
		})
		report.FinishedAt = time.Now()
		return report
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, as.config.Parallelism)
	)

	for _, org := range orgs {
		if !org.IsActive {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		report.Organizations++
		wg.Add(1)
		sem <- struct{}{}

		go func(org models.Organization) {
			defer wg.Done()
			defer func() { <-sem }()

			evaluations, failures := as.evaluateOrganization(ctx, work, org, now)

			mu.Lock()
			report.Rules = append(report.Rules, evaluations...)
			report.Failures = append(report.Failures, failures...)
			mu.Unlock()
		}(org)
	}

	wg.Wait()

	for _, ev := range report.Rules {
		report.RulesChecked++
		report.Dispatched += ev.Dispatched
		if ev.Status == models.RuleStatusFired {
			report.RulesFired++
		}
	}
	report.FinishedAt = time.Now()

	logrus.WithFields(logrus.Fields{
		"report_id":     report.ID,
		"organizations": report.Organizations,
		"rules":         report.RulesChecked,
		"fired":         report.RulesFired,
		"dispatched":    report.Dispatched,
		"failures":      len(report.Failures),
		"duration_ms":   report.FinishedAt.Sub(report.StartedAt).Milliseconds(),
	}).Info("Automation pass completed")

	return report
}

// recipientPool loads a tenant's recipients at most once per pass.
type recipientPool struct {
	once       sync.Once
	recipients []models.Recipient
	err        error
}

func (as *AutomationService) evaluateOrganization(ctx, work context.Context, org models.Organization, now time.Time) ([]models.RuleEvaluation, []models.EvaluationFailure) {
	rules, err := as.rules.ListEnabledRules(work, org.ID)
	if err != nil {
		logrus.WithError(err).WithField("organization_id", org.ID).Error("Failed to list automation rules")
		return nil, []models.EvaluationFailure{{
			OrganizationID: org.ID,
			Code:           utils.ErrorCode(err),
			Message:        err.Error(),
		}}
	}

	pool := &recipientPool{}
	loadRecipients := func() ([]models.Recipient, error) {
		pool.once.Do(func() {
			pool.recipients, pool.err = as.recipients.ListRecipients(work, org.ID)
		})
		return pool.recipients, pool.err
	}

	var (
		mu          sync.Mutex
		wg          sync.WaitGroup
		evaluations []models.RuleEvaluation
		failures    []models.EvaluationFailure
	)

	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(rule models.AutomationRule) {
			defer wg.Done()

			ev, err := as.evaluateRule(work, org, rule, now, loadRecipients)

			mu.Lock()
			defer mu.Unlock()
			evaluations = append(evaluations, ev)
			if err != nil {
				failures = append(failures, models.EvaluationFailure{
					OrganizationID: org.ID,
					RuleID:         rule.ID,
					Code:           utils.ErrorCode(err),
					Message:        err.Error(),
				})
			}
		}(rule)
	}

	wg.Wait()
	return evaluations, failures
}

func (as *AutomationService) evaluateRule(
	ctx context.Context,
	org models.Organization,
	rule models.AutomationRule,
	now time.Time,
	loadRecipients func() ([]models.Recipient, error),
) (ev models.RuleEvaluation, err error) {
	ev = models.RuleEvaluation{
		OrganizationID: org.ID,
		RuleID:         rule.ID,
		RuleName:       rule.Name,
	}
	log := logrus.WithFields(logrus.Fields{
		"organization_id": org.ID,
		"rule_id":         rule.ID,
		"rule_name":       rule.Name,
	})

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("Automation rule evaluation panicked")
			ev.Status = models.RuleStatusFailed
			err = utils.NewServiceError(utils.ErrCodeInternal, fmt.Sprintf("rule evaluation panicked: %v", r))
		}
	}()

	if isPlaceholderTemplateID(rule.TemplateID) {
		return as.configError(log, ev, utils.NewConfigurationError("Rule has no template assigned", nil))
	}
	if verr := as.validator.ValidateSchedule(rule.Schedule); verr != nil {
		return as.configError(log, ev, utils.NewConfigurationError("Rule schedule is malformed", verr))
	}

	if !as.matcher.Matches(rule.Schedule, now) {
		ev.Status = models.RuleStatusNotScheduled
		return ev, nil
	}

	if verr := as.validator.ValidateCriteria(rule.Criteria); verr != nil {
		return as.configError(log, ev, utils.NewConfigurationError("Rule criteria are malformed", verr))
	}

	template, terr := as.rules.GetTemplate(ctx, org.ID, rule.TemplateID)
	if terr != nil || template == nil {
		return as.configError(log, ev, utils.NewConfigurationError(
			fmt.Sprintf("Template %s could not be resolved", rule.TemplateID), terr))
	}
	if !template.Enabled {
		return as.configError(log, ev, utils.NewConfigurationError(
			fmt.Sprintf("Template %s is disabled", rule.TemplateID), nil))
	}

	if decision := as.limiter.Check(ctx, org.ID, org.RateLimiting, now); !decision.Allowed {
		log.WithField("reason", decision.Reason).Info("Automation rule deferred")
		ev.Status = models.RuleStatusDeferred
		ev.Reason = decision.Reason
		return ev, nil
	}

	recipients, rerr := loadRecipients()
	if rerr != nil {
		err = utils.NewRecipientSourceError(org.ID, rerr)
		log.WithError(rerr).Error("Failed to load recipients for automation rule")
		ev.Status = models.RuleStatusFailed
		ev.Errors = append(ev.Errors, err.Error())
		as.recordRun(ctx, log, org.ID, rule, now)
		as.settleRun(ctx, log, org.ID, rule.ID, models.OutcomeFailure)
		return ev, err
	}

	matched := FilterRecipients(rule.Criteria, recipients, now)
	ev.Matched = len(matched)

	windowKey := as.matcher.WindowKey(rule.ID, rule.Schedule, now)
	candidates := make([]models.Recipient, 0, len(matched))
	for _, r := range matched {
		if r.Address() == "" {
			ev.Errors = append(ev.Errors, fmt.Sprintf("recipient %s has no WhatsApp number", r.ID))
			continue
		}
		sent, gerr := as.guard.AlreadySent(ctx, rule.ID, r.ID, windowKey)
		if gerr != nil {
			log.WithError(gerr).Warn("Failed to read send guard")
			ev.Errors = append(ev.Errors, gerr.Error())
			continue
		}
		if sent {
			ev.Duplicates++
			continue
		}
		candidates = append(candidates, r)
	}

	runID := utils.GenerateUUID()
	pacing := Pacing(org.RateLimiting)
	run := deliveryRun{
		tracker: as.tracker,
		pending: models.PendingRun{
			RunID:          runID,
			OrganizationID: org.ID,
			RuleID:         rule.ID,
			TemplateID:     template.ID,
			CreatedAt:      now,
		},
	}
	attempted := 0

	for i, r := range candidates {
		sendTime := now.Add(time.Duration(attempted) * pacing)

		marked, gerr := as.guard.TryMark(ctx, rule.ID, r.ID, windowKey, sendTime)
		if gerr != nil {
			log.WithError(gerr).Warn("Failed to mark send guard")
			ev.Errors = append(ev.Errors, gerr.Error())
			continue
		}
		if !marked {
			ev.Duplicates++
			continue
		}
		if attempted > 0 && pacing > 0 {
			as.sleep(ctx, pacing)
		}

		if decision := as.limiter.CanSendNow(ctx, org.ID, org.RateLimiting, sendTime); !decision.Allowed {
			if rerr := as.guard.Release(ctx, rule.ID, r.ID, windowKey); rerr != nil {
				log.WithError(rerr).Warn("Failed to release send guard")
			}
			ev.Deferred = len(candidates) - i
			ev.Reason = decision.Reason
			log.WithField("reason", decision.Reason).Infof("Deferring %d remaining recipients", ev.Deferred)
			break
		}

		instruction := models.SendInstruction{
			ID:             utils.GenerateUUID(),
			RunID:          runID,
			OrganizationID: org.ID,
			RuleID:         rule.ID,
			TemplateID:     template.ID,
			RecipientID:    r.ID,
			To:             r.Address(),
			Message:        RenderTemplate(template.Content, r),
			WindowKey:      windowKey,
			CreatedAt:      sendTime,
		}

		attempted++
		as.bumpTemplate(ctx, log, org.ID, template.ID, models.OutcomeRun)

		receipt, serr := as.sink.Send(ctx, instruction)
		if serr != nil {
			ev.Failed++
			ev.Errors = append(ev.Errors, utils.NewDeliveryError(
				fmt.Sprintf("send to recipient %s failed", r.ID), serr).Error())
			log.WithError(serr).WithField("recipient_id", r.ID).Warn("WhatsApp delivery failed")
			as.bumpTemplate(ctx, log, org.ID, template.ID, models.OutcomeFailure)
			continue
		}

		ev.Dispatched++
		if receipt == nil || receipt.Status != models.DeliveryAccepted || receipt.MessageID == "" {
			as.bumpTemplate(ctx, log, org.ID, template.ID, models.OutcomeSuccess)
			continue
		}

		held, terr := run.track(ctx, receipt.MessageID)
		if terr != nil {
			log.WithError(terr).WithField("message_id", receipt.MessageID).Error("Failed to track delivery")
			ev.Errors = append(ev.Errors, terr.Error())
			continue
		}
		switch held {
		case models.DeliveryDelivered:
			as.bumpTemplate(ctx, log, org.ID, template.ID, models.OutcomeSuccess)
		case models.DeliveryFailed:
			as.bumpTemplate(ctx, log, org.ID, template.ID, models.OutcomeFailure)
		}
	}

	switch {
	case attempted == 0 && ev.Deferred > 0:
		ev.Status = models.RuleStatusDeferred
		return ev, nil
	case attempted == 0:
		ev.Status = models.RuleStatusNoRecipients
		return ev, nil
	}

	ev.Status = models.RuleStatusFired
	as.recordRun(ctx, log, org.ID, rule, now)

	settled, failed, cerr := run.close(ctx, ev.Failed > 0)
	if cerr != nil {
		log.WithError(cerr).Error("Failed to close tracked run, settling it as failed")
		ev.Errors = append(ev.Errors, cerr.Error())
	}
	if settled {
		outcome := models.OutcomeSuccess
		if failed {
			outcome = models.OutcomeFailure
		}
		as.settleRun(ctx, log, org.ID, rule.ID, outcome)
	}

	log.WithFields(logrus.Fields{
		"matched":    ev.Matched,
		"dispatched": ev.Dispatched,
		"failed":     ev.Failed,
		"duplicates": ev.Duplicates,
		"deferred":   ev.Deferred,
	}).Info("Automation rule fired")

	return ev, nil
}

func (as *AutomationService) configError(log *logrus.Entry, ev models.RuleEvaluation, err error) (models.RuleEvaluation, error) {
	log.WithError(err).Warn("Skipping automation rule with configuration error")
	ev.Status = models.RuleStatusConfigError
	ev.Reason = err.Error()
	return ev, err
}

func (as *AutomationService) recordRun(ctx context.Context, log *logrus.Entry, organizationID string, rule models.AutomationRule, now time.Time) {
	if err := as.rules.IncrementRunCounters(ctx, organizationID, rule.ID, models.OutcomeRun); err != nil {
		log.WithError(err).Error("Failed to increment rule run count")
	}
	if err := as.rules.SetLastRun(ctx, organizationID, rule.ID, now, NextOccurrence(rule.Schedule, now)); err != nil {
		log.WithError(err).Error("Failed to set rule last run")
	}
}

func (as *AutomationService) settleRun(ctx context.Context, log *logrus.Entry, organizationID, ruleID string, outcome models.RunOutcome) {
	if err := as.rules.IncrementRunCounters(ctx, organizationID, ruleID, outcome); err != nil {
		log.WithError(err).Errorf("Failed to record rule %s outcome", outcome)
	}
}

func (as *AutomationService) bumpTemplate(ctx context.Context, log *logrus.Entry, organizationID, templateID string, outcome models.RunOutcome) {
	if err := as.rules.IncrementTemplateUsage(ctx, organizationID, templateID, outcome); err != nil {
		log.WithError(err).Warnf("Failed to record template %s", outcome)
	}
}

func isPlaceholderTemplateID(id string) bool {
	return utils.StringSliceContains(placeholderTemplateIDs, strings.ToLower(strings.TrimSpace(id)))
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// deliveryRun opens its tracked run on the first accepted message, so
// reports for earlier messages are already routable while later ones send.
type deliveryRun struct {
	tracker interfaces.DeliveryTracker
	pending models.PendingRun
	opened  bool
	broken  bool
}

func (dr *deliveryRun) track(ctx context.Context, messageID string) (string, error) {
	if dr.broken {
		return "", fmt.Errorf("delivery %s not tracked: run %s is not open", messageID, dr.pending.RunID)
	}
	if !dr.opened {
		if err := dr.tracker.Open(ctx, dr.pending); err != nil {
			dr.broken = true
			return "", err
		}
		dr.opened = true
	}

	held, err := dr.tracker.Track(ctx, dr.pending.RunID, messageID)
	if err != nil {
		dr.broken = true
	}
	return held, err
}

// close reports whether the run settles now and with what outcome. A run
// whose tracking broke settles as failed.
func (dr *deliveryRun) close(ctx context.Context, failed bool) (bool, bool, error) {
	if !dr.opened {
		return true, failed || dr.broken, nil
	}
	run, settled, err := dr.tracker.Close(ctx, dr.pending.RunID, failed || dr.broken)
	if err != nil {
		return true, true, err
	}
	if !settled {
		return false, false, nil
	}
	return true, run.Failed, nil
}
