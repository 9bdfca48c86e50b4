package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"reachflow/models"
	"reachflow/utils"
)

const (
	secondsPerDay = 86400

	// How long a crashed run may hold a prospect before the lock expires.
	prospectLockTTL = 2 * time.Minute
)

// Executor walks every active campaign and, for every prospect in it, decides
// whether the next sequence step is due and sends it. At most one step goes
// out per prospect per invocation, and progress is only written after a
// successful send, so an invocation can be killed between prospects without
// corrupting state.
type Executor struct {
	campaigns CampaignStore
	prospects ProspectStore
	sequences SequenceStore
	progress  ProgressStore
	events    EventStore
	threads   ThreadStore
	users     UserStore
	mailer    Mailer
	triggers  *TriggerEvaluator
	locker    ProspectLocker
	log       *logrus.Entry

	baseURL     string
	sendTimeout time.Duration
	nowFn       func() time.Time
}

// ExecutorDeps bundles the collaborators the executor needs.
type ExecutorDeps struct {
	Campaigns CampaignStore
	Prospects ProspectStore
	Sequences SequenceStore
	Progress  ProgressStore
	Events    EventStore
	Threads   ThreadStore
	Users     UserStore
	Mailer    Mailer
	Triggers  *TriggerEvaluator
	Locker    ProspectLocker
	Logger    *logrus.Entry

	// BaseURL is the public origin used for open/click tracking links.
	BaseURL     string
	SendTimeout time.Duration
}

func NewExecutor(deps ExecutorDeps) *Executor {
	if deps.SendTimeout <= 0 {
		deps.SendTimeout = 30 * time.Second
	}
	return &Executor{
		campaigns:   deps.Campaigns,
		prospects:   deps.Prospects,
		sequences:   deps.Sequences,
		progress:    deps.Progress,
		events:      deps.Events,
		threads:     deps.Threads,
		users:       deps.Users,
		mailer:      deps.Mailer,
		triggers:    deps.Triggers,
		locker:      deps.Locker,
		log:         deps.Logger,
		baseURL:     deps.BaseURL,
		sendTimeout: deps.SendTimeout,
		nowFn:       time.Now,
	}
}

// ExecuteSequences processes every active campaign. Only a failure to
// enumerate campaigns aborts the invocation; everything below that level is
// logged and skipped so one bad unit never blocks its siblings.
func (e *Executor) ExecuteSequences(ctx context.Context) error {
	campaigns, err := e.campaigns.ActiveCampaigns(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active campaigns: %w", err)
	}

	for i := range campaigns {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.processCampaign(ctx, &campaigns[i]); err != nil {
			e.log.WithError(err).WithField("campaign_id", campaigns[i].ID).
				Error("campaign sequence processing failed")
		}
	}
	return nil
}

func (e *Executor) processCampaign(ctx context.Context, campaign *models.Campaign) error {
	steps, err := e.sequences.ActiveSteps(ctx, campaign.ID)
	if err != nil {
		return fmt.Errorf("failed to load sequence steps: %w", err)
	}
	if len(steps) == 0 {
		// Campaign with no active steps is not an error, just nothing to do.
		return nil
	}
	if !denselyOrdered(steps) {
		e.log.WithField("campaign_id", campaign.ID).
			Warn("sequence steps are not densely numbered from 1, skipping campaign")
		return nil
	}

	owner, err := e.users.GetUser(ctx, campaign.UserID)
	if err != nil {
		return fmt.Errorf("failed to load campaign owner: %w", err)
	}

	prospects, err := e.prospects.ByCampaign(ctx, campaign.ID)
	if err != nil {
		return fmt.Errorf("failed to load prospects: %w", err)
	}

	for i := range prospects {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.processProspect(ctx, campaign, owner, &prospects[i], steps); err != nil {
			e.log.WithError(err).WithFields(logrus.Fields{
				"campaign_id": campaign.ID,
				"prospect_id": prospects[i].ID,
			}).Error("prospect sequence processing failed")
		}
	}
	return nil
}

// processProspect sends at most one step for the prospect.
func (e *Executor) processProspect(ctx context.Context, campaign *models.Campaign, owner *models.User, prospect *models.Prospect, steps []models.SequenceStep) error {
	if prospect.SequenceHalted() || prospect.IsDoNotContact {
		return nil
	}

	prog, err := e.progress.Get(ctx, campaign.ID, prospect.ID)
	if err != nil {
		return fmt.Errorf("failed to load progress: %w", err)
	}

	nextStep, err := e.nextAvailableStep(ctx, prospect, prog, steps)
	if err != nil {
		return err
	}
	if nextStep == nil {
		return nil
	}

	send, err := e.shouldSendStep(prospect, prog, nextStep)
	if err != nil || !send {
		return err
	}

	acquired, err := e.locker.Acquire(ctx, campaign.ID, prospect.ID, prospectLockTTL)
	if err != nil {
		return fmt.Errorf("failed to acquire prospect lock: %w", err)
	}
	if !acquired {
		e.log.WithField("prospect_id", prospect.ID).
			Debug("prospect locked by another run, skipping")
		return nil
	}
	defer func() {
		if err := e.locker.Release(ctx, campaign.ID, prospect.ID); err != nil {
			e.log.WithError(err).WithField("prospect_id", prospect.ID).
				Warn("failed to release prospect lock")
		}
	}()

	return e.sendStep(ctx, campaign, owner, prospect, prog, nextStep, steps)
}

// nextAvailableStep returns the step directly after the prospect's current
// one, or nil when the sequence is finished or the step's trigger condition
// does not hold yet.
func (e *Executor) nextAvailableStep(ctx context.Context, prospect *models.Prospect, prog *models.SequenceProgress, steps []models.SequenceStep) (*models.SequenceStep, error) {
	currentStep := 0
	if prog != nil {
		currentStep = prog.CurrentStep
	}

	for i := range steps {
		if steps[i].StepNumber != currentStep+1 {
			continue
		}
		ok, err := e.triggers.Evaluate(ctx, prospect, steps[i].TriggerCondition)
		if err != nil {
			return nil, fmt.Errorf("trigger evaluation failed: %w", err)
		}
		if !ok {
			return nil, nil
		}
		return &steps[i], nil
	}
	return nil, nil
}

// shouldSendStep applies the timing rules. A prospect with no progress row
// only receives step 1 when it carries no delay; afterwards the full delay of
// the upcoming step must have elapsed since the previous send. The boundary
// is inclusive: exactly delay_days * 86400s after last_sent_at sends.
func (e *Executor) shouldSendStep(prospect *models.Prospect, prog *models.SequenceProgress, step *models.SequenceStep) (bool, error) {
	if prog == nil {
		return step.StepNumber == 1 && step.DelayDays == 0, nil
	}

	// Defends against step gaps introduced by concurrent sequence edits.
	if prog.CurrentStep+1 != step.StepNumber {
		e.log.WithFields(logrus.Fields{
			"prospect_id":  prospect.ID,
			"current_step": prog.CurrentStep,
			"step_number":  step.StepNumber,
		}).Warn("step numbering gap detected, skipping prospect")
		return false, nil
	}

	if prog.LastSentAt == nil {
		e.log.WithField("prospect_id", prospect.ID).
			Warn("progress row without last_sent_at, skipping prospect")
		return false, nil
	}

	elapsed := e.nowFn().Sub(*prog.LastSentAt)
	required := time.Duration(step.DelayDays) * secondsPerDay * time.Second
	return elapsed >= required, nil
}

func (e *Executor) sendStep(ctx context.Context, campaign *models.Campaign, owner *models.User, prospect *models.Prospect, prog *models.SequenceProgress, step *models.SequenceStep, steps []models.SequenceStep) error {
	subject := renderTemplate(step.Subject, prospect, campaign, owner)
	html := renderTemplate(step.BodyHTML, prospect, campaign, owner)

	msgID := uuid.NewString()
	tracked := utils.InjectTracking(html, e.baseURL, msgID)
	threadID := threadIDFor(campaign.ID, prospect.ID)

	sendCtx, cancel := context.WithTimeout(ctx, e.sendTimeout)
	defer cancel()

	msg := OutboundMessage{
		To:       prospect.Email,
		Subject:  subject,
		HTML:     tracked,
		Text:     htmlToText(html),
		ThreadID: threadID,
	}
	if owner != nil {
		msg.FromName = owner.FromName
		msg.FromEmail = owner.FromEmail
	}

	providerID, err := e.mailer.Send(sendCtx, campaign.UserID, msg)
	if err != nil {
		// Progress stays untouched so the step is retried next cycle.
		e.log.WithError(err).WithFields(logrus.Fields{
			"prospect_id": prospect.ID,
			"step_number": step.StepNumber,
		}).Warn("send failed, step stays pending")
		return nil
	}

	sentAt := e.nowFn()
	nextAt := nextScheduledAt(step, steps, sentAt)

	if prog == nil {
		created, err := e.progress.CreateFirst(ctx, &models.SequenceProgress{
			CampaignID:      campaign.ID,
			ProspectID:      prospect.ID,
			CurrentStep:     step.StepNumber,
			LastSentAt:      &sentAt,
			NextScheduledAt: nextAt,
		})
		if err != nil {
			return fmt.Errorf("failed to create progress: %w", err)
		}
		if !created {
			e.log.WithField("prospect_id", prospect.ID).
				Warn("concurrent first send detected for prospect")
		}
	} else {
		advanced, err := e.progress.Advance(ctx, campaign.ID, prospect.ID,
			prog.CurrentStep, step.StepNumber, sentAt, nextAt)
		if err != nil {
			return fmt.Errorf("failed to advance progress: %w", err)
		}
		if !advanced {
			e.log.WithField("prospect_id", prospect.ID).
				Warn("concurrent progress advance detected for prospect")
		}
	}

	if err := e.events.Append(ctx, &models.EmailEvent{
		ProspectID: prospect.ID,
		CampaignID: campaign.ID,
		EventType:  models.EventSent,
		OccurredAt: sentAt,
		MessageID:  msgID,
		ThreadID:   threadID,
		StepNumber: step.StepNumber,
		Detail:     providerID,
	}); err != nil {
		e.log.WithError(err).WithField("prospect_id", prospect.ID).
			Error("failed to append sent event")
	}

	if err := e.threads.RecordOutbound(ctx, campaign.ID, prospect.ID, threadID, html, sentAt); err != nil {
		e.log.WithError(err).WithField("prospect_id", prospect.ID).
			Error("failed to record outbound thread message")
	}

	if err := e.sequences.IncrementSent(ctx, step.ID); err != nil {
		e.log.WithError(err).WithField("step_id", step.ID).
			Error("failed to bump step sent count")
	}

	// First touch moves the prospect out of "new".
	if _, err := e.prospects.AdvanceEngagement(ctx, prospect.ID,
		[]string{models.EngagementNew}, models.EngagementContacted); err != nil {
		e.log.WithError(err).WithField("prospect_id", prospect.ID).
			Error("failed to mark prospect contacted")
	}

	e.log.WithFields(logrus.Fields{
		"campaign_id": campaign.ID,
		"prospect_id": prospect.ID,
		"step_number": step.StepNumber,
		"message_id":  msgID,
	}).Info("sequence step sent")
	return nil
}

// nextScheduledAt is when the step after the one just sent becomes eligible,
// based on the following step's delay. Nil when the sent step was the last.
func nextScheduledAt(sent *models.SequenceStep, steps []models.SequenceStep, sentAt time.Time) *time.Time {
	for i := range steps {
		if steps[i].StepNumber == sent.StepNumber+1 {
			at := sentAt.Add(time.Duration(steps[i].DelayDays) * secondsPerDay * time.Second)
			return &at
		}
	}
	return nil
}

func denselyOrdered(steps []models.SequenceStep) bool {
	for i := range steps {
		if steps[i].StepNumber != i+1 {
			return false
		}
	}
	return true
}

func threadIDFor(campaignID, prospectID uint) string {
	return fmt.Sprintf("c%d-p%d", campaignID, prospectID)
}
