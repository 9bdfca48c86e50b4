// Package engine holds the campaign outreach sequencing core: deciding, per
// prospect, which email in a multi-step sequence goes out next, when, and
// under what conditions, and folding reply sentiment back into campaign and
// prospect state.
package engine

import (
	"context"
	"time"

	"reachflow/classifier"
	"reachflow/models"
)

// CampaignStore reads and transitions campaign rows. Status transitions are
// conditional updates (WHERE status = from) so concurrent commands cannot
// produce lost updates.
type CampaignStore interface {
	ActiveCampaigns(ctx context.Context) ([]models.Campaign, error)
	DueScheduled(ctx context.Context, now time.Time) ([]models.Campaign, error)
	// TransitionStatus moves campaignID from -> to, applying extra column
	// stamps in the same statement. Returns false when the row was not in
	// the expected state.
	TransitionStatus(ctx context.Context, campaignID uint, from, to string, stamps map[string]interface{}) (bool, error)
	SaveMetrics(ctx context.Context, campaignID uint, m models.CampaignMetrics) error
}

// ProspectStore reads prospects and advances their engagement status.
type ProspectStore interface {
	ByCampaign(ctx context.Context, campaignID uint) ([]models.Prospect, error)
	GetProspect(ctx context.Context, prospectID uint) (*models.Prospect, error)
	// FindActiveByEmail resolves an inbound reply sender to the most recently
	// contacted prospect with that address in an active campaign. Nil (no
	// error) when the address is unknown.
	FindActiveByEmail(ctx context.Context, email string) (*models.Prospect, error)
	EngagementCounts(ctx context.Context, campaignID uint) (models.EngagementCounts, error)
	// AdvanceEngagement sets engagement_status=to only when the current value
	// is one of from. Returns false when no row matched (already further along).
	AdvanceEngagement(ctx context.Context, prospectID uint, from []string, to string) (bool, error)
}

// SequenceStore returns the ordered active steps of a campaign.
type SequenceStore interface {
	ActiveSteps(ctx context.Context, campaignID uint) ([]models.SequenceStep, error)
	IncrementSent(ctx context.Context, stepID uint) error
}

// ProgressStore owns the per-(campaign, prospect) sequence cursor. All writes
// are guarded so overlapping executor runs cannot both advance the same
// prospect.
type ProgressStore interface {
	// Get returns nil (no error) when no row exists yet.
	Get(ctx context.Context, campaignID, prospectID uint) (*models.SequenceProgress, error)
	// CreateFirst inserts the step-1 row; the unique (campaign, prospect)
	// constraint rejects a concurrent duplicate, reported as false.
	CreateFirst(ctx context.Context, p *models.SequenceProgress) (bool, error)
	// Advance moves current_step from fromStep to toStep in one conditional
	// update. Returns false when another run advanced the row first.
	Advance(ctx context.Context, campaignID, prospectID uint, fromStep, toStep int, sentAt time.Time, nextAt *time.Time) (bool, error)
	// ShiftTimers pushes last_sent_at and next_scheduled_at of every row in
	// the campaign forward by d, so time spent paused never counts toward a
	// step delay.
	ShiftTimers(ctx context.Context, campaignID uint, d time.Duration) error
}

// EventStore appends to and queries the append-only email event log.
type EventStore interface {
	Append(ctx context.Context, ev *models.EmailEvent) error
	HasEventSince(ctx context.Context, prospectID uint, eventType string, since time.Time) (bool, error)
}

// ThreadStore maintains the per-(campaign, prospect) conversation record.
type ThreadStore interface {
	RecordOutbound(ctx context.Context, campaignID, prospectID uint, threadID, body string, at time.Time) error
	RecordReply(ctx context.Context, campaignID, prospectID uint, body string, at time.Time) error
	SetSentiment(ctx context.Context, campaignID, prospectID uint, sentiment string) error
}

// UserStore resolves campaign owners for template personalization.
type UserStore interface {
	GetUser(ctx context.Context, userID uint) (*models.User, error)
}

// OutboundMessage is one personalized email handed to the mailbox provider.
type OutboundMessage struct {
	To        string
	FromName  string
	FromEmail string
	Subject   string
	HTML      string
	Text      string
	ThreadID  string
}

// Mailer sends an email and returns the provider message id.
type Mailer interface {
	Send(ctx context.Context, userID uint, msg OutboundMessage) (string, error)
}

// Classifier turns raw reply text into a structured classification. It must
// return a safe default rather than fail.
type Classifier interface {
	Classify(ctx context.Context, body string) classifier.Classification
}

// ProspectLocker serializes sequence work per prospect across overlapping
// executor invocations. Acquire returns false when another run holds the
// prospect; the TTL bounds how long a crashed run can wedge it.
type ProspectLocker interface {
	Acquire(ctx context.Context, campaignID, prospectID uint, ttl time.Duration) (bool, error)
	Release(ctx context.Context, campaignID, prospectID uint) error
}
