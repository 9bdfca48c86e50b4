package controller

import (
	"github.com/gofiber/fiber/v2"

	"reachflow/models"
	"reachflow/utils"
)

// GetCampaignStats aggregates engagement counts, derived rates and raw
// event totals for one campaign.
func (cc *CampaignController) GetCampaignStats(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	campaignID := utils.ParseUint(c.Params("id"))

	campaign, err := cc.ownedCampaign(user.ID, campaignID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
	}

	stats, err := cc.collectStats(c, campaign)
	if err != nil {
		cc.Logger.WithError(err).WithField("campaign_id", campaign.ID).Error("Failed to collect campaign stats")
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to collect campaign stats", err)
	}

	return c.JSON(utils.SuccessResponse(stats))
}

type campaignStats struct {
	CampaignID uint   `json:"campaign_id"`
	Name       string `json:"name"`
	Status     string `json:"status"`

	Engagement models.EngagementCounts `json:"engagement"`
	Metrics    models.CampaignMetrics  `json:"metrics"`

	Sent    int64 `json:"sent"`
	Opened  int64 `json:"opened"`
	Clicked int64 `json:"clicked"`
	Replied int64 `json:"replied"`
	Bounced int64 `json:"bounced"`
}

func (cc *CampaignController) collectStats(c *fiber.Ctx, campaign *models.Campaign) (*campaignStats, error) {
	ctx := c.Context()

	counts, err := cc.Store.EngagementCounts(ctx, campaign.ID)
	if err != nil {
		return nil, err
	}

	stats := &campaignStats{
		CampaignID: campaign.ID,
		Name:       campaign.Name,
		Status:     campaign.Status,
		Engagement: counts,
		Metrics:    counts.Metrics(),
	}

	eventTotals := []struct {
		eventType string
		dest      *int64
	}{
		{models.EventSent, &stats.Sent},
		{models.EventOpened, &stats.Opened},
		{models.EventClicked, &stats.Clicked},
		{models.EventReplied, &stats.Replied},
		{models.EventBounced, &stats.Bounced},
	}
	for _, t := range eventTotals {
		n, err := cc.Store.CountEvents(ctx, campaign.ID, t.eventType)
		if err != nil {
			return nil, err
		}
		*t.dest = n
	}

	return stats, nil
}
