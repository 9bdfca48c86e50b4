package controller

import (
	"context"
	"time"

	"github.com/gofiber/websocket/v2"

	"reachflow/models"
	"reachflow/utils"
)

// HandleCampaignStatsWS streams live campaign stats. The client opens the
// socket, sends one auth frame, then receives a stats snapshot every few
// seconds until it disconnects or the campaign completes.
func (cc *CampaignController) HandleCampaignStatsWS(c *websocket.Conn) {
	defer c.Close()

	var input struct {
		CampaignID uint   `json:"campaign_id"`
		Token      string `json:"token"`
	}
	if err := c.ReadJSON(&input); err != nil {
		cc.Logger.WithError(err).Debug("Invalid websocket auth frame")
		return
	}

	claims, err := utils.ParseJWTToken(input.Token)
	if err != nil {
		c.WriteJSON(map[string]string{"error": "unauthorized"})
		return
	}

	campaign, err := cc.ownedCampaign(claims.UserID, input.CampaignID)
	if err != nil {
		c.WriteJSON(map[string]string{"error": "campaign not found"})
		return
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		if !cc.pushStats(c, campaign) {
			return
		}
		<-ticker.C
	}
}

func (cc *CampaignController) pushStats(c *websocket.Conn, campaign *models.Campaign) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Re-read the campaign so the stream reflects status changes made by
	// the workers.
	if err := cc.DB.WithContext(ctx).First(campaign, campaign.ID).Error; err != nil {
		cc.Logger.WithError(err).Debug("Campaign vanished during stats stream")
		return false
	}

	counts, err := cc.Store.EngagementCounts(ctx, campaign.ID)
	if err != nil {
		cc.Logger.WithError(err).Debug("Failed to read engagement counts for stream")
		return false
	}

	snapshot := struct {
		Status     string                  `json:"status"`
		Engagement models.EngagementCounts `json:"engagement"`
		Metrics    models.CampaignMetrics  `json:"metrics"`
		At         time.Time               `json:"at"`
	}{
		Status:     campaign.Status,
		Engagement: counts,
		Metrics:    counts.Metrics(),
		At:         time.Now(),
	}

	if err := c.WriteJSON(snapshot); err != nil {
		return false
	}
	return campaign.Status != models.CampaignStatusCompleted
}
