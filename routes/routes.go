package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	controller "reachflow/controllers"
	"reachflow/engine"
	"reachflow/middleware"
	"reachflow/store"
)

// SetupRoutes wires all HTTP endpoints: the authenticated campaign API,
// the public tracking and webhook surface, and the live stats websocket.
func SetupRoutes(app *fiber.App, db *gorm.DB, st *store.Store, tracker *engine.StatusTracker, replies *engine.ReplyProcessor, log *logrus.Logger) {
	campaignController := controller.NewCampaignController(db, st, tracker, log.WithField("component", "campaign_api"))
	prospectController := controller.NewProspectController(db, log.WithField("component", "prospect_api"))
	webhookController := controller.NewWebhookController(st, replies, log.WithField("component", "webhooks"))

	// Public tracking endpoints, hit from email clients. Rate limited per IP.
	track := app.Group("/track", middleware.WebhookRateLimiter())
	track.Get("/open/:messageID/:token", webhookController.HandleOpenTracking)
	track.Get("/click/:messageID/:token", webhookController.HandleClickTracking)

	// Provider webhooks, also public and rate limited.
	webhooks := app.Group("/webhooks", middleware.WebhookRateLimiter())
	webhooks.Post("/email-events", webhookController.HandleEmailEvent)
	webhooks.Post("/inbound-reply", webhookController.HandleInboundReply)

	// Authenticated API
	api := app.Group("/api/v1", middleware.Protected(), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	campaigns := api.Group("/campaigns")
	campaigns.Post("/", campaignController.CreateCampaign)
	campaigns.Get("/", campaignController.GetCampaigns)
	campaigns.Get("/:id", campaignController.GetCampaign)
	campaigns.Put("/:id", campaignController.UpdateCampaign)
	campaigns.Delete("/:id", campaignController.DeleteCampaign)

	campaigns.Post("/:id/schedule", campaignController.ScheduleCampaign)
	campaigns.Post("/:id/pause", campaignController.PauseCampaign)
	campaigns.Post("/:id/resume", campaignController.ResumeCampaign)
	campaigns.Get("/:id/stats", campaignController.GetCampaignStats)

	campaigns.Post("/:id/prospects", prospectController.AddProspects)
	campaigns.Get("/:id/prospects", prospectController.GetProspects)
	campaigns.Delete("/:id/prospects/:prospectId", prospectController.DeleteProspect)

	// Live campaign stats stream. Auth happens inside the handler via a
	// token frame because browsers cannot set headers on websockets.
	app.Get("/ws/campaign-stats", websocket.New(campaignController.HandleCampaignStatsWS))

	log.Info("🚀 Routes initialized successfully")
}
