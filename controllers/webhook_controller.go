package controller

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"reachflow/engine"
	"reachflow/models"
	"reachflow/store"
	"reachflow/utils"
)

type WebhookController struct {
	Store   *store.Store
	Replies *engine.ReplyProcessor
	Logger  *logrus.Entry
}

func NewWebhookController(st *store.Store, replies *engine.ReplyProcessor, logger *logrus.Entry) *WebhookController {
	return &WebhookController{Store: st, Replies: replies, Logger: logger}
}

// HandleEmailEvent ingests delivery events from the sending provider.
// Events are keyed by the message id we stamped on the outbound email; a
// bounce or complaint also flips the prospect to do-not-contact so the
// executor stops touching them.
func (wc *WebhookController) HandleEmailEvent(c *fiber.Ctx) error {
	var input struct {
		EventType string `json:"event_type" validate:"required,oneof=delivered bounced complaint rejected"`
		MessageID string `json:"message_id" validate:"required"`
		Timestamp int64  `json:"timestamp"`
		Detail    string `json:"detail"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	ctx := c.Context()

	sent, err := wc.Store.FindEventByMessageID(ctx, input.MessageID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to look up message", err)
	}
	if sent == nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Unknown message id", nil)
	}

	occurredAt := time.Now()
	if input.Timestamp > 0 {
		occurredAt = time.Unix(input.Timestamp, 0)
	}

	event := &models.EmailEvent{
		ProspectID: sent.ProspectID,
		CampaignID: sent.CampaignID,
		EventType:  input.EventType,
		OccurredAt: occurredAt,
		MessageID:  input.MessageID,
		StepNumber: sent.StepNumber,
		Detail:     input.Detail,
	}
	if err := wc.Store.Append(ctx, event); err != nil {
		wc.Logger.WithError(err).Error("Failed to record email event")
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to record event", err)
	}

	if input.EventType == models.EventBounced || input.EventType == models.EventComplaint {
		if err := wc.Store.MarkDoNotContact(ctx, sent.ProspectID); err != nil {
			wc.Logger.WithError(err).WithField("prospect_id", sent.ProspectID).Error("Failed to mark prospect do-not-contact")
		}
	}

	return c.JSON(fiber.Map{"message": "Event recorded"})
}

// HandleInboundReply accepts a reply pushed by an inbound-parse provider
// and runs it through the same pipeline as mailbox-polled replies.
func (wc *WebhookController) HandleInboundReply(c *fiber.Ctx) error {
	var input struct {
		FromEmail  string `json:"from_email" validate:"required,email"`
		Body       string `json:"body"`
		MessageID  string `json:"message_id"`
		ThreadID   string `json:"thread_id"`
		ReceivedAt int64  `json:"received_at"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	receivedAt := time.Now()
	if input.ReceivedAt > 0 {
		receivedAt = time.Unix(input.ReceivedAt, 0)
	}

	reply := engine.Reply{
		FromEmail:  input.FromEmail,
		Body:       input.Body,
		MessageID:  input.MessageID,
		ThreadID:   input.ThreadID,
		ReceivedAt: receivedAt,
	}
	if err := wc.Replies.ProcessReply(c.Context(), reply); err != nil {
		wc.Logger.WithError(err).Error("Failed to process inbound reply")
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to process reply", err)
	}

	return c.JSON(fiber.Map{"message": "Reply processed"})
}

// HandleOpenTracking serves the tracking pixel and records an open.
func (wc *WebhookController) HandleOpenTracking(c *fiber.Ctx) error {
	messageID := c.Params("messageID")
	token := c.Params("token")

	if !utils.ValidTrackingToken(messageID, token) {
		return c.Status(fiber.StatusBadRequest).SendString("Invalid token")
	}

	wc.recordEngagement(c, messageID, models.EventOpened, "")

	// Return transparent pixel
	return c.Type("gif").Send(transparentPixel())
}

// HandleClickTracking records a click and redirects to the original URL.
func (wc *WebhookController) HandleClickTracking(c *fiber.Ctx) error {
	messageID := c.Params("messageID")
	token := c.Params("token")
	originalURL := c.Query("url")

	if !utils.ValidTrackingToken(messageID, token) {
		return c.Status(fiber.StatusBadRequest).SendString("Invalid token")
	}
	if originalURL == "" {
		return c.Status(fiber.StatusBadRequest).SendString("Missing url")
	}

	wc.recordEngagement(c, messageID, models.EventClicked, originalURL)

	return c.Redirect(originalURL, fiber.StatusFound)
}

// recordEngagement appends an opened or clicked event for the prospect
// behind messageID. Tracking must never break the pixel or the redirect,
// so failures are only logged.
func (wc *WebhookController) recordEngagement(c *fiber.Ctx, messageID, eventType, detail string) {
	ctx := c.Context()

	sent, err := wc.Store.FindEventByMessageID(ctx, messageID)
	if err != nil || sent == nil {
		wc.Logger.WithError(err).WithField("message_id", messageID).Debug("Tracking hit for unknown message")
		return
	}

	event := &models.EmailEvent{
		ProspectID: sent.ProspectID,
		CampaignID: sent.CampaignID,
		EventType:  eventType,
		OccurredAt: time.Now(),
		MessageID:  messageID,
		StepNumber: sent.StepNumber,
		Detail:     detail,
	}
	if err := wc.Store.Append(ctx, event); err != nil {
		wc.Logger.WithError(err).WithField("message_id", messageID).Error("Failed to record tracking event")
	}
}

func transparentPixel() []byte {
	// 1x1 transparent GIF
	return []byte{
		0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00,
		0x80, 0x00, 0x00, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x21,
		0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00, 0x2c, 0x00, 0x00,
		0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x44,
		0x01, 0x00, 0x3b,
	}
}
