package controller

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"reachflow/engine"
	"reachflow/models"
	"reachflow/store"
	"reachflow/utils"
)

type CampaignController struct {
	DB      *gorm.DB
	Store   *store.Store
	Tracker *engine.StatusTracker
	Logger  *logrus.Entry
}

func NewCampaignController(db *gorm.DB, st *store.Store, tracker *engine.StatusTracker, logger *logrus.Entry) *CampaignController {
	return &CampaignController{
		DB:      db,
		Store:   st,
		Tracker: tracker,
		Logger:  logger,
	}
}

type sequenceStepInput struct {
	StepNumber       int                      `json:"step_number" validate:"required,min=1"`
	DelayDays        int                      `json:"delay_days" validate:"min=0"`
	Subject          string                   `json:"subject" validate:"required"`
	BodyHTML         string                   `json:"body_html" validate:"required"`
	TriggerCondition *models.TriggerCondition `json:"trigger_condition"`
}

type createCampaignInput struct {
	Name        string              `json:"name" validate:"required,min=1,max=255"`
	Description string              `json:"description"`
	Steps       []sequenceStepInput `json:"steps" validate:"required,min=1,dive"`
}

// CreateCampaign creates a draft campaign with its full sequence. Step
// numbers must be 1-based and dense so the executor can walk them.
func (cc *CampaignController) CreateCampaign(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input createCampaignInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}
	if err := validateStepNumbers(input.Steps); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	campaign := models.Campaign{
		UserID:      user.ID,
		Name:        input.Name,
		Description: input.Description,
		Status:      models.CampaignStatusDraft,
	}
	for _, step := range input.Steps {
		campaign.Steps = append(campaign.Steps, models.SequenceStep{
			StepNumber:       step.StepNumber,
			DelayDays:        step.DelayDays,
			Subject:          step.Subject,
			BodyHTML:         step.BodyHTML,
			TriggerCondition: step.TriggerCondition,
			IsActive:         true,
		})
	}

	if err := cc.DB.Create(&campaign).Error; err != nil {
		cc.Logger.WithError(err).Error("Failed to create campaign")
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create campaign", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(campaign))
}

// GetCampaigns lists the user's campaigns, optionally filtered by status.
func (cc *CampaignController) GetCampaigns(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	query := cc.DB.Where("user_id = ?", user.ID).Order("created_at DESC")
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var campaigns []models.Campaign
	if err := query.Find(&campaigns).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch campaigns", err)
	}

	return c.JSON(utils.SuccessResponse(campaigns))
}

// GetCampaign returns one campaign with its sequence steps.
func (cc *CampaignController) GetCampaign(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	campaignID := utils.ParseUint(c.Params("id"))

	var campaign models.Campaign
	err := cc.DB.Preload("Steps", func(db *gorm.DB) *gorm.DB {
		return db.Order("step_number ASC")
	}).Where("id = ? AND user_id = ?", campaignID, user.ID).First(&campaign).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch campaign", err)
	}

	return c.JSON(utils.SuccessResponse(campaign))
}

// UpdateCampaign replaces name, description and sequence of a draft
// campaign. Once a campaign leaves draft its sequence is frozen.
func (cc *CampaignController) UpdateCampaign(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	campaignID := utils.ParseUint(c.Params("id"))

	var input createCampaignInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}
	if err := validateStepNumbers(input.Steps); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	var campaign models.Campaign
	if err := cc.DB.Where("id = ? AND user_id = ?", campaignID, user.ID).First(&campaign).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
	}
	if campaign.Status != models.CampaignStatusDraft {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Only draft campaigns can be edited", nil)
	}

	err := cc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&campaign).Updates(map[string]interface{}{
			"name":        input.Name,
			"description": input.Description,
		}).Error; err != nil {
			return err
		}
		if err := tx.Where("campaign_id = ?", campaign.ID).Delete(&models.SequenceStep{}).Error; err != nil {
			return err
		}
		for _, step := range input.Steps {
			s := models.SequenceStep{
				CampaignID:       campaign.ID,
				StepNumber:       step.StepNumber,
				DelayDays:        step.DelayDays,
				Subject:          step.Subject,
				BodyHTML:         step.BodyHTML,
				TriggerCondition: step.TriggerCondition,
				IsActive:         true,
			}
			if err := tx.Create(&s).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		cc.Logger.WithError(err).Error("Failed to update campaign")
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update campaign", err)
	}

	return cc.GetCampaign(c)
}

// DeleteCampaign soft-deletes a campaign. Steps and prospects cascade.
func (cc *CampaignController) DeleteCampaign(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	campaignID := utils.ParseUint(c.Params("id"))

	result := cc.DB.Where("id = ? AND user_id = ?", campaignID, user.ID).Delete(&models.Campaign{})
	if result.Error != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete campaign", result.Error)
	}
	if result.RowsAffected == 0 {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
	}

	return c.JSON(fiber.Map{"message": "Campaign deleted"})
}

// ScheduleCampaign moves a draft campaign to scheduled. With no body the
// campaign is due immediately and the next worker pass activates it.
func (cc *CampaignController) ScheduleCampaign(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	campaignID := utils.ParseUint(c.Params("id"))

	var input struct {
		StartAt *time.Time `json:"start_at"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&input); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
		}
	}

	campaign, err := cc.ownedCampaign(user.ID, campaignID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
	}

	var stepCount int64
	if err := cc.DB.Model(&models.SequenceStep{}).
		Where("campaign_id = ? AND is_active = ?", campaign.ID, true).
		Count(&stepCount).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to inspect sequence", err)
	}
	if stepCount == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Campaign has no sequence steps", nil)
	}

	startAt := time.Now()
	if input.StartAt != nil {
		startAt = *input.StartAt
	}

	if err := cc.Tracker.ScheduleCampaign(c.Context(), campaign.ID, startAt); err != nil {
		if errors.Is(err, engine.ErrInvalidTransition) {
			return utils.ErrorResponse(c, fiber.StatusConflict, "Only draft campaigns can be scheduled", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to schedule campaign", err)
	}

	return c.JSON(fiber.Map{
		"message":  "Campaign scheduled",
		"start_at": startAt,
	})
}

// PauseCampaign freezes an active campaign. Step delay clocks stop until
// the campaign is resumed.
func (cc *CampaignController) PauseCampaign(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	campaignID := utils.ParseUint(c.Params("id"))

	campaign, err := cc.ownedCampaign(user.ID, campaignID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
	}

	if err := cc.Tracker.PauseCampaign(c.Context(), campaign.ID); err != nil {
		if errors.Is(err, engine.ErrInvalidTransition) {
			return utils.ErrorResponse(c, fiber.StatusConflict, "Only active campaigns can be paused", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to pause campaign", err)
	}

	return c.JSON(fiber.Map{"message": "Campaign paused"})
}

// ResumeCampaign reactivates a paused campaign and shifts pending step
// timers forward so time spent paused does not count against delays.
func (cc *CampaignController) ResumeCampaign(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	campaignID := utils.ParseUint(c.Params("id"))

	campaign, err := cc.ownedCampaign(user.ID, campaignID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
	}

	if err := cc.Tracker.ResumeCampaign(c.Context(), campaign); err != nil {
		if errors.Is(err, engine.ErrInvalidTransition) {
			return utils.ErrorResponse(c, fiber.StatusConflict, "Only paused campaigns can be resumed", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to resume campaign", err)
	}

	return c.JSON(fiber.Map{"message": "Campaign resumed"})
}

func (cc *CampaignController) ownedCampaign(userID, campaignID uint) (*models.Campaign, error) {
	var campaign models.Campaign
	if err := cc.DB.Where("id = ? AND user_id = ?", campaignID, userID).First(&campaign).Error; err != nil {
		return nil, err
	}
	return &campaign, nil
}

// validateStepNumbers enforces that steps are numbered 1..n with no gaps
// or duplicates, regardless of the order they were submitted in.
func validateStepNumbers(steps []sequenceStepInput) error {
	seen := make(map[int]bool, len(steps))
	for _, step := range steps {
		if seen[step.StepNumber] {
			return fiber.NewError(fiber.StatusBadRequest, "duplicate step_number in sequence")
		}
		seen[step.StepNumber] = true
	}
	for i := 1; i <= len(steps); i++ {
		if !seen[i] {
			return fiber.NewError(fiber.StatusBadRequest, "step_number values must be 1-based and consecutive")
		}
	}
	return nil
}
