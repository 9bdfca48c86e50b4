package controller

import (
	"strings"

	"github.com/badoux/checkmail"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"reachflow/models"
	"reachflow/utils"
)

type ProspectController struct {
	DB     *gorm.DB
	Logger *logrus.Entry
}

func NewProspectController(db *gorm.DB, logger *logrus.Entry) *ProspectController {
	return &ProspectController{DB: db, Logger: logger}
}

type prospectInput struct {
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company"`
	Position  string `json:"position"`
}

// AddProspects bulk-adds prospects to a campaign. Rows with malformed
// addresses or domains that cannot receive mail are rejected individually
// so one bad row does not sink an imported list.
func (pc *ProspectController) AddProspects(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	campaignID := utils.ParseUint(c.Params("id"))

	var campaign models.Campaign
	if err := pc.DB.Where("id = ? AND user_id = ?", campaignID, user.ID).First(&campaign).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
	}

	var input struct {
		Prospects []prospectInput `json:"prospects" validate:"required,min=1,dive"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	var created []models.Prospect
	var rejected []fiber.Map
	for _, row := range input.Prospects {
		email := strings.ToLower(strings.TrimSpace(row.Email))
		if err := checkmail.ValidateFormat(email); err != nil {
			rejected = append(rejected, fiber.Map{"email": row.Email, "reason": "invalid email format"})
			continue
		}
		if hasMX, err := utils.ValidateMXRecords(email); err != nil || !hasMX {
			rejected = append(rejected, fiber.Map{"email": row.Email, "reason": "domain has no MX records"})
			continue
		}

		prospect := models.Prospect{
			CampaignID:       campaign.ID,
			UserID:           user.ID,
			Email:            email,
			FirstName:        strings.TrimSpace(row.FirstName),
			LastName:         strings.TrimSpace(row.LastName),
			Company:          strings.TrimSpace(row.Company),
			Position:         strings.TrimSpace(row.Position),
			EngagementStatus: models.EngagementNew,
		}

		// Re-importing the same list must not duplicate prospects.
		result := pc.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&prospect)
		if result.Error != nil {
			pc.Logger.WithError(result.Error).WithField("email", email).Error("Failed to create prospect")
			rejected = append(rejected, fiber.Map{"email": row.Email, "reason": "database error"})
			continue
		}
		if result.RowsAffected > 0 {
			created = append(created, prospect)
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"created":  len(created),
		"rejected": rejected,
		"data":     created,
	})
}

// GetProspects lists a campaign's prospects, optionally filtered by
// engagement status.
func (pc *ProspectController) GetProspects(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	campaignID := utils.ParseUint(c.Params("id"))

	var campaign models.Campaign
	if err := pc.DB.Where("id = ? AND user_id = ?", campaignID, user.ID).First(&campaign).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
	}

	query := pc.DB.Where("campaign_id = ?", campaign.ID).Order("id ASC")
	if status := c.Query("engagement_status"); status != "" {
		query = query.Where("engagement_status = ?", status)
	}

	var prospects []models.Prospect
	if err := query.Find(&prospects).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch prospects", err)
	}

	return c.JSON(utils.SuccessResponse(prospects))
}

// DeleteProspect removes one prospect from a campaign.
func (pc *ProspectController) DeleteProspect(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	campaignID := utils.ParseUint(c.Params("id"))
	prospectID := utils.ParseUint(c.Params("prospectId"))

	result := pc.DB.
		Where("id = ? AND campaign_id = ? AND user_id = ?", prospectID, campaignID, user.ID).
		Delete(&models.Prospect{})
	if result.Error != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete prospect", result.Error)
	}
	if result.RowsAffected == 0 {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Prospect not found", nil)
	}

	return c.JSON(fiber.Map{"message": "Prospect deleted"})
}
