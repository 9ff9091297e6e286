package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/farmadisplay/internal/models"
	"github.com/example/farmadisplay/internal/utils"
)

// PharmacyHandler manages pharmacy CRUD and display-id resolution.
type PharmacyHandler struct {
	db *gorm.DB
}

// NewPharmacyHandler constructs PharmacyHandler.
func NewPharmacyHandler(db *gorm.DB) *PharmacyHandler {
	return &PharmacyHandler{db: db}
}

// requirePharmacyAccess loads the pharmacy and verifies the caller owns it
// (or is an admin).
func requirePharmacyAccess(c *fiber.Ctx, db *gorm.DB, pharmacyID uuid.UUID) (*models.Pharmacy, error) {
	user, err := currentUser(c, db)
	if err != nil {
		return nil, err
	}

	var pharmacy models.Pharmacy
	if err := db.First(&pharmacy, "id = ?", pharmacyID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fiber.NewError(fiber.StatusNotFound, "pharmacy not found")
		}
		return nil, err
	}

	if pharmacy.UserID != user.ID && !user.IsAdmin {
		return nil, fiber.NewError(fiber.StatusForbidden, "not authorized")
	}
	return &pharmacy, nil
}

// ListPharmacies returns the caller's pharmacies (all of them for admins).
func (h *PharmacyHandler) ListPharmacies(c *fiber.Ctx) error {
	user, err := currentUser(c, h.db)
	if err != nil {
		return err
	}

	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Pharmacy{})
	if !user.IsAdmin {
		query = query.Where("user_id = ?", user.ID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var items []models.Pharmacy
	if err := query.Limit(pg.Limit).Offset(pg.Offset).
		Order("created_at desc").Find(&items).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": items, "pagination": fiber.Map{
		"current_page":   pg.Page,
		"items_per_page": pg.Limit,
		"total_items":    total,
	}})
}

// CreatePharmacy registers a new pharmacy owned by the caller and assigns a
// fresh display id.
func (h *PharmacyHandler) CreatePharmacy(c *fiber.Ctx) error {
	user, err := currentUser(c, h.db)
	if err != nil {
		return err
	}

	var item models.Pharmacy
	if err := c.BodyParser(&item); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if item.Name == "" {
		return fiber.NewError(fiber.StatusBadRequest, "name is required")
	}

	displayID, err := utils.GenerateDisplayID(h.db)
	if err != nil {
		return err
	}

	item.UserID = user.ID
	item.DisplayID = displayID
	item.IsActive = true

	if err := h.db.Create(&item).Error; err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": item})
}

// GetPharmacy returns one pharmacy owned by the caller.
func (h *PharmacyHandler) GetPharmacy(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	pharmacy, err := requirePharmacyAccess(c, h.db, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": pharmacy})
}

// UpdatePharmacy updates pharmacy fields. The display id is immutable.
func (h *PharmacyHandler) UpdatePharmacy(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	pharmacy, err := requirePharmacyAccess(c, h.db, id)
	if err != nil {
		return err
	}

	displayID := pharmacy.DisplayID
	owner := pharmacy.UserID
	if err := c.BodyParser(pharmacy); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	pharmacy.ID = id
	pharmacy.DisplayID = displayID
	pharmacy.UserID = owner

	if err := h.db.Save(pharmacy).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": pharmacy})
}

// DeletePharmacy removes a pharmacy and its dependent records.
func (h *PharmacyHandler) DeletePharmacy(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	if _, err := requirePharmacyAccess(c, h.db, id); err != nil {
		return err
	}

	if err := h.db.Delete(&models.DisplayConfig{}, "pharmacy_id = ?", id).Error; err != nil {
		return err
	}
	if err := h.db.Delete(&models.Pharmacy{}, "id = ?", id).Error; err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ResolveByDisplayID maps an opaque display identifier to its pharmacy.
// Public: kiosks are addressed by display id and carry no credentials.
func (h *PharmacyHandler) ResolveByDisplayID(c *fiber.Ctx) error {
	displayID := c.Params("displayId")
	if displayID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing display id")
	}

	var pharmacy models.Pharmacy
	if err := h.db.First(&pharmacy, "display_id = ? AND is_active = ?", displayID, true).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "pharmacy not found")
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{
		"id":         pharmacy.ID,
		"name":       pharmacy.Name,
		"display_id": pharmacy.DisplayID,
	}})
}
