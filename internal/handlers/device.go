package handlers

import (
	"crypto/rand"
	"math/big"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/farmadisplay/internal/models"
	"github.com/example/farmadisplay/internal/utils"
)

// DeviceHandler manages display device lifecycle and liveness.
type DeviceHandler struct {
	db *gorm.DB
}

// NewDeviceHandler constructs DeviceHandler.
func NewDeviceHandler(db *gorm.DB) *DeviceHandler {
	return &DeviceHandler{db: db}
}

func requireAdmin(c *fiber.Ctx, db *gorm.DB) (*models.User, error) {
	user, err := currentUser(c, db)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin {
		return nil, fiber.NewError(fiber.StatusForbidden, "admin access required")
	}
	return user, nil
}

type registerDeviceRequest struct {
	SerialNumber    string `json:"serial_number"`
	MacAddress      string `json:"mac_address"`
	FirmwareVersion string `json:"firmware_version"`
}

// RegisterDevice creates a pending device with a fresh activation code.
// Admin only.
func (h *DeviceHandler) RegisterDevice(c *fiber.Ctx) error {
	if _, err := requireAdmin(c, h.db); err != nil {
		return err
	}

	var req registerDeviceRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.SerialNumber == "" {
		return fiber.NewError(fiber.StatusBadRequest, "serial_number is required")
	}

	var existing models.Device
	if err := h.db.Where("serial_number = ?", req.SerialNumber).First(&existing).Error; err == nil {
		return fiber.NewError(fiber.StatusConflict, "serial number already registered")
	} else if err != gorm.ErrRecordNotFound {
		return err
	}

	code, err := generateActivationCode()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate activation code")
	}

	device := models.Device{
		SerialNumber:    req.SerialNumber,
		MacAddress:      req.MacAddress,
		FirmwareVersion: req.FirmwareVersion,
		ActivationCode:  code,
		Status:          models.DeviceStatusPending,
	}

	if err := h.db.Create(&device).Error; err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": device})
}

type activateDeviceRequest struct {
	ActivationCode string    `json:"activation_code"`
	PharmacyID     uuid.UUID `json:"pharmacy_id"`
}

// ActivateDevice binds a pending device to one of the caller's pharmacies.
func (h *DeviceHandler) ActivateDevice(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req activateDeviceRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	var device models.Device
	if err := h.db.First(&device, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "device not found")
		}
		return err
	}

	if device.ActivationCode != req.ActivationCode {
		return fiber.NewError(fiber.StatusBadRequest, "invalid activation code")
	}
	if device.Status != models.DeviceStatusPending {
		return fiber.NewError(fiber.StatusBadRequest, "device already "+device.Status)
	}

	pharmacy, err := requirePharmacyAccess(c, h.db, req.PharmacyID)
	if err != nil {
		return err
	}
	if !pharmacy.IsActive {
		return fiber.NewError(fiber.StatusBadRequest, "pharmacy is not active")
	}

	now := time.Now()
	device.PharmacyID = &pharmacy.ID
	device.Status = models.DeviceStatusActive
	device.ActivatedAt = &now

	if err := h.db.Save(&device).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": device})
}

// ListDevices returns devices visible to the caller: all for admins,
// otherwise those bound to the caller's pharmacies.
func (h *DeviceHandler) ListDevices(c *fiber.Ctx) error {
	user, err := currentUser(c, h.db)
	if err != nil {
		return err
	}

	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Device{})
	if !user.IsAdmin {
		query = query.Where("pharmacy_id IN (?)",
			h.db.Model(&models.Pharmacy{}).Select("id").Where("user_id = ?", user.ID))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var items []models.Device
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

type heartbeatRequest struct {
	SerialNumber    string `json:"serial_number"`
	Status          string `json:"status"`
	FirmwareVersion string `json:"firmware_version"`
}

// Heartbeat updates device liveness. Public: devices carry no credentials,
// the serial number must match the registered one.
func (h *DeviceHandler) Heartbeat(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req heartbeatRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	var device models.Device
	if err := h.db.First(&device, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "device not found")
		}
		return err
	}

	if device.SerialNumber != req.SerialNumber {
		return fiber.NewError(fiber.StatusBadRequest, "serial number mismatch")
	}

	now := time.Now()
	device.LastSeen = &now
	if req.Status != "" {
		device.Status = req.Status
	}
	if req.FirmwareVersion != "" {
		device.FirmwareVersion = req.FirmwareVersion
	}

	if err := h.db.Save(&device).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": device})
}

type deviceStatusRequest struct {
	Status string `json:"status"`
}

// UpdateDeviceStatus lets an admin force a device status, e.g. maintenance.
func (h *DeviceHandler) UpdateDeviceStatus(c *fiber.Ctx) error {
	if _, err := requireAdmin(c, h.db); err != nil {
		return err
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req deviceStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	switch req.Status {
	case models.DeviceStatusPending, models.DeviceStatusActive,
		models.DeviceStatusInactive, models.DeviceStatusMaintenance:
	default:
		return fiber.NewError(fiber.StatusBadRequest, "invalid status")
	}

	var device models.Device
	if err := h.db.First(&device, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "device not found")
		}
		return err
	}

	device.Status = req.Status
	if err := h.db.Save(&device).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": device})
}

// DeleteDevice permanently removes a device. Admin only.
func (h *DeviceHandler) DeleteDevice(c *fiber.Ctx) error {
	if _, err := requireAdmin(c, h.db); err != nil {
		return err
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	if err := h.db.Delete(&models.Device{}, "id = ?", id).Error; err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func generateActivationCode() (string, error) {
	const chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	buf := make([]byte, 20)
	max := big.NewInt(int64(len(chars)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = chars[n.Int64()]
	}
	return string(buf), nil
}
