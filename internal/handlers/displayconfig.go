package handlers

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/farmadisplay/internal/assets"
	"github.com/example/farmadisplay/internal/display"
	"github.com/example/farmadisplay/internal/models"
)

// Content and logo target aspect ratios (width / height). Content fills the
// main area of a portrait display; logos get a square slot in the header.
const (
	contentAspect = 3.0 / 4.0
	logoAspect    = 1.0
)

// DisplayConfigHandler manages per-pharmacy display configurations, asset
// uploads and server-side previews.
type DisplayConfigHandler struct {
	db        *gorm.DB
	uploadDir string
	renderer  *display.Renderer
}

// NewDisplayConfigHandler constructs DisplayConfigHandler.
func NewDisplayConfigHandler(db *gorm.DB, uploadDir string, renderer *display.Renderer) *DisplayConfigHandler {
	return &DisplayConfigHandler{db: db, uploadDir: uploadDir, renderer: renderer}
}

// GetConfig returns the display configuration for a pharmacy. Public: kiosks
// poll this endpoint without credentials.
func (h *DisplayConfigHandler) GetConfig(c *fiber.Ctx) error {
	pharmacyID, err := uuid.Parse(c.Params("pharmacyId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid pharmacy id")
	}

	var cfg models.DisplayConfig
	if err := h.db.First(&cfg, "pharmacy_id = ?", pharmacyID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "display config not found")
		}
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": cfg})
}

// CreateConfig creates the initial configuration for a pharmacy. At most one
// configuration exists per pharmacy.
func (h *DisplayConfigHandler) CreateConfig(c *fiber.Ctx) error {
	pharmacyID, err := uuid.Parse(c.Params("pharmacyId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid pharmacy id")
	}

	pharmacy, err := requirePharmacyAccess(c, h.db, pharmacyID)
	if err != nil {
		return err
	}

	var existing models.DisplayConfig
	if err := h.db.First(&existing, "pharmacy_id = ?", pharmacyID).Error; err == nil {
		return fiber.NewError(fiber.StatusConflict, "display config already exists")
	} else if err != gorm.ErrRecordNotFound {
		return err
	}

	var cfg models.DisplayConfig
	if err := c.BodyParser(&cfg); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validateConfig(&cfg); err != nil {
		return err
	}

	cfg.PharmacyID = pharmacyID
	cfg.Version = 1
	if cfg.PharmacyName == "" {
		cfg.PharmacyName = pharmacy.Name
	}

	if err := h.db.Create(&cfg).Error; err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": cfg})
}

type configPatch struct {
	PharmacyName     *string             `json:"pharmacy_name"`
	SubtitleText     *string             `json:"subtitle_text"`
	WeeklyHours      *models.WeeklyHours `json:"weekly_hours"`
	Theme            *string             `json:"theme"`
	PrimaryColor     *string             `json:"primary_color"`
	SecondaryColor   *string             `json:"secondary_color"`
	DisplayMode      *string             `json:"display_mode"`
	ScrapingCap      *string             `json:"scraping_cap"`
	ScrapingCity     *string             `json:"scraping_city"`
	ScrapingProvince *string             `json:"scraping_province"`
	FooterText       *string             `json:"footer_text"`
}

// UpdateConfig applies a partial patch: absent fields keep their stored
// values. Every successful update bumps the version so polling kiosks can
// observe the change.
func (h *DisplayConfigHandler) UpdateConfig(c *fiber.Ctx) error {
	pharmacyID, err := uuid.Parse(c.Params("pharmacyId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid pharmacy id")
	}

	if _, err := requirePharmacyAccess(c, h.db, pharmacyID); err != nil {
		return err
	}

	var cfg models.DisplayConfig
	if err := h.db.First(&cfg, "pharmacy_id = ?", pharmacyID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "display config not found")
		}
		return err
	}

	var patch configPatch
	if err := c.BodyParser(&patch); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	applyPatch(&cfg, patch)
	if err := validateConfig(&cfg); err != nil {
		return err
	}
	cfg.Version++

	if err := h.db.Save(&cfg).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": cfg})
}

func applyPatch(cfg *models.DisplayConfig, patch configPatch) {
	if patch.PharmacyName != nil {
		cfg.PharmacyName = *patch.PharmacyName
	}
	if patch.SubtitleText != nil {
		cfg.SubtitleText = *patch.SubtitleText
	}
	if patch.WeeklyHours != nil {
		cfg.WeeklyHours = patch.WeeklyHours
	}
	if patch.Theme != nil {
		cfg.Theme = *patch.Theme
	}
	if patch.PrimaryColor != nil {
		cfg.PrimaryColor = *patch.PrimaryColor
	}
	if patch.SecondaryColor != nil {
		cfg.SecondaryColor = *patch.SecondaryColor
	}
	if patch.DisplayMode != nil {
		cfg.DisplayMode = *patch.DisplayMode
	}
	if patch.ScrapingCap != nil {
		cfg.ScrapingCap = patch.ScrapingCap
	}
	if patch.ScrapingCity != nil {
		cfg.ScrapingCity = patch.ScrapingCity
	}
	if patch.ScrapingProvince != nil {
		cfg.ScrapingProvince = patch.ScrapingProvince
	}
	if patch.FooterText != nil {
		cfg.FooterText = patch.FooterText
	}
}

func validateConfig(cfg *models.DisplayConfig) error {
	switch cfg.Theme {
	case "", models.ThemeLight, models.ThemeDark:
	default:
		return fiber.NewError(fiber.StatusBadRequest, "invalid theme")
	}
	switch cfg.DisplayMode {
	case "", models.DisplayModeImage, models.DisplayModeScraped, models.DisplayModeManual:
	default:
		return fiber.NewError(fiber.StatusBadRequest, "invalid display mode")
	}
	return nil
}

// UploadLogo normalizes and stores a header logo.
func (h *DisplayConfigHandler) UploadLogo(c *fiber.Ctx) error {
	return h.uploadAsset(c, "logos", logoAspect, func(cfg *models.DisplayConfig, path string) {
		cfg.LogoPath = &path
	}, func(cfg *models.DisplayConfig) *string { return cfg.LogoPath })
}

// UploadImage normalizes and stores the main content image. A successful
// upload switches the display to image mode.
func (h *DisplayConfigHandler) UploadImage(c *fiber.Ctx) error {
	return h.uploadAsset(c, "display_images", contentAspect, func(cfg *models.DisplayConfig, path string) {
		cfg.ImagePath = &path
		cfg.DisplayMode = models.DisplayModeImage
	}, func(cfg *models.DisplayConfig) *string { return cfg.ImagePath })
}

func (h *DisplayConfigHandler) uploadAsset(c *fiber.Ctx, subdir string, targetAspect float64,
	apply func(*models.DisplayConfig, string), current func(*models.DisplayConfig) *string) error {

	pharmacyID, err := uuid.Parse(c.Params("pharmacyId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid pharmacy id")
	}

	if _, err := requirePharmacyAccess(c, h.db, pharmacyID); err != nil {
		return err
	}

	var cfg models.DisplayConfig
	if err := h.db.First(&cfg, "pharmacy_id = ?", pharmacyID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "display config not found")
		}
		return err
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "missing file")
	}
	if fileHeader.Size > assets.MaxUploadSize {
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, "file exceeds maximum size")
	}

	f, err := fileHeader.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "cannot read file")
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "cannot read file")
	}

	crop, err := parseCrop(c)
	if err != nil {
		return err
	}

	asset, err := assets.Normalize(assets.RawUpload{Filename: fileHeader.Filename, Data: data}, targetAspect, crop)
	if err != nil {
		switch {
		case errors.Is(err, assets.ErrCropRequired):
			return fiber.NewError(fiber.StatusUnprocessableEntity, "aspect ratio outside tolerance, crop required")
		case errors.Is(err, assets.ErrFileTooLarge):
			return fiber.NewError(fiber.StatusRequestEntityTooLarge, "file exceeds maximum size")
		case errors.Is(err, assets.ErrUnsupportedMedia):
			return fiber.NewError(fiber.StatusUnsupportedMediaType, "unsupported file type")
		case errors.Is(err, assets.ErrDecode):
			return fiber.NewError(fiber.StatusBadRequest, "cannot decode file")
		default:
			return err
		}
	}

	dir := filepath.Join(h.uploadDir, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	relPath := filepath.Join(subdir, uuid.NewString()+asset.Ext)
	if err := os.WriteFile(filepath.Join(h.uploadDir, relPath), asset.Data, 0o644); err != nil {
		return err
	}

	old := current(&cfg)
	apply(&cfg, "/uploads/"+filepath.ToSlash(relPath))
	cfg.Version++

	if err := h.db.Save(&cfg).Error; err != nil {
		return err
	}

	if old != nil {
		h.removeStoredAsset(*old)
	}

	return c.JSON(fiber.Map{"success": true, "data": cfg})
}

// parseCrop reads the optional crop selection form fields. All four rectangle
// fields must be present together.
func parseCrop(c *fiber.Ctx) (*assets.CropSelection, error) {
	x := c.FormValue("crop_x")
	y := c.FormValue("crop_y")
	w := c.FormValue("crop_w")
	hh := c.FormValue("crop_h")
	if x == "" && y == "" && w == "" && hh == "" {
		return nil, nil
	}

	crop := &assets.CropSelection{Zoom: 1}
	var err error
	if crop.X, err = strconv.ParseFloat(x, 64); err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid crop selection")
	}
	if crop.Y, err = strconv.ParseFloat(y, 64); err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid crop selection")
	}
	if crop.Width, err = strconv.ParseFloat(w, 64); err != nil || crop.Width <= 0 {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid crop selection")
	}
	if crop.Height, err = strconv.ParseFloat(hh, 64); err != nil || crop.Height <= 0 {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid crop selection")
	}
	if v := c.FormValue("rotation"); v != "" {
		if crop.Rotation, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "invalid rotation")
		}
	}
	if v := c.FormValue("zoom"); v != "" {
		if crop.Zoom, err = strconv.ParseFloat(v, 64); err != nil || crop.Zoom <= 0 {
			return nil, fiber.NewError(fiber.StatusBadRequest, "invalid zoom")
		}
	}
	return crop, nil
}

type previewRequest struct {
	Overlay display.DraftOverlay    `json:"overlay"`
	Pending display.PendingPreviews `json:"pending"`
}

// Preview merges the stored configuration with an unsaved draft and renders
// the resulting layout, without persisting anything.
func (h *DisplayConfigHandler) Preview(c *fiber.Ctx) error {
	pharmacyID, err := uuid.Parse(c.Params("pharmacyId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid pharmacy id")
	}

	if _, err := requirePharmacyAccess(c, h.db, pharmacyID); err != nil {
		return err
	}

	var cfg models.DisplayConfig
	if err := h.db.First(&cfg, "pharmacy_id = ?", pharmacyID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "display config not found")
		}
		return err
	}

	var req previewRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	eff := display.Merge(cfg, req.Overlay, req.Pending)
	tree := h.renderer.Render(c.Context(), eff, time.Now(), display.ViewportPreview)

	return c.JSON(fiber.Map{"success": true, "data": tree})
}

// DeleteConfig removes the configuration and its stored assets.
func (h *DisplayConfigHandler) DeleteConfig(c *fiber.Ctx) error {
	pharmacyID, err := uuid.Parse(c.Params("pharmacyId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid pharmacy id")
	}

	if _, err := requirePharmacyAccess(c, h.db, pharmacyID); err != nil {
		return err
	}

	var cfg models.DisplayConfig
	if err := h.db.First(&cfg, "pharmacy_id = ?", pharmacyID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "display config not found")
		}
		return err
	}

	if err := h.db.Delete(&cfg).Error; err != nil {
		return err
	}

	if cfg.LogoPath != nil {
		h.removeStoredAsset(*cfg.LogoPath)
	}
	if cfg.ImagePath != nil {
		h.removeStoredAsset(*cfg.ImagePath)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// removeStoredAsset deletes a previously stored upload, mapping the public
// /uploads/ reference back to disk. Best effort.
func (h *DisplayConfigHandler) removeStoredAsset(ref string) {
	const prefix = "/uploads/"
	if len(ref) <= len(prefix) || ref[:len(prefix)] != prefix {
		return
	}
	os.Remove(filepath.Join(h.uploadDir, filepath.FromSlash(ref[len(prefix):])))
}
