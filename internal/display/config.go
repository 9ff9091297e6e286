package display

import (
	"github.com/example/farmadisplay/internal/models"
)

// EffectiveConfig is the configuration actually rendered at a given instant,
// after merging persisted state with any unsaved draft. Asset references are
// plain strings; empty means "no asset".
type EffectiveConfig struct {
	PharmacyName string             `json:"pharmacy_name"`
	SubtitleText string             `json:"subtitle_text"`
	LogoRef      string             `json:"logo_ref"`
	WeeklyHours  models.WeeklyHours `json:"weekly_hours"`

	Theme          string `json:"theme"`
	PrimaryColor   string `json:"primary_color"`
	SecondaryColor string `json:"secondary_color"`

	DisplayMode      string `json:"display_mode"`
	ImageRef         string `json:"image_ref"`
	ScrapingCap      string `json:"scraping_cap"`
	ScrapingCity     string `json:"scraping_city"`
	ScrapingProvince string `json:"scraping_province"`

	FooterText string `json:"footer_text"`
}

// FromModel flattens a persisted DisplayConfig into an EffectiveConfig.
func FromModel(cfg models.DisplayConfig) EffectiveConfig {
	eff := EffectiveConfig{
		PharmacyName:   cfg.PharmacyName,
		SubtitleText:   cfg.SubtitleText,
		Theme:          cfg.Theme,
		PrimaryColor:   cfg.PrimaryColor,
		SecondaryColor: cfg.SecondaryColor,
		DisplayMode:    cfg.DisplayMode,
	}
	if cfg.LogoPath != nil {
		eff.LogoRef = *cfg.LogoPath
	}
	if cfg.WeeklyHours != nil {
		eff.WeeklyHours = *cfg.WeeklyHours
	}
	if cfg.ImagePath != nil {
		eff.ImageRef = *cfg.ImagePath
	}
	if cfg.ScrapingCap != nil {
		eff.ScrapingCap = *cfg.ScrapingCap
	}
	if cfg.ScrapingCity != nil {
		eff.ScrapingCity = *cfg.ScrapingCity
	}
	if cfg.ScrapingProvince != nil {
		eff.ScrapingProvince = *cfg.ScrapingProvince
	}
	if cfg.FooterText != nil {
		eff.FooterText = *cfg.FooterText
	}
	return eff
}

// DraftOverlay is a partial patch over a DisplayConfig, held in memory by an
// authoring session. A nil field means "unset": it falls through to the base.
type DraftOverlay struct {
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

// PendingPreviews holds transient local preview references for assets that
// were chosen in the editor but not yet normalized and uploaded, one per slot.
type PendingPreviews struct {
	Logo    string `json:"logo"`
	Content string `json:"content"`
}
