package display

import (
	"github.com/example/farmadisplay/internal/models"
)

// Merge combines a persisted configuration with an unsaved draft overlay and
// produces the configuration that would be rendered if published now.
//
// Merge is a pure function of its inputs: it never mutates base, overlay or
// pending, and identical inputs always yield an identical EffectiveConfig, so
// it is safe to re-invoke on every form edit.
func Merge(base models.DisplayConfig, overlay DraftOverlay, pending PendingPreviews) EffectiveConfig {
	eff := FromModel(base)

	if overlay.PharmacyName != nil {
		eff.PharmacyName = *overlay.PharmacyName
	}
	if overlay.SubtitleText != nil {
		eff.SubtitleText = *overlay.SubtitleText
	}
	if overlay.Theme != nil {
		eff.Theme = *overlay.Theme
	}
	if overlay.PrimaryColor != nil {
		eff.PrimaryColor = *overlay.PrimaryColor
	}
	if overlay.SecondaryColor != nil {
		eff.SecondaryColor = *overlay.SecondaryColor
	}
	if overlay.DisplayMode != nil {
		eff.DisplayMode = *overlay.DisplayMode
	}
	if overlay.ScrapingCap != nil {
		eff.ScrapingCap = *overlay.ScrapingCap
	}
	if overlay.ScrapingCity != nil {
		eff.ScrapingCity = *overlay.ScrapingCity
	}
	if overlay.ScrapingProvince != nil {
		eff.ScrapingProvince = *overlay.ScrapingProvince
	}
	if overlay.FooterText != nil {
		eff.FooterText = *overlay.FooterText
	}

	// Hours are substituted wholesale, never merged day-by-day: a partial
	// day merge could pair one day's edits with another day's stale slots.
	if overlay.WeeklyHours != nil && hasOpenDay(*overlay.WeeklyHours) {
		eff.WeeklyHours = *overlay.WeeklyHours
	}

	// A pending (unsaved) asset preview takes precedence over the persisted
	// reference for its slot; the persisted value reappears once the pending
	// asset is cleared after publish or cancel.
	if pending.Logo != "" {
		eff.LogoRef = pending.Logo
	}
	if pending.Content != "" {
		eff.ImageRef = pending.Content
	}

	return eff
}

func hasOpenDay(hours models.WeeklyHours) bool {
	for _, slots := range hours {
		if len(slots) > 0 {
			return true
		}
	}
	return false
}
