package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Display content modes.
const (
	DisplayModeImage   = "image"
	DisplayModeScraped = "scraped"
	DisplayModeManual  = "manual" // reserved, renders the empty state
)

// Display themes.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// TimeSlot is a single open/close interval, "HH:MM" formatted.
type TimeSlot struct {
	Open  string `json:"open"`
	Close string `json:"close"`
}

// WeeklyHours maps lowercase weekday names to their opening slots.
// An empty (or missing) slot list means the pharmacy is closed that day.
type WeeklyHours map[string][]TimeSlot

// DayKey returns the WeeklyHours key for a weekday.
func DayKey(day time.Weekday) string {
	return []string{
		"sunday", "monday", "tuesday", "wednesday",
		"thursday", "friday", "saturday",
	}[day]
}

// Value implements driver.Valuer so WeeklyHours persists as jsonb.
func (w WeeklyHours) Value() (driver.Value, error) {
	if w == nil {
		return nil, nil
	}
	return json.Marshal(w)
}

// Scan implements sql.Scanner.
func (w *WeeklyHours) Scan(value interface{}) error {
	if value == nil {
		*w = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, w)
	case string:
		return json.Unmarshal([]byte(v), w)
	}
	return errors.New("unsupported weekly hours column type")
}

// DisplayConfig describes what an unattended display renders for one pharmacy.
// At most one row exists per pharmacy; Version increases on every update so
// clients can observe staleness.
type DisplayConfig struct {
	BaseModel
	PharmacyID uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"pharmacy_id"`

	// Header
	LogoPath     *string      `gorm:"size:500" json:"logo_path"`
	PharmacyName string       `gorm:"size:200" json:"pharmacy_name"`
	SubtitleText string       `gorm:"size:200" json:"subtitle_text"`
	WeeklyHours  *WeeklyHours `gorm:"type:jsonb" json:"weekly_hours"`

	// Theme
	Theme          string `gorm:"size:10;default:light" json:"theme"`
	PrimaryColor   string `gorm:"size:7;default:#0066CC" json:"primary_color"`
	SecondaryColor string `gorm:"size:7;default:#00A3E0" json:"secondary_color"`

	// Content
	DisplayMode      string  `gorm:"size:10;default:image" json:"display_mode"`
	ImagePath        *string `gorm:"size:500" json:"image_path"`
	ScrapingCap      *string `gorm:"size:10" json:"scraping_cap"`
	ScrapingCity     *string `gorm:"size:200" json:"scraping_city"`
	ScrapingProvince *string `gorm:"size:2" json:"scraping_province"`

	FooterText *string `json:"footer_text"`

	Version int `gorm:"default:1" json:"version"`
}
