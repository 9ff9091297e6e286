package models

import "github.com/google/uuid"

// Pharmacy represents a pharmacy managed by a user account.
type Pharmacy struct {
	BaseModel
	UserID     uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	Name       string    `json:"name"`
	Address    string    `json:"address"`
	City       string    `json:"city"`
	PostalCode string    `json:"postal_code"`
	Province   string    `json:"province"`
	Phone      string    `json:"phone"`
	Email      string    `json:"email"`
	Latitude   *float64  `json:"latitude"`
	Longitude  *float64  `json:"longitude"`
	// DisplayID is the opaque identifier kiosks are addressed by.
	DisplayID string `gorm:"uniqueIndex;size:6" json:"display_id"`
	IsActive  bool   `gorm:"default:true" json:"is_active"`

	Devices       []Device       `json:"devices,omitempty"`
	DisplayConfig *DisplayConfig `json:"display_config,omitempty"`
}
