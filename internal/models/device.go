package models

import (
	"time"

	"github.com/google/uuid"
)

// Device status values.
const (
	DeviceStatusPending     = "pending"
	DeviceStatusActive      = "active"
	DeviceStatusInactive    = "inactive"
	DeviceStatusMaintenance = "maintenance"
)

// Device represents a Raspberry Pi display unit installed at a pharmacy.
type Device struct {
	BaseModel
	SerialNumber    string     `gorm:"uniqueIndex;size:100" json:"serial_number"`
	MacAddress      string     `gorm:"size:17" json:"mac_address"`
	ActivationCode  string     `gorm:"uniqueIndex;size:20" json:"activation_code"`
	PharmacyID      *uuid.UUID `gorm:"type:uuid" json:"pharmacy_id"`
	Status          string     `gorm:"default:pending" json:"status"`
	LastSeen        *time.Time `json:"last_seen"`
	FirmwareVersion string     `gorm:"size:20" json:"firmware_version"`
	ActivatedAt     *time.Time `json:"activated_at"`
}
