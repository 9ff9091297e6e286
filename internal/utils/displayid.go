package utils

import (
	"crypto/rand"
	"errors"
	"math/big"

	"gorm.io/gorm"

	"github.com/example/farmadisplay/internal/models"
)

const displayIDChars = "abcdefghijklmnopqrstuvwxyz0123456789"

const displayIDLength = 6

// GenerateDisplayID returns a unique 6-character lowercase alphanumeric
// identifier used to address a pharmacy's kiosk display.
func GenerateDisplayID(db *gorm.DB) (string, error) {
	for attempt := 0; attempt < 100; attempt++ {
		id, err := randomDisplayID()
		if err != nil {
			return "", err
		}

		var count int64
		if err := db.Model(&models.Pharmacy{}).Where("display_id = ?", id).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return id, nil
		}
	}
	return "", errors.New("failed to generate unique display id")
}

func randomDisplayID() (string, error) {
	buf := make([]byte, displayIDLength)
	max := big.NewInt(int64(len(displayIDChars)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = displayIDChars[n.Int64()]
	}
	return string(buf), nil
}
