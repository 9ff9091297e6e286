package models

// User represents an authenticated administrator account.
type User struct {
	BaseModel
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Email        string     `gorm:"uniqueIndex" json:"email"`
	PasswordHash string     `json:"-"`
	IsAdmin      bool       `json:"is_admin"`
	IsActive     bool       `gorm:"default:true" json:"is_active"`
	Pharmacies   []Pharmacy `json:"pharmacies,omitempty"`
}
