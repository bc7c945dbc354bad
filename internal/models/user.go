package models

import "time"

// User is an account known to the licensing backend. Token issuance lives in an
// external identity service; this table only backs role checks and the
// requested_by/reviewed_by references on change requests.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;size:80;not null" json:"username"`
	Email        string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	FullName     string    `gorm:"size:160" json:"full_name"`
	IsReviewer   bool      `gorm:"not null;default:false" json:"is_reviewer"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
