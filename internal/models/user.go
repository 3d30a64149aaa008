package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents an end-user account stored in the database.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name     string `gorm:"type:text;not null"`             // Display name.
	Email    string `gorm:"type:text;not null;uniqueIndex"` // Lowercased email address.
	Password string `gorm:"type:text;not null"`             // Hashed password.

	InviteCode string  `gorm:"type:varchar(12);not null;uniqueIndex"` // Code other users sign up with.
	ReferredBy *string `gorm:"type:varchar(12);index"`                // Invite code used at signup.

	Credits decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0;check:chk_users_credits_non_negative,credits >= 0"` // Credit balance.

	StripeCustomerID *string `gorm:"type:text"` // Payment provider customer ID.

	SIMs []SIM `gorm:"foreignKey:UserID"` // Owned SIM records.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
