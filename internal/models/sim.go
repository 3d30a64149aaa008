package models

import "time"

// SIM records an eSIM order owned by a single user.
type SIM struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"`                              // Owning user ID.
	User   *User  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"` // Owning user.

	OrderNo       string  `gorm:"type:text;not null;uniqueIndex"`           // Provider order number.
	EsimTranNo    *string `gorm:"type:text;uniqueIndex"`                    // eSIM transaction number.
	ICCID         *string `gorm:"column:iccid;type:text;uniqueIndex"`       // Card identifier.
	TransactionID string  `gorm:"column:transaction_id;type:text;not null"` // Payment transaction ID.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// TableName pins the table name for SIM records.
func (SIM) TableName() string { return "sims" }
