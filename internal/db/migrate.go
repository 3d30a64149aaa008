package db

import (
	"fmt"

	"github.com/router-for-me/SIMReseller/internal/models"
	"gorm.io/gorm"
)

// Migrate runs database migrations for the current dialect.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	switch DialectName(conn) {
	case DialectSQLite, DialectPostgres, "":
	default:
		return fmt.Errorf("db: unsupported dialect: %s", DialectName(conn))
	}

	if errAutoMigrate := conn.AutoMigrate(
		&models.User{},
		&models.SIM{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}

	// Emails are stored lowercased; the expression index also rejects rows written
	// around the service layer with different casing.
	if errEmailIndex := conn.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_lower
		ON users (LOWER(email))
	`).Error; errEmailIndex != nil {
		return fmt.Errorf("db: create users email index: %w", errEmailIndex)
	}
	return nil
}
