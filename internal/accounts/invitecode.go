package accounts

import (
	"fmt"

	"github.com/router-for-me/SIMReseller/internal/db"
	"github.com/router-for-me/SIMReseller/internal/models"
	"github.com/router-for-me/SIMReseller/internal/security"
	"github.com/router-for-me/SIMReseller/internal/settings"
	"gorm.io/gorm"
)

// CodeSource produces candidate invite codes.
type CodeSource func() (string, error)

// RandomInviteCode draws a fresh uppercase alphanumeric invite code.
func RandomInviteCode() (string, error) {
	return security.GenerateCode(settings.InviteCodeAlphabet, settings.InviteCodeLength)
}

// inviteCodeGenerator hands out invite codes that no user holds yet.
type inviteCodeGenerator struct {
	source      CodeSource
	maxAttempts int
}

// insertUser assigns a unique invite code to user and inserts it on tx.
// A code already present in the table, or one that loses an insert race to a
// concurrent signup, is replaced and retried until the attempts run out.
func (g inviteCodeGenerator) insertUser(tx *gorm.DB, user *models.User) error {
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		code, errCode := g.source()
		if errCode != nil {
			return fmt.Errorf("accounts: generate invite code: %w", errCode)
		}

		var holders int64
		if errCount := tx.Model(&models.User{}).Where("invite_code = ?", code).Count(&holders).Error; errCount != nil {
			return fmt.Errorf("accounts: check invite code: %w", errCount)
		}
		if holders > 0 {
			continue
		}

		user.ID = 0
		user.InviteCode = code
		errCreate := tx.Transaction(func(inner *gorm.DB) error {
			return inner.Create(user).Error
		})
		if errCreate == nil {
			return nil
		}
		if db.IsUniqueViolationOn(errCreate, "invite_code") {
			continue
		}
		if db.IsUniqueViolation(errCreate) {
			return ErrEmailExists
		}
		return fmt.Errorf("accounts: create user: %w", errCreate)
	}
	return ErrInviteCodeExhausted
}
