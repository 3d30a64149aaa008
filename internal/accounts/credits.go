package accounts

import (
	"context"
	"strings"

	"github.com/router-for-me/SIMReseller/internal/apperr"
	"github.com/router-for-me/SIMReseller/internal/db"
	"github.com/router-for-me/SIMReseller/internal/models"
	"github.com/router-for-me/SIMReseller/internal/security"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Credit change directions.
const (
	CreditIncrement = "increment"
	CreditDecrement = "decrement"
)

// creditPlaces is the number of decimal places stored for balances.
const creditPlaces = 2

// Balance statements round in SQL so SQLite, which evaluates NUMERIC columns as
// doubles, stores the same two-place value Postgres does.
const (
	creditAddExpr = "ROUND(credits + ?, 2)"
	creditSubExpr = "ROUND(credits - ?, 2)"
)

// DebitInput is the payload of a plain credit deduction.
type DebitInput struct {
	CreditsUsed *float64 `json:"creditsUsed" validate:"required,gte=0"`
}

// CreditChange describes a signed balance change.
type CreditChange struct {
	Action string  `json:"action" validate:"required,oneof=increment decrement"`
	Amount float64 `json:"amount" validate:"gt=0"`
}

// PasswordChange replaces the password after verifying the current one.
type PasswordChange struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
}

// UpdateInput is a partial profile update. At least one field must be set.
type UpdateInput struct {
	Name     *string         `json:"name" validate:"omitempty,min=1"`
	Credits  *CreditChange   `json:"credits" validate:"omitempty"`
	Password *PasswordChange `json:"password" validate:"omitempty"`
}

// DebitCredits subtracts the requested amount when the balance covers it.
// The check and the subtraction are one conditional statement, so concurrent
// debits can neither overdraw the balance nor lose an update.
func (s *Service) DebitCredits(ctx context.Context, userID uint64, in DebitInput) (*models.User, error) {
	if errValidate := apperr.Check(in); errValidate != nil {
		return nil, errValidate
	}
	change := CreditChange{Action: CreditDecrement, Amount: *in.CreditsUsed}

	var user *models.User
	errTx := db.WithTimeout(ctx, s.db, s.txTimeout, func(tx *gorm.DB) error {
		if errApply := s.applyCreditChange(tx, userID, change); errApply != nil {
			return errApply
		}
		loaded, errFind := findUser(tx, userID)
		if errFind != nil {
			return errFind
		}
		user = loaded
		return nil
	})
	if errTx != nil {
		return nil, classify(errTx, "An error occurred while updating credits.")
	}
	return user, nil
}

// AdjustCredits applies an increment or a guarded decrement to the balance.
func (s *Service) AdjustCredits(ctx context.Context, userID uint64, change CreditChange) (*models.User, error) {
	if errValidate := checkCreditChange(change); errValidate != nil {
		return nil, errValidate
	}

	var user *models.User
	errTx := db.WithTimeout(ctx, s.db, s.txTimeout, func(tx *gorm.DB) error {
		if errApply := s.applyCreditChange(tx, userID, change); errApply != nil {
			return errApply
		}
		loaded, errFind := findUser(tx, userID)
		if errFind != nil {
			return errFind
		}
		user = loaded
		return nil
	})
	if errTx != nil {
		return nil, classify(errTx, "An error occurred while updating credits.")
	}
	return user, nil
}

// UpdateProfile applies the name, credit and password changes of in together.
// Any failing part rolls back the others.
func (s *Service) UpdateProfile(ctx context.Context, userID uint64, in UpdateInput) (*models.User, error) {
	if in.Name != nil {
		trimmed := strings.TrimSpace(*in.Name)
		in.Name = &trimmed
	}
	if errValidate := apperr.Check(in); errValidate != nil {
		return nil, errValidate
	}
	if in.Name == nil && in.Credits == nil && in.Password == nil {
		return nil, ErrNothingToUpdate
	}
	if in.Credits != nil {
		if errValidate := checkCreditChange(*in.Credits); errValidate != nil {
			return nil, errValidate
		}
	}

	var newHash string
	if in.Password != nil {
		hash, errHash := security.HashPassword(in.Password.NewPassword)
		if errHash != nil {
			return nil, apperr.Unexpected("An error occurred while updating the user.", errHash)
		}
		newHash = hash
	}

	var user *models.User
	errTx := db.WithTimeout(ctx, s.db, s.txTimeout, func(tx *gorm.DB) error {
		var current models.User
		res := db.ForUpdate(tx).Where("id = ?", userID).Limit(1).Find(&current)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrUserNotFound
		}

		updates := map[string]any{}
		if in.Name != nil {
			updates["name"] = *in.Name
		}
		if in.Password != nil {
			if !security.CheckPassword(current.Password, in.Password.CurrentPassword) {
				return ErrIncorrectPassword
			}
			updates["password"] = newHash
		}
		if len(updates) > 0 {
			updates["updated_at"] = s.nowFn().UTC()
			if errUpdate := tx.Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error; errUpdate != nil {
				return errUpdate
			}
		}

		if in.Credits != nil {
			if errApply := s.applyCreditChange(tx, userID, *in.Credits); errApply != nil {
				return errApply
			}
		}

		loaded, errFind := findUser(tx, userID)
		if errFind != nil {
			return errFind
		}
		user = loaded
		return nil
	})
	if errTx != nil {
		return nil, classify(errTx, "An error occurred while updating the user.")
	}

	log.WithFields(log.Fields{
		"user_id":          userID,
		"name_changed":     in.Name != nil,
		"credits_changed":  in.Credits != nil,
		"password_changed": in.Password != nil,
	}).Info("user updated")
	return user, nil
}

// checkCreditChange validates change and rejects amounts that round to zero cents.
func checkCreditChange(change CreditChange) error {
	if errValidate := apperr.Check(change); errValidate != nil {
		return errValidate
	}
	if !roundAmount(change.Amount).IsPositive() {
		return ErrAmountTooSmall
	}
	return nil
}

func roundAmount(amount float64) decimal.Decimal {
	return decimal.NewFromFloat(amount).Round(creditPlaces)
}

// applyCreditChange runs the balance statement for change on tx. A decrement
// only matches when the balance covers it; a miss is then resolved into
// ErrUserNotFound or ErrInsufficientCredits.
func (s *Service) applyCreditChange(tx *gorm.DB, userID uint64, change CreditChange) error {
	amount := roundAmount(change.Amount)
	if amount.IsNegative() {
		return apperr.Validation("Amount must not be negative")
	}

	query := tx.Model(&models.User{}).Where("id = ?", userID)
	expr := gorm.Expr(creditAddExpr, amount)
	if change.Action == CreditDecrement {
		query = query.Where("credits >= ?", amount)
		expr = gorm.Expr(creditSubExpr, amount)
	}
	res := query.Updates(map[string]any{
		"credits":    expr,
		"updated_at": s.nowFn().UTC(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var count int64
	if errCount := tx.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; errCount != nil {
		return errCount
	}
	if count == 0 {
		return ErrUserNotFound
	}
	return ErrInsufficientCredits
}
