package accounts

import (
	"errors"

	"github.com/router-for-me/SIMReseller/internal/apperr"
	"github.com/router-for-me/SIMReseller/internal/db"
	"github.com/router-for-me/SIMReseller/internal/security"
)

// Service errors returned to callers.
var (
	ErrEmailExists         = apperr.New(apperr.KindConflict, "Email already exists")
	ErrInvalidInviteCode   = apperr.Validation("Invalid invite code")
	ErrInvalidCredentials  = apperr.New(apperr.KindAuth, "Invalid email or password")
	ErrUserNotFound        = apperr.New(apperr.KindNotFound, "User not found")
	ErrInsufficientCredits = apperr.New(apperr.KindInsufficientBalance, "Insufficient credits")
	ErrIncorrectPassword   = apperr.Validation("Current password is incorrect")
	ErrNothingToUpdate     = apperr.Validation("No update values provided")
	ErrAmountTooSmall      = apperr.Validation("Amount must be at least 0.01", apperr.FieldError{Field: "amount", Messages: []string{"must be at least 0.01"}})
	ErrTokenConfiguration  = apperr.New(apperr.KindConfiguration, "Server configuration error")
)

// ErrInviteCodeExhausted reports that every generation attempt collided.
var ErrInviteCodeExhausted = errors.New("accounts: failed to generate unique invite code")

// classify keeps service errors intact and folds everything else into a
// configuration or unexpected error.
func classify(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, security.ErrMissingSecret) {
		return apperr.Wrap(apperr.KindConfiguration, ErrTokenConfiguration.Message, err)
	}
	if errors.Is(err, db.ErrTxTimeout) {
		return apperr.Unexpected("Transaction timed out", err)
	}
	return apperr.Unexpected(message, err)
}
