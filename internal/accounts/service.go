// Package accounts implements user registration, authentication and credit
// balance changes.
package accounts

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/router-for-me/SIMReseller/internal/apperr"
	"github.com/router-for-me/SIMReseller/internal/config"
	"github.com/router-for-me/SIMReseller/internal/db"
	"github.com/router-for-me/SIMReseller/internal/models"
	"github.com/router-for-me/SIMReseller/internal/security"
	"github.com/router-for-me/SIMReseller/internal/settings"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// TokenIssuer signs session tokens for authenticated users.
type TokenIssuer interface {
	Issue(userID uint64) (string, error)
}

// Service owns the users table.
type Service struct {
	db        *gorm.DB
	tokens    TokenIssuer
	txTimeout time.Duration
	codes     inviteCodeGenerator
	nowFn     func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithCodeSource replaces the random invite code source.
func WithCodeSource(src CodeSource) Option {
	return func(s *Service) {
		if src != nil {
			s.codes.source = src
		}
	}
}

// WithTxTimeout overrides the per-transaction deadline.
func WithTxTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.txTimeout = timeout
		}
	}
}

// NewService constructs an accounts service.
func NewService(conn *gorm.DB, tokens TokenIssuer, opts ...Option) *Service {
	s := &Service{
		db:        conn,
		tokens:    tokens,
		txTimeout: config.DefaultTransactionTimeout,
		codes: inviteCodeGenerator{
			source:      RandomInviteCode,
			maxAttempts: settings.InviteCodeMaxAttempts,
		},
		nowFn: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterInput is the signup payload.
type RegisterInput struct {
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=6"`
	InviteCode string `json:"inviteCode" validate:"omitempty,len=12,alphanum,uppercase"`
}

// LoginInput is the login payload.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Session is a user together with a freshly issued token.
type Session struct {
	User  *models.User
	Token string
}

// Register creates a user, credits both sides of a valid referral and issues a
// token. Every write happens in one transaction and a failure at any step,
// including token signing, leaves the database unchanged.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = db.NormalizeEmail(in.Email)
	in.InviteCode = strings.TrimSpace(in.InviteCode)
	if errValidate := apperr.Check(in); errValidate != nil {
		return nil, errValidate
	}

	hash, errHash := security.HashPassword(in.Password)
	if errHash != nil {
		return nil, apperr.Unexpected("An error occurred while registering the user.", errHash)
	}

	var session *Session
	errTx := db.WithTimeout(ctx, s.db, s.txTimeout, func(tx *gorm.DB) error {
		var existing int64
		if errCount := tx.Model(&models.User{}).Where(db.LowerEqualsExpr("email"), in.Email).Count(&existing).Error; errCount != nil {
			return errCount
		}
		if existing > 0 {
			return ErrEmailExists
		}

		user := &models.User{
			Name:     in.Name,
			Email:    in.Email,
			Password: hash,
		}

		var referrer models.User
		if in.InviteCode != "" {
			res := tx.Where("invite_code = ?", in.InviteCode).Limit(1).Find(&referrer)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrInvalidInviteCode
			}
			code := referrer.InviteCode
			user.ReferredBy = &code
			user.Credits = settings.ReferralBonus
		}

		if errInsert := s.codes.insertUser(tx, user); errInsert != nil {
			return errInsert
		}

		if referrer.ID != 0 {
			res := tx.Model(&models.User{}).
				Where("id = ?", referrer.ID).
				Updates(map[string]any{
					"credits":    gorm.Expr(creditAddExpr, settings.ReferralBonus),
					"updated_at": s.nowFn().UTC(),
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrInvalidInviteCode
			}
		}

		token, errIssue := s.tokens.Issue(user.ID)
		if errIssue != nil {
			return errIssue
		}
		session = &Session{User: user, Token: token}
		return nil
	})
	if errTx != nil {
		return nil, classify(errTx, "An error occurred while registering the user.")
	}

	log.WithFields(log.Fields{
		"user_id":  session.User.ID,
		"referred": session.User.ReferredBy != nil,
	}).Info("user registered")
	return session, nil
}

// dummyHash is compared against when the email is unknown so that both
// login failures cost one bcrypt comparison.
var dummyHash = sync.OnceValue(func() string {
	hash, _ := security.HashPassword("simreseller-placeholder")
	return hash
})

// Login verifies credentials and issues a token. Unknown email and wrong
// password produce the same error.
func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	in.Email = db.NormalizeEmail(in.Email)
	if errValidate := apperr.Check(in); errValidate != nil {
		return nil, errValidate
	}

	var user models.User
	res := s.db.WithContext(ctx).Where(db.LowerEqualsExpr("email"), in.Email).Limit(1).Find(&user)
	if res.Error != nil {
		return nil, apperr.Unexpected("An error occurred while logging in.", res.Error)
	}
	if res.RowsAffected == 0 {
		security.CheckPassword(dummyHash(), in.Password)
		return nil, ErrInvalidCredentials
	}
	if !security.CheckPassword(user.Password, in.Password) {
		return nil, ErrInvalidCredentials
	}

	token, errIssue := s.tokens.Issue(user.ID)
	if errIssue != nil {
		return nil, classify(errIssue, "An error occurred while logging in.")
	}
	return &Session{User: &user, Token: token}, nil
}

// Profile loads the user with the given id.
func (s *Service) Profile(ctx context.Context, userID uint64) (*models.User, error) {
	user, errFind := findUser(s.db.WithContext(ctx), userID)
	if errFind != nil {
		return nil, classify(errFind, "An error occurred while loading the user.")
	}
	return user, nil
}

// Exists reports whether userID refers to a stored user.
func (s *Service) Exists(ctx context.Context, userID uint64) (bool, error) {
	var count int64
	if errCount := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; errCount != nil {
		return false, apperr.Unexpected("An error occurred while loading the user.", errCount)
	}
	return count > 0, nil
}

// findUser loads one user or returns ErrUserNotFound.
func findUser(conn *gorm.DB, userID uint64) (*models.User, error) {
	var user models.User
	res := conn.Where("id = ?", userID).Limit(1).Find(&user)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrUserNotFound
	}
	return &user, nil
}
