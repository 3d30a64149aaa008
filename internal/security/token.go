package security

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/router-for-me/SIMReseller/internal/config"
)

var (
	// ErrMissingSecret indicates the issuer has no signing secret configured.
	ErrMissingSecret = errors.New("security: token secret not configured")
	// ErrInvalidToken indicates a malformed, expired or wrongly signed token.
	ErrInvalidToken = errors.New("security: invalid token")
)

// UserClaims binds a token to a user identifier.
type UserClaims struct {
	UserID uint64 `json:"userId"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 user tokens.
type TokenIssuer struct {
	secret []byte
	expiry time.Duration
	nowFn  func() time.Time
}

// NewTokenIssuer constructs a TokenIssuer from JWT settings.
func NewTokenIssuer(cfg config.JWTConfig) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(strings.TrimSpace(cfg.Secret)),
		expiry: cfg.Expiry,
		nowFn:  time.Now,
	}
}

// Issue signs a token for userID that expires after the configured duration.
func (i *TokenIssuer) Issue(userID uint64) (string, error) {
	if i == nil || len(i.secret) == 0 {
		return "", ErrMissingSecret
	}
	now := i.nowFn()
	claims := UserClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.expiry)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("security: sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies a token and returns the user identifier it carries.
func (i *TokenIssuer) Parse(tokenString string) (uint64, error) {
	if i == nil || len(i.secret) == 0 {
		return 0, ErrMissingSecret
	}
	claims := &UserClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.nowFn),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == 0 {
		return 0, ErrInvalidToken
	}
	return claims.UserID, nil
}
