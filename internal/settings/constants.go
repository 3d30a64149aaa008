package settings

import "github.com/shopspring/decimal"

// Referral and invite code rules.
const (
	// InviteCodeLength is the fixed length of every invite code.
	InviteCodeLength = 12
	// InviteCodeAlphabet lists the characters invite codes are drawn from.
	InviteCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// InviteCodeMaxAttempts bounds collision retries when generating a code.
	InviteCodeMaxAttempts = 10
	// MinPasswordLength is the shortest accepted password.
	MinPasswordLength = 6
)

// ReferralBonus is credited to both the new user and the referrer on a valid invite.
var ReferralBonus = decimal.RequireFromString("3.00")

// Rate limit defaults.
const (
	// DefaultRateLimitRedisPrefix is the fallback Redis key prefix.
	DefaultRateLimitRedisPrefix = "simr:rl"
)

// Payment rules.
const (
	// CurrencyCodeLength is the length of an ISO 4217 currency code.
	CurrencyCodeLength = 3
	// MinorUnitsPerMajor converts an amount to minor currency units.
	MinorUnitsPerMajor = 100
)

// PaymentMethodTypes is the allow-list of accepted payment method types.
var PaymentMethodTypes = []string{"card"}
