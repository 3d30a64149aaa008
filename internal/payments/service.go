// Package payments creates payment intents for authenticated users.
package payments

import (
	"context"
	"slices"
	"strings"

	"github.com/router-for-me/SIMReseller/internal/apperr"
	"github.com/router-for-me/SIMReseller/internal/models"
	"github.com/router-for-me/SIMReseller/internal/settings"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Service errors.
var (
	ErrNotConfigured     = apperr.New(apperr.KindConfiguration, "Payment provider is not configured")
	ErrInvalidAmount     = apperr.Validation("Invalid amount", apperr.FieldError{Field: "amount", Messages: []string{"Amount must be positive"}})
	ErrInvalidMethodType = apperr.Validation("Invalid payment method type", apperr.FieldError{Field: "payment_method_type", Messages: []string{"Invalid payment method type"}})
	ErrInvalidUser       = apperr.Validation("Invalid user authentication")
	ErrProvider          = apperr.New(apperr.KindUnexpected, "Failed to create payment intent")
)

// IntentInput is the payment intent payload.
type IntentInput struct {
	Amount            float64 `json:"amount" validate:"gt=0"`
	Currency          string  `json:"currency" validate:"required,len=3,alpha"`
	PaymentMethodType string  `json:"payment_method_type" validate:"required"`
}

// IntentResult carries what the client needs to confirm the payment.
type IntentResult struct {
	ClientSecret    string `json:"clientSecret"`
	EphemeralSecret string `json:"ephemeralSecret"`
	CustomerID      string `json:"customerId"`
	PublishableKey  string `json:"publishableKey"`
}

// Service bridges users to the payment provider.
type Service struct {
	db             *gorm.DB
	provider       Provider
	publishableKey string
}

// NewService constructs a payment service. A nil provider makes every
// request fail with ErrNotConfigured.
func NewService(conn *gorm.DB, provider Provider, publishableKey string) *Service {
	return &Service{db: conn, provider: provider, publishableKey: strings.TrimSpace(publishableKey)}
}

// CreatePaymentIntent validates in, makes sure userID has a provider customer
// and creates an intent plus an ephemeral key for it. Invalid input never
// reaches the provider.
func (s *Service) CreatePaymentIntent(ctx context.Context, userID uint64, in IntentInput) (*IntentResult, error) {
	in.Currency = strings.ToLower(strings.TrimSpace(in.Currency))
	in.PaymentMethodType = strings.TrimSpace(in.PaymentMethodType)
	if errValidate := apperr.Check(in); errValidate != nil {
		return nil, errValidate
	}
	if !slices.Contains(settings.PaymentMethodTypes, in.PaymentMethodType) {
		return nil, ErrInvalidMethodType
	}
	amountMinor := MinorUnits(in.Amount)
	if amountMinor <= 0 {
		return nil, ErrInvalidAmount
	}
	if userID == 0 {
		return nil, ErrInvalidUser
	}
	if s.provider == nil {
		return nil, ErrNotConfigured
	}

	var user models.User
	res := s.db.WithContext(ctx).Where("id = ?", userID).Limit(1).Find(&user)
	if res.Error != nil {
		return nil, apperr.Unexpected("Failed to load user", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrInvalidUser
	}

	customerID, errCustomer := s.ensureCustomer(ctx, &user)
	if errCustomer != nil {
		return nil, errCustomer
	}

	clientSecret, errIntent := s.provider.CreatePaymentIntent(ctx, IntentRequest{
		AmountMinor: amountMinor,
		Currency:    in.Currency,
		CustomerID:  customerID,
		MethodType:  in.PaymentMethodType,
	})
	if errIntent != nil {
		return nil, apperr.Wrap(ErrProvider.Kind, ErrProvider.Message, errIntent)
	}
	ephemeralSecret, errKey := s.provider.CreateEphemeralKey(ctx, customerID)
	if errKey != nil {
		return nil, apperr.Wrap(ErrProvider.Kind, ErrProvider.Message, errKey)
	}

	log.WithFields(log.Fields{
		"user_id":      userID,
		"amount_minor": amountMinor,
		"currency":     in.Currency,
	}).Info("payment intent created")
	return &IntentResult{
		ClientSecret:    clientSecret,
		EphemeralSecret: ephemeralSecret,
		CustomerID:      customerID,
		PublishableKey:  s.publishableKey,
	}, nil
}

// ensureCustomer returns the stored customer id of user, creating and storing
// one on first use. When a concurrent request stored one first, that id wins.
func (s *Service) ensureCustomer(ctx context.Context, user *models.User) (string, error) {
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		return *user.StripeCustomerID, nil
	}

	customerID, errCreate := s.provider.CreateCustomer(ctx, CustomerRequest{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
	})
	if errCreate != nil {
		return "", apperr.Wrap(ErrProvider.Kind, ErrProvider.Message, errCreate)
	}

	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND (stripe_customer_id IS NULL OR stripe_customer_id = '')", user.ID).
		Update("stripe_customer_id", customerID)
	if res.Error != nil {
		return "", apperr.Unexpected("Failed to store payment customer", res.Error)
	}
	if res.RowsAffected > 0 {
		user.StripeCustomerID = &customerID
		return customerID, nil
	}

	var stored models.User
	if errReload := s.db.WithContext(ctx).Select("id", "stripe_customer_id").Where("id = ?", user.ID).First(&stored).Error; errReload != nil {
		return "", apperr.Unexpected("Failed to load payment customer", errReload)
	}
	if stored.StripeCustomerID == nil || *stored.StripeCustomerID == "" {
		return "", apperr.Unexpected("Failed to store payment customer", nil)
	}
	log.WithFields(log.Fields{
		"user_id":         user.ID,
		"orphan_customer": customerID,
		"stored_customer": *stored.StripeCustomerID,
	}).Warn("payment customer created concurrently; keeping stored id")
	user.StripeCustomerID = stored.StripeCustomerID
	return *stored.StripeCustomerID, nil
}

// MinorUnits converts a major-unit amount to minor units, rounding half away from zero.
func MinorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).
		Mul(decimal.NewFromInt(settings.MinorUnitsPerMajor)).
		Round(0).
		IntPart()
}
