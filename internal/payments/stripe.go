package payments

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/router-for-me/SIMReseller/internal/config"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
)

// StripeProvider implements Provider on the Stripe API.
type StripeProvider struct {
	api        *client.API
	apiVersion string
}

// NewStripeProvider builds a Stripe client from cfg. It returns nil when no
// secret key is configured.
func NewStripeProvider(cfg config.StripeConfig) *StripeProvider {
	if !cfg.Enabled() {
		return nil
	}
	version := strings.TrimSpace(cfg.APIVersion)
	if version == "" {
		version = config.DefaultStripeAPIVersion
	}
	return &StripeProvider{
		api:        client.New(strings.TrimSpace(cfg.SecretKey), nil),
		apiVersion: version,
	}
}

// CreateCustomer creates a Stripe customer tagged with the user id.
func (p *StripeProvider) CreateCustomer(ctx context.Context, req CustomerRequest) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(req.Email),
		Name:  stripe.String(req.Name),
	}
	params.Context = ctx
	params.AddMetadata("user_id", strconv.FormatUint(req.UserID, 10))

	customer, err := p.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create customer: %w", err)
	}
	return customer.ID, nil
}

// CreatePaymentIntent creates a payment intent and returns its client secret.
func (p *StripeProvider) CreatePaymentIntent(ctx context.Context, req IntentRequest) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(req.AmountMinor),
		Currency:           stripe.String(req.Currency),
		Customer:           stripe.String(req.CustomerID),
		PaymentMethodTypes: stripe.StringSlice([]string{req.MethodType}),
	}
	params.Context = ctx

	intent, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create payment intent: %w", err)
	}
	return intent.ClientSecret, nil
}

// CreateEphemeralKey creates a customer scoped ephemeral key and returns its secret.
func (p *StripeProvider) CreateEphemeralKey(ctx context.Context, customerID string) (string, error) {
	params := &stripe.EphemeralKeyParams{
		Customer:      stripe.String(customerID),
		StripeVersion: stripe.String(p.apiVersion),
	}
	params.Context = ctx

	key, err := p.api.EphemeralKeys.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create ephemeral key: %w", err)
	}
	return key.Secret, nil
}
