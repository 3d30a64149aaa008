package payments

import "context"

// CustomerRequest identifies the user a payment customer is created for.
type CustomerRequest struct {
	UserID uint64
	Email  string
	Name   string
}

// IntentRequest describes a payment intent in minor currency units.
type IntentRequest struct {
	AmountMinor int64
	Currency    string
	CustomerID  string
	MethodType  string
}

// Provider is the external payment API.
type Provider interface {
	CreateCustomer(ctx context.Context, req CustomerRequest) (string, error)
	CreatePaymentIntent(ctx context.Context, req IntentRequest) (string, error)
	CreateEphemeralKey(ctx context.Context, customerID string) (string, error)
}
