package payments

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/router-for-me/SIMReseller/internal/apperr"
	"github.com/router-for-me/SIMReseller/internal/config"
	"github.com/router-for-me/SIMReseller/internal/db"
	"github.com/router-for-me/SIMReseller/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeProvider struct {
	mu         sync.Mutex
	customers  []CustomerRequest
	intents    []IntentRequest
	keys       []string
	failIntent bool
}

func (f *fakeProvider) CreateCustomer(_ context.Context, req CustomerRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.customers = append(f.customers, req)
	return "cus_test_1", nil
}

func (f *fakeProvider) CreatePaymentIntent(_ context.Context, req IntentRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failIntent {
		return "", errors.New("card_declined")
	}
	f.intents = append(f.intents, req)
	return "pi_secret_1", nil
}

func (f *fakeProvider) CreateEphemeralKey(_ context.Context, customerID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, customerID)
	return "ek_secret_1", nil
}

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.customers) + len(f.intents) + len(f.keys)
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "payments-test.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))
	t.Cleanup(func() { _ = db.Close(conn) })
	return conn
}

func createUser(t *testing.T, conn *gorm.DB) *models.User {
	t.Helper()
	user := &models.User{Name: "Payer", Email: "payer@example.com", Password: "hash", InviteCode: "PAYER0000001", Credits: decimal.Zero}
	require.NoError(t, conn.Create(user).Error)
	return user
}

func validInput() IntentInput {
	return IntentInput{Amount: 12.345, Currency: "USD", PaymentMethodType: "card"}
}

func TestCreatePaymentIntent(t *testing.T) {
	conn := openTestDB(t)
	user := createUser(t, conn)
	provider := &fakeProvider{}
	svc := NewService(conn, provider, "pk_test_1")
	ctx := context.Background()

	result, err := svc.CreatePaymentIntent(ctx, user.ID, validInput())
	require.NoError(t, err)
	require.Equal(t, IntentResult{
		ClientSecret:    "pi_secret_1",
		EphemeralSecret: "ek_secret_1",
		CustomerID:      "cus_test_1",
		PublishableKey:  "pk_test_1",
	}, *result)

	require.Len(t, provider.intents, 1)
	require.Equal(t, int64(1235), provider.intents[0].AmountMinor)
	require.Equal(t, "usd", provider.intents[0].Currency)
	require.Equal(t, "cus_test_1", provider.intents[0].CustomerID)

	var stored models.User
	require.NoError(t, conn.First(&stored, user.ID).Error)
	require.NotNil(t, stored.StripeCustomerID)
	require.Equal(t, "cus_test_1", *stored.StripeCustomerID)

	// The stored customer is reused.
	_, err = svc.CreatePaymentIntent(ctx, user.ID, validInput())
	require.NoError(t, err)
	require.Len(t, provider.customers, 1)
	require.Len(t, provider.intents, 2)
}

func TestCreatePaymentIntent_InvalidInputNeverReachesProvider(t *testing.T) {
	conn := openTestDB(t)
	user := createUser(t, conn)
	provider := &fakeProvider{}
	svc := NewService(conn, provider, "pk_test_1")

	cases := map[string]struct {
		userID uint64
		in     IntentInput
	}{
		"zero amount":     {userID: user.ID, in: IntentInput{Amount: 0, Currency: "usd", PaymentMethodType: "card"}},
		"negative amount": {userID: user.ID, in: IntentInput{Amount: -5, Currency: "usd", PaymentMethodType: "card"}},
		"dust amount":     {userID: user.ID, in: IntentInput{Amount: 0.001, Currency: "usd", PaymentMethodType: "card"}},
		"empty currency":  {userID: user.ID, in: IntentInput{Amount: 5, PaymentMethodType: "card"}},
		"long currency":   {userID: user.ID, in: IntentInput{Amount: 5, Currency: "usdx", PaymentMethodType: "card"}},
		"method type":     {userID: user.ID, in: IntentInput{Amount: 5, Currency: "usd", PaymentMethodType: "paypal"}},
		"no user":         {userID: 0, in: validInput()},
		"unknown user":    {userID: 999, in: validInput()},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CreatePaymentIntent(context.Background(), tc.userID, tc.in)
			require.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		})
	}
	require.Zero(t, provider.calls())
}

func TestCreatePaymentIntent_NotConfigured(t *testing.T) {
	conn := openTestDB(t)
	user := createUser(t, conn)
	svc := NewService(conn, nil, "")

	_, err := svc.CreatePaymentIntent(context.Background(), user.ID, validInput())
	require.ErrorIs(t, err, ErrNotConfigured)
	require.Equal(t, apperr.KindConfiguration, apperr.KindOf(err))
}

func TestCreatePaymentIntent_ProviderFailure(t *testing.T) {
	conn := openTestDB(t)
	user := createUser(t, conn)
	svc := NewService(conn, &fakeProvider{failIntent: true}, "pk")

	_, err := svc.CreatePaymentIntent(context.Background(), user.ID, validInput())
	require.ErrorIs(t, err, ErrProvider)
	require.Contains(t, err.Error(), "card_declined")
}

func TestMinorUnits(t *testing.T) {
	cases := map[float64]int64{
		1:      100,
		0.5:    50,
		1.005:  101,
		19.99:  1999,
		12.344: 1234,
	}
	for amount, want := range cases {
		require.Equal(t, want, MinorUnits(amount), "amount %v", amount)
	}
}

func TestNewStripeProvider_DisabledWithoutKey(t *testing.T) {
	require.Nil(t, NewStripeProvider(config.StripeConfig{}))

	provider := NewStripeProvider(config.StripeConfig{SecretKey: "sk_test_x"})
	require.NotNil(t, provider)
	require.Equal(t, config.DefaultStripeAPIVersion, provider.apiVersion)
}
