package front

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/SIMReseller/internal/accounts"
	"github.com/router-for-me/SIMReseller/internal/config"
	"github.com/router-for-me/SIMReseller/internal/db"
	"github.com/router-for-me/SIMReseller/internal/models"
	"github.com/router-for-me/SIMReseller/internal/payments"
	"github.com/router-for-me/SIMReseller/internal/ratelimit"
	"github.com/router-for-me/SIMReseller/internal/security"
	"github.com/router-for-me/SIMReseller/internal/sims"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testServer struct {
	engine *gin.Engine
	conn   *gorm.DB
}

type response struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  []struct {
		Field    string   `json:"field"`
		Messages []string `json:"messages"`
	} `json:"errors"`
}

type userPayload struct {
	ID         uint64  `json:"id"`
	Email      string  `json:"email"`
	InviteCode string  `json:"inviteCode"`
	Credits    float64 `json:"credits"`
	ReferredBy *string `json:"referredBy"`
	Password   *string `json:"password"`
}

type sessionPayload struct {
	User  userPayload `json:"user"`
	Token string      `json:"token"`
}

type stubProvider struct{}

func (stubProvider) CreateCustomer(context.Context, payments.CustomerRequest) (string, error) {
	return "cus_stub", nil
}

func (stubProvider) CreatePaymentIntent(context.Context, payments.IntentRequest) (string, error) {
	return "pi_stub_secret", nil
}

func (stubProvider) CreateEphemeralKey(context.Context, string) (string, error) {
	return "ek_stub_secret", nil
}

type serverOptions struct {
	secret    string
	rateLimit int
	provider  payments.Provider
}

func newTestServer(t *testing.T, opts serverOptions) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "front-test.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))
	t.Cleanup(func() { _ = db.Close(conn) })

	if opts.secret == "" {
		opts.secret = "front-secret"
	}
	tokens := security.NewTokenIssuer(config.JWTConfig{Secret: opts.secret, Expiry: time.Hour})
	engine := NewEngine(Dependencies{
		DB:       conn,
		Tokens:   tokens,
		Accounts: accounts.NewService(conn, tokens),
		SIMs:     sims.NewService(conn, time.Second*5),
		Payments: payments.NewService(conn, opts.provider, "pk_test_front"),
		Limiter:  ratelimit.NewManager(config.RateLimitConfig{Limit: opts.rateLimit, Window: time.Minute}, nil, nil),
	})
	return &testServer{engine: engine, conn: conn}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, response) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, errMarshal := json.Marshal(body)
		require.NoError(t, errMarshal)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	var out response
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func (s *testServer) signup(t *testing.T, name, email, inviteCode string) sessionPayload {
	t.Helper()
	body := gin.H{"name": name, "email": email, "password": "secret1"}
	if inviteCode != "" {
		body["inviteCode"] = inviteCode
	}
	rec, out := s.do(t, http.MethodPost, "/auth/signup", "", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.True(t, out.Success)

	var session sessionPayload
	require.NoError(t, json.Unmarshal(out.Data, &session))
	return session
}

func (s *testServer) profile(t *testing.T, token string) userPayload {
	t.Helper()
	rec, out := s.do(t, http.MethodGet, "/user", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var data struct {
		User userPayload `json:"user"`
	}
	require.NoError(t, json.Unmarshal(out.Data, &data))
	return data.User
}

func TestReferralSignupScenario(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	a := s.signup(t, "A", "a@x.com", "")
	require.Zero(t, a.User.Credits)
	require.Len(t, a.User.InviteCode, 12)
	require.Nil(t, a.User.Password)
	require.NotEmpty(t, a.Token)

	b := s.signup(t, "B", "b@x.com", a.User.InviteCode)
	require.Equal(t, 3.0, b.User.Credits)
	require.NotNil(t, b.User.ReferredBy)
	require.Equal(t, a.User.InviteCode, *b.User.ReferredBy)

	require.Equal(t, 3.0, s.profile(t, a.Token).Credits)
	require.Equal(t, 3.0, s.profile(t, b.Token).Credits)
}

func TestSignupErrors(t *testing.T) {
	s := newTestServer(t, serverOptions{})
	s.signup(t, "A", "a@x.com", "")

	rec, out := s.do(t, http.MethodPost, "/auth/signup", "", gin.H{"name": "A2", "email": "A@X.COM", "password": "secret1"})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.False(t, out.Success)
	require.Equal(t, "Email already exists", out.Message)

	rec, out = s.do(t, http.MethodPost, "/auth/signup", "", gin.H{"name": "C", "email": "c@x.com", "password": "secret1", "inviteCode": "NOSUCHCODE12"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Invalid invite code", out.Message)

	rec, out = s.do(t, http.MethodPost, "/auth/signup", "", gin.H{"name": "C", "email": "nope", "password": "1"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Len(t, out.Errors, 2)

	var count int64
	require.NoError(t, s.conn.Model(&models.User{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestLoginEndpoint(t *testing.T) {
	s := newTestServer(t, serverOptions{})
	a := s.signup(t, "A", "a@x.com", "")

	rec, out := s.do(t, http.MethodPost, "/auth/login", "", gin.H{"email": "a@x.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, rec.Code)
	var session sessionPayload
	require.NoError(t, json.Unmarshal(out.Data, &session))
	require.Equal(t, a.User.ID, session.User.ID)

	rec, wrong := s.do(t, http.MethodPost, "/auth/login", "", gin.H{"email": "a@x.com", "password": "badpass"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	rec, unknown := s.do(t, http.MethodPost, "/auth/login", "", gin.H{"email": "z@x.com", "password": "badpass"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, wrong.Message, unknown.Message)
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestServer(t, serverOptions{})
	a := s.signup(t, "A", "a@x.com", "")

	rec, out := s.do(t, http.MethodGet, "/user", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.False(t, out.Success)

	req := httptest.NewRequest(http.MethodGet, "/user", nil)
	req.Header.Set("Authorization", "Token "+a.Token)
	raw := httptest.NewRecorder()
	s.engine.ServeHTTP(raw, req)
	require.Equal(t, http.StatusUnauthorized, raw.Code)

	rec, _ = s.do(t, http.MethodGet, "/user", "not-a-jwt", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	foreign := security.NewTokenIssuer(config.JWTConfig{Secret: "other-secret", Expiry: time.Hour})
	forged, err := foreign.Issue(a.User.ID)
	require.NoError(t, err)
	rec, _ = s.do(t, http.MethodGet, "/user", forged, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	require.NoError(t, s.conn.Delete(&models.User{}, a.User.ID).Error)
	rec, out = s.do(t, http.MethodGet, "/user", a.Token, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Unauthorized: User not found", out.Message)
}

func TestAuthMiddleware_MissingSecret(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	tokens := security.NewTokenIssuer(config.JWTConfig{Expiry: time.Hour})
	engine.GET("/user", userAuthMiddleware(tokens, nil), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/user", nil)
	req.Header.Set("Authorization", "Bearer abc.def.ghi")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "Server configuration error")
}

func TestCreditsEndpoint(t *testing.T) {
	s := newTestServer(t, serverOptions{})
	a := s.signup(t, "A", "a@x.com", "")
	b := s.signup(t, "B", "b@x.com", a.User.InviteCode)

	rec, out := s.do(t, http.MethodPost, "/user/credits", b.Token, gin.H{"creditsUsed": 5})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Insufficient credits", out.Message)

	rec, out = s.do(t, http.MethodPost, "/user/credits", b.Token, gin.H{"creditsUsed": 1.25})
	require.Equal(t, http.StatusOK, rec.Code)
	var data struct {
		User userPayload `json:"user"`
	}
	require.NoError(t, json.Unmarshal(out.Data, &data))
	require.Equal(t, 1.75, data.User.Credits)

	rec, _ = s.do(t, http.MethodPost, "/user/credits", b.Token, gin.H{"creditsUsed": "lots"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = s.do(t, http.MethodPost, "/user/credits", b.Token, gin.H{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUserUpdateEndpoint(t *testing.T) {
	s := newTestServer(t, serverOptions{})
	a := s.signup(t, "A", "a@x.com", "")

	rec, _ := s.do(t, http.MethodPost, "/user/update", a.Token, gin.H{})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, out := s.do(t, http.MethodPost, "/user/update", a.Token, gin.H{
		"name":    "Alice",
		"credits": gin.H{"action": "increment", "amount": 10},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.True(t, out.Success)
	require.Equal(t, 10.0, s.profile(t, a.Token).Credits)

	rec, out = s.do(t, http.MethodPost, "/user/update", a.Token, gin.H{
		"password": gin.H{"currentPassword": "wrong1", "newPassword": "secret2"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Current password is incorrect", out.Message)
}

func TestSIMEndpoints(t *testing.T) {
	s := newTestServer(t, serverOptions{})
	owner := s.signup(t, "A", "a@x.com", "")
	other := s.signup(t, "B", "b@x.com", "")

	rec, out := s.do(t, http.MethodPost, "/sims", owner.Token, gin.H{"orderNo": "ORD-1", "iccid": "ICC-1", "transactionId": "pi_1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		ID      uint64  `json:"id"`
		OrderNo string  `json:"orderNo"`
		ICCID   *string `json:"iccid"`
	}
	require.NoError(t, json.Unmarshal(out.Data, &created))
	path := "/sims/" + strconv.FormatUint(created.ID, 10)

	rec, out = s.do(t, http.MethodPost, "/sims", other.Token, gin.H{"orderNo": "ORD-2", "iccid": "ICC-1", "transactionId": "pi_2"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Len(t, out.Errors, 1)
	require.Equal(t, "iccid", out.Errors[0].Field)

	rec, _ = s.do(t, http.MethodGet, path, owner.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, foreignOut := s.do(t, http.MethodGet, path, other.Token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	rec, missingOut := s.do(t, http.MethodGet, "/sims/99999", owner.Token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, missingOut.Message, foreignOut.Message)

	rec, _ = s.do(t, http.MethodPut, path, owner.Token, gin.H{"id": created.ID})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = s.do(t, http.MethodPut, path, owner.Token, gin.H{"id": created.ID + 1, "transactionId": "pi_9"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = s.do(t, http.MethodPut, path, other.Token, gin.H{"transactionId": "pi_9"})
	require.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = s.do(t, http.MethodPut, path, owner.Token, gin.H{"transactionId": "pi_9"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, out = s.do(t, http.MethodGet, "/sims", owner.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []struct {
		TransactionID string `json:"transactionId"`
	}
	require.NoError(t, json.Unmarshal(out.Data, &list))
	require.Len(t, list, 1)
	require.Equal(t, "pi_9", list[0].TransactionID)

	rec, _ = s.do(t, http.MethodDelete, path, other.Token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = s.do(t, http.MethodDelete, path, owner.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = s.do(t, http.MethodDelete, path, owner.Token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/sims/abc", owner.Token, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, out = s.do(t, http.MethodPost, "/sims", owner.Token, gin.H{"orderNo": "ORD-3", "transactionId": "pi_3"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var second struct {
		ID uint64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(out.Data, &second))

	rec, out = s.do(t, http.MethodPut, "/sims/abc", owner.Token, gin.H{"id": second.ID, "transactionId": "pi_hijack"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Invalid or missing ID", out.Message)
	rec, out = s.do(t, http.MethodGet, "/sims/"+strconv.FormatUint(second.ID, 10), owner.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var unchanged struct {
		TransactionID string `json:"transactionId"`
	}
	require.NoError(t, json.Unmarshal(out.Data, &unchanged))
	require.Equal(t, "pi_3", unchanged.TransactionID)
}

func TestPaymentIntentEndpoint(t *testing.T) {
	s := newTestServer(t, serverOptions{provider: stubProvider{}})
	a := s.signup(t, "A", "a@x.com", "")

	rec, out := s.do(t, http.MethodPost, "/stripe/create-payment-intent", a.Token, gin.H{"amount": 10, "currency": "usd", "payment_method_type": "card"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result payments.IntentResult
	require.NoError(t, json.Unmarshal(out.Data, &result))
	require.Equal(t, "pi_stub_secret", result.ClientSecret)
	require.Equal(t, "ek_stub_secret", result.EphemeralSecret)
	require.Equal(t, "cus_stub", result.CustomerID)
	require.Equal(t, "pk_test_front", result.PublishableKey)

	rec, _ = s.do(t, http.MethodPost, "/stripe/create-payment-intent", a.Token, gin.H{"amount": 10, "currency": "usd", "payment_method_type": "paypal"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPaymentIntentEndpoint_NotConfigured(t *testing.T) {
	s := newTestServer(t, serverOptions{})
	a := s.signup(t, "A", "a@x.com", "")

	rec, out := s.do(t, http.MethodPost, "/stripe/create-payment-intent", a.Token, gin.H{"amount": 10, "currency": "usd", "payment_method_type": "card"})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "Server configuration error", out.Message)
}

func TestAuthRateLimit(t *testing.T) {
	s := newTestServer(t, serverOptions{rateLimit: 2})

	for i := 0; i < 2; i++ {
		rec, _ := s.do(t, http.MethodPost, "/auth/login", "", gin.H{"email": "a@x.com", "password": "secret1"})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec, out := s.do(t, http.MethodPost, "/auth/login", "", gin.H{"email": "a@x.com", "password": "secret1"})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.False(t, out.Success)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Signup has its own budget.
	s.signup(t, "A", "a@x.com", "")
}

func TestHealthzAndRequestID(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))

	rec, _ = s.do(t, http.MethodGet, "/healthz", "", nil)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
