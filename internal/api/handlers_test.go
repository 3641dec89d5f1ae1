package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sbkbank/transfer-service/internal/app"
	"github.com/sbkbank/transfer-service/internal/domain"
	"github.com/sbkbank/transfer-service/internal/store"
	"github.com/sbkbank/transfer-service/pkg/rabbitmq"
)

const testJWTSecret = "test-secret"

type nopPublisher struct{}

func (nopPublisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	return nil
}
func (nopPublisher) PublishTransferCompleted(ctx context.Context, event rabbitmq.TransferCompletedEvent) error {
	return nil
}
func (nopPublisher) Close() {}

type testEnv struct {
	repo   *store.MemoryRepository
	server http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo := store.NewMemoryRepository()
	svc := app.NewService(repo, repo, nopPublisher{}, 3)
	h := NewHandlers(svc, nil, 0)
	return &testEnv{repo: repo, server: Routes(h, testJWTSecret)}
}

func signToken(t *testing.T, userID uuid.UUID, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  userID.String(),
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) seedAccount(t *testing.T, number string, accType domain.AccountType, balance, dailyLimit int64, active bool) *domain.Account {
	t.Helper()
	account := &domain.Account{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		AccountNumber: number,
		Type:          accType,
		Balance:       balance,
		DailyLimit:    dailyLimit,
		IsActive:      active,
		CreatedAt:     time.Now().UTC(),
	}
	if err := e.repo.CreateAccount(context.Background(), account); err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return account
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health status %d", rec.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/transaction/history", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: status %d, want 401", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/transaction/history", "not-a-jwt", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: status %d, want 401", rec.Code)
	}

	// Token signed with a different secret must be rejected.
	other := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": uuid.NewString(), "role": "user", "exp": time.Now().Add(time.Hour).Unix(),
	})
	forged, err := other.SignedString([]byte("wrong-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	rec = env.do(t, http.MethodGet, "/transaction/history", forged, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("forged token: status %d, want 401", rec.Code)
	}
}

func TestTransferHandler_Success(t *testing.T) {
	env := newTestEnv(t)
	sender := env.seedAccount(t, "SBK100000001", domain.AccountTypeSavings, 500_000, 5_000_000, true)
	env.seedAccount(t, "SBK100000002", domain.AccountTypeSavings, 30_000, 5_000_000, true)

	rec := env.do(t, http.MethodPost, "/transaction/transfer", signToken(t, sender.UserID, "user"),
		domain.TransferRequest{ToAccountNumber: "SBK100000002", Amount: 120_000})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Message       string `json:"message"`
		TransactionID string `json:"transaction_id"`
		FromAccount   string `json:"from_account"`
		ToAccount     string `json:"to_account"`
		Amount        int64  `json:"amount"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Message != "Transfer successful" {
		t.Fatalf("unexpected message %q", resp.Message)
	}
	if _, err := uuid.Parse(resp.TransactionID); err != nil {
		t.Fatalf("transaction_id %q is not a uuid", resp.TransactionID)
	}
	if resp.FromAccount != "SBK100000001" || resp.ToAccount != "SBK100000002" || resp.Amount != 120_000 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestTransferHandler_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		senderType domain.AccountType
		balance    int64
		dailyLimit int64
		to         string
		amount     int64
		wantStatus int
	}{
		{"invalid amount", domain.AccountTypeSavings, 100_000, 5_000_000, "SBK100000002", 0, http.StatusBadRequest},
		{"insufficient balance", domain.AccountTypeSavings, 100, 5_000_000, "SBK100000002", 1_000, http.StatusBadRequest},
		{"daily limit exceeded", domain.AccountTypeSavings, 100_000, 500, "SBK100000002", 1_000, http.StatusBadRequest},
		{"fixed-deposit origin", domain.AccountTypeFixedDeposit, 100_000, 0, "SBK100000002", 1_000, http.StatusForbidden},
		{"unknown receiver", domain.AccountTypeSavings, 100_000, 5_000_000, "SBK999999999", 1_000, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			sender := env.seedAccount(t, "SBK100000001", tt.senderType, tt.balance, tt.dailyLimit, true)
			env.seedAccount(t, "SBK100000002", domain.AccountTypeSavings, 0, 5_000_000, true)

			rec := env.do(t, http.MethodPost, "/transaction/transfer", signToken(t, sender.UserID, "user"),
				domain.TransferRequest{ToAccountNumber: tt.to, Amount: tt.amount})
			if rec.Code != tt.wantStatus {
				t.Fatalf("status %d, want %d, body %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			var errBody map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &errBody); err != nil || errBody["error"] == "" {
				t.Fatalf("expected error body, got %s", rec.Body.String())
			}
		})
	}
}

func TestTransferHandler_NoAccountForCaller(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t, "SBK100000002", domain.AccountTypeSavings, 0, 5_000_000, true)

	rec := env.do(t, http.MethodPost, "/transaction/transfer", signToken(t, uuid.New(), "user"),
		domain.TransferRequest{ToAccountNumber: "SBK100000002", Amount: 1_000})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", rec.Code)
	}
}

func TestTransferHandler_WrongRole(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/transaction/transfer", signToken(t, uuid.New(), "admin"),
		domain.TransferRequest{ToAccountNumber: "SBK100000002", Amount: 1_000})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status %d, want 403", rec.Code)
	}
}

func TestTransferHandler_MalformedBody(t *testing.T) {
	env := newTestEnv(t)
	sender := env.seedAccount(t, "SBK100000001", domain.AccountTypeSavings, 100_000, 5_000_000, true)

	req := httptest.NewRequest(http.MethodPost, "/transaction/transfer", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer "+signToken(t, sender.UserID, "user"))
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
}

func TestOpenAccountHandler(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()

	rec := env.do(t, http.MethodPost, "/account", signToken(t, userID, "user"),
		domain.OpenAccountRequest{AccountType: domain.AccountTypeSavings})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	var account domain.Account
	if err := json.Unmarshal(rec.Body.Bytes(), &account); err != nil {
		t.Fatalf("decode account: %v", err)
	}
	if !domain.ValidAccountNumber(account.AccountNumber) || account.Balance != app.OpeningBalance {
		t.Fatalf("unexpected account: %+v", account)
	}

	rec = env.do(t, http.MethodPost, "/account", signToken(t, userID, "user"),
		domain.OpenAccountRequest{AccountType: domain.AccountType("bogus")})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid type: status %d, want 400", rec.Code)
	}
}

func TestHistoryHandler(t *testing.T) {
	env := newTestEnv(t)
	sender := env.seedAccount(t, "SBK100000001", domain.AccountTypeSavings, 100_000, 5_000_000, true)
	env.seedAccount(t, "SBK100000002", domain.AccountTypeSavings, 0, 5_000_000, true)

	rec := env.do(t, http.MethodPost, "/transaction/transfer", signToken(t, sender.UserID, "user"),
		domain.TransferRequest{ToAccountNumber: "SBK100000002", Amount: 10_000})
	if rec.Code != http.StatusCreated {
		t.Fatalf("setup transfer: status %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/transaction/history", signToken(t, sender.UserID, "user"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	var entries []domain.HistoryEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(entries) != 1 || entries[0].Type != "debit" || entries[0].Amount != 10_000 {
		t.Fatalf("unexpected history: %+v", entries)
	}

	rec = env.do(t, http.MethodGet, "/transaction/history", signToken(t, uuid.New(), "user"), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("no account: status %d, want 404", rec.Code)
	}
}

func TestAdminAccountHandler(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t, "SBK100000001", domain.AccountTypeSavings, 100_000, 5_000_000, false)
	adminToken := signToken(t, uuid.New(), "admin")

	rec := env.do(t, http.MethodGet, "/admin/account/SBK100000001", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	var view struct {
		Account domain.Account `json:"account"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.Account.AccountNumber != "SBK100000001" || view.Account.IsActive {
		t.Fatalf("unexpected account view: %+v", view.Account)
	}

	// Regular users cannot reach the admin endpoint.
	rec = env.do(t, http.MethodGet, "/admin/account/SBK100000001", signToken(t, uuid.New(), "user"), nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("user role: status %d, want 403", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/admin/account/bad-number", adminToken, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad format: status %d, want 400", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/admin/account/SBK000000009", adminToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown account: status %d, want 404", rec.Code)
	}
}

func TestAdminDeactivateAccountHandler(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t, "SBK100000001", domain.AccountTypeSavings, 100_000, 5_000_000, true)
	adminToken := signToken(t, uuid.New(), "admin")

	rec := env.do(t, http.MethodDelete, "/admin/account/SBK100000001", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	account, err := env.repo.FindByAccountNumber(context.Background(), "SBK100000001")
	if err != nil {
		t.Fatalf("lookup after deactivation: %v", err)
	}
	if account.IsActive {
		t.Fatal("account still active after DELETE")
	}

	rec = env.do(t, http.MethodDelete, "/admin/account/SBK100000001", signToken(t, uuid.New(), "user"), nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("user role: status %d, want 403", rec.Code)
	}
	rec = env.do(t, http.MethodDelete, "/admin/account/bad-number", adminToken, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad format: status %d, want 400", rec.Code)
	}
	rec = env.do(t, http.MethodDelete, "/admin/account/SBK000000009", adminToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown account: status %d, want 404", rec.Code)
	}
}

func TestAdminUpdateLimitHandler(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t, "SBK100000001", domain.AccountTypeSavings, 100_000, 5_000_000, true)
	adminToken := signToken(t, uuid.New(), "admin")

	rec := env.do(t, http.MethodPatch, "/admin/account/limit", adminToken,
		domain.UpdateLimitRequest{AccountNumber: "SBK100000001", DailyLimit: 2_500})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	var account domain.Account
	if err := json.Unmarshal(rec.Body.Bytes(), &account); err != nil {
		t.Fatalf("decode account: %v", err)
	}
	if account.DailyLimit != 2_500 {
		t.Fatalf("returned limit %d, want 2500", account.DailyLimit)
	}

	rec = env.do(t, http.MethodPatch, "/admin/account/limit", adminToken,
		domain.UpdateLimitRequest{AccountNumber: "SBK100000001", DailyLimit: -1})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("negative limit: status %d, want 400", rec.Code)
	}
	rec = env.do(t, http.MethodPatch, "/admin/account/limit", adminToken,
		domain.UpdateLimitRequest{AccountNumber: "not-a-number", DailyLimit: 1_000})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad format: status %d, want 400", rec.Code)
	}
	rec = env.do(t, http.MethodPatch, "/admin/account/limit", adminToken,
		domain.UpdateLimitRequest{AccountNumber: "SBK000000009", DailyLimit: 1_000})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown account: status %d, want 404", rec.Code)
	}
	rec = env.do(t, http.MethodPatch, "/admin/account/limit", signToken(t, uuid.New(), "user"),
		domain.UpdateLimitRequest{AccountNumber: "SBK100000001", DailyLimit: 1_000})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("user role: status %d, want 403", rec.Code)
	}
}
