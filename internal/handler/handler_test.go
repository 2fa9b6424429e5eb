package handler

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

	"ticketwallet/internal/config"
	"ticketwallet/internal/infrastructure/database"
	"ticketwallet/internal/infrastructure/lock"
	"ticketwallet/internal/model"
	"ticketwallet/internal/repository"
	"ticketwallet/internal/service"
	"ticketwallet/internal/ticket"
	"ticketwallet/pkg/response"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router      *gin.Engine
	accountRepo *repository.AccountRepository
	ledgerRepo  *repository.LedgerRepository
}

// ticketBackend 模拟活动服务：7 号票 50000，其余 404
func ticketBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tickets/7", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ticket.Ticket{ID: 7, EventID: "ev-1", Name: "Concert A", Price: 50000})
	})
	mux.HandleFunc("/api/tickets/7/purchase", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		_ = json.NewEncoder(w).Encode(ticket.Ticket{ID: 7, EventID: "ev-1", Name: "Concert A", Price: 50000})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := database.Open(&config.DatabaseConfig{
		Driver:   "sqlite",
		Path:     filepath.Join(t.TempDir(), "handler.db"),
		LogLevel: "silent",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	tickets, err := ticket.NewClient(ticketBackend(t).URL, 2*time.Second)
	require.NoError(t, err)

	accountRepo := repository.NewAccountRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)
	balance := service.NewBalanceService(accountRepo)

	h := NewHandler(
		service.NewAccountService(accountRepo),
		service.NewTopUpService(db, accountRepo, ledgerRepo, outboxRepo, balance,
			service.NewTopUpFactory(service.DefaultCustomTopUpMin, service.DefaultCustomTopUpMax), "ledger-events"),
		service.NewPurchaseService(db, accountRepo, ledgerRepo, outboxRepo, balance,
			tickets, tickets, lock.NewAccountLocker(rdb, 5*time.Second), "ledger-events"),
		service.NewTransactionService(ledgerRepo),
	)

	return &testServer{
		router:      SetupRouter(h, testSecret),
		accountRepo: accountRepo,
		ledgerRepo:  ledgerRepo,
	}
}

func token(t *testing.T, accountID int64, role string) string {
	t.Helper()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(accountID, 10),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (s *testServer) do(t *testing.T, method, path, bearer string, body interface{}) (*httptest.ResponseRecorder, response.Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp response.Response
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func (s *testServer) seed(t *testing.T, id, balance int64) {
	t.Helper()
	require.NoError(t, s.accountRepo.Save(context.Background(), nil, &model.Account{ID: id, Balance: balance}))
}

func TestHealthIsPublic(t *testing.T) {
	s := newTestServer(t)
	w, _ := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuth(t *testing.T) {
	s := newTestServer(t)

	w, resp := s.do(t, http.MethodGet, "/api/v1/wallet/balance", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, response.CodeUnauthorized, resp.Code)

	w, _ = s.do(t, http.MethodGet, "/api/v1/wallet/balance", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "1"},
	}).SignedString([]byte("other-secret"))
	require.NoError(t, err)
	w, _ = s.do(t, http.MethodGet, "/api/v1/wallet/balance", forged, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestParseToken(t *testing.T) {
	caller, err := parseToken(token(t, 42, "admin"), testSecret)
	require.NoError(t, err)
	assert.Equal(t, service.Caller{AccountID: 42, Privileged: true}, caller)

	caller, err = parseToken(token(t, 42, RoleUser), testSecret)
	require.NoError(t, err)
	assert.False(t, caller.Privileged)

	_, err = parseToken(token(t, 42, RoleAdmin), "")
	assert.Error(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Role: RoleUser}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = parseToken(noSubject, testSecret)
	assert.Error(t, err)
}

func TestWalletFlow(t *testing.T) {
	s := newTestServer(t)
	admin := token(t, 100, RoleAdmin)
	user := token(t, 1, RoleUser)

	w, _ := s.do(t, http.MethodPost, "/api/v1/accounts", user, gin.H{"account_id": 1})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(t, http.MethodPost, "/api/v1/accounts", admin, gin.H{"account_id": 1})
	require.Equal(t, http.StatusOK, w.Code)

	w, resp := s.do(t, http.MethodPost, "/api/v1/wallet/topup", user, gin.H{"amount": 50000, "type": "fixed"})
	require.Equal(t, http.StatusOK, w.Code)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(50000), data["new_balance"])
	assert.Equal(t, model.EntryStatusSuccess, data["status"])

	w, resp = s.do(t, http.MethodPost, "/api/v1/wallet/topup", user, gin.H{"amount": 5000, "type": "CUSTOM"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.CodeInvalidAmount, resp.Code)
	assert.Equal(t, "Custom top-up amount must be between 10,000 and 1,000,000", resp.Message)

	w, resp = s.do(t, http.MethodPost, "/api/v1/wallet/tickets/7/purchase", user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	data = resp.Data.(map[string]interface{})
	assert.Equal(t, float64(0), data["new_balance"])
	assert.Equal(t, "ev-1", data["event_id"])

	w, resp = s.do(t, http.MethodPost, "/api/v1/wallet/tickets/7/purchase", user, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.CodeBalanceNotEnough, resp.Code)

	w, resp = s.do(t, http.MethodPost, "/api/v1/wallet/tickets/99/purchase", user, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, response.CodeTicketNotFound, resp.Code)

	w, resp = s.do(t, http.MethodGet, "/api/v1/wallet/balance", user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), resp.Data.(map[string]interface{})["balance"])

	w, resp = s.do(t, http.MethodGet, "/api/v1/transactions/me", user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp.Data, 5)
}

func TestPurchaseBadTicketID(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, 1, 0)

	w, resp := s.do(t, http.MethodPost, "/api/v1/wallet/tickets/abc/purchase", token(t, 1, RoleUser), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.CodeParamError, resp.Code)
}

func TestTransactionsEndpoints(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	for _, e := range []*model.LedgerEntry{
		{ID: "e1", AccountID: 1, Amount: 10000, Type: model.EntryTypeTopUp, Status: model.EntryStatusSuccess, Timestamp: time.Now()},
		{ID: "e2", AccountID: 2, Amount: 20000, Type: model.EntryTypeTopUp, Status: model.EntryStatusFailed, Timestamp: time.Now()},
	} {
		require.NoError(t, s.ledgerRepo.Create(ctx, nil, e))
	}

	admin := token(t, 100, RoleAdmin)
	owner := token(t, 1, RoleUser)
	other := token(t, 2, RoleUser)

	w, resp := s.do(t, http.MethodGet, "/api/v1/transactions", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp.Data, 2)

	w, _ = s.do(t, http.MethodGet, "/api/v1/transactions", owner, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, resp = s.do(t, http.MethodGet, "/api/v1/transactions/user/2", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp.Data, 1)

	w, resp = s.do(t, http.MethodGet, "/api/v1/transactions/status/failed", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp.Data, 1)

	w, _ = s.do(t, http.MethodGet, "/api/v1/transactions/status/unknown", admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodGet, "/api/v1/transactions/e1", owner, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodGet, "/api/v1/transactions/e1", other, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(t, http.MethodGet, "/api/v1/transactions/missing", admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = s.do(t, http.MethodPut, "/api/v1/transactions/e1/fail", admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodPut, "/api/v1/transactions/missing/fail", admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = s.do(t, http.MethodDelete, "/api/v1/transactions/e2", other, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(t, http.MethodDelete, "/api/v1/transactions/e2", admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodDelete, "/api/v1/transactions/e2", admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
