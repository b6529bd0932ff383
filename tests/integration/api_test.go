package integration

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	httpHandler "wallet-ledger-service/internal/adapter/http/handler"
	redisStorage "wallet-ledger-service/internal/adapter/storage/redis"
	"wallet-ledger-service/internal/core/ports"
	"wallet-ledger-service/internal/service"
	"wallet-ledger-service/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testWebhookSecret = "whsec_integration_secret"
	processedTTL      = 24 * time.Hour
)

// testApp builds the full application stack: real HTTP layer, middleware,
// services, and Redis stores (miniredis), backed by the transactional
// in-memory storage from inmemory_repos.go.
type testApp struct {
	server   *httptest.Server
	redis    *miniredis.Miniredis
	store    *memoryStore
	tokenSvc ports.TokenService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	refCache := redisStorage.NewReferenceCache(rdb)

	store := newMemoryStore()
	walletRepo := newMemoryWalletRepo(store)
	txRepo := newMemoryTransactionRepo(store)
	eventLogRepo := newMemoryEventLogRepo(store)
	transactor := newMemoryTransactor(store)

	log := logger.New("error", false)
	sigSvc := service.NewHMACSignatureService()
	tokenSvc := service.NewJWTTokenService("test-jwt-secret-key-32bytes!!", 24*time.Hour, "test-issuer")
	verifierSvc := service.NewEventVerifier(testWebhookSecret, 5*time.Minute, sigSvc)
	creditSvc := service.NewCreditService(txRepo, walletRepo, refCache, transactor, processedTTL, log)
	dispatcherSvc := service.NewDispatcherService(creditSvc, eventLogRepo, log)
	reportingSvc := service.NewReportingService(txRepo, walletRepo)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		VerifierSvc:    verifierSvc,
		DispatcherSvc:  dispatcherSvc,
		ReportingSvc:   reportingSvc,
		TokenSvc:       tokenSvc,
		HealthCheckers: []ports.HealthChecker{redisStorage.NewHealthCheck(rdb)},
		Logger:         log,
	})

	return &testApp{
		server:   httptest.NewServer(router),
		redis:    mr,
		store:    store,
		tokenSvc: tokenSvc,
	}
}

func (a *testApp) close() {
	a.server.Close()
	a.redis.Close()
}

// signPayload builds the Payment-Signature header the processor would send.
func signPayload(payload string, at time.Time) string {
	ts := at.Unix()
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func walletEventPayload(eventID, reference, userID string, amount int64) string {
	return fmt.Sprintf(`{
		"id": %q,
		"type": "payment_intent.succeeded",
		"data": {"object": {
			"id": %q,
			"amount": %d,
			"currency": "usd",
			"metadata": {"purpose": "wallet", "user_id": %q}
		}}
	}`, eventID, reference, amount, userID)
}

type ackBody struct {
	Received      bool   `json:"received"`
	Status        string `json:"status"`
	Reason        string `json:"reason"`
	TransactionID string `json:"transaction_id"`
}

func (a *testApp) deliver(t *testing.T, payload string) (int, ackBody) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, a.server.URL+"/webhooks/payments", strings.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Payment-Signature", signPayload(payload, time.Now()))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var envelope struct {
		Data ackBody `json:"data"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&envelope)
	return resp.StatusCode, envelope.Data
}

func (a *testApp) authedGet(t *testing.T, path string, out any) int {
	t.Helper()
	token, _, err := a.tokenSvc.Generate("ops-reader")
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, a.server.URL+path, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
		if len(envelope.Data) > 0 {
			require.NoError(t, json.Unmarshal(envelope.Data, out))
		}
	}
	return resp.StatusCode
}

func decodeJSON(resp *http.Response, out any) error {
	return json.NewDecoder(resp.Body).Decode(out)
}

type balanceBody struct {
	UserID   string `json:"user_id"`
	Balance  int64  `json:"balance"`
	Currency string `json:"currency"`
}

func TestIntegration_HealthCheck(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	resp, err := http.Get(app.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
}

func TestIntegration_WebhookCreditsWallet(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	code, ack := app.deliver(t, walletEventPayload("evt_1", "pi_100", "u1", 2500))
	require.Equal(t, http.StatusOK, code)
	assert.True(t, ack.Received)
	assert.Equal(t, "APPLIED", ack.Status)
	assert.NotEmpty(t, ack.TransactionID)

	var balance balanceBody
	code = app.authedGet(t, "/api/v1/wallets/u1", &balance)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(2500), balance.Balance)
	assert.Equal(t, "usd", balance.Currency)
}

func TestIntegration_RedeliveryIsIdempotent(t *testing.T) {
	app := newTestApp(t)
	defer app.close()
	payload := walletEventPayload("evt_1", "pi_100", "u1", 2500)

	code, ack := app.deliver(t, payload)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "APPLIED", ack.Status)

	// Processor redelivers the same event.
	code, ack = app.deliver(t, payload)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ALREADY_APPLIED", ack.Status)

	var balance balanceBody
	app.authedGet(t, "/api/v1/wallets/u1", &balance)
	assert.Equal(t, int64(2500), balance.Balance, "balance must be credited exactly once")

	var stats struct {
		TotalDeposits int64 `json:"total_deposits"`
	}
	app.authedGet(t, "/api/v1/wallets/u1/stats", &stats)
	assert.Equal(t, int64(1), stats.TotalDeposits)
}

func TestIntegration_RedeliveryAfterCacheExpiry(t *testing.T) {
	app := newTestApp(t)
	defer app.close()
	payload := walletEventPayload("evt_1", "pi_100", "u1", 2500)

	code, ack := app.deliver(t, payload)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "APPLIED", ack.Status)

	// The cached reference expires; the ledger remains the source of truth.
	app.redis.FastForward(processedTTL + time.Hour)

	code, ack = app.deliver(t, payload)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ALREADY_APPLIED", ack.Status)

	var balance balanceBody
	app.authedGet(t, "/api/v1/wallets/u1", &balance)
	assert.Equal(t, int64(2500), balance.Balance)
}

func TestIntegration_InvalidSignatureRejected(t *testing.T) {
	app := newTestApp(t)
	defer app.close()
	payload := walletEventPayload("evt_1", "pi_100", "u1", 2500)

	req, err := http.NewRequest(http.MethodPost, app.server.URL+"/webhooks/payments", strings.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Payment-Signature", fmt.Sprintf("t=%d,v1=deadbeef", time.Now().Unix()))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// No wallet must exist for the subject.
	code := app.authedGet(t, "/api/v1/wallets/u1", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestIntegration_FailedPaymentIgnored(t *testing.T) {
	app := newTestApp(t)
	defer app.close()
	payload := `{
		"id": "evt_fail",
		"type": "payment_intent.payment_failed",
		"data": {"object": {
			"id": "pi_fail",
			"amount": 2500,
			"currency": "usd",
			"metadata": {"purpose": "wallet", "user_id": "u1"}
		}}
	}`

	code, ack := app.deliver(t, payload)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "IGNORED", ack.Status)
	assert.Equal(t, "failed-payment", ack.Reason)

	code = app.authedGet(t, "/api/v1/wallets/u1", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestIntegration_NonPositiveAmountRejected(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	code, ack := app.deliver(t, walletEventPayload("evt_1", "pi_100", "u1", 0))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "REJECTED", ack.Status)
	assert.Equal(t, "non-positive-amount", ack.Reason)

	code = app.authedGet(t, "/api/v1/wallets/u1", nil)
	assert.Equal(t, http.StatusNotFound, code, "rejection must not create a wallet")
}

func TestIntegration_MissingUserRejected(t *testing.T) {
	app := newTestApp(t)
	defer app.close()
	payload := `{
		"id": "evt_1",
		"type": "payment_intent.succeeded",
		"data": {"object": {
			"id": "pi_100",
			"amount": 2500,
			"currency": "usd",
			"metadata": {"purpose": "wallet"}
		}}
	}`

	code, ack := app.deliver(t, payload)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "REJECTED", ack.Status)
	assert.Equal(t, "missing-user", ack.Reason)
}

func TestIntegration_ForeignPurposeIgnored(t *testing.T) {
	app := newTestApp(t)
	defer app.close()
	payload := `{
		"id": "evt_1",
		"type": "payment_intent.succeeded",
		"data": {"object": {
			"id": "pi_100",
			"amount": 2500,
			"currency": "usd",
			"metadata": {"purpose": "subscription", "user_id": "u1"}
		}}
	}`

	code, ack := app.deliver(t, payload)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "IGNORED", ack.Status)
	assert.Equal(t, "unknown-purpose", ack.Reason)
}

func TestIntegration_TransactionsAndStats(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	for i, amount := range []int64{500, 300, 1200} {
		code, ack := app.deliver(t, walletEventPayload(
			fmt.Sprintf("evt_%d", i), fmt.Sprintf("pi_%d", i), "u1", amount))
		require.Equal(t, http.StatusOK, code)
		require.Equal(t, "APPLIED", ack.Status)
	}

	var list struct {
		Transactions []struct {
			Amount           int64  `json:"amount"`
			PaymentReference string `json:"payment_reference"`
		} `json:"transactions"`
		Total int64 `json:"total"`
	}
	code := app.authedGet(t, "/api/v1/wallets/u1/transactions?page=1&page_size=2", &list)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(3), list.Total)
	assert.Len(t, list.Transactions, 2)

	var stats struct {
		TotalDeposits        int64 `json:"total_deposits"`
		TotalAmountDeposited int64 `json:"total_amount_deposited"`
	}
	code = app.authedGet(t, "/api/v1/wallets/u1/stats", &stats)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(3), stats.TotalDeposits)
	assert.Equal(t, int64(2000), stats.TotalAmountDeposited)

	var balance balanceBody
	app.authedGet(t, "/api/v1/wallets/u1", &balance)
	assert.Equal(t, int64(2000), balance.Balance)
}

func TestIntegration_ReadAPIRequiresToken(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	resp, err := http.Get(app.server.URL + "/api/v1/wallets/u1")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
