package routes

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mankatbank/mankatbank/internal/config"
	"github.com/mankatbank/mankatbank/internal/httpx"
	"github.com/mankatbank/mankatbank/internal/logging"
	"github.com/mankatbank/mankatbank/internal/metrics"
)

func testConfig() config.Config {
	return config.Config{
		AppName:            "MankatBank",
		AppEnv:             "test",
		JWTSecret:          "routes-test-secret",
		JWTTTL:             time.Hour,
		IdempotencyTTL:     time.Minute,
		CORSAllowedOrigins: "*",
		LoginMaxPerMinute:  5,
		BreakerEnabled:     true,
	}
}

func newApp(t *testing.T, cache *redis.Client) *fiber.App {
	t.Helper()
	logger := logging.Discard()
	app := fiber.New(fiber.Config{ErrorHandler: httpx.ErrorHandler(logger)})
	err := Setup(app, Deps{Cfg: testConfig(), Cache: cache, Logger: logger, Metrics: metrics.NewCollector()})
	require.NoError(t, err)
	return app
}

func newRedisApp(t *testing.T) *fiber.App {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })
	return newApp(t, cache)
}

type request struct {
	method  string
	path    string
	token   string
	body    string
	headers map[string]string
}

func send(t *testing.T, app *fiber.App, r request) (*http.Response, []byte) {
	t.Helper()
	var body io.Reader
	if r.body != "" {
		body = strings.NewReader(r.body)
	}
	req := httptest.NewRequest(r.method, r.path, body)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if r.token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+r.token)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, out
}

func sendJSON(t *testing.T, app *fiber.App, r request, dst any) int {
	t.Helper()
	resp, body := send(t, app, r)
	if dst != nil && len(body) > 0 {
		require.NoError(t, json.Unmarshal(body, dst), string(body))
	}
	return resp.StatusCode
}

func register(t *testing.T, app *fiber.App, email, name string) int64 {
	t.Helper()
	var out map[string]any
	status := sendJSON(t, app, request{
		method: http.MethodPost,
		path:   "/api/auth/register",
		body:   `{"email":"` + email + `","fullName":"` + name + `","password":"s3cret-pass"}`,
	}, &out)
	require.Equal(t, http.StatusOK, status, out)
	return int64(out["id"].(float64))
}

func login(t *testing.T, app *fiber.App, email string) string {
	t.Helper()
	var out map[string]any
	status := sendJSON(t, app, request{
		method: http.MethodPost,
		path:   "/api/auth/login",
		body:   `{"email":"` + email + `","password":"s3cret-pass"}`,
	}, &out)
	require.Equal(t, http.StatusOK, status, out)
	return out["token"].(string)
}

func firstAccountID(t *testing.T, app *fiber.App, token string) int64 {
	t.Helper()
	var list []map[string]any
	status := sendJSON(t, app, request{method: http.MethodGet, path: "/api/accounts", token: token}, &list)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, list)
	return int64(list[0]["id"].(float64))
}

func accountPath(id int64, suffix string) string {
	return "/api/accounts/" + strconv.FormatInt(id, 10) + suffix
}

func TestBankingFlow(t *testing.T) {
	app := newRedisApp(t)

	aliceID := register(t, app, "alice@example.com", "Alice Doe")
	register(t, app, "bob@example.com", "Bob Roe")

	var errBody httpx.Error
	status := sendJSON(t, app, request{
		method: http.MethodPost,
		path:   "/api/auth/register",
		body:   `{"email":"ALICE@example.com","fullName":"Other","password":"x"}`,
	}, &errBody)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Email already in use", errBody.Message)

	status = sendJSON(t, app, request{
		method: http.MethodPost,
		path:   "/api/auth/login",
		body:   `{"email":"alice@example.com","password":"wrong"}`,
	}, &errBody)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid credentials", errBody.Message)

	alice := login(t, app, "alice@example.com")
	bob := login(t, app, "bob@example.com")

	var me map[string]any
	require.Equal(t, http.StatusOK, sendJSON(t, app, request{method: http.MethodGet, path: "/api/me", token: alice}, &me))
	assert.EqualValues(t, aliceID, me["id"])
	assert.Equal(t, "alice@example.com", me["email"])

	aliceAcc := firstAccountID(t, app, alice)
	bobAcc := firstAccountID(t, app, bob)

	var acc map[string]any
	deposit := request{
		method:  http.MethodPost,
		path:    accountPath(aliceAcc, "/deposit"),
		token:   alice,
		body:    `{"amount":100}`,
		headers: map[string]string{"Idempotency-Key": "dep-1"},
	}
	require.Equal(t, http.StatusOK, sendJSON(t, app, deposit, &acc))
	assert.EqualValues(t, 100, acc["balance"])
	assert.Equal(t, "Alice Doe", acc["ownerName"])

	// Replaying the same key returns the stored response without a second credit.
	resp, _ := send(t, app, deposit)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "true", resp.Header.Get("Idempotent-Replayed"))

	var msg map[string]any
	status = sendJSON(t, app, request{
		method: http.MethodPost,
		path:   "/api/accounts/transfer",
		token:  alice,
		body:   `{"fromId":` + strconv.FormatInt(aliceAcc, 10) + `,"toId":` + strconv.FormatInt(bobAcc, 10) + `,"amount":40}`,
	}, &msg)
	require.Equal(t, http.StatusOK, status, msg)
	assert.Equal(t, "Transfer complete", msg["message"])

	require.Equal(t, http.StatusOK, sendJSON(t, app, request{method: http.MethodGet, path: accountPath(aliceAcc, ""), token: alice}, &acc))
	assert.EqualValues(t, 60, acc["balance"])
	require.Equal(t, http.StatusOK, sendJSON(t, app, request{method: http.MethodGet, path: accountPath(bobAcc, ""), token: bob}, &acc))
	assert.EqualValues(t, 40, acc["balance"])

	var txns []map[string]any
	require.Equal(t, http.StatusOK, sendJSON(t, app, request{method: http.MethodGet, path: accountPath(aliceAcc, "/transactions"), token: alice}, &txns))
	require.Len(t, txns, 2)
	assert.Equal(t, "DEPOSIT", txns[0]["type"])
	assert.Equal(t, "TRANSFER_OUT", txns[1]["type"])

	status = sendJSON(t, app, request{method: http.MethodGet, path: accountPath(bobAcc, ""), token: alice}, &errBody)
	assert.Equal(t, http.StatusForbidden, status)

	status = sendJSON(t, app, request{method: http.MethodPost, path: "/api/auth/logout", token: alice}, &msg)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Logged out", msg["message"])

	status = sendJSON(t, app, request{method: http.MethodGet, path: "/api/accounts", token: alice}, &errBody)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid, expired, or revoked token", errBody.Message)

	// Bob's token is unaffected by Alice's logout.
	status = sendJSON(t, app, request{method: http.MethodGet, path: "/api/accounts", token: bob}, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	app := newApp(t, nil)

	var errBody httpx.Error
	status := sendJSON(t, app, request{method: http.MethodGet, path: "/api/accounts"}, &errBody)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, httpx.CodeUnauthenticated, errBody.Code)

	status = sendJSON(t, app, request{method: http.MethodPost, path: "/api/auth/logout"}, &errBody)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Missing Bearer token", errBody.Message)
}

func TestRegisterRejectsOverlongPassword(t *testing.T) {
	app := newApp(t, nil)

	for _, password := range []string{strings.Repeat("p", 80), strings.Repeat("é", 40)} {
		var errBody httpx.Error
		status := sendJSON(t, app, request{
			method: http.MethodPost,
			path:   "/api/auth/register",
			body:   `{"email":"erin@example.com","fullName":"Erin","password":"` + password + `"}`,
		}, &errBody)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, httpx.CodeInvalidRequest, errBody.Code)
	}
}

func TestLoginRateLimit(t *testing.T) {
	app := newRedisApp(t)
	register(t, app, "carol@example.com", "Carol")

	body := `{"email":"carol@example.com","password":"wrong"}`
	for i := 0; i < testConfig().LoginMaxPerMinute; i++ {
		resp, _ := send(t, app, request{method: http.MethodPost, path: "/api/auth/login", body: body})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	resp, _ := send(t, app, request{method: http.MethodPost, path: "/api/auth/login", body: body})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	app := newApp(t, nil)
	register(t, app, "dave@example.com", "Dave")
	token := login(t, app, "dave@example.com")
	acc := firstAccountID(t, app, token)
	send(t, app, request{method: http.MethodPost, path: accountPath(acc, "/deposit"), token: token, body: `{"amount":5}`})

	var health map[string]any
	require.Equal(t, http.StatusOK, sendJSON(t, app, request{method: http.MethodGet, path: "/healthz"}, &health))
	assert.Equal(t, map[string]any{"postgres": "in-memory", "redis": "disabled"}, health["status"])

	resp, body := send(t, app, request{method: http.MethodGet, path: "/metrics"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `ledger_operations_total{operation="deposit",outcome="success"} 1`)
	assert.Contains(t, string(body), "http_requests_total")
}

func TestSetupRequiresBackingServicesOutsideDev(t *testing.T) {
	cfg := testConfig()
	cfg.AppEnv = "production"
	err := Setup(fiber.New(), Deps{Cfg: cfg, Logger: logging.Discard()})
	assert.Error(t, err)
}
