package accounts

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mankatbank/mankatbank/internal/httpx"
	"github.com/mankatbank/mankatbank/internal/ledger"
	"github.com/mankatbank/mankatbank/internal/logging"
)

const testUserHeader = "X-Test-User"

func headerUser(c *fiber.Ctx) (int64, bool) {
	id, err := strconv.ParseInt(c.Get(testUserHeader), 10, 64)
	return id, err == nil
}

func newTestApp(t *testing.T) (*fiber.App, *Service) {
	t.Helper()
	svc := newTestService(ledger.NewInMemory())
	h := NewHandler(svc, headerUser)

	app := fiber.New(fiber.Config{ErrorHandler: httpx.ErrorHandler(logging.Discard())})
	g := app.Group("/api/accounts")
	g.Post("/", h.Create)
	g.Get("/", h.List)
	g.Post("/transfer", h.Transfer)
	g.Get("/:id", h.Get)
	g.Get("/:id/transactions", h.Transactions)
	g.Post("/:id/deposit", h.Deposit)
	g.Post("/:id/withdraw", h.Withdraw)
	g.Post("/:id/assign-user/:userId", h.AssignUser)
	return app, svc
}

func call(t *testing.T, app *fiber.App, method, path string, user int64, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if user != 0 {
		req.Header.Set(testUserHeader, strconv.FormatInt(user, 10))
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestHandler_AccountLifecycle(t *testing.T) {
	app, _ := newTestApp(t)

	status, acc := call(t, app, http.MethodPost, "/api/accounts", 1, `{"ownerName":"Main"}`)
	require.Equal(t, http.StatusOK, status)
	id := int64(acc["id"].(float64))
	assert.Equal(t, "Main", acc["ownerName"])
	assert.EqualValues(t, 0, acc["balance"])
	assert.EqualValues(t, 1, acc["userId"])

	path := "/api/accounts/" + strconv.FormatInt(id, 10)
	status, acc = call(t, app, http.MethodPost, path+"/deposit", 1, `{"amount":100}`)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 100, acc["balance"])

	status, acc = call(t, app, http.MethodPost, path+"/withdraw", 1, `{"amount":40}`)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 60, acc["balance"])

	status, body := call(t, app, http.MethodPost, path+"/withdraw", 1, `{"amount":61}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, httpx.CodeInsufficientFunds, body["code"])

	req := httptest.NewRequest(http.MethodGet, path+"/transactions", nil)
	req.Header.Set(testUserHeader, "1")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var txns []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&txns))
	require.Len(t, txns, 2)
	assert.Equal(t, "DEPOSIT", txns[0]["type"])
	assert.Equal(t, "WITHDRAW", txns[1]["type"])
	assert.NotEmpty(t, txns[0]["createdAt"])
}

func TestHandler_ErrorMapping(t *testing.T) {
	app, svc := newTestApp(t)
	mine, err := svc.CreateAccount(context.Background(), 1, "mine")
	require.NoError(t, err)
	theirs, err := svc.CreateAccount(context.Background(), 2, "theirs")
	require.NoError(t, err)
	minePath := "/api/accounts/" + strconv.FormatInt(mine.ID, 10)
	theirsPath := "/api/accounts/" + strconv.FormatInt(theirs.ID, 10)

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"invalid amount", http.MethodPost, minePath + "/deposit", `{"amount":0}`, http.StatusBadRequest, httpx.CodeInvalidAmount},
		{"foreign account", http.MethodPost, theirsPath + "/deposit", `{"amount":5}`, http.StatusForbidden, httpx.CodeForbidden},
		{"missing account", http.MethodPost, "/api/accounts/999/deposit", `{"amount":5}`, http.StatusNotFound, httpx.CodeNotFound},
		{"bad id", http.MethodPost, "/api/accounts/abc/deposit", `{"amount":5}`, http.StatusBadRequest, httpx.CodeInvalidRequest},
		{"malformed body", http.MethodPost, minePath + "/deposit", `{"amount":`, http.StatusBadRequest, httpx.CodeInvalidRequest},
		{"same account", http.MethodPost, "/api/accounts/transfer", `{"fromId":` + strconv.FormatInt(mine.ID, 10) + `,"toId":` + strconv.FormatInt(mine.ID, 10) + `,"amount":5}`, http.StatusBadRequest, httpx.CodeSameAccount},
		{"missing owner name", http.MethodPost, "/api/accounts", `{}`, http.StatusBadRequest, httpx.CodeInvalidRequest},
		{"assign to other user", http.MethodPost, minePath + "/assign-user/2", ``, http.StatusForbidden, httpx.CodeForbidden},
	}
	for _, tc := range cases {
		status, body := call(t, app, tc.method, tc.path, 1, tc.body)
		assert.Equal(t, tc.status, status, tc.name)
		assert.Equal(t, tc.code, body["code"], tc.name)
	}
}

func TestHandler_DepositIntoFullAccount(t *testing.T) {
	app, svc := newTestApp(t)
	acc, err := svc.CreateAccount(context.Background(), 1, "full")
	require.NoError(t, err)
	ledger.SeedBalance(svc.store, acc.ID, math.MaxInt64)

	status, body := call(t, app, http.MethodPost, "/api/accounts/"+strconv.FormatInt(acc.ID, 10)+"/deposit", 1, `{"amount":1}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, httpx.CodeBalanceLimit, body["code"])
}

func TestHandler_Transfer(t *testing.T) {
	app, svc := newTestApp(t)
	ctx := context.Background()
	a, err := svc.CreateAccount(ctx, 1, "a")
	require.NoError(t, err)
	b, err := svc.CreateAccount(ctx, 2, "b")
	require.NoError(t, err)
	_, err = svc.Deposit(ctx, a.ID, 1, 100)
	require.NoError(t, err)

	body := `{"fromId":` + strconv.FormatInt(a.ID, 10) + `,"toId":` + strconv.FormatInt(b.ID, 10) + `,"amount":30}`
	status, out := call(t, app, http.MethodPost, "/api/accounts/transfer", 1, body)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Transfer complete", out["message"])

	got, err := svc.GetAccount(ctx, b.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(30), got.Balance)
}

func TestHandler_RequiresUser(t *testing.T) {
	app, _ := newTestApp(t)
	status, body := call(t, app, http.MethodPost, "/api/accounts", 0, `{"ownerName":"x"}`)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, httpx.CodeUnauthenticated, body["code"])
}
