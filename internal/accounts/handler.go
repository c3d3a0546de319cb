package accounts

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/mankatbank/mankatbank/internal/httpx"
	"github.com/mankatbank/mankatbank/internal/ledger"
)

// CurrentUser resolves the authenticated user id of a request.
type CurrentUser func(c *fiber.Ctx) (int64, bool)

// Handler exposes account endpoints.
type Handler struct {
	service *Service
	current CurrentUser
}

// NewHandler builds an account HTTP handler.
func NewHandler(service *Service, current CurrentUser) *Handler {
	return &Handler{service: service, current: current}
}

type createRequest struct {
	OwnerName string `json:"ownerName" validate:"required"`
}

type amountRequest struct {
	Amount int64 `json:"amount"`
}

type transferRequest struct {
	FromID int64 `json:"fromId" validate:"required"`
	ToID   int64 `json:"toId" validate:"required"`
	Amount int64 `json:"amount"`
}

type accountResponse struct {
	ID        int64  `json:"id"`
	OwnerName string `json:"ownerName"`
	Balance   int64  `json:"balance"`
	UserID    *int64 `json:"userId"`
}

type transactionResponse struct {
	ID        int64     `json:"id"`
	AccountID int64     `json:"accountId"`
	Type      string    `json:"type"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"createdAt"`
}

func toAccountResponse(acc ledger.Account) accountResponse {
	return accountResponse{ID: acc.ID, OwnerName: acc.OwnerName, Balance: acc.Balance, UserID: acc.OwnerUserID}
}

// Create opens a new account for the caller.
func (h *Handler) Create(c *fiber.Ctx) error {
	userID, err := h.user(c)
	if err != nil {
		return err
	}
	var req createRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	acc, err := h.service.CreateAccount(c.UserContext(), userID, req.OwnerName)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(toAccountResponse(acc))
}

// List returns the caller's accounts.
func (h *Handler) List(c *fiber.Ctx) error {
	userID, err := h.user(c)
	if err != nil {
		return err
	}
	accounts, err := h.service.ListAccounts(c.UserContext(), userID)
	if err != nil {
		return toHTTPError(err)
	}
	out := make([]accountResponse, 0, len(accounts))
	for _, acc := range accounts {
		out = append(out, toAccountResponse(acc))
	}
	return c.JSON(out)
}

// Get returns one of the caller's accounts.
func (h *Handler) Get(c *fiber.Ctx) error {
	userID, accountID, err := h.userAndAccount(c)
	if err != nil {
		return err
	}
	acc, err := h.service.GetAccount(c.UserContext(), accountID, userID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(toAccountResponse(acc))
}

// Transactions returns the transaction log of one of the caller's accounts.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	userID, accountID, err := h.userAndAccount(c)
	if err != nil {
		return err
	}
	txns, err := h.service.ListTransactions(c.UserContext(), accountID, userID)
	if err != nil {
		return toHTTPError(err)
	}
	out := make([]transactionResponse, 0, len(txns))
	for _, txn := range txns {
		out = append(out, transactionResponse{
			ID:        txn.ID,
			AccountID: txn.AccountID,
			Type:      string(txn.Type),
			Amount:    txn.Amount,
			CreatedAt: txn.CreatedAt,
		})
	}
	return c.JSON(out)
}

// Deposit credits the account.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	return h.move(c, h.service.Deposit)
}

// Withdraw debits the account.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	return h.move(c, h.service.Withdraw)
}

func (h *Handler) move(c *fiber.Ctx, op func(ctx context.Context, accountID, userID, amount int64) (ledger.Account, error)) error {
	userID, accountID, err := h.userAndAccount(c)
	if err != nil {
		return err
	}
	var req amountRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	acc, err := op(c.UserContext(), accountID, userID, req.Amount)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(toAccountResponse(acc))
}

// Transfer moves funds from one of the caller's accounts to any account.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	userID, err := h.user(c)
	if err != nil {
		return err
	}
	var req transferRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	_, err = h.service.Transfer(c.UserContext(), TransferInput{
		FromID: req.FromID,
		ToID:   req.ToID,
		UserID: userID,
		Amount: req.Amount,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(fiber.Map{"message": "Transfer complete"})
}

// AssignUser attaches an unowned account to the caller.
func (h *Handler) AssignUser(c *fiber.Ctx) error {
	userID, accountID, err := h.userAndAccount(c)
	if err != nil {
		return err
	}
	target, err := strconv.ParseInt(c.Params("userId"), 10, 64)
	if err != nil {
		return httpx.BadRequest("invalid user id")
	}
	acc, err := h.service.AssignOwner(c.UserContext(), accountID, userID, target)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(toAccountResponse(acc))
}

func (h *Handler) user(c *fiber.Ctx) (int64, error) {
	userID, ok := h.current(c)
	if !ok {
		return 0, httpx.New(http.StatusUnauthorized, httpx.CodeUnauthenticated, "authentication required")
	}
	return userID, nil
}

func (h *Handler) userAndAccount(c *fiber.Ctx) (int64, int64, error) {
	userID, err := h.user(c)
	if err != nil {
		return 0, 0, err
	}
	accountID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return 0, 0, httpx.BadRequest("invalid account id")
	}
	return userID, accountID, nil
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount):
		return httpx.New(http.StatusBadRequest, httpx.CodeInvalidAmount, "Amount must be positive")
	case errors.Is(err, ledger.ErrSameAccount):
		return httpx.New(http.StatusBadRequest, httpx.CodeSameAccount, "Cannot transfer to the same account")
	case errors.Is(err, ledger.ErrInvalidOwnerName):
		return httpx.BadRequest("ownerName is required")
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return httpx.New(http.StatusUnprocessableEntity, httpx.CodeInsufficientFunds, "Insufficient funds")
	case errors.Is(err, ledger.ErrBalanceOverflow):
		return httpx.New(http.StatusUnprocessableEntity, httpx.CodeBalanceLimit, "Balance limit exceeded")
	case errors.Is(err, ledger.ErrNotFound):
		return httpx.New(http.StatusNotFound, httpx.CodeNotFound, "Account not found")
	case errors.Is(err, ledger.ErrForbidden):
		return httpx.New(http.StatusForbidden, httpx.CodeForbidden, "Forbidden")
	case errors.Is(err, ledger.ErrStoreUnavailable):
		return httpx.New(http.StatusServiceUnavailable, httpx.CodeStoreUnavailable, "ledger store unavailable")
	default:
		return err
	}
}
