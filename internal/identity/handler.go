package identity

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/mankatbank/mankatbank/internal/httpx"
	"github.com/mankatbank/mankatbank/internal/ledger"
)

// AccountOpener creates the default account handed to every new user.
type AccountOpener interface {
	OpenDefaultAccount(ctx context.Context, userID int64, fullName string) (ledger.Account, error)
}

// CurrentUser resolves the authenticated user id of a request.
type CurrentUser func(c *fiber.Ctx) (int64, bool)

// Handler exposes identity endpoints.
type Handler struct {
	service  *Service
	accounts AccountOpener
	current  CurrentUser
}

// NewHandler constructs an identity HTTP handler.
func NewHandler(service *Service, accounts AccountOpener, current CurrentUser) *Handler {
	return &Handler{service: service, accounts: accounts, current: current}
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"fullName" validate:"required"`
	Password string `json:"password" validate:"required,max=72"`
}

type userResponse struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
}

type profileResponse struct {
	userResponse
	CreatedAt time.Time `json:"createdAt"`
}

// Register handles user onboarding and opens the user's default account.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	user, err := h.service.Register(c.UserContext(), Registration{Email: req.Email, FullName: req.FullName, Password: req.Password})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return httpx.BadRequest("Email already in use")
		}
		if errors.Is(err, ErrPasswordTooLong) {
			return httpx.BadRequest(ErrPasswordTooLong.Error())
		}
		return storeUnavailable()
	}
	if h.accounts != nil {
		if _, err := h.accounts.OpenDefaultAccount(c.UserContext(), user.ID, user.FullName); err != nil {
			return storeUnavailable()
		}
	}
	return c.Status(http.StatusOK).JSON(userResponse{ID: user.ID, Email: user.Email, FullName: user.FullName})
}

// Me returns the profile of the authenticated caller.
func (h *Handler) Me(c *fiber.Ctx) error {
	userID, ok := h.current(c)
	if !ok {
		return httpx.New(http.StatusUnauthorized, httpx.CodeUnauthenticated, "authentication required")
	}
	user, err := h.service.Get(c.UserContext(), userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return httpx.New(http.StatusNotFound, httpx.CodeNotFound, "user not found")
		}
		return storeUnavailable()
	}
	return c.JSON(profileResponse{
		userResponse: userResponse{ID: user.ID, Email: user.Email, FullName: user.FullName},
		CreatedAt:    user.CreatedAt,
	})
}

func storeUnavailable() error {
	return httpx.New(http.StatusServiceUnavailable, httpx.CodeStoreUnavailable, "user store unavailable")
}
