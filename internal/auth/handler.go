package auth

import (
    "context"
    "errors"
    "net/http"

    "github.com/gofiber/fiber/v2"

    "github.com/mankatbank/mankatbank/internal/httpx"
    "github.com/mankatbank/mankatbank/internal/identity"
)

// Authenticator checks login credentials.
type Authenticator interface {
    Authenticate(ctx context.Context, email, password string) (identity.User, error)
}

// Handler exposes the login and logout endpoints.
type Handler struct {
    ids Authenticator
    svc *Service
}

// NewHandler builds an auth HTTP handler.
func NewHandler(ids Authenticator, svc *Service) *Handler {
    return &Handler{ids: ids, svc: svc}
}

type loginRequest struct {
    Email    string `json:"email" validate:"required"`
    Password string `json:"password" validate:"required"`
}

type loginResponse struct {
    UserID int64  `json:"userId"`
    Email  string `json:"email"`
    Token  string `json:"token"`
}

// Login validates credentials and returns a signed access token.
func (h *Handler) Login(c *fiber.Ctx) error {
    var req loginRequest
    if err := httpx.Bind(c, &req); err != nil {
        return err
    }
    user, err := h.ids.Authenticate(c.UserContext(), req.Email, req.Password)
    if err != nil {
        if errors.Is(err, identity.ErrInvalidCredentials) {
            return httpx.New(http.StatusUnauthorized, httpx.CodeUnauthenticated, "Invalid credentials")
        }
        return httpx.New(http.StatusServiceUnavailable, httpx.CodeStoreUnavailable, "user store unavailable")
    }
    token, _, err := h.svc.Issue(user.ID, user.Email)
    if err != nil {
        return err
    }
    return c.Status(http.StatusOK).JSON(loginResponse{UserID: user.ID, Email: user.Email, Token: token})
}

// Logout revokes the bearer token presented with the request.
func (h *Handler) Logout(c *fiber.Ctx) error {
    token, ok := BearerToken(c.Get(fiber.HeaderAuthorization))
    if !ok {
        return httpx.BadRequest("Missing Bearer token")
    }
    if err := h.svc.Logout(c.UserContext(), token); err != nil {
        if errors.Is(err, ErrUnauthenticated) {
            return httpx.New(http.StatusUnauthorized, httpx.CodeUnauthenticated, UnauthenticatedMessage)
        }
        return httpx.New(http.StatusServiceUnavailable, httpx.CodeStoreUnavailable, "token store unavailable")
    }
    return c.Status(http.StatusOK).JSON(fiber.Map{"message": "Logged out"})
}
