package middleware

import (
    "context"

    "github.com/gofiber/fiber/v2"

    "github.com/mankatbank/mankatbank/internal/auth"
    "github.com/mankatbank/mankatbank/internal/httpx"
)

const principalKey = "principal"

// TokenVerifier resolves a bearer token into the authenticated principal.
type TokenVerifier interface {
    Verify(ctx context.Context, token string) (auth.Principal, error)
}

// JWTAuth rejects requests without a valid, unexpired and unrevoked bearer
// token and exposes the caller's identity to downstream handlers.
func JWTAuth(verifier TokenVerifier) fiber.Handler {
    return func(c *fiber.Ctx) error {
        token, ok := auth.BearerToken(c.Get(fiber.HeaderAuthorization))
        if !ok {
            return unauthenticated()
        }
        principal, err := verifier.Verify(c.UserContext(), token)
        if err != nil {
            return unauthenticated()
        }
        c.Locals(principalKey, principal)
        return c.Next()
    }
}

func unauthenticated() error {
    return httpx.New(fiber.StatusUnauthorized, httpx.CodeUnauthenticated, auth.UnauthenticatedMessage)
}

// Principal returns the caller set by JWTAuth.
func Principal(c *fiber.Ctx) (auth.Principal, bool) {
    p, ok := c.Locals(principalKey).(auth.Principal)
    return p, ok
}

// UserID returns the authenticated caller's user id.
func UserID(c *fiber.Ctx) (int64, bool) {
    p, ok := Principal(c)
    if !ok {
        return 0, false
    }
    return p.UserID, true
}
