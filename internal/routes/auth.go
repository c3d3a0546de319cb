package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mankatbank/mankatbank/internal/auth"
	"github.com/mankatbank/mankatbank/internal/identity"
)

// RegisterAuthRoutes wires registration, login and logout.
func RegisterAuthRoutes(r fiber.Router, ids *identity.Handler, h *auth.Handler, rateLimiter fiber.Handler) {
	group := r.Group("/auth")
	group.Post("/register", ids.Register)
	if rateLimiter != nil {
		group.Post("/login", rateLimiter, h.Login)
	} else {
		group.Post("/login", h.Login)
	}
	group.Post("/logout", h.Logout)
}
