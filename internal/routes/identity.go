package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mankatbank/mankatbank/internal/identity"
)

// RegisterIdentityRoutes wires the authenticated profile endpoint.
func RegisterIdentityRoutes(r fiber.Router, h *identity.Handler) {
	r.Get("/me", h.Me)
}
