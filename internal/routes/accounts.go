package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mankatbank/mankatbank/internal/accounts"
)

// RegisterAccountRoutes wires account, balance and transfer endpoints.
func RegisterAccountRoutes(r fiber.Router, h *accounts.Handler) {
	group := r.Group("/accounts")
	group.Post("/", h.Create)
	group.Get("/", h.List)
	// Registered ahead of /:id so "transfer" is never read as an id.
	group.Post("/transfer", h.Transfer)
	group.Get("/:id", h.Get)
	group.Get("/:id/transactions", h.Transactions)
	group.Post("/:id/deposit", h.Deposit)
	group.Post("/:id/withdraw", h.Withdraw)
	group.Post("/:id/assign-user/:userId", h.AssignUser)
}
