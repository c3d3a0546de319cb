// Package httpx holds the JSON error contract and request binding shared by
// the HTTP handlers.
package httpx

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

// Error codes returned in the "code" field of error bodies.
const (
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeInvalidAmount     = "INVALID_AMOUNT"
	CodeSameAccount       = "SAME_ACCOUNT"
	CodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	CodeBalanceLimit      = "BALANCE_LIMIT_EXCEEDED"
	CodeNotFound          = "NOT_FOUND"
	CodeForbidden         = "FORBIDDEN"
	CodeUnauthenticated   = "UNAUTHENTICATED"
	CodeConflict          = "CONFLICT"
	CodeTooManyRequests   = "TOO_MANY_REQUESTS"
	CodeStoreUnavailable  = "STORE_UNAVAILABLE"
	CodeInternal          = "INTERNAL_ERROR"
)

// Error is an HTTP-aware error rendered as {"code", "message"}.
type Error struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

// New builds an Error.
func New(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

// BadRequest is shorthand for a 400 with the invalid request code.
func BadRequest(message string) *Error {
	return New(fiber.StatusBadRequest, CodeInvalidRequest, message)
}

// ErrorHandler renders every error returned by a handler as JSON. Errors that
// are neither *Error nor *fiber.Error become a generic 500.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var httpErr *Error
		if errors.As(err, &httpErr) {
			return c.Status(httpErr.Status).JSON(httpErr)
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(Error{Code: codeForStatus(fiberErr.Code), Message: fiberErr.Message})
		}

		if logger != nil {
			logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("path", c.Path()), slog.String("error", err.Error()))
		}
		return c.Status(fiber.StatusInternalServerError).JSON(Error{Code: CodeInternal, Message: "internal server error"})
	}
}

func codeForStatus(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return CodeInvalidRequest
	case fiber.StatusUnauthorized:
		return CodeUnauthenticated
	case fiber.StatusForbidden:
		return CodeForbidden
	case fiber.StatusNotFound:
		return CodeNotFound
	case fiber.StatusConflict:
		return CodeConflict
	case fiber.StatusTooManyRequests:
		return CodeTooManyRequests
	case fiber.StatusServiceUnavailable:
		return CodeStoreUnavailable
	default:
		return CodeInternal
	}
}
