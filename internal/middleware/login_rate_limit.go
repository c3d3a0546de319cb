package middleware

import (
    "errors"
    "log/slog"
    "strings"
    "time"

    "github.com/gofiber/fiber/v2"
    "github.com/redis/go-redis/v9"

    "github.com/mankatbank/mankatbank/internal/httpx"
)

const loginWindow = time.Minute

// LoginRateLimit throttles failed login attempts per email and client IP
// using Redis if available. Successful logins are not counted.
func LoginRateLimit(cache *redis.Client, maxPerMin int, logger *slog.Logger) fiber.Handler {
    if maxPerMin <= 0 {
        maxPerMin = 5
    }
    return func(c *fiber.Ctx) error {
        if cache == nil {
            return c.Next() // no-op without Redis
        }
        var req struct {
            Email string `json:"email"`
        }
        _ = c.BodyParser(&req)
        key := "rl:login:" + strings.ToLower(strings.TrimSpace(req.Email)) + ":" + c.IP()

        failures, err := cache.Get(c.UserContext(), key).Int64()
        if err != nil && !errors.Is(err, redis.Nil) {
            logger.Warn("login rate limit unavailable", slog.Any("error", err))
            return c.Next() // fail-open on cache errors
        }
        if failures >= int64(maxPerMin) {
            return httpx.New(fiber.StatusTooManyRequests, httpx.CodeTooManyRequests, "too many login attempts, try again later")
        }

        err = c.Next()
        if loginStatus(c, err) != fiber.StatusUnauthorized {
            return err
        }
        cnt, incrErr := cache.Incr(c.UserContext(), key).Result()
        if incrErr != nil {
            logger.Warn("login rate limit unavailable", slog.Any("error", incrErr))
            return err
        }
        if cnt == 1 {
            cache.Expire(c.UserContext(), key, loginWindow)
        }
        return err
    }
}

// loginStatus is the status the login handler produced, whether it wrote a
// response or returned an error for the error handler to render.
func loginStatus(c *fiber.Ctx, err error) int {
    var httpErr *httpx.Error
    if errors.As(err, &httpErr) {
        return httpErr.Status
    }
    var fiberErr *fiber.Error
    if errors.As(err, &fiberErr) {
        return fiberErr.Code
    }
    if err != nil {
        return fiber.StatusInternalServerError
    }
    return c.Response().StatusCode()
}
