package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/mankatbank/mankatbank/internal/metrics"
)

// Metrics records request counts and latency per matched route template.
// Register it ahead of Audit so handler errors are rendered by the time the
// status is read.
func Metrics(collector *metrics.Collector) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		route := c.Path()
		if r := c.Route(); r != nil && r.Path != "" {
			route = r.Path
		}
		collector.RecordRequest(c.Method(), route, c.Response().StatusCode(), time.Since(start))
		return err
	}
}
