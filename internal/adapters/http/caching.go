package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control headers on GET responses based on
// endpoint. Adds sensible defaults if not already set by the handler.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != "GET" {
			return err
		}

		// Don't override if already set
		if existing := c.Get("Cache-Control"); existing != "" {
			return err
		}

		path := c.Path()
		var ttl string

		switch {
		case path == "/v1/health" || path == "/v1/ready":
			ttl = "public, max-age=10" // Very short for system checks

		case path == "/metrics":
			ttl = "no-cache" // Metrics are real-time

		case path == "/graphql":
			ttl = "private, max-age=0" // GraphQL varies wildly

		case path == "/v1/crs":
			ttl = "public, max-age=3600" // CRS table changes on deploy only

		case strings.HasSuffix(path, "/detail"):
			ttl = "private, max-age=30" // Detail carries per-tree task state

		case strings.Contains(path, "/plots/"):
			ttl = "public, max-age=120" // Single plot

		case strings.HasPrefix(path, "/v1/plots"):
			ttl = "public, max-age=120" // Plot list

		case strings.Contains(path, "/trees/"):
			ttl = "public, max-age=60" // Single tree

		case strings.HasPrefix(path, "/v1/trees"):
			ttl = "public, max-age=60" // Tree list

		case strings.HasPrefix(path, "/v1/"):
			ttl = "public, max-age=300" // Default for API endpoints
		}

		if ttl != "" {
			c.Set("Cache-Control", ttl)
		}

		return err
	}
}
