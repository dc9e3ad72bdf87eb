package web

import (
	"strings"

	"github.com/gofiber/fiber/v3"
)

// UserHeader carries the caller id set by the upstream identity layer.
const UserHeader = "X-User-ID"

type userKey struct{}

// RequireUser rejects requests without a caller id and stores it for handlers.
func RequireUser() fiber.Handler {
	return func(c fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get(UserHeader))
		if userID == "" {
			return unauthenticated(c)
		}

		c.Locals(userKey{}, userID)

		return c.Next()
	}
}

func currentUser(c fiber.Ctx) string {
	userID, _ := c.Locals(userKey{}).(string)

	return userID
}
