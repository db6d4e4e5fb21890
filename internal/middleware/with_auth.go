package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/insight-lab/research-go-api/internal/utils"
)

// Auth role constants used by WithAuth helper.
const (
	AuthRoleAny         = "any"
	AuthRoleAdmin       = "admin"
	AuthRoleResearcher  = "researcher"
	AuthRoleParticipant = "participant"
)

// AuthOptions configures the WithAuth helper.
type AuthOptions struct {
	Role        string
	RequireUser bool
}

// WithAuth wraps a handler with basic authentication/authorization guards.
func WithAuth(handler fiber.Handler, opts AuthOptions) fiber.Handler {
	role := strings.ToLower(strings.TrimSpace(opts.Role))
	if role == "" {
		role = AuthRoleAny
	}

	requireUser := opts.RequireUser
	if !requireUser && role != AuthRoleAny {
		requireUser = true
	}

	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id")
		if requireUser && userID == nil {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}

		if role == AuthRoleAny {
			// Allow anonymous access when RequireUser=false; otherwise userID must exist.
			if !requireUser || userID != nil {
				return handler(c)
			}
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}

		currentRole := normalizeRoleValue(c.Locals("user_role"))
		switch role {
		case AuthRoleParticipant:
			if currentRole != AuthRoleParticipant {
				return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
			}
		case AuthRoleResearcher:
			// Admins may exercise any researcher endpoint.
			if currentRole != AuthRoleResearcher && currentRole != AuthRoleAdmin {
				return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
			}
		default:
			if currentRole != role {
				return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
			}
		}

		return handler(c)
	}
}
