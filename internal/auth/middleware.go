package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"atlas-backend/internal/geo"
	"atlas-backend/internal/model"
)

// SessionCookie is the cookie carrying the access token for browser sessions.
const SessionCookie = "access_token"

// RequireAuth returns middleware that validates the request's token (bearer
// header first, session cookie second) and sets the UserContext on the
// request. This is the first gate of the two-stage pipeline.
func RequireAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := bearerToken(c)
		if tokenStr == "" {
			tokenStr = c.Cookies(SessionCookie)
		}
		if tokenStr == "" {
			return geo.UnauthorizedError("Missing auth token")
		}

		claims, err := ParseToken(tokenStr, secret)
		if err != nil {
			return geo.UnauthorizedError("Invalid or expired token")
		}
		id, err := claims.SubjectID()
		if err != nil {
			return geo.UnauthorizedError("Invalid or expired token")
		}

		c.Locals("user", &model.UserContext{
			ID:    id,
			Email: claims.Email,
			Role:  claims.Role,
		})
		return c.Next()
	}
}

// RequireRoles returns middleware enforcing the second gate: the
// authenticated caller's role must be in the endpoint's allowed set.
func RequireRoles(roles ...model.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := GetUser(c)
		if user == nil {
			return geo.UnauthorizedError("Missing auth token")
		}
		if !user.HasAnyRole(roles...) {
			return geo.ForbiddenError("Insufficient role")
		}
		return c.Next()
	}
}

// GetUser extracts the UserContext from a Fiber context.
func GetUser(c *fiber.Ctx) *model.UserContext {
	user, _ := c.Locals("user").(*model.UserContext)
	return user
}

func bearerToken(c *fiber.Ctx) string {
	header := c.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
