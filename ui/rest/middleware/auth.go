package middleware

import (
	"strings"

	"github.com/AzielCF/az-crm/pkg/security"
	"github.com/AzielCF/az-crm/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

const (
	LocalUserID = "user_id"
	LocalRole   = "user_role"
)

// TokenValidator parses a bearer token into claims.
type TokenValidator interface {
	ValidateToken(token string) (*security.Claims, error)
}

type AuthConfig struct {
	Tokens TokenValidator
	// Required rejects requests without a valid token. When false a valid
	// token is still decoded into locals.
	Required bool
	// Next skips the middleware when it returns true.
	Next func(c *fiber.Ctx) bool
}

// Auth validates "Authorization: Bearer <jwt>" and stores the claims in locals.
func Auth(cfg AuthConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodOptions || (cfg.Next != nil && cfg.Next(c)) {
			return c.Next()
		}

		token, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			if cfg.Required {
				return unauthorized(c, "missing authorization header")
			}
			return c.Next()
		}

		claims, err := cfg.Tokens.ValidateToken(token)
		if err != nil {
			if cfg.Required {
				return unauthorized(c, "invalid or expired token")
			}
			return c.Next()
		}

		c.Locals(LocalUserID, claims.UserID)
		c.Locals(LocalRole, claims.Role)
		return c.Next()
	}
}

// PublicPaths builds a Next func that skips the listed paths, relative to prefix.
func PublicPaths(prefix string, paths ...string) func(c *fiber.Ctx) bool {
	public := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		public[strings.TrimRight(prefix+p, "/")] = struct{}{}
	}
	return func(c *fiber.Ctx) bool {
		_, ok := public[strings.TrimRight(c.Path(), "/")]
		return ok
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(utils.ResponseData{
		Status:  fiber.StatusUnauthorized,
		Code:    "AUTH_ERROR",
		Message: message,
	})
}
