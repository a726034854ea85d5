package middleware

import (
	"strings"

	domainMedia "github.com/JarvisJ/plex-ai/domains/media"
	"github.com/JarvisJ/plex-ai/pkg/security"
	"github.com/JarvisJ/plex-ai/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

const claimsKey = "user"

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(utils.ResponseData{
		Status:  fiber.StatusUnauthorized,
		Code:    "UNAUTHORIZED",
		Message: message,
	})
}

// Auth requires a session token, read from "Authorization: Bearer <jwt>" or,
// for image tags and websockets that cannot set headers, the token query param.
func Auth(tokens *security.TokenIssuer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodOptions {
			return c.Next()
		}

		tokenString := c.Query("token")
		if header := c.Get(fiber.HeaderAuthorization); header != "" {
			scheme, value, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(value) == "" {
				return unauthorized(c, "invalid authorization format")
			}
			tokenString = strings.TrimSpace(value)
		}
		if tokenString == "" {
			return unauthorized(c, "missing authorization header")
		}

		claims, err := tokens.Validate(tokenString)
		if err != nil {
			return unauthorized(c, "invalid or expired token")
		}

		c.Locals(claimsKey, claims)
		return c.Next()
	}
}

// Claims returns the session claims stored by Auth, or nil outside it.
func Claims(c *fiber.Ctx) *security.SessionClaims {
	claims, _ := c.Locals(claimsKey).(*security.SessionClaims)
	return claims
}

// Session is the media-layer identity of the authenticated caller.
func Session(c *fiber.Ctx) domainMedia.Session {
	claims := Claims(c)
	if claims == nil {
		return domainMedia.Session{}
	}
	return domainMedia.Session{
		UserID:    claims.UserID,
		Username:  claims.Username,
		PlexToken: claims.PlexToken,
	}
}
