package middleware

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// AuthRequired returns a middleware that validates an HS256 bearer token and stores the
// subject as the uint "userID" local.
func AuthRequired(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, msg := userIDFromHeader(c.Get("Authorization"), secret)
		if msg != "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": msg})
		}
		c.Locals("userID", userID)
		return c.Next()
	}
}

// OptionalAuth stores the user id when a valid bearer token is present and lets
// anonymous requests through untouched.
func OptionalAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if header == "" {
			return c.Next()
		}
		if userID, msg := userIDFromHeader(header, secret); msg == "" {
			c.Locals("userID", userID)
		}
		return c.Next()
	}
}

// IssueToken signs a token for the given user id. Used by seed tooling and tests.
func IssueToken(secret string, userID uint) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": strconv.FormatUint(uint64(userID), 10),
	})
	return token.SignedString([]byte(secret))
}

func userIDFromHeader(authHeader, secret string) (uint, string) {
	if authHeader == "" {
		return 0, "Authorization header required"
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return 0, "Invalid authorization header format"
	}

	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return 0, "Invalid or expired token"
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, "Invalid token claims"
	}

	// "sub" carries the user id per RFC 7519.
	subStr, ok := claims["sub"].(string)
	if !ok {
		return 0, "Invalid token subject"
	}

	userIDVal, err := strconv.ParseUint(subStr, 10, 32)
	if err != nil || userIDVal == 0 {
		return 0, "Invalid user ID in token"
	}
	return uint(userIDVal), ""
}
