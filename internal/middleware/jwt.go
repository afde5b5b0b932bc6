package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/campusops/devtrack/internal/service"
	"github.com/campusops/devtrack/internal/utils"
)

// Locals keys populated by JWTProtected.
const (
	localOperatorRef  = "operator_ref"
	localOperatorName = "operator_name"
	localOperatorRole = "operator_role"
)

// JWTProtected validates bearer tokens and resolves the operator identity
// the core operations consume. Token issuance lives in another service;
// this middleware only verifies and extracts.
func JWTProtected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authorization := c.Get("Authorization")
		if authorization == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authorization header missing")
		}

		const bearer = "Bearer "
		if !strings.HasPrefix(strings.ToLower(authorization), strings.ToLower(bearer)) {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid authorization header")
		}

		tokenString := strings.TrimSpace(authorization[len(bearer):])
		if tokenString == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token claims")
		}

		ref := claimString(claims, "sub")
		if ref == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "token missing subject")
		}

		c.Locals(localOperatorRef, ref)
		c.Locals(localOperatorName, claimString(claims, "name"))
		c.Locals(localOperatorRole, strings.ToLower(claimString(claims, "role")))

		return c.Next()
	}
}

// OperatorFrom resolves the operator identity stored by JWTProtected.
func OperatorFrom(c *fiber.Ctx) service.Operator {
	return service.Operator{
		Ref:  localString(c, localOperatorRef),
		Name: localString(c, localOperatorName),
		Role: localString(c, localOperatorRole),
	}
}

func claimString(claims jwt.MapClaims, key string) string {
	if value, ok := claims[key].(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func localString(c *fiber.Ctx, key string) string {
	if value, ok := c.Locals(key).(string); ok {
		return value
	}
	return ""
}
