package middleware

import (
	"strings"

	"github.com/anjiri1684/skillcoin/models"
	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v3"
	"github.com/golang-jwt/jwt/v4"
)

const userLocal = "user"

func Protected(secret string) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:   []byte(secret),
		ContextKey:   userLocal,
		ErrorHandler: jwtError,
	})
}

func jwtError(c *fiber.Ctx, err error) error {
	if err.Error() == "Missing or malformed JWT" {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"status": "error", "code": "unauthenticated", "message": "Missing or malformed JWT"})
	}
	return c.Status(fiber.StatusUnauthorized).
		JSON(fiber.Map{"status": "error", "code": "unauthenticated", "message": "Invalid or expired JWT"})
}

func claims(c *fiber.Ctx) jwt.MapClaims {
	token, ok := c.Locals(userLocal).(*jwt.Token)
	if !ok || token == nil {
		return nil
	}
	mc, _ := token.Claims.(jwt.MapClaims)
	return mc
}

// CallerID returns the authenticated user's id, or "" on unauthenticated
// requests.
func CallerID(c *fiber.Ctx) string {
	id, _ := claims(c)["user_id"].(string)
	return strings.TrimSpace(id)
}

func CallerRole(c *fiber.Ctx) models.Role {
	role, _ := claims(c)["role"].(string)
	return models.Role(role)
}

func TeacherRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if CallerRole(c) != models.RoleTeacher {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"status":  "error",
				"code":    "permission-denied",
				"message": "Teacher access required.",
			})
		}
		return c.Next()
	}
}

// ProtectedQuery reads the token from the "token" query parameter, for
// clients such as browsers opening a websocket that cannot set headers.
func ProtectedQuery(secret string) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:   []byte(secret),
		ContextKey:   userLocal,
		TokenLookup:  "query:token",
		ErrorHandler: jwtError,
	})
}
