package api

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"swiftroute/internal/auth"
)

const sessionKey = "session"

// RequireSession rejects requests without a known bearer token and stores
// the session in c.Locals.
func (s *Server) RequireSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			return errorJSON(c, fiber.StatusUnauthorized, "unauthorized", "Authorization header is required")
		}
		sess, err := s.sessions.Lookup(strings.TrimSpace(token))
		if err != nil {
			return errorJSON(c, fiber.StatusUnauthorized, "unauthorized", "Invalid session token")
		}
		c.Locals(sessionKey, sess)
		return c.Next()
	}
}

func sessionFrom(c *fiber.Ctx) auth.Session {
	sess, _ := c.Locals(sessionKey).(auth.Session)
	return sess
}

func (s *Server) login(c *fiber.Ctx) error {
	var requestBody struct {
		Username string `json:"username"`
	}
	if err := c.BodyParser(&requestBody); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid_body", err.Error())
	}

	sess, err := s.sessions.Login(requestBody.Username)
	if errors.Is(err, auth.ErrEmptyIdentifier) {
		return errorJSON(c, fiber.StatusBadRequest, "empty_identifier", err.Error())
	}
	if err != nil {
		return err
	}
	return c.JSON(sess)
}

func (s *Server) logout(c *fiber.Ctx) error {
	_ = s.sessions.Logout(sessionFrom(c).Token)
	return c.SendStatus(fiber.StatusNoContent)
}
