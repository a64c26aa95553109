package middleware

import (
	"errors"

	"gigwatch/internal/pkg/response"

	"github.com/gofiber/fiber/v3"
)

type ErrorMiddleware struct{}

func NewErrorMiddleware() *ErrorMiddleware {
	return &ErrorMiddleware{}
}

func (m *ErrorMiddleware) Middleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		err := c.Next()
		if err == nil {
			return nil
		}

		var fe *fiber.Error
		if errors.As(err, &fe) {
			return response.Error(c, fe.Code, fe.Message, nil)
		}
		return response.Error(c, fiber.StatusInternalServerError, "", nil)
	}
}
