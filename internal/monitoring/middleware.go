package monitoring

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		HttpRequests.WithLabelValues(c.Method(), c.Route().Path, strconv.Itoa(statusOf(c, err))).Inc()
		return err
	}
}

// statusOf returns the status the error handler will answer with when err
// is set; the response still carries 200 at this point.
func statusOf(c *fiber.Ctx, err error) int {
	if err == nil {
		return c.Response().StatusCode()
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return fiber.StatusInternalServerError
}
