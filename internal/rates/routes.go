package rates

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"custody-wallet/internal/assets"
	"custody-wallet/internal/money"
)

func RegisterRoutes(r fiber.Router, cache *Cache) {

	r.Get("/rates", func(c *fiber.Ctx) error {
		symbols := assets.Symbols()
		if q := c.Query("symbols"); q != "" {
			symbols = strings.Split(q, ",")
		}

		resolved, err := cache.Resolve(c.UserContext(), symbols...)
		if err != nil {
			return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
		}

		list := make([]Rate, 0, len(resolved))
		for _, s := range normalize(symbols) {
			list = append(list, resolved[s])
		}
		return c.JSON(fiber.Map{"rates": list})
	})

	r.Get("/rates/:symbol", func(c *fiber.Ctx) error {
		symbol := c.Params("symbol")
		if !assets.Supported(symbol) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unsupported asset"})
		}

		resolved, err := cache.Resolve(c.UserContext(), symbol)
		if err != nil {
			return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
		}
		for _, rate := range resolved {
			return c.JSON(fiber.Map{"rate": rate})
		}
		return c.SendStatus(fiber.StatusNotFound)
	})

	// USD value of ?amount= units of symbol at the current rate.
	r.Get("/rates/:symbol/usd", func(c *fiber.Ctx) error {
		symbol := money.NormalizeSymbol(c.Params("symbol"))
		if !assets.Supported(symbol) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unsupported asset"})
		}
		amount, err := decimal.NewFromString(c.Query("amount"))
		if err != nil || !money.ValidAmount(amount) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "amount must be positive with at most 8 decimals"})
		}

		resolved, err := cache.Resolve(c.UserContext(), symbol)
		if err != nil {
			return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
		}
		rate, ok := resolved[symbol]
		if !ok {
			return c.SendStatus(fiber.StatusNotFound)
		}
		return c.JSON(fiber.Map{
			"symbol":    symbol,
			"amount":    amount,
			"rate":      rate,
			"usd_value": money.Value(amount, rate.USD),
		})
	})
}

func statusFor(err error) int {
	if errors.Is(err, ErrRateSourceUnavailable) {
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusNotFound
}
