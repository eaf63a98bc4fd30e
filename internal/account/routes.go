package account

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"custody-wallet/internal/ledger"
	"custody-wallet/internal/validation"
)

type createRequest struct {
	Identity string `json:"identity" validate:"required,max=254"`
}

// RegisterAdminRoutes mounts account creation, which only operators may call.
func RegisterAdminRoutes(app fiber.Router, dir *Directory) {

	app.Post("/accounts", func(c *fiber.Ctx) error {
		var r createRequest
		if err := c.BodyParser(&r); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		if err := validation.Struct(&r); err != nil {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": validation.Messages(err)})
		}

		o, err := dir.Create(c.UserContext(), r.Identity)
		if err != nil {
			return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusCreated).JSON(o)
	})
}

func RegisterRoutes(app fiber.Router, dir *Directory) {

	app.Get("/accounts/:owner", func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		owner := c.Params("owner")

		o, err := dir.Get(ctx, owner)
		if err != nil {
			return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
		}
		w, err := dir.GetWallet(ctx, owner)
		if err != nil {
			return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
		}
		balances, err := dir.ListBalances(ctx, owner)
		if err != nil {
			return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
		}
		if balances == nil {
			balances = []ledger.AssetBalance{}
		}

		return c.JSON(fiber.Map{
			"owner":    o,
			"wallet":   w,
			"balances": balances,
		})
	})

	app.Get("/accounts/:owner/assets/:symbol", func(c *fiber.Ctx) error {
		b, err := dir.GetBalance(c.UserContext(), c.Params("owner"), c.Params("symbol"))
		if err != nil {
			return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"balance": b})
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidIdentity):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, ErrIdentityTaken):
		return fiber.StatusConflict
	case errors.Is(err, ledger.ErrOwnerNotFound),
		errors.Is(err, ledger.ErrAssetNotFound):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}
