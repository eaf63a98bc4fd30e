// Package wallet exposes the ledger over HTTP. Handlers only translate
// requests and map ledger errors to status codes.
package wallet

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"custody-wallet/internal/assets"
	"custody-wallet/internal/ledger"
	"custody-wallet/internal/validation"
)

type depositRequest struct {
	Owner  string          `json:"owner_id" validate:"required"`
	Symbol string          `json:"symbol" validate:"required,max=16"`
	Amount decimal.Decimal `json:"amount"`
	TxHash string          `json:"tx_hash" validate:"required,max=128"`
}

type withdrawRequest struct {
	Owner       string          `json:"owner_id" validate:"required"`
	Symbol      string          `json:"symbol" validate:"required,max=16"`
	Amount      decimal.Decimal `json:"amount"`
	Destination string          `json:"destination" validate:"required,max=128"`
}

type transferRequest struct {
	Owner     string          `json:"owner_id" validate:"required"`
	Recipient string          `json:"recipient" validate:"required,max=254"`
	Symbol    string          `json:"symbol" validate:"required,max=16"`
	Amount    decimal.Decimal `json:"amount"`
}

type convertRequest struct {
	From   string          `json:"from_symbol" validate:"required,max=16"`
	To     string          `json:"to_symbol" validate:"required,max=16"`
	Amount decimal.Decimal `json:"amount"`
}

func RegisterRoutes(app fiber.Router, engine *ledger.Engine) {

	app.Post("/wallet/deposit", func(c *fiber.Ctx) error {
		var r depositRequest
		if err := bind(c, &r); err != nil {
			return err
		}
		if !assets.Supported(r.Symbol) {
			return unsupported(c)
		}
		receipt, err := engine.Deposit(c.UserContext(), r.Owner, r.Symbol, r.Amount, r.TxHash)
		if err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(receipt)
	})

	app.Post("/wallet/withdraw", func(c *fiber.Ctx) error {
		var r withdrawRequest
		if err := bind(c, &r); err != nil {
			return err
		}
		if !assets.Supported(r.Symbol) {
			return unsupported(c)
		}
		receipt, err := engine.Withdraw(c.UserContext(), r.Owner, r.Symbol, r.Amount, r.Destination)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(receipt)
	})

	app.Post("/wallet/transfer", func(c *fiber.Ctx) error {
		var r transferRequest
		if err := bind(c, &r); err != nil {
			return err
		}
		if !assets.Supported(r.Symbol) {
			return unsupported(c)
		}
		receipt, err := engine.Transfer(c.UserContext(), r.Owner, r.Recipient, r.Symbol, r.Amount)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(receipt)
	})

	app.Get("/wallet/:owner/valuation", func(c *fiber.Ctx) error {
		v, err := engine.Valuation(c.UserContext(), c.Params("owner"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(v)
	})

	app.Post("/wallet/:owner/revalue", func(c *fiber.Ctx) error {
		v, err := engine.Revalue(c.UserContext(), c.Params("owner"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(v)
	})

	app.Get("/wallet/:owner/transactions", func(c *fiber.Ctx) error {
		list, err := engine.Transactions(c.UserContext(), c.Params("owner"), c.QueryInt("limit", ledger.DefaultHistoryLimit))
		if err != nil {
			return fail(c, err)
		}
		if list == nil {
			list = []ledger.Transaction{}
		}
		return c.JSON(fiber.Map{"transactions": list})
	})

	app.Get("/transactions/:id", func(c *fiber.Ctx) error {
		t, err := engine.Transaction(c.UserContext(), c.Params("id"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(t)
	})

	app.Post("/convert", func(c *fiber.Ctx) error {
		var r convertRequest
		if err := bind(c, &r); err != nil {
			return err
		}
		if !assets.Supported(r.From) || !assets.Supported(r.To) {
			return unsupported(c)
		}
		conv, err := engine.Convert(c.UserContext(), r.From, r.To, r.Amount)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(conv)
	})
}

// RegisterAdminRoutes mounts operator actions on the ledger. Reconcile fails
// records pending for longer than ?older_than=, defaulting to reconcileAfter.
func RegisterAdminRoutes(app fiber.Router, engine *ledger.Engine, reconcileAfter time.Duration) {

	app.Post("/reconcile", func(c *fiber.Ctx) error {
		olderThan := reconcileAfter
		if q := c.Query("older_than"); q != "" {
			d, err := time.ParseDuration(q)
			if err != nil || d < 0 {
				return fiber.NewError(fiber.StatusBadRequest, "older_than must be a duration such as 10m")
			}
			olderThan = d
		}
		n, err := engine.ReconcilePending(c.UserContext(), olderThan)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"reconciled": n})
	})
}

// bind parses and validates the request body into v.
func bind(c *fiber.Ctx, v interface{}) error {
	if err := c.BodyParser(v); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validation.Struct(v); err != nil {
		return fiber.NewError(fiber.StatusUnprocessableEntity, strings.Join(validation.Messages(err), "; "))
	}
	return nil
}

func unsupported(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "unsupported asset"})
}

func fail(c *fiber.Ctx, err error) error {
	return c.Status(StatusFor(err)).JSON(fiber.Map{"error": err.Error()})
}

// StatusFor maps ledger errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidSymbol),
		errors.Is(err, ledger.ErrInvalidReference),
		errors.Is(err, ledger.ErrInvalidDestination),
		errors.Is(err, ledger.ErrInsufficientBalance):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrOwnerNotFound),
		errors.Is(err, ledger.ErrAssetNotFound),
		errors.Is(err, ledger.ErrRecipientNotFound),
		errors.Is(err, ledger.ErrTransactionNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ledger.ErrDuplicateReference),
		errors.Is(err, ledger.ErrConcurrencyConflict):
		return fiber.StatusConflict
	case errors.Is(err, ledger.ErrRateUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}
