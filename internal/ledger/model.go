package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"custody-wallet/internal/money"
)

type TxType string

const (
	TypeDeposit    TxType = "deposit"
	TypeWithdrawal TxType = "withdrawal"
	TypeTransfer   TxType = "transfer"
)

type TxStatus string

const (
	StatusPending   TxStatus = "pending"
	StatusCompleted TxStatus = "completed"
	StatusFailed    TxStatus = "failed"
)

const DisplayCurrency = "USD"

// AssetBalance is one owner's holding of one symbol. Rows are created on the
// first credit and kept at zero after being emptied.
type AssetBalance struct {
	Owner        string          `json:"owner_id"`
	Symbol       string          `json:"symbol"`
	Quantity     decimal.Decimal `json:"quantity"`
	ValuationUSD decimal.Decimal `json:"valuation_usd"`
	RateUSD      decimal.Decimal `json:"rate_usd"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (b *AssetBalance) revalue(rate decimal.Decimal) {
	b.RateUSD = rate
	b.ValuationUSD = money.Value(b.Quantity, rate)
}

// Wallet carries the owner's aggregate: TotalUSD is the sum of ValuationUSD
// over every AssetBalance of the owner.
type Wallet struct {
	Owner     string          `json:"owner_id"`
	TotalUSD  decimal.Decimal `json:"total_usd"`
	Currency  string          `json:"currency"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Transaction is the audit record of one deposit, withdrawal or transfer
// attempt. Only the status and finalization fields change after insert.
type Transaction struct {
	ID           string              `json:"id"`
	Owner        string              `json:"owner_id"`
	Type         TxType              `json:"type"`
	Symbol       string              `json:"symbol"`
	Amount       decimal.Decimal     `json:"amount"`
	USDValue     decimal.NullDecimal `json:"usd_value"`
	Status       TxStatus            `json:"status"`
	ExternalRef  string              `json:"external_ref,omitempty"`
	Counterparty string              `json:"counterparty,omitempty"`
	Destination  string              `json:"destination,omitempty"`
	Reason       string              `json:"reason,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	FinalizedAt  *time.Time          `json:"finalized_at,omitempty"`
}

type Receipt struct {
	Transaction      Transaction   `json:"transaction"`
	Balance          AssetBalance  `json:"balance"`
	Wallet           Wallet        `json:"wallet"`
	RecipientBalance *AssetBalance `json:"recipient_balance,omitempty"`
	RecipientWallet  *Wallet       `json:"recipient_wallet,omitempty"`
}

type Valuation struct {
	Owner      string          `json:"owner_id"`
	Currency   string          `json:"currency"`
	TotalUSD   decimal.Decimal `json:"total_usd"`
	Assets     []AssetBalance  `json:"assets"`
	ComputedAt time.Time       `json:"computed_at"`
}

type Conversion struct {
	From       string          `json:"from_symbol"`
	To         string          `json:"to_symbol"`
	Amount     decimal.Decimal `json:"from_amount"`
	Result     decimal.Decimal `json:"to_amount"`
	USDValue   decimal.Decimal `json:"usd_value"`
	FromRate   decimal.Decimal `json:"from_rate_usd"`
	ToRate     decimal.Decimal `json:"to_rate_usd"`
	ObservedAt time.Time       `json:"last_updated"`
}
