package event

const (
	EventTransactionCompleted = "ledger.transaction.completed"
	EventTransactionFailed    = "ledger.transaction.failed"
	EventRatesRefreshed       = "rates.refreshed"
)
