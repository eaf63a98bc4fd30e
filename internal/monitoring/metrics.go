package monitoring

import "github.com/prometheus/client_golang/prometheus"

var (
	HttpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	LedgerOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Ledger operations by type and final status",
		},
		[]string{"operation", "status"},
	)

	LedgerOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_operation_duration_seconds",
			Help:    "Time spent applying ledger operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	WalletBalanceChanges = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wallet_balance_updates_total",
			Help: "Total asset balance rows mutated",
		},
	)

	RateRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_refreshes_total",
			Help: "Rate source fetches by result",
		},
		[]string{"result"},
	)
)

func Init() {
	prometheus.MustRegister(HttpRequests)
	prometheus.MustRegister(LedgerOperations)
	prometheus.MustRegister(LedgerOperationDuration)
	prometheus.MustRegister(WalletBalanceChanges)
	prometheus.MustRegister(RateRefreshes)
}
