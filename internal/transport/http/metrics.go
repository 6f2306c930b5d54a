package httptransport

import "expvar"

var (
	metricServiceErrors = expvar.NewInt("http_service_errors_total")

	metricRateLimited       = expvar.NewInt("http_rate_limited_total")
	metricRateLimiterActive = expvar.NewInt("http_rate_limiters_active")

	metricTradeWaitActive = expvar.NewInt("http_trade_wait_active")
)
