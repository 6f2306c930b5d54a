package trade

import "expvar"

var (
	metricProposed  = expvar.NewInt("trade_proposed_total")
	metricCompleted = expvar.NewInt("trade_completed_total")
	metricCancelled = expvar.NewInt("trade_cancelled_total")
	metricTimedOut  = expvar.NewInt("trade_timed_out_total")
	metricLive      = expvar.NewInt("trade_negotiations_live")
)
