package ledger

import "expvar"

var (
	metricEntries = expvar.NewMap("ledger_entries_total")
	metricVolume  = expvar.NewMap("ledger_volume_total")
)
