package allowance

import "expvar"

var (
	metricSweeps       = expvar.NewInt("allowance_sweeps_total")
	metricPlayersReset = expvar.NewInt("allowance_players_reset_total")
)
