package claim

import "expvar"

var (
	metricOffersOpened     = expvar.NewInt("claim_offers_opened_total")
	metricOffersSuperseded = expvar.NewInt("claim_offers_superseded_total")
	metricOffersExpired    = expvar.NewInt("claim_offers_expired_total")
	metricOffersPurged     = expvar.NewInt("claim_offers_purged_total")
	metricOffersLive       = expvar.NewInt("claim_offers_live")
	metricClaimsWon        = expvar.NewInt("claim_won_total")
	metricClaimsLost       = expvar.NewInt("claim_lost_total")
	metricClaimsExpired    = expvar.NewInt("claim_expired_total")
	metricGemsCollected    = expvar.NewInt("claim_gems_collected_total")
)
