package gacha

import "expvar"

var (
	metricRollsTotal      = expvar.NewInt("gacha_rolls_total")
	metricRollsDenied     = expvar.NewInt("gacha_rolls_denied_total")
	metricRollsEmpty      = expvar.NewInt("gacha_rolls_no_card_total")
	metricDivorcesTotal   = expvar.NewInt("gacha_divorces_total")
	metricLuckPurchases   = expvar.NewInt("gacha_luck_purchases_total")
	metricCardsAddedTotal = expvar.NewInt("gacha_cards_added_total")
)
