package notify

import "expvar"

var (
	metricPushQueuedTotal       = expvar.NewInt("webhook_push_queued_total")
	metricPushDroppedTotal      = expvar.NewInt("webhook_push_dropped_total")
	metricPushRetryTotal        = expvar.NewInt("webhook_push_retry_total")
	metricPushRetryDroppedTotal = expvar.NewInt("webhook_push_retry_dropped_total")
	metricPushSentTotal         = expvar.NewInt("webhook_push_sent_total")
	metricPushFailedTotal       = expvar.NewInt("webhook_push_failed_total")
	metricPushQueueLen          = expvar.NewInt("webhook_push_queue_len")
)
