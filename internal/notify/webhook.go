package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type WebhookConfig struct {
	URL       string
	QueueSize int
	RetryMax  int
	RetryBase time.Duration
	Timeout   time.Duration
}

type pushJob struct {
	Event   Event
	Attempt int
}

// Webhook posts events to a Discord-compatible webhook from a background
// worker. Notify never blocks: a full queue drops the event.
type Webhook struct {
	cfg    WebhookConfig
	client *HTTPClient
	queue  chan pushJob
	retryQ *retryQueue
	done   chan struct{}
	once   sync.Once
}

func NewWebhook(cfg WebhookConfig) *Webhook {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	w := &Webhook{
		cfg:    cfg,
		client: NewHTTPClient(cfg.Timeout),
		queue:  make(chan pushJob, cfg.QueueSize),
		done:   make(chan struct{}),
	}
	w.retryQ = newRetryQueue(w.queue, w.done)
	return w
}

func (w *Webhook) Start(ctx context.Context) {
	go w.worker(ctx)
}

func (w *Webhook) Close() {
	w.once.Do(func() { close(w.done) })
}

func (w *Webhook) Notify(_ context.Context, ev Event) {
	select {
	case <-w.done:
		metricPushDroppedTotal.Add(1)
	case w.queue <- pushJob{Event: ev}:
		metricPushQueuedTotal.Add(1)
		metricPushQueueLen.Set(int64(len(w.queue)))
	default:
		metricPushDroppedTotal.Add(1)
		log.Warn().Str("kind", string(ev.Kind)).Str("tenant_id", ev.TenantID).Msg("webhook queue full; event dropped")
	}
}

// worker drains the queue until ctx ends or Close is called. Exiting closes
// the webhook, which releases retries still waiting on a full queue.
func (w *Webhook) worker(ctx context.Context) {
	defer w.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case job := <-w.queue:
			metricPushQueueLen.Set(int64(len(w.queue)))
			w.processJob(ctx, job)
		}
	}
}

func (w *Webhook) processJob(ctx context.Context, job pushJob) {
	err := w.client.PostJSON(ctx, w.cfg.URL, discordPayload(job.Event))
	if err != nil {
		metricPushFailedTotal.Add(1)
		if !w.retryOrDrop(job) {
			log.Warn().Err(err).Str("kind", string(job.Event.Kind)).Int("attempt", job.Attempt).Msg("webhook push dropped")
		}
		return
	}
	metricPushSentTotal.Add(1)
}

func (w *Webhook) retryOrDrop(job pushJob) bool {
	if job.Attempt >= w.cfg.RetryMax {
		metricPushRetryDroppedTotal.Add(1)
		return false
	}
	job.Attempt++
	metricPushRetryTotal.Add(1)
	delay := w.cfg.RetryBase * time.Duration(1<<(job.Attempt-1))
	w.retryQ.Enqueue(job, delay)
	return true
}
