package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type recorder struct {
	mu   sync.Mutex
	got  []map[string]any
	fail atomic.Int64
}

func (r *recorder) handler(w http.ResponseWriter, req *http.Request) {
	if r.fail.Load() > 0 {
		r.fail.Add(-1)
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	var body map[string]any
	_ = json.NewDecoder(req.Body).Decode(&body)
	r.mu.Lock()
	r.got = append(r.got, body)
	r.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWebhookDeliversDiscordEmbed(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(rec.handler))
	defer srv.Close()

	w := NewWebhook(WebhookConfig{URL: srv.URL, RetryBase: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Close()

	w.Notify(ctx, Event{
		Kind:     KindTradeProposed,
		TenantID: "guild",
		TradeID:  "trd_1",
		From:     "alice",
		To:       "bob",
		Offered:  []string{"Hero"},
		At:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	waitFor(t, func() bool { return rec.count() == 1 })

	rec.mu.Lock()
	body := rec.got[0]
	rec.mu.Unlock()
	if body["content"] != "<@bob>" {
		t.Fatalf("content = %v", body["content"])
	}
	embeds, ok := body["embeds"].([]any)
	if !ok || len(embeds) != 1 {
		t.Fatalf("embeds = %#v", body["embeds"])
	}
	embed := embeds[0].(map[string]any)
	if embed["title"] != "Trade proposed" || embed["timestamp"] != "2026-01-01T00:00:00Z" {
		t.Fatalf("embed = %#v", embed)
	}
	footer := embed["footer"].(map[string]any)
	if footer["text"] != "tenant guild | trade trd_1" {
		t.Fatalf("footer = %v", footer["text"])
	}
}

func TestWebhookRetriesThenSucceeds(t *testing.T) {
	rec := &recorder{}
	rec.fail.Store(2)
	srv := httptest.NewServer(http.HandlerFunc(rec.handler))
	defer srv.Close()

	w := NewWebhook(WebhookConfig{URL: srv.URL, RetryMax: 3, RetryBase: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Close()

	w.Notify(ctx, Event{Kind: KindTradeCompleted, TenantID: "g"})
	waitFor(t, func() bool { return rec.count() == 1 })
}

func TestWebhookStopsAtRetryMax(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	w := NewWebhook(WebhookConfig{URL: srv.URL, RetryMax: 1, RetryBase: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Close()

	w.Notify(ctx, Event{Kind: KindTradeCancelled, TenantID: "g"})
	waitFor(t, func() bool { return calls.Load() == 2 })
	time.Sleep(30 * time.Millisecond)
	if got := calls.Load(); got != 2 {
		t.Fatalf("calls = %d, want 2", got)
	}
}

func TestNotifyDropsWhenQueueFull(t *testing.T) {
	w := NewWebhook(WebhookConfig{URL: "http://127.0.0.1:0", QueueSize: 1})
	before := metricPushDroppedTotal.Value()
	w.Notify(context.Background(), Event{Kind: KindCardClaimed})
	w.Notify(context.Background(), Event{Kind: KindCardClaimed})
	if got := metricPushDroppedTotal.Value() - before; got != 1 {
		t.Fatalf("dropped = %d, want 1", got)
	}
}

func TestWorkerExitReleasesPendingRetries(t *testing.T) {
	w := NewWebhook(WebhookConfig{URL: "http://127.0.0.1:0", QueueSize: 1})
	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	cancel()
	select {
	case <-w.done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker exit left the webhook open")
	}

	w.queue <- pushJob{Event: Event{Kind: KindCardClaimed}}
	w.retryQ.Enqueue(pushJob{Event: Event{Kind: KindTradeCompleted}, Attempt: 1}, 0)
	time.Sleep(20 * time.Millisecond)
	<-w.queue
	time.Sleep(20 * time.Millisecond)
	if got := len(w.queue); got != 0 {
		t.Fatalf("retry delivered after worker exit: queue len = %d", got)
	}
}

type countNotifier struct{ n int }

func (c *countNotifier) Notify(context.Context, Event) { c.n++ }

func TestMultiFansOut(t *testing.T) {
	a, b := &countNotifier{}, &countNotifier{}
	Multi{a, Nop{}, LogNotifier{}, b}.Notify(context.Background(), Event{Kind: KindCardClaimed})
	if a.n != 1 || b.n != 1 {
		t.Fatalf("fan out = %d, %d", a.n, b.n)
	}
}
