package mcpserver

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"card-gacha/internal/allowance"
	"card-gacha/internal/app/gacha"
	"card-gacha/internal/claim"
	"card-gacha/internal/config"
	"card-gacha/internal/economy"
	"card-gacha/internal/probability"
	"card-gacha/internal/store"
	"card-gacha/internal/tenant"
	"card-gacha/internal/testutil"
	"card-gacha/internal/trade"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

// fixedSource pins every draw to the same uniform value.
type fixedSource int64

func (f fixedSource) Int63() int64 { return int64(f) }
func (fixedSource) Seed(int64)     {}

func newService(t *testing.T, src fixedSource) *gacha.Service {
	t.Helper()
	cfg := config.DefaultEconomy()
	reg := tenant.NewRegistry(store.NewMemory(), tenant.WithInitializer(func(_ string, s *economy.Snapshot) (bool, error) {
		if !s.Empty() {
			return false, nil
		}
		for _, c := range testutil.SampleCatalog() {
			if _, err := s.AddCard(c); err != nil {
				return false, err
			}
		}
		return true, nil
	}))
	now := func() time.Time { return time.Date(2026, 5, 1, 10, 15, 0, 0, time.UTC) }
	sched := allowance.NewScheduler(cfg)
	engine := probability.NewEngine(probability.Pricing{Base: cfg.LuckBaseCost, Doublings: cfg.LuckDoublings, Step: cfg.LuckLinearStep})
	return gacha.NewService(reg, sched, engine,
		claim.New(reg, sched, cfg, claim.WithClock(now)),
		trade.New(reg, cfg, trade.WithClock(now)),
		cfg,
		gacha.WithClock(now),
		gacha.WithRand(func() *rand.Rand { return rand.New(src) }),
	)
}

func startServer(t *testing.T, cfg config.ServerConfig) *client.Client {
	t.Helper()
	srv := New(newService(t, 0), cfg)
	httpSrv := httptest.NewServer(srv.Handler())
	t.Cleanup(httpSrv.Close)
	c, closeClient := newMCPClient(t, httpSrv.URL+"/mcp")
	t.Cleanup(closeClient)
	return c
}

func TestMCPServerToolsAndFlows(t *testing.T) {
	c := startServer(t, config.ServerConfig{})

	assertToolNames(t, mustListTools(t, c),
		"roll",
		"claim",
		"collect_gems",
		"divorce",
		"buy_luck",
		"get_probabilities",
		"get_profile",
		"get_collection",
		"add_wish",
		"remove_wish",
		"propose_trade",
		"counter_trade",
		"confirm_trade",
		"cancel_trade",
		"get_trade",
		"top_cards",
		"get_card",
	)

	player := func(id string, extra map[string]any) map[string]any {
		args := map[string]any{"tenant_id": "guild", "player_id": id}
		for k, v := range extra {
			args[k] = v
		}
		return args
	}

	roll := mustCallTool(t, c, "roll", player("P", map[string]any{"channel_id": "general"}))
	if roll.IsError {
		t.Fatalf("roll expected success, got: %v", roll.StructuredContent)
	}
	rolled := mapFromStructured(t, roll)
	offer, _ := rolled["offer"].(map[string]any)
	offerID := asString(offer["id"])
	if offerID == "" {
		t.Fatalf("roll payload missing offer id: %v", rolled)
	}

	won := mapFromStructured(t, mustCallTool(t, c, "claim", player("P", map[string]any{"offer_id": offerID})))
	if asString(won["outcome"]) != string(claim.OutcomeWon) {
		t.Fatalf("claim outcome = %v", won)
	}
	lost := mapFromStructured(t, mustCallTool(t, c, "claim", player("Q", map[string]any{"offer_id": offerID})))
	if asString(lost["outcome"]) != string(claim.OutcomeLostToOther) || asFloat64(lost["payout"]) <= 0 {
		t.Fatalf("loser result = %v", lost)
	}

	for _, name := range []string{"get_profile", "get_collection", "get_probabilities"} {
		res := mustCallTool(t, c, name, player("P", nil))
		if res.IsError {
			t.Fatalf("%s expected success, got: %v", name, res.StructuredContent)
		}
	}
	collection := mapFromStructured(t, mustCallTool(t, c, "get_collection", player("P", nil)))
	if asFloat64(collection["total"]) != 1 {
		t.Fatalf("collection = %v", collection)
	}

	card := mapFromStructured(t, mustCallTool(t, c, "get_card", map[string]any{"tenant_id": "guild", "card": "hero"}))
	if asString(card["claimed_by"]) != "P" {
		t.Fatalf("get_card = %v", card)
	}
	if res := mustCallTool(t, c, "top_cards", map[string]any{"tenant_id": "guild", "limit": 1}); res.IsError {
		t.Fatalf("top_cards error: %v", res.StructuredContent)
	}

	if res := mustCallTool(t, c, "add_wish", player("Q", map[string]any{"card": "Villain"})); res.IsError {
		t.Fatalf("add_wish error: %v", res.StructuredContent)
	}
	if res := mustCallTool(t, c, "remove_wish", player("Q", map[string]any{"card": "Villain"})); res.IsError {
		t.Fatalf("remove_wish error: %v", res.StructuredContent)
	}

	divorced := mustCallTool(t, c, "divorce", player("P", map[string]any{"card": "Hero"}))
	if divorced.IsError {
		t.Fatalf("divorce error: %v", divorced.StructuredContent)
	}
	luck := mapFromStructured(t, mustCallTool(t, c, "buy_luck", player("P", nil)))
	if asFloat64(luck["paid"]) != 100 {
		t.Fatalf("buy_luck = %v", luck)
	}
}

func TestMCPTradeFlow(t *testing.T) {
	svc := newService(t, 0)
	ctx := context.Background()
	srv := New(svc, config.ServerConfig{})
	httpSrv := httptest.NewServer(srv.Handler())
	defer httpSrv.Close()
	c, closeClient := newMCPClient(t, httpSrv.URL+"/mcp")
	defer closeClient()

	roll, err := svc.Roll(ctx, "guild", "P", "c1")
	if err != nil {
		t.Fatalf("roll: %v", err)
	}
	if _, err := svc.Claim(ctx, "guild", "P", roll.Offer.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	// An S-rank card makes the pinned draw land on it for Q.
	if _, err := svc.AddCard(ctx, "guild", gacha.CardInput{Name: "Squire", Rank: "S", Value: 90, Images: []string{"squire.png"}}); err != nil {
		t.Fatalf("add card: %v", err)
	}
	roll, err = svc.Roll(ctx, "guild", "Q", "c2")
	if err != nil {
		t.Fatalf("roll q: %v", err)
	}
	if _, err := svc.Claim(ctx, "guild", "Q", roll.Offer.ID); err != nil {
		t.Fatalf("claim q: %v", err)
	}
	qCard := roll.Card.Name
	if qCard != "Squire" {
		t.Fatalf("q rolled %s, want Squire", qCard)
	}

	proposed := mapFromStructured(t, mustCallTool(t, c, "propose_trade", map[string]any{
		"tenant_id": "guild", "player_id": "P", "to": "Q", "cards": []string{"Hero"},
	}))
	tradeID := asString(proposed["id"])
	if tradeID == "" || asString(proposed["state"]) != string(trade.StateAwaitingCounterOffer) {
		t.Fatalf("propose_trade = %v", proposed)
	}

	assertToolErrorCode(t, mustCallTool(t, c, "counter_trade", map[string]any{
		"tenant_id": "guild", "player_id": "P", "trade_id": tradeID, "cards": []string{qCard},
	}), "not_trade_participant")

	countered := mapFromStructured(t, mustCallTool(t, c, "counter_trade", map[string]any{
		"tenant_id": "guild", "player_id": "Q", "trade_id": tradeID, "cards": []string{qCard},
	}))
	if asString(countered["state"]) != string(trade.StateAwaitingConfirmation) {
		t.Fatalf("counter_trade = %v", countered)
	}
	done := mapFromStructured(t, mustCallTool(t, c, "confirm_trade", map[string]any{
		"tenant_id": "guild", "player_id": "P", "trade_id": tradeID, "accept": true,
	}))
	if asString(done["state"]) != string(trade.StateCompleted) {
		t.Fatalf("confirm_trade = %v", done)
	}
	got := mapFromStructured(t, mustCallTool(t, c, "get_trade", map[string]any{"tenant_id": "guild", "trade_id": tradeID}))
	if asString(got["state"]) != string(trade.StateCompleted) {
		t.Fatalf("get_trade = %v", got)
	}

	card, err := svc.GetCard(ctx, "guild", "Hero")
	if err != nil || card.ClaimedBy != "Q" {
		t.Fatalf("Hero after trade = %+v, %v", card, err)
	}
}

func TestMCPServerToolErrors(t *testing.T) {
	c := startServer(t, config.ServerConfig{})

	res := mustCallTool(t, c, "roll", map[string]any{"tenant_id": "guild"})
	assertToolErrorCode(t, res, "invalid_request")

	res = mustCallTool(t, c, "claim", map[string]any{"tenant_id": "guild", "player_id": "P", "offer_id": "off_missing"})
	assertToolErrorCode(t, res, "offer_not_found")

	res = mustCallTool(t, c, "get_card", map[string]any{"tenant_id": "guild", "card": "Nobody"})
	assertToolErrorCode(t, res, "card_not_found")

	res = mustCallTool(t, c, "divorce", map[string]any{"tenant_id": "guild", "player_id": "P", "card": "Hero"})
	assertToolErrorCode(t, res, "not_owned")

	for i := 0; i < 5; i++ {
		mustCallTool(t, c, "roll", map[string]any{"tenant_id": "guild", "player_id": "R"})
	}
	res = mustCallTool(t, c, "roll", map[string]any{"tenant_id": "guild", "player_id": "R"})
	assertToolErrorCode(t, res, "allowance_denied")
}

func TestMCPServerRequiresShellKey(t *testing.T) {
	c := startServer(t, config.ServerConfig{ShellAPIKey: "shell-secret"})

	res := mustCallTool(t, c, "get_profile", map[string]any{"tenant_id": "guild", "player_id": "P"})
	assertToolErrorCode(t, res, "unauthorized")

	res = mustCallTool(t, c, "get_profile", map[string]any{"tenant_id": "guild", "player_id": "P", "api_key": "shell-secret"})
	if res.IsError {
		t.Fatalf("get_profile with key failed: %v", res.StructuredContent)
	}
}

func TestClampPagination(t *testing.T) {
	cases := []struct {
		limit, offset int
		wantL, wantO  int
	}{
		{0, 0, defaultPageLimit, 0},
		{10, -3, 10, 0},
		{900, 5, maxPageLimit, 5},
	}
	for _, tc := range cases {
		l, o := clampPagination(tc.limit, tc.offset, maxPageLimit)
		if l != tc.wantL || o != tc.wantO {
			t.Fatalf("clampPagination(%d,%d) = %d,%d", tc.limit, tc.offset, l, o)
		}
	}
}

func newMCPClient(t *testing.T, endpoint string) (*client.Client, func()) {
	t.Helper()
	ctx := context.Background()
	trans, err := transport.NewStreamableHTTP(endpoint)
	if err != nil {
		t.Fatalf("new transport: %v", err)
	}
	if err := trans.Start(ctx); err != nil {
		t.Fatalf("transport start: %v", err)
	}
	c := client.NewClient(trans)
	_, err = c.Initialize(ctx, mcp.InitializeRequest{Params: mcp.InitializeParams{ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION}})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return c, func() { _ = trans.Close() }
}

func mustListTools(t *testing.T, c *client.Client) []mcp.Tool {
	t.Helper()
	res, err := c.ListTools(context.Background(), mcp.ListToolsRequest{})
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	return res.Tools
}

func assertToolNames(t *testing.T, tools []mcp.Tool, expected ...string) {
	t.Helper()
	got := make([]string, 0, len(tools))
	for _, tool := range tools {
		got = append(got, tool.Name)
	}
	sort.Strings(got)
	sort.Strings(expected)
	if len(got) != len(expected) {
		t.Fatalf("tool count mismatch got=%v expected=%v", got, expected)
	}
	for i := range got {
		if got[i] != expected[i] {
			t.Fatalf("tool list mismatch got=%v expected=%v", got, expected)
		}
	}
}

func mustCallTool(t *testing.T, c *client.Client, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := c.CallTool(context.Background(), mcp.CallToolRequest{Params: mcp.CallToolParams{Name: name, Arguments: args}})
	if err != nil {
		t.Fatalf("call tool %s: %v", name, err)
	}
	return res
}

func assertToolErrorCode(t *testing.T, res *mcp.CallToolResult, want string) {
	t.Helper()
	if !res.IsError {
		t.Fatalf("expected tool error %q, got success: %v", want, res.StructuredContent)
	}
	payload := mapFromStructured(t, res)
	errObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Fatalf("error payload missing 'error': %v", payload)
	}
	got := asString(errObj["code"])
	if got != want {
		t.Fatalf("error code=%q want=%q payload=%v", got, want, payload)
	}
}

func mapFromStructured(t *testing.T, res *mcp.CallToolResult) map[string]any {
	t.Helper()
	b, err := json.Marshal(res.StructuredContent)
	if err != nil {
		t.Fatalf("marshal structured content: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal structured content: %v", err)
	}
	return out
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asFloat64(v any) float64 {
	f, _ := v.(float64)
	return f
}
