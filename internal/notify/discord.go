package notify

import (
	"fmt"
	"strings"
	"time"
)

const (
	colorNeutral = 0x5865F2
	colorSuccess = 0x57F287
	colorFailure = 0xED4245
)

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// discordPayload renders an event as a Discord webhook message.
func discordPayload(ev Event) map[string]any {
	title, color := describe(ev)
	fields := make([]embedField, 0, 4)
	if ev.From != "" {
		fields = append(fields, embedField{Name: "From", Value: mention(ev.From), Inline: true})
	}
	if ev.To != "" {
		fields = append(fields, embedField{Name: "To", Value: mention(ev.To), Inline: true})
	}
	if len(ev.Offered) > 0 {
		fields = append(fields, embedField{Name: "Offered", Value: strings.Join(ev.Offered, ", ")})
	}
	if len(ev.Requested) > 0 {
		fields = append(fields, embedField{Name: "Requested", Value: strings.Join(ev.Requested, ", ")})
	}
	embed := map[string]any{
		"title":  title,
		"fields": fields,
		"color":  color,
	}
	if ev.Reason != "" {
		embed["description"] = "Reason: " + ev.Reason
	}
	if !ev.At.IsZero() {
		embed["timestamp"] = ev.At.UTC().Format(time.RFC3339)
	}
	footer := "tenant " + ev.TenantID
	if ev.TradeID != "" {
		footer += " | trade " + ev.TradeID
	}
	embed["footer"] = map[string]string{"text": footer}

	content := ""
	switch ev.Kind {
	case KindTradeProposed:
		content = mention(ev.To)
	case KindTradeCountered:
		content = mention(ev.From)
	}
	return map[string]any{
		"content": content,
		"embeds":  []map[string]any{embed},
	}
}

func describe(ev Event) (string, int) {
	switch ev.Kind {
	case KindCardClaimed:
		return fmt.Sprintf("%s claimed a card", ev.From), colorSuccess
	case KindTradeProposed:
		return "Trade proposed", colorNeutral
	case KindTradeCountered:
		return "Counter-offer received", colorNeutral
	case KindTradeCompleted:
		return "Trade completed", colorSuccess
	case KindTradeCancelled:
		return "Trade cancelled", colorFailure
	case KindTradeTimedOut:
		return "Trade timed out", colorFailure
	default:
		return string(ev.Kind), colorNeutral
	}
}

func mention(playerID string) string {
	if playerID == "" {
		return ""
	}
	return "<@" + playerID + ">"
}
