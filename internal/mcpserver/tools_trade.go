package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerTradeTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("propose_trade", withPlayer(
			mcp.WithDescription("Offer cards to another player; they answer with counter_trade"),
			mcp.WithString("to", mcp.Required(), mcp.Description("Counterparty player id")),
			mcp.WithString("channel_id", mcp.Description("Channel the negotiation runs in")),
			mcp.WithArray("cards", mcp.Required(), mcp.WithStringItems(), mcp.Description("Offered card names")),
		)...),
		s.handleProposeTrade,
	)
	s.mcpServer.AddTool(
		mcp.NewTool("counter_trade", withPlayer(
			mcp.WithDescription("Answer a proposal with the cards you give in return"),
			mcp.WithString("trade_id", mcp.Required(), mcp.Description("Trade id")),
			mcp.WithArray("cards", mcp.Required(), mcp.WithStringItems(), mcp.Description("Requested card names")),
		)...),
		s.handleCounterTrade,
	)
	s.mcpServer.AddTool(
		mcp.NewTool("confirm_trade", withPlayer(
			mcp.WithDescription("Accept or decline a countered trade; accepting swaps both sides at once"),
			mcp.WithString("trade_id", mcp.Required(), mcp.Description("Trade id")),
			mcp.WithBoolean("accept", mcp.Required(), mcp.Description("true to accept, false to decline")),
		)...),
		s.handleConfirmTrade,
	)
	s.mcpServer.AddTool(
		mcp.NewTool("cancel_trade", withPlayer(
			mcp.WithDescription("Withdraw from a pending trade"),
			mcp.WithString("trade_id", mcp.Required(), mcp.Description("Trade id")),
		)...),
		s.handleCancelTrade,
	)
	s.mcpServer.AddTool(
		mcp.NewTool("get_trade",
			mcp.WithDescription("Show the current state of a trade"),
			mcp.WithString("tenant_id", mcp.Required(), mcp.Description("Guild or community id")),
			mcp.WithString("trade_id", mcp.Required(), mcp.Description("Trade id")),
			mcp.WithString("api_key", mcp.Description("Shell API key, when the server requires one")),
		),
		s.handleGetTrade,
	)
}

func (s *Server) handleProposeTrade(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if errResp := s.authShell(request); errResp != nil {
		return errResp, nil
	}
	tenantID, playerID, errResp := playerArgs(request)
	if errResp != nil {
		return errResp, nil
	}
	to, err := request.RequireString("to")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	cards, err := request.RequireStringSlice("cards")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	resp, err := s.svc.ProposeTrade(ctx, tenantID, playerID, to, request.GetString("channel_id", ""), cards)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleCounterTrade(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if errResp := s.authShell(request); errResp != nil {
		return errResp, nil
	}
	tenantID, playerID, errResp := playerArgs(request)
	if errResp != nil {
		return errResp, nil
	}
	tradeID, err := request.RequireString("trade_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	cards, err := request.RequireStringSlice("cards")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	resp, err := s.svc.SubmitCounterOffer(ctx, tenantID, tradeID, playerID, cards)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleConfirmTrade(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if errResp := s.authShell(request); errResp != nil {
		return errResp, nil
	}
	tenantID, playerID, errResp := playerArgs(request)
	if errResp != nil {
		return errResp, nil
	}
	tradeID, err := request.RequireString("trade_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	accept, err := request.RequireBool("accept")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	resp, err := s.svc.ConfirmTrade(ctx, tenantID, tradeID, playerID, accept)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleCancelTrade(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if errResp := s.authShell(request); errResp != nil {
		return errResp, nil
	}
	tenantID, playerID, errResp := playerArgs(request)
	if errResp != nil {
		return errResp, nil
	}
	tradeID, err := request.RequireString("trade_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	resp, err := s.svc.CancelTrade(ctx, tenantID, tradeID, playerID)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleGetTrade(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if errResp := s.authShell(request); errResp != nil {
		return errResp, nil
	}
	tenantID, err := request.RequireString("tenant_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	tradeID, err := request.RequireString("trade_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	resp, err := s.svc.GetTrade(ctx, tenantID, tradeID)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(resp), nil
}
