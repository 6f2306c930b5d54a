package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerRollTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("roll", withPlayer(
			mcp.WithDescription("Draw a random card and open a claim offer in the channel"),
			mcp.WithString("channel_id", mcp.Description("Channel the roll is shown in")),
		)...),
		s.handleRoll,
	)
	s.mcpServer.AddTool(
		mcp.NewTool("claim", withPlayer(
			mcp.WithDescription("Try to claim the card of an open offer"),
			mcp.WithString("offer_id", mcp.Required(), mcp.Description("Offer id returned by roll")),
		)...),
		s.handleClaim,
	)
	s.mcpServer.AddTool(
		mcp.NewTool("collect_gems", withPlayer(
			mcp.WithDescription("Collect the gem payout of an offer whose card is already claimed"),
			mcp.WithString("offer_id", mcp.Required(), mcp.Description("Offer id")),
		)...),
		s.handleCollectGems,
	)
	s.mcpServer.AddTool(
		mcp.NewTool("divorce", withPlayer(
			mcp.WithDescription("Release an owned card back to the pool for coins"),
			mcp.WithString("card", mcp.Required(), mcp.Description("Card name")),
		)...),
		s.handleDivorce,
	)
	s.mcpServer.AddTool(
		mcp.NewTool("buy_luck", withPlayer(
			mcp.WithDescription("Spend coins to shift roll odds toward higher ranks"),
		)...),
		s.handleBuyLuck,
	)
	s.mcpServer.AddTool(
		mcp.NewTool("get_probabilities", withPlayer(
			mcp.WithDescription("Show the player's per-rank roll probabilities"),
		)...),
		s.handleGetProbabilities,
	)
}

func (s *Server) handleRoll(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if errResp := s.authShell(request); errResp != nil {
		return errResp, nil
	}
	tenantID, playerID, errResp := playerArgs(request)
	if errResp != nil {
		return errResp, nil
	}
	resp, err := s.svc.Roll(ctx, tenantID, playerID, request.GetString("channel_id", ""))
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleClaim(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if errResp := s.authShell(request); errResp != nil {
		return errResp, nil
	}
	tenantID, playerID, errResp := playerArgs(request)
	if errResp != nil {
		return errResp, nil
	}
	offerID, err := request.RequireString("offer_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	resp, err := s.svc.Claim(ctx, tenantID, playerID, offerID)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleCollectGems(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if errResp := s.authShell(request); errResp != nil {
		return errResp, nil
	}
	tenantID, playerID, errResp := playerArgs(request)
	if errResp != nil {
		return errResp, nil
	}
	offerID, err := request.RequireString("offer_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	resp, err := s.svc.CollectGems(ctx, tenantID, playerID, offerID)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleDivorce(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if errResp := s.authShell(request); errResp != nil {
		return errResp, nil
	}
	tenantID, playerID, errResp := playerArgs(request)
	if errResp != nil {
		return errResp, nil
	}
	card, err := request.RequireString("card")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	resp, err := s.svc.Divorce(ctx, tenantID, playerID, card)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleBuyLuck(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if errResp := s.authShell(request); errResp != nil {
		return errResp, nil
	}
	tenantID, playerID, errResp := playerArgs(request)
	if errResp != nil {
		return errResp, nil
	}
	resp, err := s.svc.BuyLuck(ctx, tenantID, playerID)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleGetProbabilities(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if errResp := s.authShell(request); errResp != nil {
		return errResp, nil
	}
	tenantID, playerID, errResp := playerArgs(request)
	if errResp != nil {
		return errResp, nil
	}
	resp, err := s.svc.GetProbabilities(ctx, tenantID, playerID)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(resp), nil
}
