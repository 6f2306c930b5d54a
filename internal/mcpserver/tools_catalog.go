package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 500
)

func clampPagination(limit, offset, maxLimit int) (int, int) {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (s *Server) registerCatalogTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("top_cards",
			mcp.WithDescription("List the tenant's most valuable cards, best rank first"),
			mcp.WithString("tenant_id", mcp.Required(), mcp.Description("Guild or community id")),
			mcp.WithNumber("limit", mcp.Description("Page size, default 50, max 500")),
			mcp.WithNumber("offset", mcp.Description("Page offset, default 0")),
			mcp.WithString("api_key", mcp.Description("Shell API key, when the server requires one")),
		),
		s.handleTopCards,
	)
	s.mcpServer.AddTool(
		mcp.NewTool("get_card",
			mcp.WithDescription("Show one catalog card and its owner"),
			mcp.WithString("tenant_id", mcp.Required(), mcp.Description("Guild or community id")),
			mcp.WithString("card", mcp.Required(), mcp.Description("Card name, case-insensitive")),
			mcp.WithString("api_key", mcp.Description("Shell API key, when the server requires one")),
		),
		s.handleGetCard,
	)
}

func (s *Server) handleTopCards(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if errResp := s.authShell(request); errResp != nil {
		return errResp, nil
	}
	tenantID, err := request.RequireString("tenant_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	limit, offset := clampPagination(request.GetInt("limit", defaultPageLimit), request.GetInt("offset", 0), maxPageLimit)
	resp, err := s.svc.TopCards(ctx, tenantID, limit, offset)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleGetCard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if errResp := s.authShell(request); errResp != nil {
		return errResp, nil
	}
	tenantID, err := request.RequireString("tenant_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	card, err := request.RequireString("card")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	resp, err := s.svc.GetCard(ctx, tenantID, card)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(resp), nil
}
