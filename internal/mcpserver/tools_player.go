package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPlayerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("get_profile", withPlayer(
			mcp.WithDescription("Show coins, allowances and luck for a player"),
		)...),
		s.handleGetProfile,
	)
	s.mcpServer.AddTool(
		mcp.NewTool("get_collection", withPlayer(
			mcp.WithDescription("List the player's cards, ten per page"),
			mcp.WithNumber("page", mcp.Description("1-based page, default 1")),
		)...),
		s.handleGetCollection,
	)
	s.mcpServer.AddTool(
		mcp.NewTool("add_wish", withPlayer(
			mcp.WithDescription("Add a card to the wishlist"),
			mcp.WithString("card", mcp.Required(), mcp.Description("Card name")),
		)...),
		s.handleAddWish,
	)
	s.mcpServer.AddTool(
		mcp.NewTool("remove_wish", withPlayer(
			mcp.WithDescription("Remove a card from the wishlist"),
			mcp.WithString("card", mcp.Required(), mcp.Description("Card name")),
		)...),
		s.handleRemoveWish,
	)
}

func (s *Server) handleGetProfile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if errResp := s.authShell(request); errResp != nil {
		return errResp, nil
	}
	tenantID, playerID, errResp := playerArgs(request)
	if errResp != nil {
		return errResp, nil
	}
	resp, err := s.svc.Profile(ctx, tenantID, playerID)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleGetCollection(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if errResp := s.authShell(request); errResp != nil {
		return errResp, nil
	}
	tenantID, playerID, errResp := playerArgs(request)
	if errResp != nil {
		return errResp, nil
	}
	resp, err := s.svc.Collection(ctx, tenantID, playerID, request.GetInt("page", 1))
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleAddWish(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
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
	resp, err := s.svc.AddWish(ctx, tenantID, playerID, card)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleRemoveWish(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
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
	resp, err := s.svc.RemoveWish(ctx, tenantID, playerID, card)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(resp), nil
}
