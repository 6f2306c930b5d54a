package mcpserver

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"card-gacha/internal/app/gacha"
	"card-gacha/internal/config"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server exposes the gacha operations as MCP tools so bots and assistants
// can play without going through the chat shell.
type Server struct {
	svc      *gacha.Service
	shellKey string

	mcpServer  *server.MCPServer
	httpServer *server.StreamableHTTPServer
}

func New(svc *gacha.Service, cfg config.ServerConfig) *Server {
	mcpSrv := server.NewMCPServer(
		"card-gacha",
		"0.1.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	s := &Server{
		svc:        svc,
		shellKey:   cfg.ShellAPIKey,
		mcpServer:  mcpSrv,
		httpServer: server.NewStreamableHTTPServer(mcpSrv, server.WithStateLess(true), server.WithDisableStreaming(true)),
	}
	s.registerRollTools()
	s.registerPlayerTools()
	s.registerTradeTools()
	s.registerCatalogTools()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.httpServer
}

// authShell checks the optional api_key argument against the shell key.
func (s *Server) authShell(request mcp.CallToolRequest) *mcp.CallToolResult {
	if s.shellKey == "" {
		return nil
	}
	key := strings.TrimSpace(request.GetString("api_key", ""))
	if subtle.ConstantTimeCompare([]byte(key), []byte(s.shellKey)) != 1 {
		return toolError("unauthorized", "invalid api_key")
	}
	return nil
}

// playerArgs reads the tenant_id/player_id pair every player tool takes.
func playerArgs(request mcp.CallToolRequest) (string, string, *mcp.CallToolResult) {
	tenantID, err := request.RequireString("tenant_id")
	if err != nil {
		return "", "", toolError("invalid_request", err.Error())
	}
	playerID, err := request.RequireString("player_id")
	if err != nil {
		return "", "", toolError("invalid_request", err.Error())
	}
	return tenantID, playerID, nil
}

func withPlayer(opts ...mcp.ToolOption) []mcp.ToolOption {
	base := []mcp.ToolOption{
		mcp.WithString("tenant_id", mcp.Required(), mcp.Description("Guild or community id")),
		mcp.WithString("player_id", mcp.Required(), mcp.Description("Acting player id")),
		mcp.WithString("api_key", mcp.Description("Shell API key, when the server requires one")),
	}
	return append(base, opts...)
}
