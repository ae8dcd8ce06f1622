package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"devsonar/src/logger"
	"devsonar/src/store"
)

// Version is reported to MCP clients.
const Version = "1.0.0"

// Server is the MCP server for devsonar.
type Server struct {
	mcpServer *server.MCPServer
	store     store.Store
	log       logger.Logger
}

// NewServer creates an MCP server reading from st.
func NewServer(st store.Store, log logger.Logger) *Server {
	if log == nil {
		log = logger.NewSilentLogger()
	}
	s := server.NewMCPServer(
		"devsonar",
		Version,
		server.WithToolCapabilities(true),
	)

	srv := &Server{
		mcpServer: s,
		store:     st,
		log:       log,
	}
	srv.registerTools()

	return srv
}

// registerTools registers all available tools.
func (s *Server) registerTools() {
	listTool := mcp.NewTool("list_errors",
		mcp.WithDescription("List recently captured runtime errors, newest first. Errors that differ only in values such as line numbers, addresses or ids are grouped under one fingerprint with a recurrence count. Use get_error with latest_id to see the full stack."),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Max groups to return (default: %d, max: %d)", DefaultListLimit, MaxListLimit)),
		),
	)

	getTool := mcp.NewTool("get_error",
		mcp.WithDescription("Get one captured error with its full stack trace and context. Use after list_errors."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Record ID (latest_id from list_errors)"),
		),
	)

	s.mcpServer.AddTool(listTool, s.handleListErrors)
	s.mcpServer.AddTool(getTool, s.handleGetError)
}

// Run starts the MCP server on stdio.
func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}

// handleListErrors handles the list_errors tool call.
func (s *Server) handleListErrors(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", DefaultListLimit)
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)

	records, err := s.store.Recent(ctx, historyWindow)
	if err != nil {
		s.log.Error("[MCP] Failed to read history: %v", err)
		return mcp.NewToolResultError(fmt.Sprintf("failed to read history: %v", err)), nil
	}

	response := ListResponse{
		Records: len(records),
		Groups:  GroupRecords(records, limit),
	}
	return jsonResult(response)
}

// handleGetError handles the get_error tool call.
func (s *Server) handleGetError(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := request.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("id parameter is required"), nil
	}

	record, err := s.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("error not found: id=%s", id)), nil
	}
	if err != nil {
		s.log.Error("[MCP] Failed to read record %s: %v", id, err)
		return mcp.NewToolResultError(fmt.Sprintf("failed to read record: %v", err)), nil
	}

	recurrence := 1
	if recent, err := s.store.Recent(ctx, historyWindow); err == nil {
		for _, g := range GroupRecords(recent, 0) {
			if g.Fingerprint == record.Fingerprint {
				recurrence = g.Recurrence
				break
			}
		}
	}

	return jsonResult(toDetail(record, recurrence))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}
