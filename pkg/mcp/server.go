// Package mcp exposes the contract store to MCP clients over Stdio, so
// assistants can browse spaces and contracts without going through the
// REST API.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/sentientrolodex/backend/pkg/store"
	"github.com/sentientrolodex/backend/pkg/view"
)

// MCPServer wraps the contract store to expose it via MCP.
type MCPServer struct {
	store *store.Store
	agg   *view.Aggregator
}

// Run starts the MCP server on Stdio.
func Run(ctx context.Context, s *store.Store) error {
	srv := server.NewMCPServer(
		"SentientRolodex-Backend",
		"0.1.0",
		server.WithResourceCapabilities(true, true),
		server.WithLogging(),
	)

	ms := &MCPServer{
		store: s,
		agg:   view.NewAggregator(s),
	}

	// --- Resources ---

	// Resource: Store Summary
	srv.AddResource(
		mcp.NewResource(
			"rolodex://store/summary",
			"Store Summary",
			mcp.WithResourceDescription("Counts of contract spaces known to the store"),
			mcp.WithMIMEType("application/json"),
		),
		ms.handleStoreSummary,
	)

	// --- Tools ---

	// Tool: Search Spaces
	srv.AddTool(
		mcp.NewTool(
			"search_spaces",
			mcp.WithDescription("Search contract spaces by name or contained contract ID."),
			mcp.WithString("query", mcp.Required(), mcp.Description("The search query string")),
			mcp.WithNumber("limit", mcp.Description("Max number of results (default 10)")),
		),
		ms.handleSearchSpaces,
	)

	// Tool: Get User View
	srv.AddTool(
		mcp.NewTool(
			"get_user_view",
			mcp.WithDescription("Get a user's full view: every contract space with its resolved contracts."),
			mcp.WithString("user_id", mcp.Required(), mcp.Description("The ID of the user")),
		),
		ms.handleGetUserView,
	)

	// Tool: Get Contract
	srv.AddTool(
		mcp.NewTool(
			"get_contract",
			mcp.WithDescription("Get the stored metadata of a single contract."),
			mcp.WithString("contract_id", mcp.Required(), mcp.Description("The ID of the contract")),
		),
		ms.handleGetContract,
	)

	// Tool: List Space Contracts
	srv.AddTool(
		mcp.NewTool(
			"list_space_contracts",
			mcp.WithDescription("List the contracts of a contract space. Dangling references are skipped."),
			mcp.WithString("space_id", mcp.Required(), mcp.Description("The ID of the contract space")),
		),
		ms.handleListSpaceContracts,
	)

	// Start the server on Stdio
	slog.Info("Starting MCP server on Stdio")
	return server.ServeStdio(srv)
}

// --- Resource Handlers ---

func (ms *MCPServer) handleStoreSummary(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	spaces, err := ms.store.ListSpaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list spaces: %w", err)
	}

	contracts := 0
	for _, sp := range spaces {
		contracts += len(sp.Contracts)
	}
	summary := map[string]interface{}{
		"space_count":    len(spaces),
		"contract_links": contracts,
	}

	jsonBytes, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal summary: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(jsonBytes),
		},
	}, nil
}

// --- Tool Handlers ---

func (ms *MCPServer) handleSearchSpaces(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	query, ok := args["query"].(string)
	if !ok {
		return mcp.NewToolResultError("query argument required"), nil
	}

	limit := 10
	if l, ok := args["limit"].(float64); ok {
		limit = int(l)
	}

	results, err := ms.agg.SearchSpaces(ctx, query, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	var formatted []string
	for _, r := range results {
		formatted = append(formatted, fmt.Sprintf("%s (%s) score=%.2f", r.Space.Name, r.Space.ID, r.Score))
	}
	if len(formatted) == 0 {
		return mcp.NewToolResultText("No matching spaces found."), nil
	}
	return mcp.NewToolResultText(strings.Join(formatted, "\n")), nil
}

func (ms *MCPServer) handleGetUserView(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	userID, ok := args["user_id"].(string)
	if !ok {
		return mcp.NewToolResultError("user_id argument required"), nil
	}

	uv, err := ms.agg.BuildUserView(ctx, userID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("user view failed: %v", err)), nil
	}

	jsonBytes, err := json.MarshalIndent(uv, "", "  ")
	if err != nil {
		return mcp.NewToolResultError("failed to marshal user view"), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (ms *MCPServer) handleGetContract(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	contractID, ok := args["contract_id"].(string)
	if !ok {
		return mcp.NewToolResultError("contract_id argument required"), nil
	}

	contract, err := ms.store.FindContract(ctx, contractID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("contract not found: %s", contractID)), nil
	}

	jsonBytes, err := json.MarshalIndent(contract, "", "  ")
	if err != nil {
		return mcp.NewToolResultError("failed to marshal contract"), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (ms *MCPServer) handleListSpaceContracts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	spaceID, ok := args["space_id"].(string)
	if !ok {
		return mcp.NewToolResultError("space_id argument required"), nil
	}

	sv, err := ms.agg.BuildSpaceView(ctx, spaceID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("space not found: %s", spaceID)), nil
	}

	var formatted []string
	for _, c := range sv.Contracts {
		formatted = append(formatted, fmt.Sprintf("%s: %s [%s]", c.ID, c.Title, c.Status))
	}
	if len(formatted) == 0 {
		return mcp.NewToolResultText("Space has no contracts."), nil
	}
	return mcp.NewToolResultText(strings.Join(formatted, "\n")), nil
}
