// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/huangsam/stackreport/core"
	"github.com/huangsam/stackreport/internal/contract"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer initializes and configures the report MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(baseCfg *contract.Config, reader *core.Reader) *server.MCPServer {
	s := server.NewMCPServer(
		"Stack Report Server",
		"1.0.0",
		server.WithLogging(),
	)

	h := &toolHandler{
		baseCfg: baseCfg,
		reader:  reader,
	}

	frequencies := mcp.Enum("daily", "weekly", "monthly")

	// --- 1. Tool: get_report ---
	s.AddTool(mcp.NewTool("get_report",
		mcp.WithDescription("Fetch a persisted stack report with per-ecosystem dependency statistics."),
		mcp.WithString("name", mcp.Description("Report name: YYYY-MM-DD, or YYYY-MM for monthly reports."), mcp.Required()),
		mcp.WithString("frequency", mcp.Description("Report frequency. Defaults to 'daily'."), frequencies),
		mcp.WithBoolean("include_details", mcp.Description("Include the per-request stack details (large).")),
	), h.handleGetReport)

	// --- 2. Tool: get_trending ---
	s.AddTool(mcp.NewTool("get_trending",
		mcp.WithDescription("Fetch the top stacks and top dependencies of one ecosystem from a stack report."),
		mcp.WithString("name", mcp.Description("Report name: YYYY-MM-DD, or YYYY-MM for monthly reports."), mcp.Required()),
		mcp.WithString("ecosystem", mcp.Description("Ecosystem to inspect."), mcp.Required(), mcp.Enum("npm", "golang", "pypi", "maven")),
		mcp.WithString("frequency", mcp.Description("Report frequency. Defaults to 'daily'."), frequencies),
	), h.handleGetTrending)

	// --- 3. Tool: get_ingestion_report ---
	s.AddTool(mcp.NewTool("get_ingestion_report",
		mcp.WithDescription("Fetch the daily ingestion report: latest-version accuracy and graph ingestion accuracy."),
		mcp.WithString("name", mcp.Description("Report date as YYYY-MM-DD."), mcp.Required()),
	), h.handleGetIngestionReport)

	// --- 4. Tool: list_reports ---
	s.AddTool(mcp.NewTool("list_reports",
		mcp.WithDescription("List the names of stored stack reports, newest first."),
		mcp.WithString("frequency", mcp.Description("Report frequency. Defaults to 'daily'."), frequencies),
		mcp.WithNumber("limit", mcp.Description("Limit the number of names returned.")),
	), h.handleListReports)

	return s
}

// StartMCPServer starts the report MCP server on stdio.
func StartMCPServer(_ context.Context, baseCfg *contract.Config, reader *core.Reader) error {
	s := NewMCPServer(baseCfg, reader)
	return server.ServeStdio(s)
}
