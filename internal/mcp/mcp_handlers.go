package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/huangsam/stackreport/core"
	"github.com/huangsam/stackreport/internal/contract"
	"github.com/huangsam/stackreport/schema"
	"github.com/mark3labs/mcp-go/mcp"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	baseCfg *contract.Config
	reader  *core.Reader
}

// frequency resolves the frequency argument, falling back to the configured one.
func (h *toolHandler) frequency(request mcp.CallToolRequest) (schema.Frequency, error) {
	freq := schema.Frequency(request.GetString("frequency", string(h.baseCfg.Frequency)))
	if freq == "" {
		freq = schema.Daily
	}
	if _, ok := schema.ValidFrequencies[freq]; !ok {
		return "", fmt.Errorf("invalid frequency '%s'. must be daily, weekly, monthly", freq)
	}
	return freq, nil
}

func (h *toolHandler) handleGetReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := request.GetString("name", "")
	if name == "" {
		return mcp.NewToolResultError("name is required"), nil
	}
	freq, err := h.frequency(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	doc, err := h.reader.StackReport(ctx, freq, name)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("report lookup failed: %v", err)), nil
	}
	if !request.GetBool("include_details", false) {
		doc.StacksDetails = nil
	}
	return jsonResult(doc)
}

func (h *toolHandler) handleGetTrending(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := request.GetString("name", "")
	eco := schema.Ecosystem(request.GetString("ecosystem", ""))
	if name == "" || eco == "" {
		return mcp.NewToolResultError("name and ecosystem are required"), nil
	}
	if _, ok := schema.ValidEcosystems[eco]; !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unsupported ecosystem '%s'", eco)), nil
	}
	freq, err := h.frequency(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	trending, err := h.reader.Trending(ctx, freq, name, eco)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("trending lookup failed: %v", err)), nil
	}
	return jsonResult(trending)
}

func (h *toolHandler) handleGetIngestionReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := request.GetString("name", "")
	if !schema.ValidDate(name) {
		return mcp.NewToolResultError(fmt.Sprintf("%v: %q", contract.ErrInvalidDateFormat, name)), nil
	}

	report, err := h.reader.IngestionReport(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("ingestion report lookup failed: %v", err)), nil
	}
	// Per-package details are bulky; the summary answers the accuracy questions
	report.IngestionDetails = nil
	return jsonResult(report)
}

func (h *toolHandler) handleListReports(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	freq, err := h.frequency(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	names, err := h.reader.ListReports(ctx, freq)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing failed: %v", err)), nil
	}
	if l := request.GetInt("limit", 0); l > 0 && l < len(names) {
		names = names[:l]
	}
	return jsonResult(names)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}
