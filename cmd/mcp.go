package cmd

import (
	"github.com/huangsam/stackreport/internal/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the stack report MCP server",
	Long:  `Launch an MCP server that allows AI agents to read stored stack, trending and ingestion reports via standard tools.`,
	// Logs go to stderr; stdout carries the protocol.
	PreRunE: readerSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		reader, err := newReader(rootCtx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = reader.Store.Close() }()
		return mcp.StartMCPServer(rootCtx, cfg, reader)
	},
}
