package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/minutes/internal/adapters/driving/mcp"
)

var mcpHTTPAddr string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server for AI assistant integration.

The server exposes two tools, search_meetings and ask_meetings, and the
minutes://meetings resources. By default it communicates over stdio using
JSON-RPC and can be used with Claude Desktop and other MCP-compatible
assistants.

Use --http to serve the streamable HTTP transport instead, which enables
testing with the MCP Inspector web UI and remote access.

Examples:
  # Stdio mode (default, for Claude Desktop)
  minutes mcp

  # HTTP mode (for MCP Inspector, remote access)
  minutes mcp --http :8090

Claude Desktop configuration (claude_desktop_config.json):
  {
    "mcpServers": {
      "minutes": {
        "command": "/path/to/minutes",
        "args": ["mcp"]
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().StringVar(&mcpHTTPAddr, "http", "", "serve HTTP on this address instead of stdio")
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	server, err := mcp.NewServer(mcpPorts())
	if err != nil {
		return err
	}

	if mcpHTTPAddr != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "MCP server listening on %s\n", mcpHTTPAddr)
		return server.RunHTTP(cmd.Context(), mcpHTTPAddr)
	}
	return server.Run(cmd.Context())
}

func mcpPorts() *mcp.Ports {
	return &mcp.Ports{
		Search:  searchService,
		RAG:     ragService,
		History: historyService,
	}
}
