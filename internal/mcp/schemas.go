package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// indexDocsTool returns the tool definition for index_docs
func indexDocsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_docs",
		Description: "Bring the documentation index up to date with the source files. Only changed chunks are embedded; chunks that no longer exist are deleted.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"dry_run": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, report what would be embedded and deleted without calling the embedding provider or writing to the store",
					"default":     false,
				},
				"force": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, re-embed every chunk, including unchanged ones (use after switching embedding models)",
					"default":     false,
				},
			},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report what the documentation index currently holds",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
