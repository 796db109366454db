package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// indexRepositoryTool returns the tool definition for index_repository.
func indexRepositoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_repository",
		Description: "Synchronize the searchable index with the remote repository head. A no-op when nothing changed.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"force_full": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, re-process every matching file instead of only the changes since the last run",
					"default":     false,
				},
			},
		},
	}
}

// retrieveContextTool returns the tool definition for retrieve_context.
func retrieveContextTool() mcp.Tool {
	return mcp.Tool{
		Name:        "retrieve_context",
		Description: "Retrieve code snippets relevant to a natural-language question, merged from keyword and semantic search",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural-language question or keywords",
				},
				"max_results": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of snippets to return (3-6)",
					"default":     5,
					"minimum":     3,
					"maximum":     6,
				},
			},
			Required: []string{"query"},
		},
	}
}

// indexStatusTool returns the tool definition for index_status.
func indexStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_status",
		Description: "Report the index watermark, row counts, and embedding configuration",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
