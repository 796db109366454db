package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/draylor/repolens/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams        = -32602 // Invalid method parameters
	ErrorCodeInternalError        = -32603 // Internal JSON-RPC error
	ErrorCodeIndexInProgress      = -32001 // Another indexing run is already active
	ErrorCodeRetrievalUnavailable = -32002 // Every retrieval source failed
	ErrorCodeQuotaExhausted       = -32003 // Remote API quota exhausted
)

// handleIndexRepository handles the index_repository tool invocation.
func (s *Server) handleIndexRepository(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		args = map[string]interface{}{}
	}
	forceFull := getBoolDefault(args, "force_full", false)

	report, err := s.engine.RunIndex(ctx, forceFull)
	if err != nil {
		return nil, classifyError(err, "indexing failed")
	}

	response := map[string]interface{}{
		"repo":            report.Repo,
		"mode":            string(report.Mode),
		"commit":          report.CommitSHA,
		"files_processed": report.FilesProcessed,
		"files_failed":    report.FilesFailed,
		"files_deleted":   report.FilesDeleted,
		"chunks_written":  report.ChunksWritten,
		"total_files":     report.TotalFiles,
		"total_chunks":    report.TotalChunks,
		"duration_ms":     report.Duration.Milliseconds(),
	}
	if len(report.Failures) > 0 {
		failed := make([]string, 0, len(report.Failures))
		for _, f := range report.Failures {
			failed = append(failed, f.Path)
		}
		if len(failed) > 5 {
			response["failed_count"] = len(failed)
			failed = failed[:5]
		}
		response["failed_files"] = failed
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleRetrieveContext handles the retrieve_context tool invocation.
func (s *Server) handleRetrieveContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "query parameter is required", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	maxResults := getIntDefault(args, "max_results", 0)
	if maxResults != 0 && (maxResults < 3 || maxResults > 6) {
		return nil, newMCPError(ErrorCodeInvalidParams, "max_results must be between 3 and 6", map[string]interface{}{
			"param": "max_results",
			"value": maxResults,
		})
	}

	snippets, err := s.engine.Retrieve(ctx, query, maxResults)
	if err != nil {
		return nil, classifyError(err, "retrieval failed")
	}

	results := make([]map[string]interface{}, 0, len(snippets))
	for _, sn := range snippets {
		results = append(results, map[string]interface{}{
			"path":    sn.Path,
			"content": sn.Content,
			"source":  string(sn.Source),
			"score":   sn.Score,
		})
	}
	response := map[string]interface{}{
		"query":   query,
		"count":   len(results),
		"results": results,
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleIndexStatus handles the index_status tool invocation.
func (s *Server) handleIndexStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.engine.Status(ctx)
	if err != nil {
		return nil, classifyError(err, "status lookup failed")
	}

	response := map[string]interface{}{
		"repo":    status.Repo,
		"indexed": status.Indexed,
		"embeddings": map[string]interface{}{
			"provider":   status.EmbeddingProvider,
			"dimensions": status.Dimensions,
		},
	}
	if status.Indexed {
		response["last_commit"] = status.LastCommitSHA
		response["last_indexed_at"] = status.LastIndexedAt
		response["total_files"] = status.TotalFiles
		response["total_chunks"] = status.TotalChunks
	} else {
		response["message"] = "Repository not indexed. Use the index_repository tool first."
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// classifyError maps engine errors onto MCP error codes.
func classifyError(err error, message string) error {
	code := ErrorCodeInternalError
	switch {
	case errors.Is(err, types.ErrIndexInProgress):
		code = ErrorCodeIndexInProgress
	case errors.Is(err, types.ErrRetrievalUnavailable):
		code = ErrorCodeRetrievalUnavailable
	case errors.Is(err, types.ErrQuotaExhausted):
		code = ErrorCodeQuotaExhausted
	case errors.Is(err, types.ErrConfiguration):
		code = ErrorCodeInvalidParams
	}
	return newMCPError(code, message, map[string]interface{}{
		"error": err.Error(),
	})
}

// newMCPError creates a properly formatted MCP error.
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error.
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON.
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value.
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value.
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}
