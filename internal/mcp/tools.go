package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/doccontext-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams       = -32602 // Invalid method parameters
	ErrorCodeInternalError       = -32603 // Internal JSON-RPC error
	ErrorCodeLibraryNotFound     = -32001 // Library is not in the corpus
	ErrorCodeUpstreamUnavailable = -32003 // Snippet store or scorer failed after retries
	ErrorCodeEmptyQuery          = -32004 // Query parameter is empty
)

// defaultToolFormat is used when get-library-docs is called without a format
const defaultToolFormat = "txt"

// handleResolveLibraryID handles the resolve-library-id tool invocation
func (s *Server) handleResolveLibraryID(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	name := strings.TrimSpace(getStringDefault(args, "libraryName", ""))
	if name == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "libraryName parameter is required and cannot be empty", map[string]interface{}{
			"param":  "libraryName",
			"reason": "missing or empty",
		})
	}

	matches, err := s.service.Search(ctx, name, 0)
	if err != nil {
		return nil, toolError("library search failed", err)
	}

	libraries := make([]map[string]interface{}, 0, len(matches))
	for _, m := range matches {
		versions := m.Versions
		if versions == nil {
			versions = []string{}
		}
		libraries = append(libraries, map[string]interface{}{
			"id":            "/" + m.ID,
			"title":         m.Title,
			"description":   m.Description,
			"qualityScore":  m.QualityScore,
			"stars":         m.Stars,
			"totalSnippets": m.TotalSnippets,
			"versions":      versions,
		})
	}

	response := map[string]interface{}{
		"query":     name,
		"count":     len(libraries),
		"libraries": libraries,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetLibraryDocs handles the get-library-docs tool invocation
func (s *Server) handleGetLibraryDocs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	libraryID := strings.TrimSpace(getStringDefault(args, "libraryId", ""))
	if libraryID == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "libraryId parameter is required", map[string]interface{}{
			"param":  "libraryId",
			"reason": "missing or empty",
		})
	}

	tokens := getIntDefault(args, "tokens", 0)
	if tokens < 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "tokens must not be negative", map[string]interface{}{
			"param": "tokens",
			"value": tokens,
		})
	}

	query := types.Query{
		Topic:  getStringDefault(args, "topic", ""),
		Limit:  getIntDefault(args, "limit", 0),
		Tokens: tokens,
	}
	format := getStringDefault(args, "format", defaultToolFormat)

	resp, err := s.service.GetDocs(ctx, libraryID, query, format)
	if err != nil {
		return nil, toolError("documentation retrieval failed", err)
	}
	return mcp.NewToolResultText(string(resp.Payload)), nil
}

// handleGetStatus handles the get-status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.storage.GetStatus(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	lastUpdated := ""
	if !status.LastUpdatedAt.IsZero() {
		lastUpdated = status.LastUpdatedAt.Format(time.RFC3339)
	}
	defLimit, maxLimit := s.service.Limits()

	response := map[string]interface{}{
		"corpus": map[string]interface{}{
			"libraries":       status.Libraries,
			"snippets":        status.Snippets,
			"last_updated_at": lastUpdated,
			"loading":         s.loader != nil && s.loader.Loading(),
		},
		"health": map[string]interface{}{
			"database_accessible": status.Health.DatabaseAccessible,
			"fts_indexes_built":   status.Health.FTSIndexesBuilt,
		},
		"limits": map[string]interface{}{
			"default": defLimit,
			"max":     maxLimit,
		},
		"cache": s.service.Stats(),
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// toolError maps a retrieval error onto an MCP error code
func toolError(message string, err error) error {
	data := map[string]interface{}{"error": err.Error()}
	switch {
	case errors.Is(err, types.ErrInvalidLibraryID), errors.Is(err, types.ErrInvalidFormat):
		return newMCPError(ErrorCodeInvalidParams, message, data)
	case errors.Is(err, types.ErrEmptyQuery):
		return newMCPError(ErrorCodeEmptyQuery, message, data)
	case errors.Is(err, types.ErrNotFound):
		return newMCPError(ErrorCodeLibraryNotFound, message, data)
	case errors.Is(err, types.ErrUpstreamUnavailable):
		return newMCPError(ErrorCodeUpstreamUnavailable, message, data)
	default:
		return newMCPError(ErrorCodeInternalError, message, data)
	}
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
