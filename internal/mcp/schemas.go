package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// resolveLibraryIDTool returns the tool definition for resolve-library-id
func resolveLibraryIDTool() mcp.Tool {
	return mcp.Tool{
		Name: "resolve-library-id",
		Description: "Resolves a package or product name to a library ID usable with get-library-docs. " +
			"Returns matching libraries with their description, trust-based quality score, " +
			"snippet count and indexed versions.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"libraryName": map[string]interface{}{
					"type":        "string",
					"description": "Library name to search for",
				},
			},
			Required: []string{"libraryName"},
		},
	}
}

// getLibraryDocsTool returns the tool definition for get-library-docs
func getLibraryDocsTool() mcp.Tool {
	return mcp.Tool{
		Name: "get-library-docs",
		Description: "Fetches up-to-date documentation snippets for a library, ranked by relevance to " +
			"an optional topic. Call resolve-library-id first unless the user supplied an ID " +
			"of the form /owner/name or /owner/name/version.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"libraryId": map[string]interface{}{
					"type":        "string",
					"description": "Library ID such as /vercel/next.js or /vercel/next.js/v14.2.3",
				},
				"topic": map[string]interface{}{
					"type":        "string",
					"description": "Topic to focus the documentation on, e.g. routing or hooks",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of snippets; out-of-range values are clamped",
					"default":     10,
				},
				"tokens": map[string]interface{}{
					"type":        "integer",
					"description": "Approximate token budget for the returned snippets (0 means unlimited)",
					"default":     0,
					"minimum":     0,
				},
				"format": map[string]interface{}{
					"type":        "string",
					"description": "Output format",
					"enum":        []string{"txt", "json"},
					"default":     "txt",
				},
			},
			Required: []string{"libraryId"},
		},
	}
}

// getStatusTool returns the tool definition for get-status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get-status",
		Description: "Reports corpus statistics, store health and result cache counters",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
