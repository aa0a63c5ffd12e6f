// Package mcp implements the Model Context Protocol (MCP) server for DocContext.
//
// The server exposes three tools to AI coding assistants:
//   - resolve-library-id: map a package name to a library ID
//   - get-library-docs: ranked documentation snippets for a library
//   - get-status: corpus and cache statistics
//
// The server speaks JSON-RPC 2.0 over stdio. Logs go to stderr.
//
// # Tool: resolve-library-id
//
//	Request:
//	{
//	  "name": "resolve-library-id",
//	  "arguments": {"libraryName": "next.js"}
//	}
//
//	Response:
//	{
//	  "count": 1,
//	  "libraries": [
//	    {
//	      "id": "/vercel/next.js",
//	      "title": "Next.js",
//	      "qualityScore": 0.92,
//	      "totalSnippets": 3200,
//	      "versions": ["v14.2.3", "v13.5.0"]
//	    }
//	  ]
//	}
//
// # Tool: get-library-docs
//
//	Request:
//	{
//	  "name": "get-library-docs",
//	  "arguments": {
//	    "libraryId": "/vercel/next.js/v14.2.3",
//	    "topic": "routing",
//	    "limit": 5,
//	    "tokens": 4000,
//	    "format": "txt"
//	  }
//	}
//
// The response text is the rendered payload. The format defaults to txt for
// this tool; json returns the envelope described by format.Schema.
//
// # Error Handling
//
// Error codes:
//   - -32602: invalid params (missing arguments, malformed library ID, unknown format)
//   - -32603: internal error
//   - -32001: library not found
//   - -32003: snippet store or scorer unavailable after retries
//   - -32004: empty library search query
package mcp
