// Package mcp implements the Model Context Protocol server for tool access.
//
// # Overview
//
// MCP (Model Context Protocol) is a standard for AI tool integration. This
// package exposes the GitHub tool registry to MCP hosts (like Claude
// Desktop or Claude Code) over JSON-RPC 2.0.
//
// # Architecture
//
// The Dispatcher is transport-neutral: it handles initialize, tools/list,
// and tools/call, maps tool failures to JSON-RPC error objects, and records
// an audit entry per call. Two transports wrap it:
//
//   - StdioServer: line-delimited JSON-RPC over stdin/stdout, one message
//     at a time, strictly sequential. This is what MCP hosts spawn.
//   - Server: the Streamable HTTP transport (POST /mcp) with
//     Mcp-Session-Id sessions, for hosts that connect over the network.
//
// # Tool Discovery
//
// Clients call tools/list to discover available tools:
//
//	{"jsonrpc": "2.0", "method": "tools/list", "id": 1}
//
// Response includes tool schemas in JSON Schema format.
//
// # Tool Execution
//
// Clients call tools/call to execute a tool:
//
//	{
//	  "jsonrpc": "2.0",
//	  "method": "tools/call",
//	  "params": {
//	    "name": "create_github_repository",
//	    "arguments": {"name": "my-test-repo"}
//	  },
//	  "id": 2
//	}
//
// Success returns text content summarizing the outcome; failure returns a
// JSON-RPC error object with a human-readable message. Every request
// produces exactly one response.
//
// # Integration with Claude Desktop
//
// Add to Claude Desktop's MCP configuration:
//
//	{
//	  "mcpServers": {
//	    "coven-github": {
//	      "command": "coven-github",
//	      "args": ["serve"],
//	      "env": {"GITHUB_TOKEN": "<token>"}
//	    }
//	  }
//	}
package mcp
