// Package mcp implements the Model Context Protocol (MCP) server for
// repolens.
//
// The server exposes three tools to AI coding assistants:
//   - index_repository: Synchronize the index with the remote repository head
//   - retrieve_context: Retrieve merged code snippets for a question
//   - index_status: Check the index watermark and statistics
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// The server is typically started via the serve command:
//
//	repolens serve
//
// It then listens on stdin for protocol messages and writes responses to
// stdout. Structured logs go to stderr so they never corrupt the protocol
// stream.
package mcp
