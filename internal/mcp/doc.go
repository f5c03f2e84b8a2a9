// Package mcp implements the Model Context Protocol (MCP) server for codenotate.
//
// The server exposes four tools to AI coding assistants:
//   - annotate_file: Annotate one source file and return or write the result
//   - annotate_directory: Annotate every supported file under a directory
//   - preview_chunks: Show the chunk plan for a file without calling the backend
//   - get_status: Report ledger statistics and recent runs
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// The server is typically started via the serve command:
//
//	codenotate serve
//
// # Tool: annotate_file
//
//	Request:
//	{
//	  "name": "annotate_file",
//	  "arguments": {
//	    "path": "/src/orders.prg",
//	    "language": "vfp",
//	    "write": false
//	  }
//	}
//
//	Response:
//	{
//	  "success": true,
//	  "success_rate": 1,
//	  "chunks": 4,
//	  "metrics": {"comment_lines": 18, "coverage_ratio": 1, ...},
//	  "document": "* FILE: orders.prg\n..."
//	}
//
// A rejected file reports success false and a reason. Nothing is written in
// that case, even when write is true.
//
// # Tool: annotate_directory
//
//	Request:
//	{
//	  "name": "annotate_directory",
//	  "arguments": {
//	    "path": "/src",
//	    "dry_run": false,
//	    "max_files": 0,
//	    "resume": true,
//	    "force": false
//	  }
//	}
//
// The response lists per-file status (succeeded, failed, skipped) and the
// run ID recorded in the ledger. Only one directory run may be active.
//
// # Tool: get_status
//
// Without arguments, returns ledger statistics and the most recent runs.
// With run_id, returns that run and the outcome of each of its files.
//
// # Error Handling
//
// Error codes:
//   - -32602: Invalid params (missing/invalid arguments)
//   - -32603: Internal error (backend, ledger, filesystem)
//   - -32001: No language policy for the file
//   - -32002: Annotation run in progress
//   - -32003: Run not found
//   - -32004: Ledger disabled
//
// # Logging
//
// The server logs to stderr through zap; stdout is reserved for the protocol.
//
//	CODENOTATE_LOG_LEVEL=debug codenotate serve
package mcp
