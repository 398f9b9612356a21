// Package mcp implements the Model Context Protocol (MCP) server for docindex.
//
// The server exposes two tools to MCP clients:
//   - index_docs: bring the documentation index up to date
//   - get_status: report what the index currently holds
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Logs go to stderr; stdout carries protocol messages only.
//
// # Tool: index_docs
//
//	Request:
//	{
//	  "name": "index_docs",
//	  "arguments": {"dry_run": false, "force": false}
//	}
//
//	Response:
//	{
//	  "run_id": "5f0c…",
//	  "dry_run": false,
//	  "files_processed": 12,
//	  "chunks_indexed": 4,
//	  "chunks_skipped": 80,
//	  "chunks_deleted": 2,
//	  "tokens_used": 1830,
//	  "estimated_cost": 0.0000366,
//	  "errors": []
//	}
//
// Files that fail are listed under "errors" with the stage that failed;
// the run still succeeds.
//
// # Tool: get_status
//
//	Response:
//	{
//	  "indexed": true,
//	  "store": {"backend": "sqlite/purego", "schema_version": "1.1.0"},
//	  "statistics": {"files_count": 12, "chunks_count": 86, ...},
//	  "meta": {"embedding_model": "openai/text-embedding-3-small"}
//	}
//
// # Error Codes
//
//   - -32602: invalid parameters
//   - -32603: internal error (store unreachable, discovery failed)
//   - -32002: another indexing run is in progress
package mcp
