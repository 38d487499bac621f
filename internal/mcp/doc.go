// Package mcp exposes codebase ingestion and semantic search as MCP tools.
//
// The server uses the MCP SDK (github.com/modelcontextprotocol/go-sdk/mcp)
// and registers two tools:
//
//   - index_codebase collects, chunks, embeds and stores a source tree.
//   - semantic_search ranks stored chunks against a natural language query.
//
// Both tools call the ingest pipeline directly. Run serves them over stdio.
package mcp
