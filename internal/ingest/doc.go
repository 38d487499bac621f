// Package ingest runs the codebase ingestion pipeline.
//
// A run resolves the language's file extension, collects matching files,
// chunks them within a token budget and, unless it is a dry run, scrubs
// secrets from each chunk, embeds the chunks in batches and upserts them
// into a vector store collection. Each phase is timed and traced.
//
// Record IDs are derived from file path, chunk index and chunk content, so
// re-ingesting an unchanged tree rewrites the same records instead of
// adding duplicates.
package ingest
