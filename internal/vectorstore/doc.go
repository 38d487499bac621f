// Package vectorstore stores embedded code chunks and answers nearest
// neighbour queries over them.
//
// Two backends implement Store:
//
//   - QdrantStore talks to a Qdrant server over gRPC (port 6334). Transient
//     failures are retried with exponential backoff behind a circuit breaker.
//   - ChromemStore embeds chromem-go in process, persistent on disk or purely
//     in memory. It needs no server and backs the tests.
//
// Records are keyed by PointID, derived from the chunk's file path, index and
// content, so writing the same chunk twice overwrites instead of duplicating.
// Query results are ordered by descending similarity.
package vectorstore
