// Package sqlite stores documents, chunks and embeddings in a single
// SQLite file using the pure-Go modernc.org/sqlite driver.
//
// One Store serves three ports: DocumentStatusStore, ChunkStore and
// SearchOperation. Search is a linear cosine scan over the user's chunks,
// which suits the single-user deployments this backend targets; use the
// postgres backend for pgvector indexing.
//
// The schema lives in migrations/ and is applied with golang-migrate when
// the store opens. The first non-zero embedding size seen is pinned in the
// deployment table and every later open, write and query must match it.
package sqlite
