// Package postgres provides a PostgreSQL implementation of the storage ports
// using the pgvector extension for similarity search.
//
// It implements DocumentStatusStore, ChunkStore and SearchOperation over a
// single *sql.DB opened with the lib/pq driver. Similarity is computed in the
// database as 1 - (embedding <=> query), the cosine distance operator of
// pgvector, and clamped to [0,1].
//
// The deployment embedding dimension is recorded on first use, exactly as the
// sqlite adapter does, and a different configured dimension is rejected.
package postgres
