// Package memory provides in-memory implementations of the storage ports.
//
// These stores keep everything in process memory and lose it on exit. They
// back the "memory" store backend, used for one-shot ingestion and tests.
package memory
