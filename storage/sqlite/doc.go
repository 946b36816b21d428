// Package sqlite implements storage.VectorStore on a single SQLite file.
//
// It uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO. Records are kept in a chunks table keyed by collection, generation
// and id; the collections table points at the active generation. Committing
// a staged generation updates that pointer and deletes the previous
// generation's rows in one transaction.
//
// Similarity is computed in Go over the rows of the active generation, which
// is adequate for knowledge bases of a few thousand chunks.
//
// # Schema
//
// The schema is managed through versioned migrations embedded from the
// migrations/ directory.
//
// # Thread Safety
//
// All operations are thread-safe. The store relies on SQLite locking in WAL
// mode with a busy timeout.
package sqlite
