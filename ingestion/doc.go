// Package ingestion turns knowledge files into embedded chunks.
//
// A Loader walks typed source directories and reads .md, .txt and .json
// files into documents, concurrently but in a deterministic order. The
// Pipeline embeds chunk texts in fixed-size batches on a worker pool,
// retrying failed requests and normalizing vectors for cosine similarity.
// A Watcher observes the source directories and triggers a rebuild after
// changes settle.
//
// Unreadable, malformed or empty files are logged and skipped; they never
// fail a load.
package ingestion
