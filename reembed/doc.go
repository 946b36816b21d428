// Package reembed re-embeds a stored collection with another embedding
// model, and provides the batching primitives shared with ingestion.
//
// Records are read from the active generation, re-embedded in batches with
// retry and exponential backoff, normalized to unit length for cosine
// similarity, and written to a staged generation. The new generation
// replaces the old one only after every batch succeeded.
package reembed
