package core

import (
	"encoding/binary"

	"github.com/go-crypt/x/blake2b"
)

// ID is a stable identifier derived from content.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// SourceID identifies the document a chunk was cut from.
func SourceID(sourcePath string) ID {
	return IDFromContent("source:" + sourcePath)
}

// Backend identifies which retrieval method serves searches.
type Backend int

const (
	// BackendSemantic retrieves by embedding similarity.
	BackendSemantic Backend = iota + 1
	// BackendLexical retrieves by TF-IDF term similarity.
	BackendLexical
)

func (b Backend) String() string {
	switch b {
	case BackendSemantic:
		return "semantic"
	case BackendLexical:
		return "lexical"
	default:
		return "uninitialized"
	}
}

// Metadata describes where a piece of knowledge came from.
type Metadata struct {
	SourcePath string `json:"source"`
	DocType    string `json:"type"`
	Filename   string `json:"filename"`
}

// Document is the full text of one knowledge file.
type Document struct {
	Content  string
	Metadata Metadata
}

// Chunk is a bounded slice of a Document and the unit stored in every index.
type Chunk struct {
	Content  string
	Metadata Metadata
	Ordinal  int // Position within the parent document
}

// SearchResult is one retrieved chunk.
// Scores are only comparable between results of the same backend.
type SearchResult struct {
	Content  string
	Metadata Metadata
	Score    float32
}

// Stats reports the state of a knowledge base.
type Stats struct {
	ChunkCount        int
	ActiveBackend     Backend
	CollectionName    string
	Store             string // Vector store that won the client cascade
	EmbeddingStrategy string // Embedding strategy that won the resolver cascade
}
