// Package chunker splits documents into overlapping, size-bounded chunks.
package chunker

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/kbase/core"
	"github.com/tmc/langchaingo/textsplitter"
)

const (
	DefaultChunkSize = 1500
	DefaultOverlap   = 300
)

var (
	ErrInvalidChunkSize = errors.New("chunk size must be greater than 0")
	ErrInvalidOverlap   = errors.New("chunk overlap must be non-negative and smaller than chunk size")
	ErrNoSeparators     = errors.New("at least one separator is required")
)

// DefaultSeparators are tried in order: paragraphs, lines, CJK and Latin
// sentence punctuation, words, and finally single characters.
var DefaultSeparators = []string{"\n\n", "\n", "。", "！", "？", "；", " ", ""}

// Chunker splits documents. It is immutable and safe for concurrent use.
type Chunker struct {
	size       int
	overlap    int
	separators []string
	splitter   textsplitter.RecursiveCharacter
}

// Option configures a Chunker.
type Option func(*Chunker) error

// WithChunkSize sets the maximum chunk length in characters.
func WithChunkSize(size int) Option {
	return func(c *Chunker) error {
		if size <= 0 {
			return ErrInvalidChunkSize
		}
		c.size = size
		return nil
	}
}

// WithOverlap sets how many trailing characters of a chunk are repeated at
// the start of the next one.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) error {
		if overlap < 0 {
			return ErrInvalidOverlap
		}
		c.overlap = overlap
		return nil
	}
}

// WithSeparators replaces the ordered separator list.
func WithSeparators(separators ...string) Option {
	return func(c *Chunker) error {
		if len(separators) == 0 {
			return ErrNoSeparators
		}
		c.separators = append([]string(nil), separators...)
		return nil
	}
}

// New creates a Chunker. Defaults are a size of 1500 and an overlap of 300.
func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{
		size:       DefaultChunkSize,
		overlap:    DefaultOverlap,
		separators: DefaultSeparators,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if c.overlap >= c.size {
		return nil, fmt.Errorf("%w: overlap %d, size %d", ErrInvalidOverlap, c.overlap, c.size)
	}

	c.splitter = textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(c.size),
		textsplitter.WithChunkOverlap(c.overlap),
		textsplitter.WithSeparators(c.separators),
		textsplitter.WithLenFunc(utf8.RuneCountInString),
		textsplitter.WithKeepSeparator(true),
	)
	return c, nil
}

// Size returns the configured maximum chunk length.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Split cuts a document into chunks carrying the document's metadata and
// their position. Identical input always yields identical output.
func (c *Chunker) Split(doc core.Document) ([]core.Chunk, error) {
	pieces, err := c.splitter.SplitText(doc.Content)
	if err != nil {
		return nil, err
	}

	chunks := make([]core.Chunk, 0, len(pieces))
	for _, piece := range pieces {
		if strings.TrimSpace(piece) == "" {
			continue
		}
		chunks = append(chunks, core.Chunk{
			Content:  piece,
			Metadata: doc.Metadata,
			Ordinal:  len(chunks),
		})
	}
	return chunks, nil
}

// SplitAll chunks every document in order.
func (c *Chunker) SplitAll(docs []core.Document) ([]core.Chunk, error) {
	var all []core.Chunk
	for _, doc := range docs {
		chunks, err := c.Split(doc)
		if err != nil {
			return nil, fmt.Errorf("split %s: %w", doc.Metadata.SourcePath, err)
		}
		all = append(all, chunks...)
	}
	return all, nil
}
