package search

import (
	"context"
	"log/slog"
	"sync"

	"github.com/poiesic/kbase/core"
	"github.com/poiesic/kbase/lexical"
)

// snapshot is an immutable chunk set and its fitted index.
type snapshot struct {
	chunks []core.Chunk
	index  *lexical.Index
}

// LexicalBackend retrieves chunks by TF-IDF similarity. It needs no
// embedding model.
type LexicalBackend struct {
	mu      sync.RWMutex
	current *snapshot
	opts    lexical.Options
	monitor SearchMonitor
	logger  *slog.Logger
}

var _ Backend = (*LexicalBackend)(nil)

// LexicalOption configures a LexicalBackend.
type LexicalOption func(*LexicalBackend) error

// WithLexicalLogger sets a custom logger.
func WithLexicalLogger(logger *slog.Logger) LexicalOption {
	return func(l *LexicalBackend) error {
		if logger == nil {
			logger = slog.Default()
		}
		l.logger = logger.With("component", "lexical-backend")
		return nil
	}
}

// WithLexicalMonitor sets a monitor that observes every search.
func WithLexicalMonitor(monitor SearchMonitor) LexicalOption {
	return func(l *LexicalBackend) error {
		if monitor == nil {
			monitor = &noopMonitor{}
		}
		l.monitor = monitor
		return nil
	}
}

// WithIndexOptions overrides the vocabulary limits.
func WithIndexOptions(opts lexical.Options) LexicalOption {
	return func(l *LexicalBackend) error {
		l.opts = opts
		return nil
	}
}

// NewLexicalBackend creates a backend over chunks.
func NewLexicalBackend(chunks []core.Chunk, opts ...LexicalOption) (*LexicalBackend, error) {
	l := &LexicalBackend{
		opts:    lexical.DefaultOptions(),
		monitor: &noopMonitor{},
		logger:  slog.Default().With("component", "lexical-backend"),
	}
	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, err
		}
	}
	l.current = l.fit(chunks)
	return l, nil
}

func (l *LexicalBackend) fit(chunks []core.Chunk) *snapshot {
	owned := make([]core.Chunk, len(chunks))
	copy(owned, chunks)

	texts := make([]string, len(owned))
	for i := range owned {
		texts[i] = owned[i].Content
	}
	index := lexical.Fit(texts, l.opts)
	l.logger.Debug("lexical index fitted", "chunks", len(owned), "vocabulary", index.VocabularySize())
	return &snapshot{chunks: owned, index: index}
}

func (l *LexicalBackend) load() *snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

func (l *LexicalBackend) Kind() core.Backend { return core.BackendLexical }

// Count returns the number of indexed chunks.
func (l *LexicalBackend) Count(context.Context) (int, error) {
	return len(l.load().chunks), nil
}

// Rebuild fits a new index over chunks and swaps it in.
func (l *LexicalBackend) Rebuild(ctx context.Context, chunks []core.Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	next := l.fit(chunks)

	l.mu.Lock()
	l.current = next
	l.mu.Unlock()
	return nil
}

// Search ranks chunks against query. A non-empty docType restricts the
// candidates before ranking; term weights stay those of the whole corpus.
// k <= 0 returns every match.
func (l *LexicalBackend) Search(ctx context.Context, query string, k int, docType string) ([]core.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.monitor.Start(core.BackendLexical, query, k, docType)

	snap := l.load()
	var keep func(int) bool
	if docType != "" {
		keep = func(doc int) bool {
			return snap.chunks[doc].Metadata.DocType == docType
		}
	}

	hits := snap.index.QueryFunc(query, k, keep)
	l.monitor.AfterRetrieval(len(hits))

	results := make([]core.SearchResult, len(hits))
	for i, hit := range hits {
		chunk := snap.chunks[hit.Doc]
		results[i] = core.SearchResult{
			Content:  chunk.Content,
			Metadata: chunk.Metadata,
			Score:    float32(hit.Score),
		}
	}
	l.monitor.Finish(results)
	return results, nil
}

func (l *LexicalBackend) Close() error { return nil }
