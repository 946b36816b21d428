package search

import (
	"log/slog"

	"github.com/poiesic/kbase/core"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to trace queries through a backend.
type SearchMonitor interface {
	Start(backend core.Backend, query string, k int, docType string)
	AfterQueryEmbedding(vector []float32)
	AfterRetrieval(candidates int)
	Finish(results []core.SearchResult)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ core.Backend, _ string, _ int, _ string) {}
func (n *noopMonitor) AfterQueryEmbedding(_ []float32)                 {}
func (n *noopMonitor) AfterRetrieval(_ int)                            {}
func (n *noopMonitor) Finish(_ []core.SearchResult)                    {}

// LoggingMonitor writes each search stage to a logger at debug level.
type LoggingMonitor struct {
	Logger *slog.Logger
}

var _ SearchMonitor = (*LoggingMonitor)(nil)

func (m *LoggingMonitor) logger() *slog.Logger {
	if m.Logger == nil {
		return slog.Default()
	}
	return m.Logger
}

func (m *LoggingMonitor) Start(backend core.Backend, query string, k int, docType string) {
	m.logger().Debug("search started", "backend", backend.String(), "query", query, "k", k, "type", docType)
}

func (m *LoggingMonitor) AfterQueryEmbedding(vector []float32) {
	m.logger().Debug("query embedded", "dimensions", len(vector))
}

func (m *LoggingMonitor) AfterRetrieval(candidates int) {
	m.logger().Debug("candidates retrieved", "candidates", candidates)
}

func (m *LoggingMonitor) Finish(results []core.SearchResult) {
	for i, result := range results {
		m.logger().Debug("search hit", "rank", i+1, "score", result.Score, "source", result.Metadata.SourcePath)
	}
	m.logger().Debug("search finished", "results", len(results))
}
