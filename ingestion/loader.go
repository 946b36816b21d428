package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/poiesic/kbase/core"
)

// Source is a directory of knowledge files sharing one document type.
type Source struct {
	Dir     string
	DocType string
}

// DefaultSources returns the standard layout under root: frameworks,
// case_studies, templates and benchmarks.
func DefaultSources(root string) []Source {
	return []Source{
		{Dir: filepath.Join(root, "frameworks"), DocType: "framework"},
		{Dir: filepath.Join(root, "case_studies"), DocType: "case_study"},
		{Dir: filepath.Join(root, "templates"), DocType: "template"},
		{Dir: filepath.Join(root, "benchmarks"), DocType: "benchmark"},
	}
}

// Supported reports whether path has an extension the loader reads.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".txt", ".json":
		return true
	default:
		return false
	}
}

// LoadFile reads one knowledge file. It returns core.ErrEmptyContent for
// files without text.
func LoadFile(path, docType string) (core.Document, error) {
	if !Supported(path) {
		return core.Document{}, fmt.Errorf("%w: %s", ErrUnsupportedFile, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return core.Document{}, err
	}

	content := string(data)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		content, err = ExtractJSON(data)
		if err != nil {
			return core.Document{}, err
		}
	}

	doc := core.Document{
		Content: content,
		Metadata: core.Metadata{
			SourcePath: path,
			DocType:    docType,
			Filename:   filepath.Base(path),
		},
	}
	if err := core.ValidateDocument(&doc); err != nil {
		return core.Document{}, err
	}
	return doc, nil
}

type file struct {
	path    string
	docType string
}

// Loader reads documents from a list of sources.
type Loader struct {
	sources     []Source
	concurrency int
	logger      *slog.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader) error

// WithConcurrency bounds the number of files read at once.
// Default is runtime.NumCPU().
func WithConcurrency(n int) LoaderOption {
	return func(l *Loader) error {
		if n < 1 {
			n = 1
		}
		l.concurrency = n
		return nil
	}
}

// WithLoaderLogger sets a custom logger.
// Default is slog.Default().
func WithLoaderLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) error {
		if logger == nil {
			logger = slog.Default()
		}
		l.logger = logger
		return nil
	}
}

// NewLoader creates a loader. Every source needs a directory and a type.
func NewLoader(sources []Source, opts ...LoaderOption) (*Loader, error) {
	for i, source := range sources {
		if source.Dir == "" || source.DocType == "" {
			return nil, fmt.Errorf("%w: source %d needs a directory and a type", ErrInvalidSource, i)
		}
	}

	l := &Loader{
		sources:     append([]Source(nil), sources...),
		concurrency: runtime.NumCPU(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, err
		}
	}
	l.logger = l.logger.With("component", "loader")
	return l, nil
}

// Sources returns the configured sources.
func (l *Loader) Sources() []Source {
	return append([]Source(nil), l.sources...)
}

// Load reads every supported file under the sources. Documents come back in
// source order, then in lexical path order within a source. Files that
// cannot be read are skipped with a warning; only context cancellation
// fails the load.
func (l *Loader) Load(ctx context.Context) ([]core.Document, error) {
	files := l.discover()

	slots := make([]*core.Document, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)

	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			doc, err := LoadFile(f.path, f.docType)
			if err != nil {
				if errors.Is(err, core.ErrEmptyContent) {
					l.logger.Debug("skipping empty file", "path", f.path)
				} else {
					l.logger.Warn("failed to load file", "path", f.path, "err", err)
				}
				return nil
			}
			slots[i] = &doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	docs := make([]core.Document, 0, len(files))
	for _, doc := range slots {
		if doc != nil {
			docs = append(docs, *doc)
		}
	}

	if len(docs) == 0 {
		l.logger.Warn("no documents found in knowledge base directories", "sources", len(l.sources))
	} else {
		l.logger.Info("loaded documents", "documents", len(docs), "files", len(files))
	}
	return docs, nil
}

func (l *Loader) discover() []file {
	var files []file
	for _, source := range l.sources {
		info, err := os.Stat(source.Dir)
		if err != nil || !info.IsDir() {
			l.logger.Debug("skipping missing source directory", "dir", source.Dir, "type", source.DocType)
			continue
		}

		err = filepath.WalkDir(source.Dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				l.logger.Warn("failed to read path", "path", path, "err", err)
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.Type().IsRegular() && Supported(path) {
				files = append(files, file{path: path, docType: source.DocType})
			}
			return nil
		})
		if err != nil {
			l.logger.Warn("failed to walk source directory", "dir", source.Dir, "err", err)
		}
	}
	return files
}
