// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads kbase settings from YAML or TOML files.
//
// Every field has a default, so a configuration file only needs to name
// what it changes:
//
//	embedding:
//	  host: http://localhost:11434
//	  models: [nomic-embed-text, all-minilm]
//	vector_db:
//	  persist_directory: data/vector_db
//	knowledge_base:
//	  root: knowledge_base
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/poiesic/kbase/ai"
	"github.com/poiesic/kbase/ingestion"
	"github.com/poiesic/kbase/storage"
)

const (
	DefaultChunkSize      = 1500
	DefaultChunkOverlap   = 300
	DefaultPersistDir     = "data/vector_db"
	DefaultCollectionName = "dream_business_knowledge"
	DefaultKnowledgeRoot  = "knowledge_base"
	DefaultK              = 5
)

var (
	// ErrUnsupportedFormat is returned for configuration files that are not
	// .yaml, .yml or .toml.
	ErrUnsupportedFormat = errors.New("unsupported configuration format")

	// ErrInvalidConfig is returned by Validate.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Duration is a time.Duration written as a string such as "30s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler, used by TOML.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Source is a knowledge directory and the document type of its files.
// A relative Dir is resolved against the knowledge base root.
type Source struct {
	Dir  string `yaml:"dir" toml:"dir"`
	Type string `yaml:"type" toml:"type"`
}

// EmbeddingConfig covers chunking and the embedding service.
type EmbeddingConfig struct {
	ChunkSize         int      `yaml:"chunk_size" toml:"chunk_size"`
	ChunkOverlap      int      `yaml:"chunk_overlap" toml:"chunk_overlap"`
	Host              string   `yaml:"host" toml:"host"`
	Models            []string `yaml:"models" toml:"models"`
	APIToken          string   `yaml:"api_token" toml:"api_token"`
	RequestsPerSecond float64  `yaml:"requests_per_second" toml:"requests_per_second"`
	ProbeTimeout      Duration `yaml:"probe_timeout" toml:"probe_timeout"`
	PoolSize          int      `yaml:"pool_size" toml:"pool_size"` // 0 selects NumCPU/2
	BatchSize         int      `yaml:"batch_size" toml:"batch_size"`
}

// VectorDBConfig locates the vector store.
type VectorDBConfig struct {
	PersistDirectory string `yaml:"persist_directory" toml:"persist_directory"`
	CollectionName   string `yaml:"collection_name" toml:"collection_name"`
}

// KnowledgeConfig locates the documents to ingest.
type KnowledgeConfig struct {
	Root          string   `yaml:"root" toml:"root"`
	Sources       []Source `yaml:"sources" toml:"sources"` // empty selects the standard layout under Root
	WatchDebounce Duration `yaml:"watch_debounce" toml:"watch_debounce"`
}

// RetrievalConfig holds search defaults.
type RetrievalConfig struct {
	DefaultK int `yaml:"default_k" toml:"default_k"`
}

// Config is the complete kbase configuration.
type Config struct {
	Embedding EmbeddingConfig `yaml:"embedding" toml:"embedding"`
	VectorDB  VectorDBConfig  `yaml:"vector_db" toml:"vector_db"`
	Knowledge KnowledgeConfig `yaml:"knowledge_base" toml:"knowledge_base"`
	Retrieval RetrievalConfig `yaml:"retrieval" toml:"retrieval"`
}

// Default returns the default configuration.
func Default() *Config {
	aiConfig := ai.DefaultConfig()
	return &Config{
		Embedding: EmbeddingConfig{
			ChunkSize:    DefaultChunkSize,
			ChunkOverlap: DefaultChunkOverlap,
			Host:         aiConfig.EmbeddingHost,
			Models:       aiConfig.EmbeddingModels,
			APIToken:     aiConfig.APIToken,
			ProbeTimeout: Duration(aiConfig.ProbeTimeout),
			BatchSize:    ingestion.DefaultBatchSize,
		},
		VectorDB: VectorDBConfig{
			PersistDirectory: DefaultPersistDir,
			CollectionName:   DefaultCollectionName,
		},
		Knowledge: KnowledgeConfig{
			Root:          DefaultKnowledgeRoot,
			WatchDebounce: Duration(ingestion.DefaultDebounce),
		},
		Retrieval: RetrievalConfig{
			DefaultK: DefaultK,
		},
	}
}

// Load reads a configuration file over the defaults. The format is chosen
// by extension.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, filepath.Ext(path))
}

// Parse decodes data in the format named by ext (".yaml", ".yml" or
// ".toml") over the defaults.
func Parse(data []byte, ext string) (*Config, error) {
	cfg := Default()
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing yaml: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing toml: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return cfg, nil
}

// Validate checks the configuration for values the engine cannot use.
func (c *Config) Validate() error {
	var errs []error
	if c.Embedding.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunk_size must be positive, got %d", c.Embedding.ChunkSize))
	}
	if c.Embedding.ChunkOverlap < 0 || c.Embedding.ChunkOverlap >= c.Embedding.ChunkSize {
		errs = append(errs, fmt.Errorf("chunk_overlap must be in [0, chunk_size), got %d", c.Embedding.ChunkOverlap))
	}
	if c.Embedding.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("batch_size must be positive, got %d", c.Embedding.BatchSize))
	}
	if c.Embedding.PoolSize < 0 {
		errs = append(errs, fmt.Errorf("pool_size cannot be negative, got %d", c.Embedding.PoolSize))
	}
	if err := c.AI().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.VectorDB.PersistDirectory == "" {
		errs = append(errs, errors.New("persist_directory cannot be empty"))
	}
	if err := storage.ValidateCollectionName(c.VectorDB.CollectionName); err != nil {
		errs = append(errs, err)
	}
	for i, source := range c.Knowledge.Sources {
		if source.Dir == "" || source.Type == "" {
			errs = append(errs, fmt.Errorf("source %d needs both dir and type", i))
		}
	}
	if c.Retrieval.DefaultK <= 0 {
		errs = append(errs, fmt.Errorf("default_k must be positive, got %d", c.Retrieval.DefaultK))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// AI returns the embedding service configuration.
func (c *Config) AI() *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(c.Embedding.Host),
		ai.WithEmbeddingModels(c.Embedding.Models...),
		ai.WithAPIToken(c.Embedding.APIToken),
		ai.WithRequestsPerSecond(c.Embedding.RequestsPerSecond),
		ai.WithProbeTimeout(time.Duration(c.Embedding.ProbeTimeout)),
	)
}

// Sources returns the ingestion sources. Without configured sources the
// standard layout under the knowledge base root is used.
func (c *Config) Sources() []ingestion.Source {
	if len(c.Knowledge.Sources) == 0 {
		return ingestion.DefaultSources(c.Knowledge.Root)
	}

	sources := make([]ingestion.Source, len(c.Knowledge.Sources))
	for i, source := range c.Knowledge.Sources {
		dir := source.Dir
		if !filepath.IsAbs(dir) && c.Knowledge.Root != "" {
			dir = filepath.Join(c.Knowledge.Root, dir)
		}
		sources[i] = ingestion.Source{Dir: dir, DocType: source.Type}
	}
	return sources
}
