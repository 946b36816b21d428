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

package search

import "errors"

var (
	// ErrStoreUnavailable is returned when no vector store could be opened.
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// ErrStoreRequired is returned when a semantic backend has no store.
	ErrStoreRequired = errors.New("vector store required")

	// ErrPipelineRequired is returned when a semantic backend has no embedding pipeline.
	ErrPipelineRequired = errors.New("embedding pipeline required")

	// ErrInsertFailed is returned when a batch of records could not be stored.
	ErrInsertFailed = errors.New("insert failed")

	// ErrEmbeddingMismatch is returned when a collection was populated by a
	// different embedding model or with different dimensions.
	ErrEmbeddingMismatch = errors.New("embedding model mismatch")
)
