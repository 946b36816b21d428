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

package ingestion

import "errors"

var (
	// ErrEmbedderRequired is returned when a pipeline is built without an embedder.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrEmbeddingFailed is returned when a batch could not be embedded.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrInvalidBatchSize is returned for batch sizes below one.
	ErrInvalidBatchSize = errors.New("batch size must be greater than 0")

	// ErrInvalidSource is returned for a source without a directory or type.
	ErrInvalidSource = errors.New("invalid source")

	// ErrUnsupportedFile is returned when a file extension is not .md, .txt or .json.
	ErrUnsupportedFile = errors.New("unsupported file type")

	// ErrMalformedJSON is returned when a .json knowledge file cannot be parsed.
	ErrMalformedJSON = errors.New("malformed json")
)
