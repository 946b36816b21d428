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

package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrEmptyContent indicates the Content field is empty or whitespace.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptySourcePath indicates the metadata carries no source path.
	ErrEmptySourcePath = errors.New("source path cannot be empty")

	// ErrEmptyDocType indicates the metadata carries no document type.
	ErrEmptyDocType = errors.New("document type cannot be empty")

	// ErrNegativeOrdinal indicates a chunk position below zero.
	ErrNegativeOrdinal = errors.New("chunk ordinal cannot be negative")

	// ErrAllStrategiesFailed is returned by Cascade when no strategy succeeds.
	ErrAllStrategiesFailed = errors.New("all strategies failed")
)
