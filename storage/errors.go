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

package storage

import "errors"

var (
	// ErrCollectionNotFound indicates that the named collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrCollectionExists indicates an attempt to create a collection twice.
	ErrCollectionExists = errors.New("collection already exists")

	// ErrInvalidCollectionName indicates a name that cannot be used as a collection key.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrUnsupportedMetadata indicates collection metadata the store cannot honor.
	ErrUnsupportedMetadata = errors.New("unsupported collection metadata")

	// ErrStorageClosed indicates that the storage backend is closed.
	ErrStorageClosed = errors.New("storage is closed")

	// ErrStagingClosed indicates use of a staging area after Commit or Discard.
	ErrStagingClosed = errors.New("staging already committed or discarded")

	// ErrInvalidRecord indicates a record without an ID or vector.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrDimensionMismatch indicates a query vector whose length differs
	// from the stored vectors.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrSerializationFailed indicates a serialization/deserialization failure.
	ErrSerializationFailed = errors.New("serialization failed")
)
