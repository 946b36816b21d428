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

// Package storage defines the vector store abstraction used by kbase.
//
// A VectorStore holds named collections. Each Collection stores chunk
// records, with their embedding vectors, under a generation. Exactly one
// generation is active at a time; queries and counts only ever see the
// active one.
//
// Rebuilding a collection goes through a Staging area:
//
//	staging, err := collection.Stage(ctx)
//	if err != nil {
//	    return err
//	}
//	if err := staging.Add(ctx, records...); err != nil {
//	    staging.Discard(ctx)
//	    return err
//	}
//	return staging.Commit(ctx) // atomic swap, old generation purged
//
// Readers never observe a half-built generation: Commit switches the active
// pointer in a single transaction.
//
// # Implementations
//
//   - storage/badger: BadgerDB, persistent or in-memory
//   - storage/sqlite: SQLite through modernc.org/sqlite
//
// # Constructor Return Type Pattern
//
// Public constructors in implementation packages return concrete store
// types so callers can reach implementation-specific helpers; everything
// above the storage layer depends only on the interfaces in this package.
//
// # Thread Safety
//
// All implementations must be safe for concurrent use.
package storage
