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

// Package search provides the retrieval backends behind a knowledge base.
//
// Two implementations of Backend exist:
//   - SemanticBackend embeds the query and ranks stored chunk vectors by
//     cosine similarity, through a storage.VectorStore
//   - LexicalBackend ranks chunks by TF-IDF cosine similarity and needs no
//     embedding model
//
// Both rebuild by constructing a complete new index beside the active one
// and swapping it in only when construction succeeded, so concurrent
// searches never see a partial index. Scores are only comparable between
// results of the same backend.
package search
