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


// Package kbase is a retrieval-augmented knowledge base over a corpus of
// business documents.
//
// An Engine loads the documents listed in its configuration, splits them
// into chunks and serves similarity searches over them. It prefers
// semantic search through an embedding model and a vector store, and
// falls back to a TF-IDF index when no embedding model or store can be
// reached. The choice is made once, by Initialize, and reported by Stats.
//
//	engine, err := kbase.New(cfg)
//	if err != nil {
//	    return err
//	}
//	defer engine.Close()
//	if err := engine.Initialize(ctx); err != nil {
//	    return err
//	}
//	results := engine.Search(ctx, "用户需求验证", 5, "")
package kbase
