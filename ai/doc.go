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

// Package ai provides the embedding abstraction used by kbase.
//
// The Embedder interface turns text into vectors. Obtaining a working
// embedder is fallible (servers may be down, models missing, certificates
// untrusted), so callers describe several Strategy values and let Resolve
// pick the first one that works:
//
//	res, err := ai.Resolve(ctx, logger, openai.Strategies(cfg)...)
//	if errors.Is(err, ai.ErrEmbeddingUnavailable) {
//	    // fall back to lexical retrieval
//	}
//
// # Implementation Packages
//
//   - ai/openai: langchaingo-backed embedders for OpenAI-compatible APIs
//   - ai/mock: deterministic test doubles
//
// Public constructors in ai/openai return the Embedder interface. Test
// constructors in ai/mock return concrete types so tests can inspect call
// counts and inject behavior.
package ai
