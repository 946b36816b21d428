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

// Package openai provides embedders for OpenAI-compatible APIs.
//
// Embedders are built on the langchaingo library and work against OpenAI
// or any compatible service (Ollama, LocalAI, vLLM).
//
// # Usage
//
//	config := ai.NewConfig(
//	    ai.WithEmbeddingHost("http://localhost:11434"), // /v1 added automatically
//	    ai.WithEmbeddingModels("all-minilm", "nomic-embed-text"),
//	)
//
//	res, err := ai.Resolve(ctx, logger, openai.Strategies(config)...)
//	if err != nil {
//	    // no embedding backend could be reached
//	}
//	vector, err := res.Embedder.EmbedText(ctx, "sample text")
package openai
