// Package mock provides test double implementations of ai.Embedder.
//
// The mocks allow tests to run without an embedding server and give
// controlled, deterministic behavior.
//
// # Usage in Tests
//
//	// Deterministic pseudo-random vectors with call counting
//	embedder := mock.NewMockEmbedder()
//	vec, err := embedder.EmbedText(ctx, "test")
//	count := embedder.CallCount()
//
//	// Vectors that reflect shared characters, for ranking assertions
//	embedder := mock.NewHashingEmbedder()
//
//	// Resolver strategies
//	res, err := ai.Resolve(ctx, nil, mock.FailingStrategy("primary"), mock.Strategy("backup", embedder))
//
// # Default Behavior
//
//   - MockEmbedder: unit vectors derived from an FNV hash of the text
//   - HashingEmbedder: character and character-pair feature hashing
//   - FailingEmbedder: every call returns ErrUnavailable
package mock
