package ai

import "errors"

var (
	// ErrEmbeddingUnavailable indicates the embedding provider could not produce a vector.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrGenerationUnavailable indicates the generation provider could not produce an answer.
	ErrGenerationUnavailable = errors.New("generation unavailable")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")
)
