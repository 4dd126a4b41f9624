package matcher

import (
	"context"
	"math"

	"atsmatch/internal/embedding"
	"atsmatch/internal/errors"
)

// Embedder turns texts into L2-normalized vectors, one per input, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// SemanticResult holds the embedding comparison of a resume and a job description
type SemanticResult struct {
	Score      int
	Similarity float64
	JobVector  []float32
}

// EmbeddingScore embeds both texts in one call and maps their cosine
// similarity onto [0,100]. The job vector is returned for reuse by the
// excerpt ranker.
func EmbeddingScore(ctx context.Context, embedder Embedder, resumeText, jobText string) (*SemanticResult, error) {
	vectors, err := embedder.Embed(ctx, []string{resumeText, jobText})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 2 {
		return nil, errors.NewEmbeddingError(errors.ErrCodeEmbeddingFailed, "expected 2 embeddings", nil).
			WithContext("received", len(vectors))
	}

	sim := embedding.Cosine(vectors[0], vectors[1])
	return &SemanticResult{
		Score:      SemanticScore(sim),
		Similarity: sim,
		JobVector:  vectors[1],
	}, nil
}

// SemanticScore maps a cosine similarity to round(sim*100), clamped to [0,100].
func SemanticScore(similarity float64) int {
	return clampScore(int(math.RoundToEven(similarity * 100)))
}
