package embedding

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"

	"atsmatch/internal/config"
)

const defaultHashDimensions = 384

// HashProvider is an offline, deterministic bag-of-words embedder. Unigrams
// and adjacent bigrams are hashed into a fixed number of signed buckets.
// It needs no network access and is used for air-gapped runs and tests.
type HashProvider struct {
	model      string
	dimensions int
}

var _ Provider = (*HashProvider)(nil)

// NewHashProvider creates a hashing embedder; dimensions <= 0 selects 384
func NewHashProvider(cfg config.EmbeddingConfig) *HashProvider {
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = defaultHashDimensions
	}
	return &HashProvider{model: cfg.Model, dimensions: dims}
}

func (h *HashProvider) Name() string { return config.ProviderHash }

func (h *HashProvider) Embed(ctx context.Context, texts []string) ([][]float32, *Usage, error) {
	vectors := make([][]float32, len(texts))
	var tokens int64
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		words := hashTokens(text)
		tokens += int64(len(words))
		vectors[i] = h.vectorize(words)
	}
	return vectors, &Usage{InputTokens: tokens}, nil
}

func (h *HashProvider) vectorize(words []string) []float32 {
	vec := make([]float32, h.dimensions)
	for i, word := range words {
		h.add(vec, word, 1)
		if i > 0 {
			h.add(vec, words[i-1]+" "+word, 0.5)
		}
	}
	return vec
}

func (h *HashProvider) add(vec []float32, feature string, weight float32) {
	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte(feature))
	sum := hasher.Sum64()

	bucket := int(sum % uint64(h.dimensions))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[bucket] += weight
}

// hashTokens lowercases and splits on anything that is not a letter or digit
func hashTokens(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func (h *HashProvider) GetModelInfo(context.Context) *ModelInfo {
	return &ModelInfo{Provider: config.ProviderHash, Name: h.model, Available: true}
}

func (h *HashProvider) Close() error { return nil }
