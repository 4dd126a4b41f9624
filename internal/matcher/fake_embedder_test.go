package matcher

import (
	"context"
	"strings"

	"atsmatch/internal/embedding"
)

// fakeEmbedder returns fixed vectors for known texts. Unknown texts map to
// a vector chosen by the first rule whose substring they contain, or to
// fallback.
type fakeEmbedder struct {
	exact    map[string][]float32
	contains []containsRule
	fallback []float32
	calls    [][]string
	err      error
}

type containsRule struct {
	substr string
	vector []float32
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, append([]string(nil), texts...))
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = embedding.Normalize(append([]float32(nil), f.lookup(text)...))
	}
	return out, nil
}

func (f *fakeEmbedder) lookup(text string) []float32 {
	if v, ok := f.exact[text]; ok {
		return v
	}
	for _, rule := range f.contains {
		if strings.Contains(text, rule.substr) {
			return rule.vector
		}
	}
	if f.fallback != nil {
		return f.fallback
	}
	return []float32{0, 0, 1}
}
