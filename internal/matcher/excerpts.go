package matcher

import (
	"context"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"atsmatch/internal/embedding"
	"atsmatch/internal/errors"
	"atsmatch/internal/types"
)

// Chunk length bounds, in characters, after trimming
const (
	MinChunkLength = 40
	MaxChunkLength = 280
)

// separators are rewritten to line breaks before splitting, in this order
var separators = []struct{ old, new string }{
	{"•", "\n• "},
	{" - ", "\n- "},
	{"|", "\n"},
}

// SplitChunks breaks resume text into candidate excerpts. Bullets, spaced
// hyphens and pipes start new lines; lines split further after sentence
// punctuation followed by whitespace. Only chunks whose trimmed length is
// within [MinChunkLength, MaxChunkLength] are kept.
func SplitChunks(text string) []string {
	for _, sep := range separators {
		text = strings.ReplaceAll(text, sep.old, sep.new)
	}

	chunks := make([]string, 0)
	for _, part := range splitSentences(text) {
		part = strings.TrimSpace(part)
		n := utf8.RuneCountInString(part)
		if n >= MinChunkLength && n <= MaxChunkLength {
			chunks = append(chunks, part)
		}
	}
	return chunks
}

// splitSentences splits on runs of '\n'/'\r', and on whitespace runs that
// directly follow '.', '!' or '?'.
func splitSentences(text string) []string {
	var parts []string
	start := 0
	var prev rune
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		switch {
		case r == '\n' || r == '\r':
			end := skipWhile(text, i, func(c rune) bool { return c == '\n' || c == '\r' })
			parts = append(parts, text[start:i])
			start, i, prev = end, end, r
			continue
		case unicode.IsSpace(r) && (prev == '.' || prev == '!' || prev == '?'):
			end := skipWhile(text, i, unicode.IsSpace)
			parts = append(parts, text[start:i])
			start, i, prev = end, end, r
			continue
		}
		prev = r
		i += size
	}
	return append(parts, text[start:])
}

func skipWhile(text string, i int, keep func(rune) bool) int {
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !keep(r) {
			break
		}
		i += size
	}
	return i
}

// RankExcerpts scores every chunk of resumeText against jobVector and returns
// the k most similar, highest first. Ties keep resume order.
func RankExcerpts(ctx context.Context, embedder Embedder, resumeText string, jobVector []float32, k int) ([]types.Excerpt, error) {
	if k <= 0 {
		return []types.Excerpt{}, nil
	}
	chunks := SplitChunks(resumeText)
	if len(chunks) == 0 {
		return []types.Excerpt{}, nil
	}

	vectors, err := embedder.Embed(ctx, chunks)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(chunks) {
		return nil, errors.NewEmbeddingError(errors.ErrCodeEmbeddingFailed, "embedding count does not match chunk count", nil).
			WithContext("chunks", len(chunks)).
			WithContext("received", len(vectors))
	}

	excerpts := make([]types.Excerpt, len(chunks))
	for i, chunk := range chunks {
		excerpts[i] = types.Excerpt{Line: chunk, Score: embedding.Cosine(vectors[i], jobVector)}
	}
	sort.SliceStable(excerpts, func(i, j int) bool {
		return excerpts[i].Score > excerpts[j].Score
	})

	if len(excerpts) > k {
		excerpts = excerpts[:k]
	}
	return excerpts, nil
}
