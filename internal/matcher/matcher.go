package matcher

import (
	"context"
	"time"
	"unicode/utf8"

	"atsmatch/internal/errors"
	"atsmatch/internal/extract"
	"atsmatch/internal/types"
)

// Result sources reported to the recorder
const (
	SourceText     = "text"
	SourceDocument = "document"
)

// Options tune the matcher. Zero values fall back to defaults.
type Options struct {
	TopK            int
	MaxTopK         int
	SuggestionLimit int
}

// Recorder receives one event per completed match
type Recorder interface {
	RecordMatch(ctx context.Context, mode types.Mode, source string, score int, seconds float64)
}

// Matcher runs the scoring pipeline. It holds no per-request state and is
// safe for concurrent use.
type Matcher struct {
	embedder Embedder
	catalog  *CatalogStore
	opts     Options
	recorder Recorder
	logger   *errors.Logger
}

// New creates a matcher. A nil catalog uses the built-in suggestions.
func New(embedder Embedder, catalog *CatalogStore, opts Options, logger *errors.Logger) *Matcher {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.MaxTopK < opts.TopK {
		opts.MaxTopK = opts.TopK
	}
	if opts.SuggestionLimit <= 0 {
		opts.SuggestionLimit = DefaultSuggestionLimit
	}
	return &Matcher{
		embedder: embedder,
		catalog:  catalog,
		opts:     opts,
		logger:   logger,
	}
}

// SetRecorder installs a match event recorder
func (m *Matcher) SetRecorder(r Recorder) {
	m.recorder = r
}

// Options returns the effective options
func (m *Matcher) Options() Options {
	return m.opts
}

// MatchText scores raw resume text against a job description. The text is
// used as given.
func (m *Matcher) MatchText(ctx context.Context, req types.MatchRequest) (*types.ScoreResult, error) {
	return m.run(ctx, req.ResumeText, req.JobDescription, req.Mode, req.TopK, SourceText)
}

// MatchDocument extracts text from an uploaded resume, collapses whitespace,
// redacts personal data and then scores it like MatchText. ResumeChars is
// the character count of the text that was scored.
func (m *Matcher) MatchDocument(ctx context.Context, req types.DocumentMatchRequest) (*types.ScoreResult, error) {
	raw, err := extract.Text(req.Document, req.Filename, req.ContentType)
	if err != nil {
		return nil, err
	}
	resumeText := RedactPII(Clean(raw))

	result, err := m.run(ctx, resumeText, req.JobDescription, req.Mode, req.TopK, SourceDocument)
	if err != nil {
		return nil, err
	}
	chars := utf8.RuneCountInString(resumeText)
	result.ResumeChars = &chars
	return result, nil
}

func (m *Matcher) run(ctx context.Context, resumeText, jobText, rawMode string, topK int, source string) (*types.ScoreResult, error) {
	start := time.Now()
	mode := NormalizeMode(rawMode)
	k := m.resolveTopK(topK)

	semantic, err := EmbeddingScore(ctx, m.embedder, resumeText, jobText)
	if err != nil {
		return nil, err
	}

	overlap := CompareKeywords(resumeText, jobText)
	keywordScore := overlap.Score()

	excerpts, err := RankExcerpts(ctx, m.embedder, resumeText, semantic.JobVector, k)
	if err != nil {
		return nil, err
	}

	result := &types.ScoreResult{
		MatchScore:       Blend(mode, semantic.Score, keywordScore),
		Similarity:       semantic.Similarity,
		SemanticScore:    semantic.Score,
		KeywordScore:     keywordScore,
		ModeUsed:         mode,
		MatchingKeywords: overlap.Matching,
		MissingKeywords:  overlap.Missing,
		TopRelevantLines: excerpts,
		Suggestions:      BuildSuggestions(m.catalog.Catalog(), overlap.Missing, m.opts.SuggestionLimit),
	}

	elapsed := time.Since(start).Seconds()
	if m.logger != nil {
		m.logger.Debug("Match completed",
			"source", source,
			"mode", string(mode),
			"match_score", result.MatchScore,
			"semantic_score", result.SemanticScore,
			"keyword_score", result.KeywordScore,
			"excerpts", len(excerpts),
			"duration_seconds", elapsed)
	}
	if m.recorder != nil {
		m.recorder.RecordMatch(ctx, mode, source, result.MatchScore, elapsed)
	}
	return result, nil
}

// resolveTopK applies the default to zero and caps at MaxTopK
func (m *Matcher) resolveTopK(topK int) int {
	if topK == 0 {
		return m.opts.TopK
	}
	return min(topK, m.opts.MaxTopK)
}
