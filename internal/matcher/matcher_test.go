package matcher

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"atsmatch/internal/config"
	"atsmatch/internal/embedding"
	"atsmatch/internal/errors"
	"atsmatch/internal/formatters"
	"atsmatch/internal/types"
)

const (
	testResume = "Go engineer shipping Docker images.\nBuilt high-throughput REST services in Go to process payments at scale"
	testJob    = "Looking for Go, Docker, AWS and Kubernetes experience"
)

type recordedMatch struct {
	mode   types.Mode
	source string
	score  int
}

type matchRecorder struct {
	events []recordedMatch
}

func (r *matchRecorder) RecordMatch(_ context.Context, mode types.Mode, source string, score int, _ float64) {
	r.events = append(r.events, recordedMatch{mode, source, score})
}

func newTestMatcher(embedder Embedder) *Matcher {
	return New(embedder, nil, Options{TopK: 5, MaxTopK: 10, SuggestionLimit: 6}, nil)
}

func TestMatchText(t *testing.T) {
	embedder := &fakeEmbedder{
		exact: map[string][]float32{
			testResume: {0.8, 0.6, 0},
			testJob:    {1, 0, 0},
		},
		fallback: []float32{1, 0, 0},
	}
	recorder := &matchRecorder{}
	m := newTestMatcher(embedder)
	m.SetRecorder(recorder)

	result, err := m.MatchText(context.Background(), types.MatchRequest{
		ResumeText:     testResume,
		JobDescription: testJob,
		Mode:           "Strict",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// job tokens: looking for go docker aws and kubernetes experience (8); common: go docker (2)
	if result.KeywordScore != 25 {
		t.Errorf("Expected keyword score 25, got %d", result.KeywordScore)
	}
	if result.SemanticScore != 80 {
		t.Errorf("Expected semantic score 80, got %d", result.SemanticScore)
	}
	if result.ModeUsed != types.ModeStrict {
		t.Errorf("Expected strict mode, got %s", result.ModeUsed)
	}
	if result.MatchScore != 36 {
		t.Errorf("Expected match score 36, got %d", result.MatchScore)
	}
	if result.ResumeChars != nil {
		t.Error("Expected resume_chars to be unset for text matches")
	}

	if strings.Join(result.MatchingKeywords, ",") != "docker,go" {
		t.Errorf("Unexpected matching keywords: %v", result.MatchingKeywords)
	}
	if strings.Join(result.MissingKeywords, ",") != "and,aws,experience,for,kubernetes,looking" {
		t.Errorf("Unexpected missing keywords: %v", result.MissingKeywords)
	}
	if len(result.Suggestions) != 2 || result.Suggestions[0].Keyword != "aws" || result.Suggestions[1].Keyword != "kubernetes" {
		t.Errorf("Unexpected suggestions: %+v", result.Suggestions)
	}
	if len(result.TopRelevantLines) != 1 {
		t.Errorf("Expected the one long resume line as excerpt, got %+v", result.TopRelevantLines)
	}

	// one call for resume+job, one for the excerpt chunks
	if len(embedder.calls) != 2 {
		t.Errorf("Expected 2 embedding calls, got %d", len(embedder.calls))
	}
	if len(recorder.events) != 1 || recorder.events[0].source != SourceText || recorder.events[0].score != 36 {
		t.Errorf("Unexpected recorded events: %+v", recorder.events)
	}
}

func TestMatchTextDoesNotRedact(t *testing.T) {
	resume := "Reach me at jane@example.com about the Go role"
	embedder := &fakeEmbedder{fallback: []float32{1, 0, 0}}

	result, err := newTestMatcher(embedder).MatchText(context.Background(), types.MatchRequest{
		ResumeText:     resume,
		JobDescription: "example",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if embedder.calls[0][0] != resume {
		t.Errorf("Expected raw resume to be embedded, got %q", embedder.calls[0][0])
	}
	if result.KeywordScore != 100 {
		t.Errorf("Expected email domain to count as a keyword, got %d", result.KeywordScore)
	}
	if result.ModeUsed != types.ModeSemantic {
		t.Errorf("Expected default semantic mode, got %s", result.ModeUsed)
	}
}

func TestMatchDocument(t *testing.T) {
	document := "Jane Doe\n  jane.doe@example.com   +91 9876543210\n\nGo engineer building Docker images"
	embedder := &fakeEmbedder{fallback: []float32{1, 0, 0}}
	recorder := &matchRecorder{}
	m := newTestMatcher(embedder)
	m.SetRecorder(recorder)

	result, err := m.MatchDocument(context.Background(), types.DocumentMatchRequest{
		Document:       []byte(document),
		Filename:       "resume.txt",
		ContentType:    "text/plain",
		JobDescription: "Go and Docker",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	expectedText := "Jane Doe [REDACTED_EMAIL] +91 [REDACTED_PHONE] Go engineer building Docker images"
	if embedder.calls[0][0] != expectedText {
		t.Errorf("Expected cleaned and redacted text %q, got %q", expectedText, embedder.calls[0][0])
	}
	if result.ResumeChars == nil || *result.ResumeChars != utf8.RuneCountInString(expectedText) {
		t.Errorf("Expected resume_chars %d, got %v", utf8.RuneCountInString(expectedText), result.ResumeChars)
	}
	if len(recorder.events) != 1 || recorder.events[0].source != SourceDocument {
		t.Errorf("Unexpected recorded events: %+v", recorder.events)
	}
}

func TestMatchDocumentUnsupported(t *testing.T) {
	embedder := &fakeEmbedder{}

	_, err := newTestMatcher(embedder).MatchDocument(context.Background(), types.DocumentMatchRequest{
		Document:       []byte{0x89, 'P', 'N', 'G'},
		Filename:       "photo.png",
		ContentType:    "image/png",
		JobDescription: "Go",
	})

	if !errors.HasCode(err, errors.ErrCodeUnsupportedDocument) {
		t.Errorf("Expected UNSUPPORTED_DOCUMENT, got %v", err)
	}
	if len(embedder.calls) != 0 {
		t.Error("Expected no embedding calls for rejected documents")
	}
}

func TestMatchEmbeddingFailure(t *testing.T) {
	embedder := &fakeEmbedder{err: errors.NewEmbeddingError(errors.ErrCodeCircuitOpen, "open", nil)}

	_, err := newTestMatcher(embedder).MatchText(context.Background(), types.MatchRequest{
		ResumeText:     "Go",
		JobDescription: "Go",
	})
	if !errors.HasCode(err, errors.ErrCodeCircuitOpen) {
		t.Errorf("Expected CIRCUIT_OPEN, got %v", err)
	}
}

func TestMatchTopK(t *testing.T) {
	var lines []string
	for _, word := range []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf", "hotel", "india", "juliet", "kilo", "lima"} {
		lines = append(lines, "Delivered the "+word+" project on time with a distributed team")
	}
	resume := strings.Join(lines, "\n")
	embedder := &fakeEmbedder{fallback: []float32{1, 0, 0}}
	m := newTestMatcher(embedder)

	tests := []struct {
		topK     int
		expected int
	}{
		{0, 5},
		{3, 3},
		{50, 10},
	}

	for _, tt := range tests {
		result, err := m.MatchText(context.Background(), types.MatchRequest{ResumeText: resume, JobDescription: "team", TopK: tt.topK})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if len(result.TopRelevantLines) != tt.expected {
			t.Errorf("top_k=%d: expected %d excerpts, got %d", tt.topK, tt.expected, len(result.TopRelevantLines))
		}
	}
}

func TestScoreResultJSONShape(t *testing.T) {
	embedder := &fakeEmbedder{fallback: []float32{1, 0, 0}}

	result, err := newTestMatcher(embedder).MatchText(context.Background(), types.MatchRequest{ResumeText: "", JobDescription: ""})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	expected := `{"match_score":70,"similarity":1,"semantic_score":100,"keyword_score":0,"mode_used":"semantic",` +
		`"matching_keywords":[],"missing_keywords":[],"top_relevant_lines":[],"suggestions":[]}`
	if string(data) != expected {
		t.Errorf("Unexpected JSON:\n%s\nexpected:\n%s", data, expected)
	}
}

func TestMatchIsDeterministic(t *testing.T) {
	service := embedding.NewServiceWithProvider(
		embedding.NewHashProvider(config.EmbeddingConfig{Model: "hash-bow-384"}), 16, errors.NewLogger(slog.LevelError))
	m := newTestMatcher(service)
	ctx := context.Background()

	resume := "Jane Doe jane@example.com\n" + testResume + "\nLed a migration of legacy batch jobs to Kubernetes CronJobs"
	textReq := types.MatchRequest{ResumeText: resume, JobDescription: testJob, Mode: "semantic", TopK: 3}
	docReq := types.DocumentMatchRequest{
		Document:       []byte(resume),
		Filename:       "resume.txt",
		ContentType:    "text/plain",
		JobDescription: testJob,
		Mode:           "strict",
		TopK:           3,
	}

	runs := []struct {
		name string
		run  func() (*types.ScoreResult, error)
	}{
		{"text", func() (*types.ScoreResult, error) { return m.MatchText(ctx, textReq) }},
		{"document", func() (*types.ScoreResult, error) { return m.MatchDocument(ctx, docReq) }},
	}

	for _, tt := range runs {
		t.Run(tt.name, func(t *testing.T) {
			first, err := tt.run()
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			second, err := tt.run()
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			if !reflect.DeepEqual(first, second) {
				t.Errorf("Expected identical results:\n%+v\n%+v", first, second)
			}
			firstReport, err := formatters.JSONReport(first)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			secondReport, err := formatters.JSONReport(second)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if !bytes.Equal(firstReport, secondReport) {
				t.Errorf("Expected identical report bytes:\n%s\n%s", firstReport, secondReport)
			}
		})
	}
}
