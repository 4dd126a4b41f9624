package common

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"atsmatch/internal/errors"
	"atsmatch/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMatcher struct {
	got types.DocumentMatchRequest
}

func (s *stubMatcher) MatchDocument(_ context.Context, req types.DocumentMatchRequest) (*types.ScoreResult, error) {
	s.got = req
	return &types.ScoreResult{
		MatchScore:       62,
		ModeUsed:         types.ModeSemantic,
		MatchingKeywords: []string{"go"},
		MissingKeywords:  []string{},
		TopRelevantLines: []types.Excerpt{},
		Suggestions:      []types.Suggestion{},
	}, nil
}

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRunMatchCommandWritesReport(t *testing.T) {
	dir := t.TempDir()
	logger := errors.NewLogger(slog.LevelError)
	matcher := &stubMatcher{}
	out := filepath.Join(dir, "out", "report.json")

	err := RunMatchCommand(context.Background(), logger, matcher, MatchCommandConfig{
		CommandConfig: CommandConfig{OutputFile: out, OutputFormat: "json"},
		ResumeFile:    writeTemp(t, dir, "resume.md", "Go engineer"),
		JobFile:       writeTemp(t, dir, "job.txt", "Go developer"),
		Mode:          "strict",
		TopK:          3,
		MaxFileSize:   1024,
	})
	require.NoError(t, err)

	assert.Equal(t, "Go engineer", string(matcher.got.Document))
	assert.Equal(t, "resume.md", matcher.got.Filename)
	assert.Empty(t, matcher.got.ContentType)
	assert.Equal(t, "Go developer", matcher.got.JobDescription)
	assert.Equal(t, "strict", matcher.got.Mode)
	assert.Equal(t, 3, matcher.got.TopK)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, float64(62), decoded["match_score"])
}

func TestRunMatchCommandSniffsUnknownExtension(t *testing.T) {
	dir := t.TempDir()
	matcher := &stubMatcher{}

	err := RunMatchCommand(context.Background(), nil, matcher, MatchCommandConfig{
		CommandConfig: CommandConfig{OutputFile: filepath.Join(dir, "r.txt"), OutputFormat: "text"},
		ResumeFile:    writeTemp(t, dir, "resume", "%PDF-1.4 fake"),
		JobFile:       writeTemp(t, dir, "job.txt", "Go"),
	})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", matcher.got.ContentType)
}

func TestRunMatchCommandInputErrors(t *testing.T) {
	dir := t.TempDir()
	job := writeTemp(t, dir, "job.txt", "Go developer")
	big := writeTemp(t, dir, "big.txt", "0123456789")

	tests := []struct {
		name   string
		resume string
		code   string
	}{
		{"missing resume", filepath.Join(dir, "missing.pdf"), "INVALID_INPUT_FILE"},
		{"resume too large", big, errors.ErrCodeFileTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := RunMatchCommand(context.Background(), nil, &stubMatcher{}, MatchCommandConfig{
				CommandConfig: CommandConfig{OutputFormat: "json"},
				ResumeFile:    tt.resume,
				JobFile:       job,
				MaxFileSize:   5,
			})
			assert.True(t, errors.HasCode(err, tt.code), "expected %s, got %v", tt.code, err)
		})
	}
}
