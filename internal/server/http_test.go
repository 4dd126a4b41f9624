package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"atsmatch/internal/config"
	"atsmatch/internal/embedding"
	appErrors "atsmatch/internal/errors"
	"atsmatch/internal/matcher"
	"atsmatch/internal/observability"
	"atsmatch/internal/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testResume = "Senior Go engineer. Built REST APIs and gRPC services on Kubernetes. " +
		"Led migration of payment services to AWS with Terraform and Docker."
	testJob = "We need a Go developer with Kubernetes, Docker and Terraform experience " +
		"who can design REST APIs and mentor engineers."
)

type stubEmbedder struct {
	err error
}

func (s *stubEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, s.err
}

type stubBackend struct {
	healthy bool
}

func (b *stubBackend) ProviderName() string { return "stub" }
func (b *stubBackend) GetModelInfo(context.Context) *embedding.ModelInfo {
	return &embedding.ModelInfo{Provider: "stub", Name: "stub-model", Available: b.healthy}
}
func (b *stubBackend) Stats() map[string]any { return map[string]any{"state": "open"} }
func (b *stubBackend) IsHealthy() bool       { return b.healthy }

type testEnv struct {
	server  *Server
	handler http.Handler
}

func newTestEnv(t *testing.T, embedder matcher.Embedder, mutate func(*ServerConfig)) *testEnv {
	t.Helper()
	logger := appErrors.NewLogger(slog.LevelError)

	service := embedding.NewServiceWithProvider(
		embedding.NewHashProvider(config.EmbeddingConfig{Model: "hash-bow-384"}), 16, logger)
	if embedder == nil {
		embedder = service
	}

	catalog, err := matcher.NewCatalogStore("")
	require.NoError(t, err)

	m := matcher.New(embedder, catalog, matcher.Options{TopK: 5, MaxTopK: 10}, logger)

	cfg := ServerConfig{
		Host:           "127.0.0.1",
		Port:           "0",
		Version:        "test",
		MaxRequestSize: 1 << 20,
		MaxTopK:        10,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	appCfg := &config.Config{}
	s := NewServer(appCfg, cfg, Dependencies{Matcher: m, Embeddings: service, Catalog: catalog}, logger)
	t.Cleanup(s.cleanupRateLimiter)

	om, err := observability.NewManager(observability.Settings{ServiceName: "atsmatch"}, logger)
	require.NoError(t, err)

	return &testEnv{server: s, handler: s.Handler(om)}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func textRequest(t *testing.T, query string, body any) *http.Request {
	t.Helper()
	var payload []byte
	switch b := body.(type) {
	case string:
		payload = []byte(b)
	default:
		var err error
		payload, err = json.Marshal(b)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(http.MethodPost, "/match/text"+query, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return req
}

type uploadPart struct {
	filename string
	content  []byte
}

func documentRequest(t *testing.T, query string, file *uploadPart, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if file != nil {
		fw, err := mw.CreateFormFile("file", file.filename)
		require.NoError(t, err)
		_, err = fw.Write(file.content)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/match/pdf"+query, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) types.ScoreResult {
	t.Helper()
	var result types.ScoreResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result), rec.Body.String())
	return result
}

func TestHealthIsStatic(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReady(t *testing.T) {
	t.Run("healthy provider", func(t *testing.T) {
		env := newTestEnv(t, nil, nil)
		rec := env.do(t, httptest.NewRequest(http.MethodGet, "/ready", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "ready", body["status"])
		assert.Equal(t, "hash", body["provider"])
	})

	t.Run("open breaker", func(t *testing.T) {
		env := newTestEnv(t, nil, nil)
		env.server.Embeddings = &stubBackend{healthy: false}
		rec := env.do(t, httptest.NewRequest(http.MethodGet, "/ready", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), `"degraded"`)
	})
}

func TestMatchText(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	body := map[string]string{"resume_text": testResume, "job_description": testJob}

	rec := env.do(t, textRequest(t, "?mode=strict&top_k=2", body))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Empty(t, rec.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "{\n  \"match_score\": "), "report must be two-space indented")

	result := decodeResult(t, rec)
	assert.Equal(t, types.ModeStrict, result.ModeUsed)
	assert.Nil(t, result.ResumeChars)
	assert.Contains(t, result.MatchingKeywords, "kubernetes")
	assert.Contains(t, result.MissingKeywords, "mentor")
	assert.LessOrEqual(t, len(result.TopRelevantLines), 2)
	assert.GreaterOrEqual(t, result.MatchScore, 0)
	assert.LessOrEqual(t, result.MatchScore, 100)
}

func TestMatchTextDownloadIsSameReport(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	body := map[string]string{"resume_text": testResume, "job_description": testJob}

	plain := env.do(t, textRequest(t, "", body))
	download := env.do(t, textRequest(t, "?download=1", body))

	require.Equal(t, http.StatusOK, plain.Code)
	require.Equal(t, http.StatusOK, download.Code)
	assert.Equal(t, `attachment; filename="ats_report.json"`, download.Header().Get("Content-Disposition"))
	assert.Equal(t, plain.Body.String(), download.Body.String())
}

func TestMatchTextUnknownModeFallsBack(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	body := map[string]string{"resume_text": testResume, "job_description": testJob}

	rec := env.do(t, textRequest(t, "?mode=fuzzy", body))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, types.ModeSemantic, decodeResult(t, rec).ModeUsed)
}

func TestMatchTextRejections(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	valid := map[string]string{"resume_text": testResume, "job_description": testJob}

	tests := []struct {
		name   string
		query  string
		body   any
		status int
	}{
		{"malformed json", "", `{"resume_text":`, http.StatusBadRequest},
		{"empty body", "", "", http.StatusBadRequest},
		{"missing resume", "", map[string]string{"job_description": testJob}, http.StatusUnprocessableEntity},
		{"missing job description", "", map[string]string{"resume_text": testResume}, http.StatusUnprocessableEntity},
		{"negative top_k", "?top_k=-1", valid, http.StatusUnprocessableEntity},
		{"top_k above max", "?top_k=11", valid, http.StatusUnprocessableEntity},
		{"non-numeric top_k", "?top_k=many", valid, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, textRequest(t, tt.query, tt.body))
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())

			var errBody ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errBody))
			assert.NotEmpty(t, errBody.Error)
		})
	}
}

func TestMatchTextEmptyStringsAreScored(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec := env.do(t, textRequest(t, "", map[string]string{"resume_text": "", "job_description": testJob}))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decodeResult(t, rec)
	assert.Equal(t, 0, result.KeywordScore)
	assert.Empty(t, result.MatchingKeywords)
	assert.Empty(t, result.TopRelevantLines)
}

func TestMatchDocument(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	content := "Jane   Doe\njane.doe@example.com\n\n" + testResume

	rec := env.do(t, documentRequest(t, "?top_k=3",
		&uploadPart{filename: "resume.txt", content: []byte(content)},
		map[string]string{"job_description": testJob}))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decodeResult(t, rec)
	assert.Equal(t, types.ModeSemantic, result.ModeUsed)
	require.NotNil(t, result.ResumeChars)

	scored := matcher.RedactPII(matcher.Clean(content))
	assert.Equal(t, utf8.RuneCountInString(scored), *result.ResumeChars)
	assert.NotContains(t, rec.Body.String(), "jane.doe@example.com")
	assert.LessOrEqual(t, len(result.TopRelevantLines), 3)
}

func TestMatchDocumentModeField(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec := env.do(t, documentRequest(t, "",
		&uploadPart{filename: "resume.md", content: []byte(testResume)},
		map[string]string{"job_description": testJob, "mode": "STRICT"}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, types.ModeStrict, decodeResult(t, rec).ModeUsed)
}

func TestMatchDocumentWhitespaceJobDescriptionIsScored(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec := env.do(t, documentRequest(t, "",
		&uploadPart{filename: "resume.txt", content: []byte(testResume)},
		map[string]string{"job_description": "   "}))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decodeResult(t, rec)
	assert.Equal(t, 0, result.KeywordScore)
	assert.Empty(t, result.MatchingKeywords)
}

func TestMatchDocumentRejections(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	resume := &uploadPart{filename: "resume.txt", content: []byte(testResume)}
	jd := map[string]string{"job_description": testJob}

	tests := []struct {
		name   string
		req    func(t *testing.T) *http.Request
		status int
	}{
		{"missing file", func(t *testing.T) *http.Request {
			return documentRequest(t, "", nil, jd)
		}, http.StatusUnprocessableEntity},
		{"missing job description", func(t *testing.T) *http.Request {
			return documentRequest(t, "", resume, nil)
		}, http.StatusUnprocessableEntity},
		{"empty job description", func(t *testing.T) *http.Request {
			return documentRequest(t, "", resume, map[string]string{"job_description": ""})
		}, http.StatusUnprocessableEntity},
		{"unsupported document", func(t *testing.T) *http.Request {
			return documentRequest(t, "", &uploadPart{filename: "resume.png", content: []byte{0x89, 'P', 'N', 'G'}}, jd)
		}, http.StatusUnsupportedMediaType},
		{"broken pdf", func(t *testing.T) *http.Request {
			return documentRequest(t, "", &uploadPart{filename: "resume.pdf", content: []byte("%PDF-1.7 truncated")}, jd)
		}, http.StatusUnprocessableEntity},
		{"bad top_k", func(t *testing.T) *http.Request {
			return documentRequest(t, "?top_k=99", resume, jd)
		}, http.StatusUnprocessableEntity},
		{"not multipart", func(t *testing.T) *http.Request {
			req := httptest.NewRequest(http.MethodPost, "/match/pdf", strings.NewReader("plain"))
			req.Header.Set("Content-Type", "text/plain")
			return req
		}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.req(t))
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestEmbeddingFailures(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"breaker open", appErrors.NewEmbeddingError(appErrors.ErrCodeCircuitOpen, "circuit open", nil), http.StatusServiceUnavailable},
		{"provider failure", appErrors.NewEmbeddingError(appErrors.ErrCodeEmbeddingFailed, "upstream 500", nil), http.StatusBadGateway},
		{"unexpected error", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, &stubEmbedder{err: tt.err}, nil)
			rec := env.do(t, textRequest(t, "", map[string]string{"resume_text": testResume, "job_description": testJob}))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestAuthentication(t *testing.T) {
	env := newTestEnv(t, nil, func(cfg *ServerConfig) {
		cfg.APIKeys = []string{"secret-key-123456", ""}
	})
	body := map[string]string{"resume_text": testResume, "job_description": testJob}

	t.Run("health stays open", func(t *testing.T) {
		rec := env.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing key", func(t *testing.T) {
		rec := env.do(t, textRequest(t, "", body))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong key", func(t *testing.T) {
		req := textRequest(t, "", body)
		req.Header.Set("X-API-Key", "nope")
		assert.Equal(t, http.StatusUnauthorized, env.do(t, req).Code)
	})

	t.Run("bearer token", func(t *testing.T) {
		req := textRequest(t, "", body)
		req.Header.Set("Authorization", "Bearer secret-key-123456")
		assert.Equal(t, http.StatusOK, env.do(t, req).Code)
	})

	t.Run("header key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/stats", nil)
		req.Header.Set("X-API-Key", "secret-key-123456")
		assert.Equal(t, http.StatusOK, env.do(t, req).Code)
	})
}

func TestRateLimiting(t *testing.T) {
	env := newTestEnv(t, nil, func(cfg *ServerConfig) {
		cfg.RateLimit = &config.RateLimitConfig{Enabled: true, RequestsPerMin: 1, BurstCapacity: 1, ByIP: true}
	})
	body := map[string]string{"resume_text": testResume, "job_description": testJob}

	first := env.do(t, textRequest(t, "", body))
	second := env.do(t, textRequest(t, "", body))

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))

	other := textRequest(t, "", body)
	other.RemoteAddr = "10.1.2.3:5555"
	assert.Equal(t, http.StatusOK, env.do(t, other).Code)
}

func TestRequestSizeLimit(t *testing.T) {
	env := newTestEnv(t, nil, func(cfg *ServerConfig) { cfg.MaxRequestSize = 32 })

	rec := env.do(t, textRequest(t, "", map[string]string{"resume_text": testResume, "job_description": testJob}))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRequestID(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	assert.Equal(t, "abc-123", env.do(t, req).Header().Get(RequestIDHeader))

	generated := env.do(t, httptest.NewRequest(http.MethodGet, "/ready", nil)).Header().Get(RequestIDHeader)
	_, err := uuid.Parse(generated)
	assert.NoError(t, err)
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{appErrors.NewValidationError(appErrors.ErrCodeMissingField, "x", nil), http.StatusUnprocessableEntity},
		{appErrors.NewUnsupportedError(appErrors.ErrCodeUnsupportedDocument, "x", nil), http.StatusUnsupportedMediaType},
		{appErrors.NewIOError(appErrors.ErrCodeExtractionFailed, "x", nil), http.StatusUnprocessableEntity},
		{appErrors.NewIOError(appErrors.ErrCodeFileTooLarge, "x", nil), http.StatusRequestEntityTooLarge},
		{appErrors.NewEmbeddingError(appErrors.ErrCodeEmbeddingTimeout, "x", nil), http.StatusBadGateway},
		{appErrors.NewNetworkError(appErrors.ErrCodeNetworkTimeout, "x", nil), http.StatusBadGateway},
		{appErrors.NewEmbeddingError(appErrors.ErrCodeCircuitOpen, "x", nil), http.StatusServiceUnavailable},
		{fmt.Errorf("wrapped: %w", appErrors.NewEmbeddingError(appErrors.ErrCodeCircuitOpen, "x", nil)), http.StatusServiceUnavailable},
		{&http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
		{appErrors.NewInternalError("INTERNAL", "x", nil), http.StatusInternalServerError},
		{fmt.Errorf("plain"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.status, statusForError(tt.err), "%v", tt.err)
	}
}
