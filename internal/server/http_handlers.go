package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	appErrors "atsmatch/internal/errors"
	"atsmatch/internal/formatters"
	"atsmatch/internal/types"
)

const reportFilename = "ats_report.json"

// getHealthCheckTimeout returns the configured readiness probe timeout
func (s *Server) getHealthCheckTimeout() time.Duration {
	if s.AppConfig == nil || s.AppConfig.Observability.HealthCheck.Timeout <= 0 {
		return 5 * time.Second
	}
	return s.AppConfig.Observability.HealthCheck.Timeout
}

// healthHandler is the static liveness probe
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.HealthResponse{Status: "ok"})
}

// readyHandler reports the embedding provider and its circuit breaker. It
// answers 503 while the breaker is not closed.
func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	if s.Embeddings == nil {
		writeErrorResponse(w, "Not ready", "embedding service not configured", http.StatusServiceUnavailable)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.getHealthCheckTimeout())
	defer cancel()

	healthy := s.Embeddings.IsHealthy()
	response := map[string]any{
		"status":          "ready",
		"service":         "atsmatch",
		"version":         s.Version,
		"provider":        s.Embeddings.ProviderName(),
		"model":           s.Embeddings.GetModelInfo(ctx),
		"circuit_breaker": s.Embeddings.Stats(),
	}

	status := http.StatusOK
	if !healthy {
		response["status"] = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

// statsHandler exposes limiter and catalog statistics
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	stats := map[string]any{
		"service": "atsmatch",
		"version": s.Version,
	}

	if s.RateLimiter != nil {
		stats["rate_limiter"] = s.RateLimiter.GetStats()
	} else {
		stats["rate_limiter"] = map[string]any{"enabled": false}
	}

	if s.Catalog != nil {
		stats["suggestions"] = map[string]any{
			"entries": len(s.Catalog.Catalog()),
			"file":    s.Catalog.Path(),
		}
	}

	if s.Matcher != nil {
		opts := s.Matcher.Options()
		stats["matching"] = map[string]any{
			"top_k":            opts.TopK,
			"max_top_k":        opts.MaxTopK,
			"suggestion_limit": opts.SuggestionLimit,
		}
	}

	writeJSON(w, http.StatusOK, stats)
}

// parseJSONRequest decodes a single JSON object from the request body
func parseJSONRequest(r *http.Request, v any) error {
	if r.Body == nil {
		return fmt.Errorf("request body is empty")
	}

	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("request body is empty")
		}
		return err
	}
	return nil
}

// parseTopK reads top_k from the query string. Absent means zero, the
// configured default.
func parseTopK(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("top_k")
	if raw == "" {
		return 0, nil
	}
	topK, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("top_k must be an integer, got %q", raw)
	}
	return topK, nil
}

// wantsDownload reports whether the client asked for the report as an attachment
func wantsDownload(r *http.Request) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get("download"))
	return err == nil && v
}

// writeReport writes the indented report. API responses and downloads share
// the same body.
func writeReport(w http.ResponseWriter, r *http.Request, result *types.ScoreResult) error {
	body, err := formatters.JSONReport(result)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	if wantsDownload(r) {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", reportFilename))
	}
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(body)
	return err
}

// statusForError maps pipeline errors to HTTP status codes
func statusForError(err error) int {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return http.StatusRequestEntityTooLarge
	}

	appErr, ok := appErrors.AsAppError(err)
	if !ok {
		return http.StatusInternalServerError
	}

	switch {
	case appErr.Code == appErrors.ErrCodeFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case appErr.Code == appErrors.ErrCodeCircuitOpen:
		return http.StatusServiceUnavailable
	case appErr.Type == appErrors.ErrorTypeUnsupported:
		return http.StatusUnsupportedMediaType
	case appErr.Type == appErrors.ErrorTypeValidation:
		return http.StatusUnprocessableEntity
	case appErr.Code == appErrors.ErrCodeExtractionFailed:
		return http.StatusUnprocessableEntity
	case appErr.Type == appErrors.ErrorTypeEmbedding, appErr.Type == appErrors.ErrorTypeNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorTitle is the short "error" field for a mapped status
func errorTitle(status int) string {
	switch status {
	case http.StatusRequestEntityTooLarge:
		return "Request too large"
	case http.StatusUnsupportedMediaType:
		return "Unsupported document"
	case http.StatusUnprocessableEntity:
		return "Unprocessable request"
	case http.StatusBadGateway:
		return "Embedding provider failed"
	case http.StatusServiceUnavailable:
		return "Embedding provider unavailable"
	default:
		return "Internal server error"
	}
}

// writeMatchError logs err and writes its mapped status
func (s *Server) writeMatchError(w http.ResponseWriter, r *http.Request, err error) int {
	status := statusForError(err)
	message := err.Error()
	if appErr, ok := appErrors.AsAppError(err); ok {
		message = appErr.Message
	}
	if status >= http.StatusInternalServerError {
		s.Logger.LogError(err, "Match request failed",
			"endpoint", r.URL.Path,
			"status", status,
			"request_id", requestIDFrom(r.Context()))
	} else {
		s.Logger.Info("Match request rejected",
			"endpoint", r.URL.Path,
			"status", status,
			"reason", message,
			"request_id", requestIDFrom(r.Context()))
	}
	writeErrorResponse(w, errorTitle(status), message, status)
	return status
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErrorResponse writes a standardized error response
func writeErrorResponse(w http.ResponseWriter, errorMsg, message string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:   errorMsg,
		Message: message,
	})
}
