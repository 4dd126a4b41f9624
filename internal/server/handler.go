package server

import (
	"errors"
	"io"
	"net/http"

	"atsmatch/internal/common"
	appErrors "atsmatch/internal/errors"
	"atsmatch/internal/observability"
	"atsmatch/internal/types"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// multipartMemory is how much of an upload ParseMultipartForm keeps in memory
const multipartMemory = 32 << 20

// createMatchTextHandler scores raw resume text from a JSON body
func (s *Server) createMatchTextHandler(om *observability.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := om.Tracer("atsmatch.api").Start(r.Context(), "api.match_text")
		defer span.End()
		r = r.WithContext(ctx)

		var req MatchTextRequest
		if err := parseJSONRequest(r, &req); err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				s.failSpan(span, err, "size")
				writeErrorResponse(w, "Request too large", err.Error(), http.StatusRequestEntityTooLarge)
				return
			}
			s.failSpan(span, err, "validation")
			writeErrorResponse(w, "Invalid request body", err.Error(), http.StatusBadRequest)
			return
		}

		if req.ResumeText == nil {
			s.rejectMissing(w, span, "resume_text")
			return
		}
		if req.JobDescription == nil {
			s.rejectMissing(w, span, "job_description")
			return
		}

		mode := r.URL.Query().Get("mode")
		topK, ok := s.readTopK(w, r, span)
		if !ok {
			return
		}
		s.noteMode(r, mode)

		span.SetAttributes(
			attribute.Int("request.resume_length", len(*req.ResumeText)),
			attribute.Int("request.job_length", len(*req.JobDescription)),
			attribute.String("request.mode", mode),
			attribute.Int("request.top_k", topK),
		)

		result, err := s.Matcher.MatchText(ctx, types.MatchRequest{
			ResumeText:     *req.ResumeText,
			JobDescription: *req.JobDescription,
			Mode:           mode,
			TopK:           topK,
		})
		if err != nil {
			s.failSpan(span, err, "match")
			s.writeMatchError(w, r, err)
			return
		}

		s.respond(w, r, span, result)
	}
}

// createMatchDocumentHandler scores an uploaded resume document from a
// multipart form with fields file, job_description and mode
func (s *Server) createMatchDocumentHandler(om *observability.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := om.Tracer("atsmatch.api").Start(r.Context(), "api.match_document")
		defer span.End()
		r = r.WithContext(ctx)

		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				s.failSpan(span, err, "size")
				writeErrorResponse(w, "Request too large", err.Error(), http.StatusRequestEntityTooLarge)
				return
			}
			s.failSpan(span, err, "validation")
			writeErrorResponse(w, "Invalid multipart form", err.Error(), http.StatusBadRequest)
			return
		}
		defer func() {
			if r.MultipartForm != nil {
				_ = r.MultipartForm.RemoveAll()
			}
		}()

		file, header, err := r.FormFile("file")
		if err != nil {
			s.rejectMissing(w, span, "file")
			return
		}
		defer func() { _ = file.Close() }()

		jobDescription := r.FormValue("job_description")
		if jobDescription == "" {
			s.rejectMissing(w, span, "job_description")
			return
		}

		mode := r.FormValue("mode")
		if mode == "" {
			mode = string(types.ModeSemantic)
		}
		topK, ok := s.readTopK(w, r, span)
		if !ok {
			return
		}
		s.noteMode(r, mode)

		data, err := io.ReadAll(file)
		if err != nil {
			s.failSpan(span, err, "io")
			s.writeMatchError(w, r, appErrors.NewIOError(appErrors.ErrCodeFileNotReadable,
				"failed to read uploaded file", err))
			return
		}

		contentType := header.Header.Get("Content-Type")
		span.SetAttributes(
			attribute.String("request.filename", header.Filename),
			attribute.String("request.content_type", contentType),
			attribute.Int("request.document_size", len(data)),
			attribute.String("request.mode", mode),
			attribute.Int("request.top_k", topK),
		)

		result, err := s.Matcher.MatchDocument(ctx, types.DocumentMatchRequest{
			Document:       data,
			Filename:       header.Filename,
			ContentType:    contentType,
			JobDescription: jobDescription,
			Mode:           mode,
			TopK:           topK,
		})
		if err != nil {
			s.failSpan(span, err, "match")
			s.writeMatchError(w, r, err)
			return
		}

		s.respond(w, r, span, result)
	}
}

// readTopK parses and bounds top_k, writing a 422 when it is invalid
func (s *Server) readTopK(w http.ResponseWriter, r *http.Request, span trace.Span) (int, bool) {
	topK, err := parseTopK(r)
	if err == nil {
		err = common.ValidateTopK(topK, s.MaxTopK)
	}
	if err != nil {
		s.failSpan(span, err, "validation")
		writeErrorResponse(w, "Invalid query parameter", err.Error(), http.StatusUnprocessableEntity)
		return 0, false
	}
	return topK, true
}

func (s *Server) noteMode(r *http.Request, mode string) {
	if common.WarnUnknownMode(mode) {
		s.Logger.Debug("Unknown mode, using semantic",
			"mode", mode,
			"request_id", requestIDFrom(r.Context()))
	}
}

func (s *Server) rejectMissing(w http.ResponseWriter, span trace.Span, field string) {
	err := appErrors.NewValidationError(appErrors.ErrCodeMissingField, field+" is required", nil)
	s.failSpan(span, err, "validation")
	writeErrorResponse(w, "Missing field", err.Message, http.StatusUnprocessableEntity)
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, span trace.Span, result *types.ScoreResult) {
	span.SetAttributes(
		attribute.Bool("success", true),
		attribute.String("match.mode", string(result.ModeUsed)),
		attribute.Int("match.score", result.MatchScore),
		attribute.Int("match.semantic_score", result.SemanticScore),
		attribute.Int("match.keyword_score", result.KeywordScore),
		attribute.Bool("response.download", wantsDownload(r)),
	)

	if err := writeReport(w, r, result); err != nil {
		span.RecordError(err)
		s.Logger.LogError(err, "Failed to write report", "request_id", requestIDFrom(r.Context()))
	}
}

func (s *Server) failSpan(span trace.Span, err error, kind string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String("error.type", kind))
}
