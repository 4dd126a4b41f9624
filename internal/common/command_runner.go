package common

import (
	"context"
	"net/http"
	"path/filepath"

	"atsmatch/internal/errors"
	"atsmatch/internal/extract"
	"atsmatch/internal/types"
)

// DocumentMatcher scores resume documents against a job description
type DocumentMatcher interface {
	MatchDocument(ctx context.Context, req types.DocumentMatchRequest) (*types.ScoreResult, error)
}

// MatchCommandConfig holds the inputs of a file-based match
type MatchCommandConfig struct {
	CommandConfig
	ResumeFile  string
	JobFile     string
	Mode        string
	TopK        int
	MaxFileSize int64
}

// RunMatchCommand reads the resume and job description files, scores them
// through the document pipeline and writes the formatted report.
func RunMatchCommand(ctx context.Context, logger *errors.Logger, matcher DocumentMatcher, cfg MatchCommandConfig) error {
	fileProcessor := NewFileProcessor(logger, cfg.MaxFileSize)
	outputHandler := NewOutputHandler(logger)

	resume, err := fileProcessor.ReadResume(cfg.ResumeFile)
	if err != nil {
		return err
	}
	jobDescription, err := fileProcessor.ReadText(cfg.JobFile)
	if err != nil {
		return err
	}

	if logger != nil {
		logger.Info("Matching resume",
			"resume", cfg.ResumeFile,
			"job", cfg.JobFile,
			"mode", cfg.Mode,
			"top_k", cfg.TopK,
			"format", cfg.OutputFormat)
	}

	result, err := matcher.MatchDocument(ctx, types.DocumentMatchRequest{
		Document:       resume,
		Filename:       filepath.Base(cfg.ResumeFile),
		ContentType:    sniffContentType(cfg.ResumeFile, resume),
		JobDescription: jobDescription,
		Mode:           cfg.Mode,
		TopK:           cfg.TopK,
	})
	if err != nil {
		return err
	}

	return outputHandler.HandleOutput(result, cfg.CommandConfig)
}

// sniffContentType leaves detection to the extension when it is known
func sniffContentType(filename string, data []byte) string {
	if extract.Detect(nil, filename, "") != extract.KindUnknown {
		return ""
	}
	return http.DetectContentType(data)
}
