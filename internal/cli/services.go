package cli

import (
	"fmt"

	"atsmatch/internal/config"
	"atsmatch/internal/embedding"
	"atsmatch/internal/errors"
	"atsmatch/internal/matcher"
)

// services are the long-lived pieces shared by the match and serve commands
type services struct {
	embeddings *embedding.Service
	catalog    *matcher.CatalogStore
	matcher    *matcher.Matcher
}

func newServices(cfg *config.Config, logger *errors.Logger) (*services, error) {
	embeddings, err := embedding.NewService(cfg.Embedding, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding service: %w", err)
	}

	catalog, err := matcher.NewCatalogStore(cfg.Matching.SuggestionsFile)
	if err != nil {
		_ = embeddings.Close()
		return nil, err
	}

	m := matcher.New(embeddings, catalog, matcher.Options{
		TopK:            cfg.Matching.TopK,
		MaxTopK:         cfg.Matching.MaxTopK,
		SuggestionLimit: cfg.Matching.SuggestionLimit,
	}, logger)

	logger.Info("Matcher ready",
		"provider", embeddings.ProviderName(),
		"model", cfg.Embedding.Model,
		"suggestions", len(catalog.Catalog()),
		"suggestions_file", cfg.Matching.SuggestionsFile)

	return &services{embeddings: embeddings, catalog: catalog, matcher: m}, nil
}

func (s *services) Close() error {
	return s.embeddings.Close()
}
