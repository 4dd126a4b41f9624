package matcher

import (
	"maps"
	"strings"

	"atsmatch/internal/types"
)

// DefaultSuggestionLimit is the number of suggestions returned when the
// caller does not configure one
const DefaultSuggestionLimit = 6

// Catalog maps a lowercase keyword to a resume improvement sentence
type Catalog map[string]string

var builtinCatalog = Catalog{
	"docker":       "Add Docker to your skills and mention containerizing an app/model.",
	"kubernetes":   "Mention basic Kubernetes or deployment on K8s (even a small project).",
	"aws":          "Add AWS basics: S3, EC2, IAM or deploying via AWS.",
	"gcp":          "Add GCP basics: Cloud Storage, Cloud Run, Vertex AI (optional).",
	"azure":        "Add Azure basics: Azure Functions/App Service and storage.",
	"sql":          "Mention SQL queries, joins, window functions, and one project using SQL.",
	"postgresql":   "Mention PostgreSQL and using it as an app DB.",
	"mongodb":      "Mention MongoDB + schema design + indexing basics.",
	"fastapi":      "Mention FastAPI REST APIs + auth + deployment.",
	"transformers": "Mention transformers/LLMs and embeddings usage (SentenceTransformers).",
	"nlp":          "Mention NLP tasks: classification, similarity, extraction, NER.",
	"pytorch":      "Mention PyTorch training/inference basics.",
	"mlops":        "Mention monitoring, drift, retraining or CI/CD for ML.",
	"ci":           "Mention GitHub Actions or CI pipeline for tests/builds.",
	"testing":      "Mention unit tests (pytest) and API tests.",
	"streamlit":    "Mention building an interactive Streamlit UI for demos and stakeholders.",
	"react":        "Mention React/Next.js basics and integrating with REST APIs.",
	"nextjs":       "Mention Next.js app and connecting backend APIs.",
	"linux":        "Mention basic Linux commands + deployment familiarity.",
	"git":          "Mention Git workflow: branching, PRs, code review basics.",
}

// DefaultCatalog returns a copy of the built-in suggestion catalog
func DefaultCatalog() Catalog {
	return maps.Clone(builtinCatalog)
}

// BuildSuggestions walks missing in order and emits the catalog entry for
// each known keyword, at most once per keyword, stopping after limit entries.
func BuildSuggestions(catalog Catalog, missing []string, limit int) []types.Suggestion {
	suggestions := make([]types.Suggestion, 0)
	if limit <= 0 {
		return suggestions
	}

	seen := make(map[string]struct{}, len(missing))
	for _, keyword := range missing {
		keyword = strings.ToLower(keyword)
		if _, dup := seen[keyword]; dup {
			continue
		}
		text, ok := catalog[keyword]
		if !ok {
			continue
		}
		seen[keyword] = struct{}{}
		suggestions = append(suggestions, types.Suggestion{Keyword: keyword, Suggestion: text})
		if len(suggestions) >= limit {
			break
		}
	}
	return suggestions
}
