package formatters

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"atsmatch/internal/types"
)

// Formatter interface for different output formats
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

// FormatterRegistry manages all available formatters
type FormatterRegistry struct {
	formatters map[string]map[string]Formatter // format -> type -> formatter
}

// NewFormatterRegistry creates a new formatter registry with default formatters
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	registry.RegisterFormatter("json", "any", &JSONFormatter{})
	registry.RegisterFormatter("text", "ScoreResult", &ScoreTextFormatter{})
	registry.RegisterFormatter("markdown", "ScoreResult", &ScoreMarkdownFormatter{})

	return registry
}

// RegisterFormatter registers a new formatter for a specific format and data type
func (fr *FormatterRegistry) RegisterFormatter(format, dataType string, formatter Formatter) {
	if fr.formatters[format] == nil {
		fr.formatters[format] = make(map[string]Formatter)
	}
	fr.formatters[format][dataType] = formatter
}

// Format formats data using the appropriate formatter
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	dataType := getDataType(data)

	if formatters, exists := fr.formatters[format]; exists {
		if formatter, exists := formatters[dataType]; exists {
			return formatter.Format(data)
		}
		if formatter, exists := formatters["any"]; exists {
			return formatter.Format(data)
		}
	}

	return "", fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

// GetSupportedFormats returns all supported formats, sorted
func (fr *FormatterRegistry) GetSupportedFormats() []string {
	formats := make([]string, 0, len(fr.formatters))
	for format := range fr.formatters {
		formats = append(formats, format)
	}
	slices.Sort(formats)
	return formats
}

func getDataType(data any) string {
	switch data.(type) {
	case types.ScoreResult, *types.ScoreResult:
		return "ScoreResult"
	default:
		return "any"
	}
}

// JSONReport renders the downloadable report: two-space indented JSON. The
// HTTP API returns these same bytes.
func JSONReport(data any) ([]byte, error) {
	return json.MarshalIndent(data, "", "  ")
}

// JSONFormatter handles JSON formatting for any data type
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := JSONReport(data)
	if err != nil {
		return "", err
	}
	return string(jsonData), nil
}

func (jf *JSONFormatter) SupportedType() string {
	return "any"
}

func asScoreResult(data any) (*types.ScoreResult, error) {
	switch v := data.(type) {
	case types.ScoreResult:
		return &v, nil
	case *types.ScoreResult:
		if v == nil {
			return nil, fmt.Errorf("nil ScoreResult")
		}
		return v, nil
	default:
		return nil, fmt.Errorf("expected ScoreResult, got %T", data)
	}
}

// ScoreTextFormatter renders a match result for terminals
type ScoreTextFormatter struct{}

func (stf *ScoreTextFormatter) Format(data any) (string, error) {
	result, err := asScoreResult(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder

	output.WriteString("=== ATS MATCH ===\n")
	output.WriteString(fmt.Sprintf("Match score: %d/100 (%s mode)\n", result.MatchScore, result.ModeUsed))
	output.WriteString(fmt.Sprintf("Semantic score: %d/100 (similarity %.4f)\n", result.SemanticScore, result.Similarity))
	output.WriteString(fmt.Sprintf("Keyword score: %d/100\n", result.KeywordScore))
	if result.ResumeChars != nil {
		output.WriteString(fmt.Sprintf("Resume characters: %d\n", *result.ResumeChars))
	}
	output.WriteString("\n")

	output.WriteString("=== MATCHING KEYWORDS ===\n")
	output.WriteString(joinOrNone(result.MatchingKeywords))
	output.WriteString("\n\n")

	output.WriteString("=== MISSING KEYWORDS ===\n")
	output.WriteString(joinOrNone(result.MissingKeywords))
	output.WriteString("\n\n")

	output.WriteString("=== TOP RELEVANT LINES ===\n")
	if len(result.TopRelevantLines) == 0 {
		output.WriteString("(none)\n")
	}
	for i, excerpt := range result.TopRelevantLines {
		output.WriteString(fmt.Sprintf("%d. [%.3f] %s\n", i+1, excerpt.Score, excerpt.Line))
	}
	output.WriteString("\n")

	output.WriteString("=== SUGGESTIONS ===\n")
	if len(result.Suggestions) == 0 {
		output.WriteString("(none)\n")
	}
	for _, s := range result.Suggestions {
		output.WriteString(fmt.Sprintf("- %s: %s\n", s.Keyword, s.Suggestion))
	}

	return output.String(), nil
}

func (stf *ScoreTextFormatter) SupportedType() string {
	return "ScoreResult"
}

// ScoreMarkdownFormatter renders a match result as a markdown report
type ScoreMarkdownFormatter struct{}

func (smf *ScoreMarkdownFormatter) Format(data any) (string, error) {
	result, err := asScoreResult(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder

	output.WriteString("# ATS Match Report\n\n")
	output.WriteString("| Metric | Value |\n|---|---|\n")
	output.WriteString(fmt.Sprintf("| Match score | %d/100 |\n", result.MatchScore))
	output.WriteString(fmt.Sprintf("| Semantic score | %d/100 |\n", result.SemanticScore))
	output.WriteString(fmt.Sprintf("| Keyword score | %d/100 |\n", result.KeywordScore))
	output.WriteString(fmt.Sprintf("| Similarity | %.4f |\n", result.Similarity))
	output.WriteString(fmt.Sprintf("| Mode | %s |\n", result.ModeUsed))
	if result.ResumeChars != nil {
		output.WriteString(fmt.Sprintf("| Resume characters | %d |\n", *result.ResumeChars))
	}
	output.WriteString("\n")

	output.WriteString("## Matching Keywords\n\n")
	output.WriteString(codeList(result.MatchingKeywords))
	output.WriteString("\n\n")

	output.WriteString("## Missing Keywords\n\n")
	output.WriteString(codeList(result.MissingKeywords))
	output.WriteString("\n\n")

	output.WriteString("## Why This Score\n\n")
	if len(result.TopRelevantLines) == 0 {
		output.WriteString("_No resume lines qualified as excerpts._\n")
	}
	for _, excerpt := range result.TopRelevantLines {
		output.WriteString(fmt.Sprintf("- **%.3f** %s\n", excerpt.Score, excerpt.Line))
	}
	output.WriteString("\n")

	output.WriteString("## Suggestions\n\n")
	if len(result.Suggestions) == 0 {
		output.WriteString("_No suggestions._\n")
	}
	for _, s := range result.Suggestions {
		output.WriteString(fmt.Sprintf("- **%s**: %s\n", s.Keyword, s.Suggestion))
	}

	return output.String(), nil
}

func (smf *ScoreMarkdownFormatter) SupportedType() string {
	return "ScoreResult"
}

func joinOrNone(words []string) string {
	if len(words) == 0 {
		return "(none)"
	}
	return strings.Join(words, ", ")
}

func codeList(words []string) string {
	if len(words) == 0 {
		return "_None_"
	}
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = "`" + w + "`"
	}
	return strings.Join(quoted, " ")
}
