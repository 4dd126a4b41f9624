package types

// Mode names a weighting policy for blending semantic and keyword scores
type Mode string

const (
	ModeSemantic Mode = "semantic"
	ModeStrict   Mode = "strict"
)

// MatchRequest is a raw-text match request
type MatchRequest struct {
	ResumeText     string
	JobDescription string
	Mode           string
	TopK           int
}

// DocumentMatchRequest carries an uploaded resume document instead of text
type DocumentMatchRequest struct {
	Document       []byte
	Filename       string
	ContentType    string
	JobDescription string
	Mode           string
	TopK           int
}

// Excerpt is a resume fragment ranked by similarity to the job description
type Excerpt struct {
	Line  string  `json:"line"`
	Score float64 `json:"score"`
}

// Suggestion is canned advice for a keyword missing from the resume
type Suggestion struct {
	Keyword    string `json:"keyword"`
	Suggestion string `json:"suggestion"`
}

// ScoreResult is the match outcome. Field order is the serialized order.
type ScoreResult struct {
	MatchScore       int          `json:"match_score"`
	Similarity       float64      `json:"similarity"`
	SemanticScore    int          `json:"semantic_score"`
	KeywordScore     int          `json:"keyword_score"`
	ModeUsed         Mode         `json:"mode_used"`
	ResumeChars      *int         `json:"resume_chars,omitempty"` // document uploads only
	MatchingKeywords []string     `json:"matching_keywords"`
	MissingKeywords  []string     `json:"missing_keywords"`
	TopRelevantLines []Excerpt    `json:"top_relevant_lines"`
	Suggestions      []Suggestion `json:"suggestions"`
}

// HealthResponse is the static liveness payload
type HealthResponse struct {
	Status string `json:"status"`
}
