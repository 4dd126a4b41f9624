package matcher

import (
	"math"
	"regexp"
	"slices"
	"strings"
)

// MaxKeywords caps each displayed keyword list
const MaxKeywords = 40

var keywordPattern = regexp.MustCompile(`[a-zA-Z]{2,}`)

// KeywordSet is a set of lowercase alphabetic tokens
type KeywordSet map[string]struct{}

// ExtractKeywords returns every maximal run of two or more ASCII letters in
// the lowercased text.
func ExtractKeywords(text string) KeywordSet {
	set := make(KeywordSet)
	for _, token := range keywordPattern.FindAllString(strings.ToLower(text), -1) {
		set[token] = struct{}{}
	}
	return set
}

// KeywordOverlap is the comparison of resume and job description vocabularies.
type KeywordOverlap struct {
	Matching []string // sorted, at most MaxKeywords
	Missing  []string // sorted, at most MaxKeywords
	// CommonCount is len(Matching), so the score saturates at MaxKeywords shared
	// tokens. JobCount is the untruncated job vocabulary size.
	CommonCount int
	JobCount    int
}

// CompareKeywords computes common = resume ∩ job and missing = job − resume.
func CompareKeywords(resumeText, jobText string) KeywordOverlap {
	resume := ExtractKeywords(resumeText)
	job := ExtractKeywords(jobText)

	common := make([]string, 0, len(job))
	missing := make([]string, 0, len(job))
	for token := range job {
		if _, ok := resume[token]; ok {
			common = append(common, token)
		} else {
			missing = append(missing, token)
		}
	}

	matching := sortAndCap(common)
	return KeywordOverlap{
		Matching:    matching,
		Missing:     sortAndCap(missing),
		CommonCount: len(matching),
		JobCount:    len(job),
	}
}

func sortAndCap(tokens []string) []string {
	slices.Sort(tokens)
	if len(tokens) > MaxKeywords {
		tokens = tokens[:MaxKeywords]
	}
	return tokens
}

// KeywordScore is round(100 * common / job), or 0 when the job has no tokens.
func KeywordScore(commonCount, jobCount int) int {
	if jobCount <= 0 {
		return 0
	}
	ratio := float64(commonCount) / float64(jobCount)
	return clampScore(int(math.RoundToEven(ratio * 100)))
}

// Score returns the keyword score of the overlap
func (k KeywordOverlap) Score() int {
	return KeywordScore(k.CommonCount, k.JobCount)
}

func clampScore(score int) int {
	return max(0, min(100, score))
}
