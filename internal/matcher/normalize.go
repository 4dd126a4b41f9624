package matcher

import (
	"regexp"
	"strings"
)

// Placeholders substituted for personal data
const (
	RedactedEmail = "[REDACTED_EMAIL]"
	RedactedPhone = "[REDACTED_PHONE]"
)

var (
	// Group 1 stands in for a leading word boundary over Unicode letters and
	// digits; the address itself must start on a word character.
	emailPattern      = regexp.MustCompile(`(^|[^\p{L}\p{N}_])[\p{L}\p{N}_][\p{L}\p{N}_.\-]*@[\p{L}\p{N}_.\-]+\.[\p{L}\p{N}_]+`)
	tenDigitPattern   = regexp.MustCompile(`\b\d{10}\b`)
	loosePhonePattern = regexp.MustCompile(`\+?\d[\d\s-]{8,}\d`)
)

// Clean collapses every whitespace run to a single space and trims the ends.
func Clean(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// RedactPII replaces email addresses and phone-like digit runs with fixed
// placeholders. Emails go first so their digits are never read as phones.
// The exact ten-digit pass runs before the loose pass, so a number such as
// "+91 9876543210" keeps its country code: "+91 [REDACTED_PHONE]".
func RedactPII(text string) string {
	text = emailPattern.ReplaceAllString(text, "${1}"+RedactedEmail)
	text = tenDigitPattern.ReplaceAllLiteralString(text, RedactedPhone)
	text = loosePhonePattern.ReplaceAllLiteralString(text, RedactedPhone)
	return text
}
