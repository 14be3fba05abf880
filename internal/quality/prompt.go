package quality

import (
	"fmt"
	"unicode/utf8"
)

const systemPrompt = "You are a document quality validator. Analyze documents and return structured quality assessments."

const promptTemplate = `Document Title: %s
Document Content: %s

Evaluate the following aspects and return JSON with this exact structure:
{
  "completeness": {
    "score": 0-100,
    "passed": true/false,
    "issues": ["issue1", "issue2"]
  },
  "consistency": {
    "score": 0-100,
    "passed": true/false,
    "issues": ["issue1"]
  },
  "pii_detection": {
    "score": 0-100,
    "passed": true/false,
    "has_pii": true/false,
    "pii_types": ["email", "phone", "ssn"]
  },
  "language_quality": {
    "score": 0-100,
    "passed": true/false,
    "issues": []
  }
}

Completeness: Check if the document has sufficient content, proper structure, and all necessary sections.
Consistency: Verify title matches content, no contradictions, coherent narrative.
PII Detection: Identify any personally identifiable information (emails, phone numbers, SSN, addresses).
Language Quality: Assess grammar, spelling, clarity, and professionalism.
Return ONLY valid JSON, no additional text.
`

// BuildPrompt renders the scoring request for one document. Content is cut
// to maxChars characters.
func BuildPrompt(title, content string, maxChars int) string {
	return fmt.Sprintf(promptTemplate, title, TruncateRunes(content, maxChars))
}

// TruncateRunes returns at most n runes of s without splitting a code point.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
