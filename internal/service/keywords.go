package service

import (
	"strings"
	"unicode"
)

const maxQueryKeywords = 20

var stopWords = map[string]bool{
	"about": true, "after": true, "again": true, "also": true, "because": true,
	"been": true, "before": true, "being": true, "between": true, "both": true,
	"could": true, "does": true, "doing": true, "down": true, "during": true,
	"each": true, "from": true, "further": true, "have": true, "having": true,
	"here": true, "into": true, "just": true, "more": true, "most": true,
	"once": true, "only": true, "other": true, "over": true, "same": true,
	"should": true, "some": true, "such": true, "than": true, "that": true,
	"their": true, "them": true, "then": true, "there": true, "these": true,
	"they": true, "this": true, "those": true, "through": true, "under": true,
	"until": true, "very": true, "were": true, "what": true, "when": true,
	"where": true, "which": true, "while": true, "will": true, "with": true,
	"would": true, "your": true,
}

// extractKeywords prepares a query for the non-semantic fallback: lowercase,
// punctuation stripped, stop words and short tokens dropped, deduped, capped.
func extractKeywords(query string) []string {
	lowered := strings.ToLower(query)
	fields := strings.FieldsFunc(lowered, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	seen := make(map[string]bool, len(fields))
	keywords := make([]string, 0, len(fields))
	for _, token := range fields {
		if len(token) <= 3 {
			continue
		}
		if stopWords[token] {
			continue
		}
		if seen[token] {
			continue
		}
		seen[token] = true
		keywords = append(keywords, token)
		if len(keywords) >= maxQueryKeywords {
			break
		}
	}
	return keywords
}
