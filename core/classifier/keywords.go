package classifier

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// minKeywordLength is the shortest token kept as a keyword
const minKeywordLength = 3

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "this": true,
	"that": true, "from": true, "are": true, "was": true, "were": true,
	"been": true, "have": true, "has": true, "had": true, "will": true,
	"would": true, "could": true, "should": true, "may": true, "might": true,
	"can": true, "not": true, "but": true, "all": true, "any": true,
	"how": true, "when": true, "where": true, "what": true, "which": true,
	"who": true, "whom": true, "why": true, "does": true, "did": true,
	"about": true, "into": true, "there": true, "their": true, "they": true,
	"them": true, "his": true, "her": true, "hers": true, "him": true,
	"she": true, "its": true, "our": true, "you": true, "your": true,
	"tell": true, "please": true, "than": true, "then": true, "these": true,
	"those": true, "some": true, "such": true, "very": true, "just": true,
}

// Keywords lowercases and tokenizes text, dropping stopwords and tokens of
// two runes or fewer. Order of first occurrence is kept, duplicates are removed.
func Keywords(text string) []string {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})

	seen := make(map[string]bool, len(tokens))
	keywords := []string{}
	for _, token := range tokens {
		token = strings.Trim(token, "'")
		if utf8.RuneCountInString(token) < minKeywordLength || stopwords[token] || seen[token] {
			continue
		}
		seen[token] = true
		keywords = append(keywords, token)
	}
	return keywords
}

// IsStopword reports whether word is in the fixed stopword set
func IsStopword(word string) bool {
	return stopwords[strings.ToLower(word)]
}
