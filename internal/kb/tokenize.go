package kb

import (
	"regexp"
	"sort"
	"strings"
)

const (
	minTermLen = 2
	maxTermLen = 40
)

var (
	splitPattern   = regexp.MustCompile(`[^A-Za-z0-9+_.\-]+`)
	urlPattern     = regexp.MustCompile(`^(https?://|www\.|ftp://)`)
	emailPattern   = regexp.MustCompile(`^[\w\.-]+@[\w\.-]+\.\w+$`)
	punctPattern   = regexp.MustCompile(`^[+_.\-]+$`)
	numericPattern = regexp.MustCompile(`^[\d+_.\-]+$`)
)

// stopwords are excluded from extracted terms: English function words,
// OCR artifacts, spelled-out numbers, and publishing boilerplate.
var stopwords = makeSet(
	"a", "about", "above", "after", "again", "against", "all", "am", "an", "and", "any", "are",
	"as", "at", "be", "because", "been", "before", "being", "below", "between", "both", "but",
	"by", "can", "did", "do", "does", "doing", "down", "during", "each", "few", "for", "from",
	"further", "had", "has", "have", "having", "he", "her", "here", "hers", "herself", "him",
	"himself", "his", "how", "i", "if", "in", "into", "is", "it", "its", "itself", "just",
	"me", "might", "more", "most", "must", "my", "myself", "no", "nor", "not", "now", "of",
	"off", "on", "once", "only", "or", "other", "our", "ours", "ourselves", "out", "over",
	"own", "s", "same", "she", "should", "so", "some", "such", "t", "than", "that", "the",
	"their", "theirs", "them", "themselves", "then", "there", "these", "they", "this", "those",
	"through", "to", "too", "under", "until", "up", "very", "was", "we", "were", "what",
	"when", "where", "which", "while", "who", "whom", "why", "will", "with", "would", "you",
	"your", "yours", "yourself", "yourselves",

	"page", "pages", "figure", "fig", "table", "tables", "etc", "eg", "ie", "www", "com",

	"one", "two", "three", "four", "five", "six", "seven", "eight", "nine", "ten",

	"copyright", "rights", "reserved", "inc", "ltd", "corp", "co", "company", "llc", "isbn",
	"doi", "vol", "edition", "chapter", "section", "article",

	"say", "says", "said", "get", "got", "make", "made", "use", "used", "using", "may", "shall",
)

func makeSet(words ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(words))
	for _, w := range words {
		s[w] = struct{}{}
	}
	return s
}

// Tokenize cleans raw document text into a sorted set of unique terms.
// Tokens are split on anything outside [A-Za-z0-9+_.-], lowercased,
// length-bounded to 2..40, and dropped when they are stopwords, URLs,
// emails, pure punctuation, numeric-only strings (years, phone numbers)
// or contain non-ASCII characters.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}

	seen := make(map[string]struct{})
	for _, token := range splitPattern.Split(text, -1) {
		if token == "" {
			continue
		}
		token = strings.ToLower(token)
		if len(token) < minTermLen || len(token) > maxTermLen {
			continue
		}
		if _, stop := stopwords[token]; stop {
			continue
		}
		if urlPattern.MatchString(token) || emailPattern.MatchString(token) {
			continue
		}
		if punctPattern.MatchString(token) || numericPattern.MatchString(token) {
			continue
		}
		if !isASCII(token) {
			continue
		}
		seen[token] = struct{}{}
	}

	terms := make([]string, 0, len(seen))
	for t := range seen {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	return terms
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 128 {
			return false
		}
	}
	return true
}
