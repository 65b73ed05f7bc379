package kb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeBasics(t *testing.T) {
	terms := Tokenize("Kubernetes runs the AWS workload, and the workload scales.")
	assert.Equal(t, []string{"aws", "kubernetes", "runs", "scales", "workload"}, terms)
}

func TestTokenizeDropsStopwordsAndNumbers(t *testing.T) {
	terms := Tokenize("the and for 2017 608-4210314 one two terraform")
	assert.Equal(t, []string{"terraform"}, terms)
}

func TestTokenizeDropsURLsAndEmails(t *testing.T) {
	terms := Tokenize("visit https://example.org or www.example.org mail admin@example.org docs")
	assert.NotContains(t, terms, "https://example.org")
	assert.NotContains(t, terms, "www.example.org")
	assert.NotContains(t, terms, "admin@example.org")
	assert.Contains(t, terms, "docs")
	assert.Contains(t, terms, "visit")
}

func TestTokenizeLengthBounds(t *testing.T) {
	long := "abcdefghijklmnopqrstuvwxyzabcdefghijklmnopq" // 43 chars
	terms := Tokenize("x ok " + long)
	assert.Equal(t, []string{"ok"}, terms)
}

func TestTokenizeDropsPunctuationOnlyTokens(t *testing.T) {
	terms := Tokenize("--- ++ .-. golang")
	assert.Equal(t, []string{"golang"}, terms)
}

func TestTokenizeKeepsCompoundTokens(t *testing.T) {
	terms := Tokenize("c++ node.js my_var half-life")
	assert.Contains(t, terms, "c++")
	assert.Contains(t, terms, "node.js")
	assert.Contains(t, terms, "my_var")
	assert.Contains(t, terms, "half-life")
}

func TestTokenizeDeduplicates(t *testing.T) {
	terms := Tokenize("redis Redis REDIS")
	assert.Equal(t, []string{"redis"}, terms)
}

func TestTokenizeEmpty(t *testing.T) {
	assert.Empty(t, Tokenize(""))
	assert.Empty(t, Tokenize("   \n\t  "))
}
