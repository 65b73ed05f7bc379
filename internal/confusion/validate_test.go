package confusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAliasSpacedVariant(t *testing.T) {
	ok, score := ValidateAlias("AWS", "A W S")
	require.True(t, ok)
	assert.InDelta(t, 1.0, score, 0.001)
}

func TestValidateAliasKnownPairFloored(t *testing.T) {
	// W and 6 are rarely confused in the matrix counts but are a
	// known pair, so the substitution is floored at 0.4 rather than
	// taking the near-zero matrix probability.
	ok, score := ValidateAlias("WIN", "6IN")
	require.True(t, ok)
	assert.InDelta(t, (0.4+1.0+1.0)/3.0, score, 0.05)
}

func TestValidateAliasRejectsUnrelatedSubstitutions(t *testing.T) {
	ok, score := ValidateAlias("AB", "XY")
	assert.False(t, ok)
	assert.Less(t, score, 0.5)
}

func TestValidateAliasRejectsFarEdits(t *testing.T) {
	ok, score := ValidateAlias("AWS", "AWSXXX")
	assert.False(t, ok)
	assert.Zero(t, score)
}

func TestValidateAliasRejectsBadCharacters(t *testing.T) {
	ok, _ := ValidateAlias("AWS", "A.WS")
	assert.False(t, ok)

	ok, _ = ValidateAlias("AWS", "A")
	assert.False(t, ok)
}

func TestValidateAliasCaseInsensitive(t *testing.T) {
	ok, score := ValidateAlias("aws", "a-w-s")
	require.True(t, ok)
	assert.InDelta(t, 1.0, score, 0.001)
}

func TestProbRowNormalized(t *testing.T) {
	// Each row of the matrix normalizes to a probability
	// distribution; the diagonal dominates for well-recognized
	// characters.
	assert.Greater(t, Prob('A', 'A'), 0.9)
	assert.Less(t, Prob('A', 'Z'), 0.05)
	assert.Zero(t, Prob('A', '#'))
}

func TestIsKnownPairSymmetric(t *testing.T) {
	assert.True(t, IsKnownPair('W', '6'))
	assert.True(t, IsKnownPair('6', 'W'))
	assert.True(t, IsKnownPair('c', 'o'))
	assert.False(t, IsKnownPair('A', 'S'))
}
