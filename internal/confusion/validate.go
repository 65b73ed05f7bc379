package confusion

import (
	"regexp"
	"strings"

	"github.com/antzucaro/matchr"
)

// aliasPattern restricts aliases to uppercase letters, digits, spaces
// and hyphens, 2 to 40 characters.
var aliasPattern = regexp.MustCompile(`^[A-Z0-9\-\s]{2,40}$`)

const (
	maxAliasEditDistance = 2
	minAliasScore        = 0.5
	// knownPairFloor backstops known confusion pairs whose matrix
	// probability is below knownPairCutoff.
	knownPairFloor  = 0.4
	knownPairCutoff = 0.3
)

// strip removes spaces and hyphens so structural spelling variants
// compare on their character content only.
func strip(s string) string {
	s = strings.ReplaceAll(s, " ", "")
	return strings.ReplaceAll(s, "-", "")
}

// WeightedScore computes the confusion-weighted similarity between a
// surface term and a candidate alias. The aligned prefix of the two
// stripped strings is walked character by character: an exact match
// contributes 1.0, a substitution contributes its confusion
// probability (floored for known pairs). The sum is normalized by the
// stripped surface length. Candidates more than two edits away score 0.
func WeightedScore(surface, alias string) float64 {
	sc := strip(strings.ToUpper(surface))
	ac := strip(strings.ToUpper(alias))

	if matchr.Levenshtein(sc, ac) > maxAliasEditDistance {
		return 0
	}

	score := 0.0
	n := len(sc)
	if len(ac) < n {
		n = len(ac)
	}
	for i := 0; i < n; i++ {
		if sc[i] == ac[i] {
			score += 1.0
			continue
		}
		p := Prob(sc[i], ac[i])
		if p < knownPairCutoff && IsKnownPair(sc[i], ac[i]) {
			p = knownPairFloor
		}
		score += p
	}

	if len(sc) == 0 {
		return 0
	}
	return score / float64(len(sc))
}

// ValidateAlias checks a candidate alias against its surface term and
// returns whether it is acceptable along with its confidence score.
// Rejections: bad characters or length, edit distance above two, or a
// weighted score below 0.5.
func ValidateAlias(surface, alias string) (bool, float64) {
	alias = strings.ToUpper(strings.TrimSpace(alias))
	surface = strings.ToUpper(strings.TrimSpace(surface))

	if !aliasPattern.MatchString(alias) {
		return false, 0
	}
	if matchr.Levenshtein(strip(surface), strip(alias)) > maxAliasEditDistance {
		return false, 0
	}

	score := WeightedScore(surface, alias)
	if score < minAliasScore {
		return false, score
	}
	return true, score
}
