// Package resolver maps a raw fingerspelled word onto ranked lexicon
// suggestions. Short queries go through autocomplete search, longer
// ones through fuzzy search; each candidate's store score is blended
// with the confidence of its best-matching alias.
package resolver

import (
	"context"
	"log"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/antzucaro/matchr"

	"github.com/glossa/backend/internal/config"
	"github.com/glossa/backend/internal/events"
	"github.com/glossa/backend/internal/lexicon"
	"github.com/glossa/backend/internal/monitoring"
)

// Hybrid score weights: the store's text similarity dominates, the
// alias confidence refines.
const (
	atlasWeight = 0.7
	aliasWeight = 0.3
)

// autocompleteMaxLen is the query length at or below which the
// autocomplete path is used instead of fuzzy search.
const autocompleteMaxLen = 3

type Resolver struct {
	store  lexicon.Store
	cfg    config.LexiconConfig
	logger *log.Logger
}

func New(store lexicon.Store, cfg config.LexiconConfig) *Resolver {
	return &Resolver{
		store:  store,
		cfg:    cfg,
		logger: log.New(log.Writer(), "[RESOLVER] ", log.LstdFlags),
	}
}

// Resolve looks up rawWord in the user's lexicon and returns the top
// suggestions. A store failure degrades to an empty suggestion list
// echoing the raw word, never an error: the client still gets its
// word back.
func (r *Resolver) Resolve(ctx context.Context, userID, sessionID, rawWord, searchMethod string) events.ResolvedWord {
	started := time.Now()
	defer func() {
		monitoring.ResolveDuration.Observe(time.Since(started).Seconds())
	}()

	query := strings.ToUpper(strings.TrimSpace(rawWord))
	resolved := events.ResolvedWord{
		SessionID:    sessionID,
		UserID:       userID,
		RawWord:      rawWord,
		SearchMethod: searchMethod,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	}
	if query == "" {
		return resolved
	}

	var (
		candidates []lexicon.Candidate
		err        error
	)
	if len(query) <= autocompleteMaxLen {
		candidates, err = r.store.Autocomplete(ctx, userID, query, r.cfg.AutoMaxEdits, r.cfg.CandidateLimit)
	} else {
		candidates, err = r.store.Fuzzy(ctx, userID, query, r.cfg.FuzzyMaxEdits, r.cfg.CandidateLimit)
	}
	if err != nil {
		r.logger.Printf("⚠️ lexicon search failed for %q, returning raw word: %v", query, err)
		return resolved
	}

	results := make([]events.Suggestion, 0, len(candidates))
	for _, c := range candidates {
		alias, aliasConf := bestAlias(query, c)
		results = append(results, events.Suggestion{
			Surface:         c.Surface,
			AtlasScore:      c.Score,
			AliasConfidence: aliasConf,
			HybridScore:     atlasWeight*c.Score + aliasWeight*aliasConf,
			MatchedVia:      alias,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].HybridScore != results[j].HybridScore {
			return results[i].HybridScore > results[j].HybridScore
		}
		return results[i].Surface < results[j].Surface
	})
	if len(results) > r.cfg.TopResults {
		results = results[:r.cfg.TopResults]
	}
	resolved.Results = results

	slog.Debug("word resolved",
		"session", sessionID,
		"raw_word", rawWord,
		"method", searchMethod,
		"suggestions", len(results))
	return resolved
}

// strip removes spaces and hyphens for structural comparisons.
func strip(s string) string {
	s = strings.ReplaceAll(s, " ", "")
	return strings.ReplaceAll(s, "-", "")
}

// bestAlias picks the candidate alias that best explains the query.
// Exact match after stripping wins outright; otherwise all relations
// compete on one distance scale: length delta for prefix/containment,
// edit distance (capped at two) for everything else. Falls back to the
// surface itself when no alias relates.
func bestAlias(query string, c lexicon.Candidate) (string, float64) {
	q := strip(strings.ToUpper(query))

	best := ""
	bestDist := math.MaxInt32

	for _, alias := range c.Aliases {
		a := strip(strings.ToUpper(alias))
		if a == q {
			return alias, c.ConfidenceScores[alias]
		}

		var d int
		if strings.HasPrefix(a, q) || strings.Contains(a, q) {
			d = len(a) - len(q)
			if d < 0 {
				d = -d
			}
		} else {
			d = matchr.Levenshtein(a, q)
			if d > 2 {
				continue
			}
		}
		if d < bestDist {
			bestDist = d
			best = alias
		}
	}

	if best == "" {
		return c.Surface, c.ConfidenceScores[c.Surface]
	}
	return best, c.ConfidenceScores[best]
}
