package lexicon

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/antzucaro/matchr"
)

// MemoryStore is an in-process Store for tests and local runs. Its
// similarity score approximates the trigram score with a normalized
// edit distance.
type MemoryStore struct {
	mu sync.Mutex
	// rows keyed by user, then surface.
	rows map[string]map[string]*Candidate
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]map[string]*Candidate)}
}

func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}
	d := matchr.Levenshtein(a, b)
	if d >= n {
		return 0
	}
	return 1 - float64(d)/float64(n)
}

func (s *MemoryStore) Autocomplete(_ context.Context, userID, query string, maxEdits, limit int) ([]Candidate, error) {
	match := func(term string) bool {
		return strings.HasPrefix(term, query) || matchr.Levenshtein(term, query) <= maxEdits
	}
	return s.collect(userID, query, limit, match), nil
}

func (s *MemoryStore) Fuzzy(_ context.Context, userID, query string, maxEdits, limit int) ([]Candidate, error) {
	match := func(term string) bool {
		return matchr.Levenshtein(term, query) <= maxEdits
	}
	return s.collect(userID, query, limit, match), nil
}

func (s *MemoryStore) collect(userID, query string, limit int, match func(string) bool) []Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Candidate
	for _, row := range s.rows[userID] {
		hit := match(row.Surface)
		for _, a := range row.Aliases {
			if hit {
				break
			}
			hit = match(a)
		}
		if !hit {
			continue
		}
		c := *row
		c.Score = similarity(row.Surface, query)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Surface < out[j].Surface
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *MemoryStore) Upsert(_ context.Context, userID, _ string, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rows[userID] == nil {
		s.rows[userID] = make(map[string]*Candidate)
	}
	for _, e := range entries {
		c := &Candidate{Surface: e.Surface, ConfidenceScores: make(map[string]float64, len(e.Aliases))}
		for _, a := range e.Aliases {
			c.Aliases = append(c.Aliases, a.Alias)
			c.ConfidenceScores[a.Alias] = a.Confidence
		}
		s.rows[userID][e.Surface] = c
	}
	return nil
}
