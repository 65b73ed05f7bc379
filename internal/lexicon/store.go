// Package lexicon stores per-user vocabulary with fingerspelling
// aliases and serves the candidate searches the resolver runs against
// it.
package lexicon

import "context"

// Candidate is one search hit with its store-side similarity score.
type Candidate struct {
	Surface          string
	Aliases          []string
	ConfidenceScores map[string]float64
	// Score is the store's text-similarity score for the query,
	// surfaced on the wire as atlas_score.
	Score float64
}

// Alias pairs a validated alias with its confusion confidence.
type Alias struct {
	Alias      string
	Confidence float64
}

// Entry is one surface term and its aliases, as written by the alias
// builder.
type Entry struct {
	Surface string
	Aliases []Alias
}

// Store is the lexicon contract.
type Store interface {
	// Autocomplete searches short queries: prefix matches plus
	// near-misses within maxEdits, against surfaces and aliases.
	Autocomplete(ctx context.Context, userID, query string, maxEdits, limit int) ([]Candidate, error)
	// Fuzzy searches longer queries by edit distance within maxEdits,
	// against surfaces and aliases.
	Fuzzy(ctx context.Context, userID, query string, maxEdits, limit int) ([]Candidate, error)
	// Upsert writes entries for a user, replacing existing rows for
	// the same surfaces.
	Upsert(ctx context.Context, userID, jobID string, entries []Entry) error
}
