package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glossa/backend/internal/config"
	"github.com/glossa/backend/internal/lexicon"
)

type recordingStore struct {
	lexicon.Store
	methods []string
}

func (s *recordingStore) Autocomplete(ctx context.Context, userID, query string, maxEdits, limit int) ([]lexicon.Candidate, error) {
	s.methods = append(s.methods, "autocomplete")
	return s.Store.Autocomplete(ctx, userID, query, maxEdits, limit)
}

func (s *recordingStore) Fuzzy(ctx context.Context, userID, query string, maxEdits, limit int) ([]lexicon.Candidate, error) {
	s.methods = append(s.methods, "fuzzy")
	return s.Store.Fuzzy(ctx, userID, query, maxEdits, limit)
}

type failingStore struct{}

func (failingStore) Autocomplete(context.Context, string, string, int, int) ([]lexicon.Candidate, error) {
	return nil, errors.New("store down")
}

func (failingStore) Fuzzy(context.Context, string, string, int, int) ([]lexicon.Candidate, error) {
	return nil, errors.New("store down")
}

func (failingStore) Upsert(context.Context, string, string, []lexicon.Entry) error {
	return errors.New("store down")
}

func seedStore(t *testing.T) *lexicon.MemoryStore {
	t.Helper()
	store := lexicon.NewMemoryStore()
	err := store.Upsert(context.Background(), "u1", "job-1", []lexicon.Entry{
		{Surface: "AWS", Aliases: []lexicon.Alias{
			{Alias: "AW6", Confidence: 0.9},
			{Alias: "A W S", Confidence: 0.8},
		}},
		{Surface: "AWE", Aliases: []lexicon.Alias{
			{Alias: "A6E", Confidence: 0.5},
		}},
		{Surface: "HELLO", Aliases: []lexicon.Alias{
			{Alias: "HELL0", Confidence: 0.85},
		}},
	})
	require.NoError(t, err)
	return store
}

func newResolver(store lexicon.Store) *Resolver {
	return New(store, config.Default().Lexicon)
}

func TestResolveRanksExactAliasFirst(t *testing.T) {
	r := newResolver(seedStore(t))

	resolved := r.Resolve(context.Background(), "u1", "s1", "AW6", "fuzzy")
	require.NotEmpty(t, resolved.Results)
	assert.Equal(t, "u1", resolved.UserID)

	top := resolved.Results[0]
	assert.Equal(t, "AWS", top.Surface)
	assert.Equal(t, "AW6", top.MatchedVia)
	assert.InDelta(t, 0.9, top.AliasConfidence, 1e-9)
	assert.InDelta(t, 0.7*top.AtlasScore+0.3*0.9, top.HybridScore, 1e-9)

	// Every result is ranked by hybrid score.
	for i := 1; i < len(resolved.Results); i++ {
		assert.GreaterOrEqual(t,
			resolved.Results[i-1].HybridScore,
			resolved.Results[i].HybridScore)
	}
}

func TestResolveUsesAutocompleteForShortQueries(t *testing.T) {
	store := &recordingStore{Store: seedStore(t)}
	r := newResolver(store)

	r.Resolve(context.Background(), "u1", "s1", "AW", "fuzzy")
	r.Resolve(context.Background(), "u1", "s1", "HELO", "fuzzy")
	assert.Equal(t, []string{"autocomplete", "fuzzy"}, store.methods)
}

func TestResolveStoreFailureEchoesRawWord(t *testing.T) {
	r := newResolver(failingStore{})

	resolved := r.Resolve(context.Background(), "u1", "s1", "HELLO", "fuzzy")
	assert.Equal(t, "HELLO", resolved.RawWord)
	assert.Equal(t, "s1", resolved.SessionID)
	assert.Equal(t, "u1", resolved.UserID)
	assert.Empty(t, resolved.Results)
	assert.Equal(t, "fuzzy", resolved.SearchMethod)
}

func TestResolveEmptyWord(t *testing.T) {
	r := newResolver(seedStore(t))
	resolved := r.Resolve(context.Background(), "u1", "s1", "  ", "skip_event")
	assert.Empty(t, resolved.Results)
	assert.Equal(t, "skip_event", resolved.SearchMethod)
}

func TestResolveCapsSuggestions(t *testing.T) {
	store := lexicon.NewMemoryStore()
	entries := make([]lexicon.Entry, 0, 8)
	for _, s := range []string{"CATA", "CATB", "CATC", "CATD", "CATE", "CATF", "CATG", "CATH"} {
		entries = append(entries, lexicon.Entry{Surface: s})
	}
	require.NoError(t, store.Upsert(context.Background(), "u1", "job-1", entries))

	r := newResolver(store)
	resolved := r.Resolve(context.Background(), "u1", "s1", "CATS", "fuzzy")
	assert.Len(t, resolved.Results, 5)

	// Identical scores break ties on the surface, ascending.
	words := make([]string, 0, 5)
	for _, s := range resolved.Results {
		words = append(words, s.Surface)
	}
	assert.Equal(t, []string{"CATA", "CATB", "CATC", "CATD", "CATE"}, words)
}

func TestBestAliasSharesOneDistanceScale(t *testing.T) {
	// Containment has no absolute priority: a two-off length delta
	// loses to an alias one edit away.
	c := lexicon.Candidate{
		Surface: "AWS",
		Aliases: []string{"AWSXX", "QWS"},
		ConfidenceScores: map[string]float64{
			"AWSXX": 0.6,
			"QWS":   0.7,
		},
	}
	alias, conf := bestAlias("AWS", c)
	assert.Equal(t, "QWS", alias)
	assert.InDelta(t, 0.7, conf, 1e-9)

	// A tighter containment still beats a farther edit.
	c = lexicon.Candidate{
		Surface: "AWS",
		Aliases: []string{"AWSX", "QQS"},
		ConfidenceScores: map[string]float64{
			"AWSX": 0.6,
			"QQS":  0.5,
		},
	}
	alias, conf = bestAlias("AWS", c)
	assert.Equal(t, "AWSX", alias)
	assert.InDelta(t, 0.6, conf, 1e-9)
}

func TestBestAliasFallsBackToSurface(t *testing.T) {
	c := lexicon.Candidate{
		Surface:          "AWS",
		Aliases:          []string{"QWS"},
		ConfidenceScores: map[string]float64{"QWS": 0.7},
	}

	// Nothing relates: the surface itself is reported as matched_via,
	// with no alias confidence.
	alias, conf := bestAlias("ZZZZZZ", c)
	assert.Equal(t, "AWS", alias)
	assert.Zero(t, conf)

	// Same when the candidate has no aliases at all.
	alias, conf = bestAlias("CAT", lexicon.Candidate{Surface: "CATS"})
	assert.Equal(t, "CATS", alias)
	assert.Zero(t, conf)
}
