package kb

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glossa/backend/internal/events"
	"github.com/glossa/backend/internal/lexicon"
)

type scriptedGenerator struct {
	batches [][]string
	results [][]surfaceAliases
	errs    []error
}

func (g *scriptedGenerator) Generate(_ context.Context, terms []string) ([]surfaceAliases, error) {
	call := len(g.batches)
	g.batches = append(g.batches, terms)
	if call < len(g.errs) && g.errs[call] != nil {
		return nil, g.errs[call]
	}
	if call < len(g.results) {
		return g.results[call], nil
	}
	return nil, nil
}

func seedTerms(t *testing.T, objects *MemoryObjects, terms []string) {
	t.Helper()
	data, err := json.Marshal(termsArtifact{
		JobID:     "job-1",
		UserID:    "alice",
		TermCount: len(terms),
		Terms:     terms,
	})
	require.NoError(t, err)
	require.NoError(t, objects.Write(context.Background(), "raw", "alice/handbook_terms.json", data, "application/json"))
}

func newWorker(jobs JobStore, objects ObjectStore, gen AliasGenerator, lex lexicon.Store) *AliasWorker {
	return NewAliasWorker(jobs, objects, gen, lex, "raw", "aliases", 50, 50)
}

func termsReady(count int) events.TermsReadyNotification {
	return events.TermsReadyNotification{
		JobID:     "job-1",
		UserID:    "alice",
		TermsKey:  "alice/handbook_terms.json",
		TermCount: count,
	}
}

func TestHandleTermsReadyValidatesAndStores(t *testing.T) {
	jobs := NewMemoryJobs()
	require.NoError(t, jobs.Insert(context.Background(), &Job{JobID: "job-1", UserID: "alice", Status: StatusIngested}))
	objects := NewMemoryObjects()
	seedTerms(t, objects, []string{"aws"})

	gen := &scriptedGenerator{results: [][]surfaceAliases{{
		{Surface: "AWS", Aliases: []string{"A W S", "AW6", "XYZQW", "ZZZZZ"}},
	}}}
	lex := lexicon.NewMemoryStore()
	w := newWorker(jobs, objects, gen, lex)

	require.NoError(t, w.HandleTermsReady(context.Background(), termsReady(1)))

	// Bundle artifact written with validated aliases only.
	raw, err := objects.Read(context.Background(), "aliases", "alice/handbook_aliases.json")
	require.NoError(t, err)
	var bundle aliasBundle
	require.NoError(t, json.Unmarshal(raw, &bundle))
	assert.Equal(t, StatusCompleted, bundle.Status)
	require.Contains(t, bundle.Aliases, "AWS")

	got := bundle.Aliases["AWS"]
	require.Len(t, got, 2)
	// Spaced variant is an exact spelling match, ranked first.
	assert.Equal(t, "A W S", got[0].Alias)
	assert.InDelta(t, 1.0, got[0].Confidence, 1e-9)
	assert.Equal(t, "AW6", got[1].Alias)
	assert.Greater(t, got[0].Confidence, got[1].Confidence)

	// Lexicon rows present.
	cands, err := lex.Fuzzy(context.Background(), "alice", "AWS", 2, 10)
	require.NoError(t, err)
	require.NotEmpty(t, cands)
	assert.Equal(t, "AWS", cands[0].Surface)
	assert.Contains(t, cands[0].Aliases, "AW6")

	job, err := jobs.Get(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, job.Status)
}

func TestHandleTermsReadyDropsSurfacesOutsideBatch(t *testing.T) {
	jobs := NewMemoryJobs()
	require.NoError(t, jobs.Insert(context.Background(), &Job{JobID: "job-1", UserID: "alice", Status: StatusIngested}))
	objects := NewMemoryObjects()
	seedTerms(t, objects, []string{"aws"})

	gen := &scriptedGenerator{results: [][]surfaceAliases{{
		{Surface: "KUBERNETES", Aliases: []string{"K U B E R N E T E S"}},
		{Surface: "AWS", Aliases: []string{"A-W-S"}},
	}}}
	w := newWorker(jobs, objects, gen, lexicon.NewMemoryStore())
	require.NoError(t, w.HandleTermsReady(context.Background(), termsReady(1)))

	raw, err := objects.Read(context.Background(), "aliases", "alice/handbook_aliases.json")
	require.NoError(t, err)
	var bundle aliasBundle
	require.NoError(t, json.Unmarshal(raw, &bundle))
	assert.Contains(t, bundle.Aliases, "AWS")
	assert.NotContains(t, bundle.Aliases, "KUBERNETES")
}

func TestHandleTermsReadyBatchesTerms(t *testing.T) {
	jobs := NewMemoryJobs()
	require.NoError(t, jobs.Insert(context.Background(), &Job{JobID: "job-1", UserID: "alice", Status: StatusIngested}))
	objects := NewMemoryObjects()

	terms := make([]string, 0, 7)
	for _, s := range []string{"aa", "bb", "cc", "dd", "ee", "ff", "gg"} {
		terms = append(terms, s)
	}
	seedTerms(t, objects, terms)

	gen := &scriptedGenerator{}
	w := NewAliasWorker(jobs, objects, gen, lexicon.NewMemoryStore(), "raw", "aliases", 3, 50)
	require.NoError(t, w.HandleTermsReady(context.Background(), termsReady(len(terms))))

	require.Len(t, gen.batches, 3)
	assert.Equal(t, []string{"aa", "bb", "cc"}, gen.batches[0])
	assert.Equal(t, []string{"dd", "ee", "ff"}, gen.batches[1])
	assert.Equal(t, []string{"gg"}, gen.batches[2])
}

func TestHandleTermsReadySurvivesFailedBatch(t *testing.T) {
	jobs := NewMemoryJobs()
	require.NoError(t, jobs.Insert(context.Background(), &Job{JobID: "job-1", UserID: "alice", Status: StatusIngested}))
	objects := NewMemoryObjects()
	seedTerms(t, objects, []string{"aws", "gcp"})

	gen := &scriptedGenerator{
		errs: []error{errors.New("rate limited"), nil},
		results: [][]surfaceAliases{
			nil,
			{{Surface: "GCP", Aliases: []string{"G C P"}}},
		},
	}
	w := NewAliasWorker(jobs, objects, gen, lexicon.NewMemoryStore(), "raw", "aliases", 1, 50)
	require.NoError(t, w.HandleTermsReady(context.Background(), termsReady(2)))

	raw, err := objects.Read(context.Background(), "aliases", "alice/handbook_aliases.json")
	require.NoError(t, err)
	var bundle aliasBundle
	require.NoError(t, json.Unmarshal(raw, &bundle))
	assert.NotContains(t, bundle.Aliases, "AWS")
	assert.Contains(t, bundle.Aliases, "GCP")
}

func TestPlaceholderGeneratorSpacedVariants(t *testing.T) {
	gen := PlaceholderGenerator{}
	out, err := gen.Generate(context.Background(), []string{"aws", "go"})
	require.NoError(t, err)
	require.Len(t, out, 1) // two-char terms skipped
	assert.Equal(t, "AWS", out[0].Surface)
	assert.Equal(t, []string{"A W S"}, out[0].Aliases)
}

func TestParseAliasResponseToleratesProse(t *testing.T) {
	text := "Here you go:\n```json\n[{\"surface\":\"AWS\",\"aliases\":[\"AW6\"]}]\n```"
	out, err := parseAliasResponse(text)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "AWS", out[0].Surface)

	_, err = parseAliasResponse("no json here")
	assert.Error(t, err)
}
