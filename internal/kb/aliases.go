package kb

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/glossa/backend/internal/confusion"
	"github.com/glossa/backend/internal/events"
	"github.com/glossa/backend/internal/lexicon"
)

// scoredAlias is one validated alias in the bundle artifact.
type scoredAlias struct {
	Alias      string  `json:"alias"`
	Confidence float64 `json:"confidence"`
}

// aliasBundle is the <user>/<base>_aliases.json object.
type aliasBundle struct {
	JobID        string                   `json:"job_id"`
	UserID       string                   `json:"user_id"`
	TermsCount   int                      `json:"terms_count"`
	AliasesCount int                      `json:"aliases_count"`
	ProcessedAt  string                   `json:"processed_at"`
	Aliases      map[string][]scoredAlias `json:"aliases"`
	Status       string                   `json:"status"`
}

// AliasWorker generates, validates and stores fingerspelling aliases
// for ingested term sets.
type AliasWorker struct {
	jobs          JobStore
	objects       ObjectStore
	generator     AliasGenerator
	lexicon       lexicon.Store
	rawBucket     string
	aliasesBucket string
	batchSize     int
	maxPerSurface int
	logger        *log.Logger
	now           func() time.Time
}

func NewAliasWorker(jobs JobStore, objects ObjectStore, generator AliasGenerator, lex lexicon.Store, rawBucket, aliasesBucket string, batchSize, maxPerSurface int) *AliasWorker {
	return &AliasWorker{
		jobs:          jobs,
		objects:       objects,
		generator:     generator,
		lexicon:       lex,
		rawBucket:     rawBucket,
		aliasesBucket: aliasesBucket,
		batchSize:     batchSize,
		maxPerSurface: maxPerSurface,
		logger:        log.New(log.Writer(), "[KB-ALIASES] ", log.LstdFlags),
		now:           time.Now,
	}
}

// HandleTermsReady runs alias generation for one ingested document.
func (w *AliasWorker) HandleTermsReady(ctx context.Context, n events.TermsReadyNotification) error {
	data, err := w.objects.Read(ctx, w.rawBucket, n.TermsKey)
	if err != nil {
		return fmt.Errorf("read terms %s: %w", n.TermsKey, err)
	}
	var artifact termsArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return fmt.Errorf("parse terms %s: %w", n.TermsKey, err)
	}

	w.logger.Printf("job %s: generating aliases for %d terms", n.JobID, len(artifact.Terms))
	aliases := w.generateAll(ctx, artifact.Terms)

	bundle := aliasBundle{
		JobID:        n.JobID,
		UserID:       n.UserID,
		TermsCount:   len(artifact.Terms),
		AliasesCount: len(aliases),
		ProcessedAt:  w.now().UTC().Format(time.RFC3339),
		Aliases:      aliases,
		Status:       StatusCompleted,
	}
	payload, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("marshal alias bundle: %w", err)
	}

	base := strings.TrimSuffix(path.Base(n.TermsKey), path.Ext(n.TermsKey))
	base = strings.TrimSuffix(base, "_terms")
	bundleKey := n.UserID + "/" + base + "_aliases.json"

	if err := w.objects.Write(ctx, w.aliasesBucket, bundleKey, payload, "application/json"); err != nil {
		if updateErr := w.jobs.Update(ctx, n.JobID, StatusFailed, ""); updateErr != nil {
			w.logger.Printf("⚠️ mark failed: %v", updateErr)
		}
		return fmt.Errorf("write alias bundle: %w", err)
	}
	w.logger.Printf("📤 wrote %d alias sets to gs://%s/%s", len(aliases), w.aliasesBucket, bundleKey)

	entries := make([]lexicon.Entry, 0, len(aliases))
	for surface, list := range aliases {
		entry := lexicon.Entry{Surface: surface}
		for _, a := range list {
			entry.Aliases = append(entry.Aliases, lexicon.Alias{Alias: a.Alias, Confidence: a.Confidence})
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Surface < entries[j].Surface })

	if err := w.lexicon.Upsert(ctx, n.UserID, n.JobID, entries); err != nil {
		if updateErr := w.jobs.Update(ctx, n.JobID, StatusFailed, ""); updateErr != nil {
			w.logger.Printf("⚠️ mark failed: %v", updateErr)
		}
		return fmt.Errorf("lexicon upsert: %w", err)
	}

	if err := w.jobs.Update(ctx, n.JobID, StatusCompleted, ""); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	w.logger.Printf("✅ job %s completed: %d/%d surfaces got aliases", n.JobID, len(aliases), len(artifact.Terms))
	return nil
}

// generateAll walks the term list in batches and returns validated,
// confidence-sorted aliases per surface. A failed batch is logged and
// skipped; remaining batches still run.
func (w *AliasWorker) generateAll(ctx context.Context, terms []string) map[string][]scoredAlias {
	out := make(map[string][]scoredAlias)
	for start := 0; start < len(terms); start += w.batchSize {
		end := start + w.batchSize
		if end > len(terms) {
			end = len(terms)
		}
		batch := terms[start:end]

		proposed, err := w.generator.Generate(ctx, batch)
		if err != nil {
			w.logger.Printf("⚠️ alias batch %d failed: %v", start/w.batchSize+1, err)
			continue
		}

		inBatch := make(map[string]bool, len(batch))
		for _, t := range batch {
			inBatch[strings.ToUpper(t)] = true
		}

		for _, item := range proposed {
			surface := strings.ToUpper(item.Surface)
			// The model occasionally invents surfaces; keep only
			// ones from this batch.
			if surface == "" || !inBatch[surface] {
				continue
			}

			validated := make([]scoredAlias, 0, len(item.Aliases))
			for _, alias := range item.Aliases {
				ok, score := confusion.ValidateAlias(surface, alias)
				if !ok {
					continue
				}
				validated = append(validated, scoredAlias{
					Alias:      strings.ToUpper(strings.TrimSpace(alias)),
					Confidence: math.Round(score*1000) / 1000,
				})
			}
			if len(validated) == 0 {
				continue
			}

			sort.SliceStable(validated, func(i, j int) bool {
				return validated[i].Confidence > validated[j].Confidence
			})
			if len(validated) > w.maxPerSurface {
				validated = validated[:w.maxPerSurface]
			}
			out[surface] = validated
			w.logger.Printf("✓ %s: %d/%d aliases validated", surface, len(validated), len(item.Aliases))
		}
	}
	return out
}
