package lexicon

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"
)

// PostgresStore implements Store on Postgres. Search relies on the
// pg_trgm and fuzzystrmatch extensions (similarity, levenshtein); see
// scripts/lexicon_schema.sql.
type PostgresStore struct {
	db     *sql.DB
	logger *log.Logger
}

func NewPostgresStore(url string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresStore{
		db:     db,
		logger: log.New(log.Writer(), "[LEXICON] ", log.LstdFlags),
	}
	s.logger.Printf("✅ Connected to lexicon store")
	return s, nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

const autocompleteQuery = `
SELECT surface, aliases, confidence_scores, similarity(surface, $2) AS score
FROM lexicon
WHERE user_id = $1
  AND (
        surface LIKE $2 || '%'
     OR levenshtein(surface, $2) <= $3
     OR EXISTS (
          SELECT 1 FROM unnest(aliases) AS a
          WHERE a LIKE $2 || '%' OR levenshtein(a, $2) <= $3
        )
  )
ORDER BY score DESC, surface ASC
LIMIT $4`

const fuzzyQuery = `
SELECT surface, aliases, confidence_scores, similarity(surface, $2) AS score
FROM lexicon
WHERE user_id = $1
  AND (
        levenshtein(surface, $2) <= $3
     OR EXISTS (
          SELECT 1 FROM unnest(aliases) AS a
          WHERE levenshtein(a, $2) <= $3
        )
  )
ORDER BY score DESC, surface ASC
LIMIT $4`

func (s *PostgresStore) Autocomplete(ctx context.Context, userID, query string, maxEdits, limit int) ([]Candidate, error) {
	return s.search(ctx, autocompleteQuery, userID, query, maxEdits, limit)
}

func (s *PostgresStore) Fuzzy(ctx context.Context, userID, query string, maxEdits, limit int) ([]Candidate, error) {
	return s.search(ctx, fuzzyQuery, userID, query, maxEdits, limit)
}

func (s *PostgresStore) search(ctx context.Context, q, userID, query string, maxEdits, limit int) ([]Candidate, error) {
	rows, err := s.db.QueryContext(ctx, q, userID, query, maxEdits, limit)
	if err != nil {
		return nil, fmt.Errorf("lexicon search: %w", err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var (
			c      Candidate
			scores []byte
		)
		if err := rows.Scan(&c.Surface, pq.Array(&c.Aliases), &scores, &c.Score); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		if len(scores) > 0 {
			if err := json.Unmarshal(scores, &c.ConfidenceScores); err != nil {
				s.logger.Printf("⚠️ bad confidence_scores for %s: %v", c.Surface, err)
			}
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}
	return out, nil
}

const upsertQuery = `
INSERT INTO lexicon (surface, user_id, aliases, confidence_scores, job_id, alias_count, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, now())
ON CONFLICT (surface, user_id) DO UPDATE SET
  aliases = EXCLUDED.aliases,
  confidence_scores = EXCLUDED.confidence_scores,
  job_id = EXCLUDED.job_id,
  alias_count = EXCLUDED.alias_count,
  updated_at = now()`

func (s *PostgresStore) Upsert(ctx context.Context, userID, jobID string, entries []Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertQuery)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		aliases := make([]string, 0, len(e.Aliases))
		scores := make(map[string]float64, len(e.Aliases))
		for _, a := range e.Aliases {
			aliases = append(aliases, a.Alias)
			scores[a.Alias] = a.Confidence
		}
		scoresJSON, err := json.Marshal(scores)
		if err != nil {
			return fmt.Errorf("marshal scores for %s: %w", e.Surface, err)
		}
		if _, err := stmt.ExecContext(ctx, e.Surface, userID, pq.Array(aliases), scoresJSON, jobID, len(aliases)); err != nil {
			return fmt.Errorf("upsert %s: %w", e.Surface, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	s.logger.Printf("📤 upserted %d lexicon entries for user %s", len(entries), userID)
	return nil
}
