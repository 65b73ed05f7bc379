// Package engine turns the stream of per-frame letter predictions into
// committed letters and finalized words. Predictions vote inside a
// short sliding window; a letter commits when its votes are confident,
// stable and not an over-repetition; a pause in commits finalizes the
// buffered word.
package engine

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"sort"
	"time"

	"github.com/glossa/backend/internal/config"
	"github.com/glossa/backend/internal/monitoring"
	"github.com/glossa/backend/internal/session"
)

// pauseGlyph is the classifier's explicit pause label. It never
// participates in voting.
const pauseGlyph = "_"

// Finalize triggers, surfaced to the resolver as search_method.
const (
	TriggerPause = "fuzzy"
	TriggerSkip  = "skip_event"
)

// Emit receives a finalized raw word. The engine calls it before
// clearing the session, so a failed resolution can still be retried by
// the caller from its own state.
type Emit func(ctx context.Context, sessionID, rawWord, trigger string)

type Engine struct {
	store  session.Store
	cfg    config.CommitConfig
	emit   Emit
	now    func() time.Time
	logger *log.Logger
}

func New(store session.Store, cfg config.CommitConfig, emit Emit) *Engine {
	return &Engine{
		store:  store,
		cfg:    cfg,
		emit:   emit,
		now:    time.Now,
		logger: log.New(log.Writer(), "[ENGINE] ", log.LstdFlags),
	}
}

// candidate is the per-character vote aggregate over the window.
type candidate struct {
	char    string
	sum     float64
	count   int
	firstMS int64
	lastMS  int64
}

// ProcessPrediction handles one classifier prediction event.
func (e *Engine) ProcessPrediction(ctx context.Context, sessionID, char string, confidence float64, tsMS int64) error {
	nowMS := e.now().UnixMilli()
	if tsMS == 0 {
		tsMS = nowMS
	}

	if char != pauseGlyph {
		obs := session.Observation{Char: char, Confidence: confidence, TimestampMS: tsMS}
		if err := e.store.AppendObservation(ctx, sessionID, obs); err != nil {
			return fmt.Errorf("append observation: %w", err)
		}
	}

	cutoff := nowMS - int64(e.cfg.WindowDurationMS)
	if err := e.store.PruneWindow(ctx, sessionID, cutoff); err != nil {
		return fmt.Errorf("prune window: %w", err)
	}

	if err := e.tryCommit(ctx, sessionID, nowMS); err != nil {
		return err
	}
	return e.checkPause(ctx, sessionID, nowMS, TriggerPause)
}

// ProcessSkip handles a skipped frame (no hands, both hands). Skips
// carry no letter but still advance the pause clock check.
func (e *Engine) ProcessSkip(ctx context.Context, sessionID, reason string) error {
	monitoring.SkipEvents.WithLabelValues(reason).Inc()
	return e.checkPause(ctx, sessionID, e.now().UnixMilli(), TriggerSkip)
}

// tryCommit evaluates the window and commits at most one letter.
func (e *Engine) tryCommit(ctx context.Context, sessionID string, nowMS int64) error {
	window, err := e.store.Window(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("read window: %w", err)
	}

	top := e.vote(window)
	if top == nil {
		return nil
	}

	avg := top.sum / float64(top.count)
	if avg < e.cfg.CommitConfidence {
		return nil
	}
	if top.lastMS-top.firstMS < int64(e.cfg.StabilityMS) {
		return nil
	}

	buf, err := e.store.Buffer(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("read buffer: %w", err)
	}

	if trailingRun(buf.Letters, top.char) >= e.cfg.MaxConsecutiveSame {
		return nil
	}

	buf.Letters = append(buf.Letters, top.char)
	buf.LastCommitMS = nowMS
	if buf.StartedMS == 0 {
		buf.StartedMS = nowMS
	}
	if err := e.store.SaveBuffer(ctx, sessionID, buf); err != nil {
		return fmt.Errorf("save buffer: %w", err)
	}

	monitoring.LettersCommitted.Inc()
	slog.Debug("letter committed",
		"session", sessionID,
		"char", top.char,
		"avg_confidence", avg,
		"word_so_far", buf.Word())
	return nil
}

// vote aggregates the window per character and returns the winner, or
// nil when no character clears the vote threshold. Ties on summed
// confidence go to the most recently seen character, then to the
// lexicographically smaller one.
func (e *Engine) vote(window []session.Observation) *candidate {
	byChar := make(map[string]*candidate)
	for _, obs := range window {
		if obs.Confidence < e.cfg.MinConfidence || obs.Char == pauseGlyph {
			continue
		}
		c, ok := byChar[obs.Char]
		if !ok {
			c = &candidate{char: obs.Char, firstMS: obs.TimestampMS, lastMS: obs.TimestampMS}
			byChar[obs.Char] = c
		}
		c.sum += obs.Confidence
		c.count++
		if obs.TimestampMS < c.firstMS {
			c.firstMS = obs.TimestampMS
		}
		if obs.TimestampMS > c.lastMS {
			c.lastMS = obs.TimestampMS
		}
	}
	if len(byChar) == 0 {
		return nil
	}

	cands := make([]*candidate, 0, len(byChar))
	for _, c := range byChar {
		cands = append(cands, c)
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].sum != cands[j].sum {
			return cands[i].sum > cands[j].sum
		}
		if cands[i].lastMS != cands[j].lastMS {
			return cands[i].lastMS > cands[j].lastMS
		}
		return cands[i].char < cands[j].char
	})
	return cands[0]
}

// trailingRun counts how many letters at the end of the buffer equal
// char.
func trailingRun(letters []string, char string) int {
	n := 0
	for i := len(letters) - 1; i >= 0 && letters[i] == char; i-- {
		n++
	}
	return n
}

// checkPause finalizes the buffered word when no letter has committed
// for the pause duration.
func (e *Engine) checkPause(ctx context.Context, sessionID string, nowMS int64, trigger string) error {
	buf, err := e.store.Buffer(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("read buffer: %w", err)
	}
	if len(buf.Letters) == 0 {
		return nil
	}
	if nowMS-buf.LastCommitMS < int64(e.cfg.PauseDurationMS) {
		return nil
	}
	return e.finalize(ctx, sessionID, buf, trigger)
}

func (e *Engine) finalize(ctx context.Context, sessionID string, buf *session.WordBuffer, trigger string) error {
	word := buf.Word()
	e.logger.Printf("📤 finalizing word %q for session %s (%s)", word, sessionID, trigger)
	monitoring.WordsFinalized.WithLabelValues(trigger).Inc()

	e.emit(ctx, sessionID, word, trigger)

	if err := e.store.Clear(ctx, sessionID); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Run drives the background pause sweep until ctx is cancelled. The
// sweep catches sessions that stopped sending events entirely, which
// the per-event check never sees.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.SweepInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.Sweep(ctx); err != nil {
				e.logger.Printf("❌ pause sweep: %v", err)
			}
		}
	}
}

// Sweep finalizes every buffered session whose pause window elapsed.
func (e *Engine) Sweep(ctx context.Context) error {
	sessions, err := e.store.BufferedSessions(ctx)
	if err != nil {
		return fmt.Errorf("list buffered sessions: %w", err)
	}
	nowMS := e.now().UnixMilli()
	for _, id := range sessions {
		buf, err := e.store.Buffer(ctx, id)
		if err != nil {
			e.logger.Printf("⚠️ read buffer for %s: %v", id, err)
			continue
		}
		if len(buf.Letters) == 0 || nowMS-buf.LastCommitMS < int64(e.cfg.PauseDurationMS) {
			continue
		}
		if err := e.finalize(ctx, id, buf, TriggerPause); err != nil {
			e.logger.Printf("⚠️ finalize %s: %v", id, err)
		}
	}
	return nil
}
