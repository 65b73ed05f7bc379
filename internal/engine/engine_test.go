package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glossa/backend/internal/config"
	"github.com/glossa/backend/internal/session"
)

type emitted struct {
	sessionID string
	word      string
	trigger   string
}

type testRig struct {
	engine *Engine
	store  *session.MemoryStore
	words  []emitted
	nowMS  int64
}

func newRig(t *testing.T) *testRig {
	t.Helper()
	rig := &testRig{store: session.NewMemoryStore()}
	cfg := config.Default().Commit
	rig.engine = New(rig.store, cfg, func(_ context.Context, sessionID, word, trigger string) {
		rig.words = append(rig.words, emitted{sessionID, word, trigger})
	})
	rig.engine.now = func() time.Time { return time.UnixMilli(rig.nowMS) }
	return rig
}

func (r *testRig) predict(t *testing.T, atMS int64, char string, conf float64) {
	t.Helper()
	r.nowMS = atMS
	require.NoError(t, r.engine.ProcessPrediction(context.Background(), "s1", char, conf, atMS))
}

func bufferWord(t *testing.T, store session.Store) string {
	t.Helper()
	buf, err := store.Buffer(context.Background(), "s1")
	require.NoError(t, err)
	return buf.Word()
}

func TestStableConfidentLetterCommitsOnce(t *testing.T) {
	rig := newRig(t)

	rig.predict(t, 0, "A", 0.9)
	rig.predict(t, 100, "A", 0.9)
	assert.Empty(t, bufferWord(t, rig.store), "commit before stability window")

	rig.predict(t, 200, "A", 0.9)
	assert.Equal(t, "A", bufferWord(t, rig.store))

	// Further identical predictions must not re-commit.
	rig.predict(t, 250, "A", 0.9)
	rig.predict(t, 300, "A", 0.9)
	assert.Equal(t, "A", bufferWord(t, rig.store))
}

func TestLowConfidenceNeverCommits(t *testing.T) {
	rig := newRig(t)

	// Above the vote threshold but below the commit threshold.
	rig.predict(t, 0, "B", 0.35)
	rig.predict(t, 100, "B", 0.35)
	rig.predict(t, 250, "B", 0.35)
	assert.Empty(t, bufferWord(t, rig.store))

	// Below the vote threshold entirely.
	rig.predict(t, 300, "C", 0.2)
	rig.predict(t, 400, "C", 0.2)
	rig.predict(t, 550, "C", 0.2)
	assert.Empty(t, bufferWord(t, rig.store))
}

func TestFlickerTooShortForStability(t *testing.T) {
	rig := newRig(t)

	// Confident but present for under the stability duration.
	rig.predict(t, 0, "D", 0.95)
	rig.predict(t, 150, "D", 0.95)
	assert.Empty(t, bufferWord(t, rig.store))
}

func TestRepetitionGuardAllowsLetterAfterInterleave(t *testing.T) {
	rig := newRig(t)

	rig.predict(t, 0, "A", 0.9)
	rig.predict(t, 100, "A", 0.9)
	rig.predict(t, 200, "A", 0.9)
	require.Equal(t, "A", bufferWord(t, rig.store))

	// Another letter commits, after which A is allowed again.
	rig.predict(t, 600, "B", 0.9)
	rig.predict(t, 700, "B", 0.9)
	rig.predict(t, 800, "B", 0.9)
	require.Equal(t, "AB", bufferWord(t, rig.store))

	rig.predict(t, 1200, "A", 0.9)
	rig.predict(t, 1300, "A", 0.9)
	rig.predict(t, 1400, "A", 0.9)
	assert.Equal(t, "ABA", bufferWord(t, rig.store))
}

func TestPauseFinalizesWord(t *testing.T) {
	rig := newRig(t)

	rig.predict(t, 0, "H", 0.9)
	rig.predict(t, 100, "H", 0.9)
	rig.predict(t, 200, "H", 0.9)
	rig.predict(t, 600, "I", 0.9)
	rig.predict(t, 700, "I", 0.9)
	rig.predict(t, 800, "I", 0.9)
	require.Equal(t, "HI", bufferWord(t, rig.store))

	// Silence under the pause threshold keeps the buffer.
	rig.nowMS = 800 + 1999
	require.NoError(t, rig.engine.ProcessSkip(context.Background(), "s1", "no_hands"))
	assert.Empty(t, rig.words)

	rig.nowMS = 800 + 2000
	require.NoError(t, rig.engine.ProcessSkip(context.Background(), "s1", "no_hands"))
	require.Len(t, rig.words, 1)
	assert.Equal(t, emitted{"s1", "HI", TriggerSkip}, rig.words[0])

	// Session state is gone after finalization.
	assert.Empty(t, bufferWord(t, rig.store))
	win, err := rig.store.Window(context.Background(), "s1")
	require.NoError(t, err)
	assert.Empty(t, win)
}

func TestSweepFinalizesSilentSessions(t *testing.T) {
	rig := newRig(t)

	rig.predict(t, 0, "O", 0.9)
	rig.predict(t, 100, "O", 0.9)
	rig.predict(t, 200, "O", 0.9)
	rig.predict(t, 600, "K", 0.9)
	rig.predict(t, 700, "K", 0.9)
	rig.predict(t, 800, "K", 0.9)
	require.Equal(t, "OK", bufferWord(t, rig.store))

	rig.nowMS = 800 + 2500
	require.NoError(t, rig.engine.Sweep(context.Background()))
	require.Len(t, rig.words, 1)
	assert.Equal(t, emitted{"s1", "OK", TriggerPause}, rig.words[0])
}

func TestSkipOnEmptyBufferDoesNothing(t *testing.T) {
	rig := newRig(t)
	rig.nowMS = 5000
	require.NoError(t, rig.engine.ProcessSkip(context.Background(), "s1", "multi_hand"))
	assert.Empty(t, rig.words)
}

func TestPauseGlyphNeverCommits(t *testing.T) {
	rig := newRig(t)

	rig.predict(t, 0, "_", 0.99)
	rig.predict(t, 100, "_", 0.99)
	rig.predict(t, 300, "_", 0.99)
	assert.Empty(t, bufferWord(t, rig.store))
}

func TestVotePrefersLargerSummedConfidence(t *testing.T) {
	rig := newRig(t)

	// B's summed confidence (2.4) beats A's (1.2) even though A was
	// seen first and the observations interleave.
	window := []session.Observation{
		{Char: "A", Confidence: 0.6, TimestampMS: 10},
		{Char: "B", Confidence: 0.9, TimestampMS: 20},
		{Char: "A", Confidence: 0.6, TimestampMS: 30},
		{Char: "B", Confidence: 0.8, TimestampMS: 40},
		{Char: "B", Confidence: 0.7, TimestampMS: 50},
	}
	top := rig.engine.vote(window)
	require.NotNil(t, top)
	assert.Equal(t, "B", top.char)
	assert.InDelta(t, 2.4, top.sum, 1e-9)

	// The same preference holds end to end: interleaved predictions
	// commit B, not A.
	rig.predict(t, 0, "A", 0.6)
	rig.predict(t, 50, "B", 0.9)
	rig.predict(t, 100, "A", 0.6)
	rig.predict(t, 150, "B", 0.8)
	rig.predict(t, 250, "B", 0.7)
	assert.Equal(t, "B", bufferWord(t, rig.store))
}

func TestVoteTieBreaks(t *testing.T) {
	rig := newRig(t)

	// Equal summed confidence: the more recently seen letter wins.
	window := []session.Observation{
		{Char: "A", Confidence: 0.5, TimestampMS: 10},
		{Char: "B", Confidence: 0.5, TimestampMS: 20},
	}
	top := rig.engine.vote(window)
	require.NotNil(t, top)
	assert.Equal(t, "B", top.char)

	// Same confidence and same timestamps: lexicographic order.
	window = []session.Observation{
		{Char: "C", Confidence: 0.5, TimestampMS: 10},
		{Char: "B", Confidence: 0.5, TimestampMS: 10},
	}
	top = rig.engine.vote(window)
	require.NotNil(t, top)
	assert.Equal(t, "B", top.char)
}
