package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// frameWith builds a zeroed holistic frame and fills the given hand
// segment with a simple tracked-hand shape.
func frameWith(t *testing.T, left, right bool) []float64 {
	t.Helper()
	frame := make([]float64, FrameLength)
	fill := func(start int) {
		// wrist at (0.5, 0.5), the rest of the points fanned out
		for p := 0; p < handPoints; p++ {
			frame[start+p*3] = 0.5 + float64(p)*0.01
			frame[start+p*3+1] = 0.5 - float64(p)*0.005
		}
	}
	if left {
		fill(leftHandStart)
	}
	if right {
		fill(rightHandStart)
	}
	return frame
}

func TestExtractSkipsBothHands(t *testing.T) {
	hand, err := Extract(frameWith(t, true, true))
	require.NoError(t, err)
	assert.Equal(t, "multi_hand", hand.SkipReason)
	assert.Empty(t, hand.Features)
	assert.Empty(t, hand.Handedness)
}

func TestExtractSkipsNoHands(t *testing.T) {
	hand, err := Extract(frameWith(t, false, false))
	require.NoError(t, err)
	assert.Equal(t, "no_hands", hand.SkipReason)
}

func TestExtractSingleHand(t *testing.T) {
	hand, err := Extract(frameWith(t, false, true))
	require.NoError(t, err)
	require.Empty(t, hand.SkipReason)
	assert.Equal(t, HandRight, hand.Handedness)
	require.Len(t, hand.Features, FeatureCount)

	// Coordinates are wrist-relative and scaled by the largest
	// absolute value, so everything lands in [-1, 1] and the extreme
	// point hits exactly 1.
	maxAbs := 0.0
	for _, v := range hand.Features {
		if v > 1 || v < -1 {
			t.Fatalf("feature %v outside [-1, 1]", v)
		}
		if v > maxAbs {
			maxAbs = v
		}
	}
	assert.InDelta(t, 1.0, maxAbs, 1e-9)

	left, err := Extract(frameWith(t, true, false))
	require.NoError(t, err)
	assert.Equal(t, HandLeft, left.Handedness)
	// Both hand segments carry the same shape, so the normalized
	// features agree regardless of handedness.
	assert.InDeltaSlice(t, hand.Features, left.Features, 1e-9)
}

func TestExtractRejectsWrongLength(t *testing.T) {
	_, err := Extract(make([]float64, 42))
	assert.Error(t, err)
}

func TestExtractIgnoresSubThresholdNoise(t *testing.T) {
	frame := frameWith(t, false, true)
	// Padding-level noise in the left-hand segment must not count as
	// a tracked hand.
	for i := leftHandStart; i < leftHandEnd; i++ {
		frame[i] = 0.009
	}
	hand, err := Extract(frame)
	require.NoError(t, err)
	assert.Empty(t, hand.SkipReason)
	assert.Equal(t, HandRight, hand.Handedness)
}

func TestExtractZeroSpreadHand(t *testing.T) {
	// Every point on top of the wrist: normalization must not divide
	// by zero.
	frame := make([]float64, FrameLength)
	for p := 0; p < handPoints; p++ {
		frame[rightHandStart+p*3] = 0.5
		frame[rightHandStart+p*3+1] = 0.5
	}
	hand, err := Extract(frame)
	require.NoError(t, err)
	require.Empty(t, hand.SkipReason)
	for _, v := range hand.Features {
		assert.Zero(t, v)
	}
}
