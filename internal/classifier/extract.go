// Package classifier turns holistic landmark frames into letter
// predictions: it isolates the active hand, normalizes its keypoints,
// and runs them through the keypoint classifier.
package classifier

import (
	"fmt"
	"math"
)

// Holistic frame layout: 33 pose points x4, 468 face points x3, then
// 21 points x3 per hand.
const (
	FrameLength = 1662

	leftHandStart  = 1536
	leftHandEnd    = 1599
	rightHandStart = 1599
	rightHandEnd   = 1662

	handPoints = 21

	// activityThreshold separates a tracked hand from the zero
	// padding the tracker emits for an absent one.
	activityThreshold = 0.01

	// FeatureCount is the classifier input width: 21 wrist-relative
	// (x, y) pairs flattened, minus the wrist's own zero pair.
	FeatureCount = 40
)

// Handedness labels on prediction events.
const (
	HandLeft  = "left"
	HandRight = "right"
)

// HandFeatures is the result of extracting one frame.
type HandFeatures struct {
	Features   []float64
	Handedness string
	// SkipReason is set instead of Features when the frame has no
	// single active hand.
	SkipReason string
}

// Extract isolates the active hand from a holistic frame and returns
// its normalized feature vector. Frames with both hands or neither
// come back with a skip reason instead.
func Extract(frame []float64) (HandFeatures, error) {
	if len(frame) != FrameLength {
		return HandFeatures{}, fmt.Errorf("frame has %d values, want %d", len(frame), FrameLength)
	}

	leftActive := segmentActive(frame[leftHandStart:leftHandEnd])
	rightActive := segmentActive(frame[rightHandStart:rightHandEnd])

	switch {
	case leftActive && rightActive:
		return HandFeatures{SkipReason: "multi_hand"}, nil
	case !leftActive && !rightActive:
		return HandFeatures{SkipReason: "no_hands"}, nil
	}

	var (
		segment    []float64
		handedness string
	)
	if leftActive {
		segment = frame[leftHandStart:leftHandEnd]
		handedness = HandLeft
	} else {
		segment = frame[rightHandStart:rightHandEnd]
		handedness = HandRight
	}

	return HandFeatures{
		Features:   normalizeKeypoints(segment),
		Handedness: handedness,
	}, nil
}

func segmentActive(segment []float64) bool {
	for _, v := range segment {
		if math.Abs(v) > activityThreshold {
			return true
		}
	}
	return false
}

// normalizeKeypoints converts a 21-point (x, y, z) hand segment into
// the classifier's input: (x, y) pairs made wrist-relative, scaled by
// the largest absolute coordinate, flattened, with the wrist's own
// zero pair dropped.
func normalizeKeypoints(segment []float64) []float64 {
	wristX := segment[0]
	wristY := segment[1]

	flat := make([]float64, 0, handPoints*2)
	maxAbs := 0.0
	for p := 0; p < handPoints; p++ {
		x := segment[p*3] - wristX
		y := segment[p*3+1] - wristY
		flat = append(flat, x, y)
		if a := math.Abs(x); a > maxAbs {
			maxAbs = a
		}
		if a := math.Abs(y); a > maxAbs {
			maxAbs = a
		}
	}

	if maxAbs > 0 {
		for i := range flat {
			flat[i] /= maxAbs
		}
	}

	// The wrist pair is identically zero after centering; it carries
	// no signal.
	return flat[2:]
}
