package classifier

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glossa/backend/internal/events"
	"github.com/glossa/backend/internal/stream"
)

type capturePublisher struct {
	keys     []string
	payloads [][]byte
}

func (p *capturePublisher) Publish(_ context.Context, key string, data []byte) error {
	p.keys = append(p.keys, key)
	p.payloads = append(p.payloads, data)
	return nil
}

func testModel() *Model {
	// One output unit per fallback label; the weights favor class 10
	// ("A") for any positive feature vector.
	weights := make([][]float64, 37)
	biases := make([]float64, 37)
	for i := range weights {
		weights[i] = make([]float64, FeatureCount)
	}
	for j := range weights[10] {
		weights[10][j] = 1
	}
	return &Model{layers: []denseLayer{{Weights: weights, Biases: biases}}, labels: fallbackLabels}
}

func frameRecord(t *testing.T, frame events.LandmarkFrame) stream.Record {
	t.Helper()
	data, err := json.Marshal(frame)
	require.NoError(t, err)
	return stream.Record{ID: "1-1", Key: frame.SessionID, Data: data}
}

func TestHandleFramePublishesPrediction(t *testing.T) {
	pub := &capturePublisher{}
	svc := NewService(testModel(), pub)

	landmarks := make([]float64, FrameLength)
	for p := 0; p < handPoints; p++ {
		landmarks[rightHandStart+p*3] = 0.5 + float64(p)*0.01
		landmarks[rightHandStart+p*3+1] = 0.5
	}

	rec := frameRecord(t, events.LandmarkFrame{
		SessionID:    "s1",
		ConnectionID: "conn-1",
		TimestampMS:  1234,
		Landmarks:    landmarks,
	})
	require.NoError(t, svc.HandleFrame(context.Background(), rec))
	require.Len(t, pub.payloads, 1)
	assert.Equal(t, "s1", pub.keys[0])

	var event events.LetterEvent
	require.NoError(t, json.Unmarshal(pub.payloads[0], &event))
	assert.Equal(t, events.TypePrediction, event.Type)
	assert.Equal(t, "A", event.Char)
	assert.Equal(t, HandRight, event.Handedness)
	assert.Greater(t, event.Confidence, 0.0)
	assert.Equal(t, "conn-1", event.ConnectionID)
	assert.False(t, event.MultiHand)
	assert.GreaterOrEqual(t, event.ProcessingTimeMS, 0.0)
	assert.Equal(t, int64(1234), event.TimestampMS)
	assert.Equal(t, "letter-model-service", event.Metadata.Source)
	assert.True(t, event.Metadata.Fingerspelling)
}

func TestLetterEventWireKeys(t *testing.T) {
	pub := &capturePublisher{}
	svc := NewService(testModel(), pub)

	landmarks := make([]float64, FrameLength)
	for p := 0; p < handPoints; p++ {
		landmarks[rightHandStart+p*3] = 0.5 + float64(p)*0.01
		landmarks[rightHandStart+p*3+1] = 0.5
	}
	rec := frameRecord(t, events.LandmarkFrame{
		SessionID:    "s1",
		ConnectionID: "conn-1",
		Landmarks:    landmarks,
	})
	require.NoError(t, svc.HandleFrame(context.Background(), rec))
	require.Len(t, pub.payloads, 1)

	// Downstream consumers key off these exact field names.
	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(pub.payloads[0], &raw))
	assert.Equal(t, "prediction", raw["event_type"])
	assert.Equal(t, "A", raw["prediction"])
	assert.Equal(t, "conn-1", raw["connection_id"])
	assert.Contains(t, raw, "multi_hand")
	assert.Contains(t, raw, "processing_time_ms")
	assert.NotContains(t, raw, "type")
	assert.NotContains(t, raw, "char")
}

func TestHandleFramePublishesSkip(t *testing.T) {
	pub := &capturePublisher{}
	svc := NewService(testModel(), pub)

	rec := frameRecord(t, events.LandmarkFrame{
		SessionID: "s2",
		Landmarks: make([]float64, FrameLength),
	})
	require.NoError(t, svc.HandleFrame(context.Background(), rec))
	require.Len(t, pub.payloads, 1)

	var event events.LetterEvent
	require.NoError(t, json.Unmarshal(pub.payloads[0], &event))
	assert.Equal(t, events.TypeSkip, event.Type)
	assert.Equal(t, events.SkipNoHands, event.SkipReason)
	assert.False(t, event.MultiHand)
	assert.Equal(t, "No hands detected", event.Metadata.Message)
	assert.Empty(t, event.Handedness)
	assert.Empty(t, event.Char)
}

func TestHandleFrameMultiHandSkip(t *testing.T) {
	pub := &capturePublisher{}
	svc := NewService(testModel(), pub)

	landmarks := make([]float64, FrameLength)
	for p := 0; p < handPoints; p++ {
		landmarks[leftHandStart+p*3] = 0.4 + float64(p)*0.01
		landmarks[leftHandStart+p*3+1] = 0.5
		landmarks[rightHandStart+p*3] = 0.5 + float64(p)*0.01
		landmarks[rightHandStart+p*3+1] = 0.5
	}
	rec := frameRecord(t, events.LandmarkFrame{SessionID: "s4", Landmarks: landmarks})
	require.NoError(t, svc.HandleFrame(context.Background(), rec))
	require.Len(t, pub.payloads, 1)

	var event events.LetterEvent
	require.NoError(t, json.Unmarshal(pub.payloads[0], &event))
	assert.Equal(t, events.TypeSkip, event.Type)
	assert.Equal(t, events.SkipMultiHand, event.SkipReason)
	assert.True(t, event.MultiHand)
	assert.Equal(t, "Multi-hand detected - likely word-level sign", event.Metadata.Message)
}

func TestHandleFrameDropsInvalidFrames(t *testing.T) {
	pub := &capturePublisher{}
	svc := NewService(testModel(), pub)

	// Wrong landmark count: dropped, not published, not an error.
	rec := frameRecord(t, events.LandmarkFrame{
		SessionID: "s3",
		Landmarks: []float64{1, 2, 3},
	})
	require.NoError(t, svc.HandleFrame(context.Background(), rec))
	assert.Empty(t, pub.payloads)

	// Undecodable payload likewise.
	require.NoError(t, svc.HandleFrame(context.Background(), stream.Record{Data: []byte("{")}))
	assert.Empty(t, pub.payloads)
}
