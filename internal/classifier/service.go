package classifier

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"time"

	"github.com/glossa/backend/internal/events"
	"github.com/glossa/backend/internal/monitoring"
	"github.com/glossa/backend/internal/stream"
)

// Publisher is where letter events go; satisfied by *stream.Bus.
type Publisher interface {
	Publish(ctx context.Context, key string, data []byte) error
}

// sourceName tags every emitted letter event's metadata.
const sourceName = "letter-model-service"

func skipMessage(multiHand bool) string {
	if multiHand {
		return "Multi-hand detected - likely word-level sign"
	}
	return "No hands detected"
}

// Service consumes landmark frames and emits letter events.
type Service struct {
	model     *Model
	publisher Publisher
	logger    *log.Logger
}

func NewService(model *Model, publisher Publisher) *Service {
	return &Service{
		model:     model,
		publisher: publisher,
		logger:    log.New(log.Writer(), "[CLASSIFIER] ", log.LstdFlags),
	}
}

// HandleFrame is the stream handler for the landmarks stream. A frame
// that cannot be decoded or has the wrong length is logged and
// dropped; the shard keeps moving.
func (s *Service) HandleFrame(ctx context.Context, rec stream.Record) error {
	started := time.Now()

	var frame events.LandmarkFrame
	if err := json.Unmarshal(rec.Data, &frame); err != nil {
		s.logger.Printf("⚠️ dropping undecodable frame at %s: %v", rec.ID, err)
		return nil
	}

	hand, err := Extract(frame.Landmarks)
	if err != nil {
		s.logger.Printf("⚠️ dropping frame for session %s: %v", frame.SessionID, err)
		return nil
	}

	event := events.LetterEvent{
		SessionID:    frame.SessionID,
		ConnectionID: frame.ConnectionID,
		TimestampMS:  frame.TimestampMS,
	}

	if hand.SkipReason != "" {
		event.Type = events.TypeSkip
		event.SkipReason = hand.SkipReason
		event.MultiHand = hand.SkipReason == events.SkipMultiHand
		event.Metadata = events.LetterMetadata{
			Source:  sourceName,
			Message: skipMessage(event.MultiHand),
		}
		monitoring.SkipEvents.WithLabelValues(hand.SkipReason).Inc()
	} else {
		label, confidence := s.model.Predict(hand.Features)
		event.Type = events.TypePrediction
		event.Char = label
		event.Confidence = confidence
		event.Handedness = hand.Handedness
		event.Metadata = events.LetterMetadata{
			Source:         sourceName,
			ModelType:      "keypoint",
			Fingerspelling: true,
		}
		monitoring.Predictions.Inc()
	}

	elapsed := time.Since(started)
	event.ProcessingTimeMS = float64(elapsed.Microseconds()) / 1000

	payload, err := events.Marshal(event)
	if err != nil {
		s.logger.Printf("❌ marshal letter event for %s: %v", frame.SessionID, err)
		return nil
	}
	if err := s.publisher.Publish(ctx, frame.SessionID, payload); err != nil {
		return err
	}

	monitoring.ClassifyDuration.Observe(elapsed.Seconds())
	slog.Debug("frame classified",
		"session", frame.SessionID,
		"type", event.Type,
		"char", event.Char,
		"confidence", event.Confidence,
		"elapsed", elapsed)
	return nil
}
