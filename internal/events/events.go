// Package events defines the wire formats that flow between the
// pipeline's services: landmark frames on the landmarks stream, letter
// events on the letters stream, resolved words pushed back to clients,
// and the knowledge-base notifications exchanged over Pub/Sub.
package events

import "encoding/json"

// Letter event types.
const (
	TypePrediction = "prediction"
	TypeSkip       = "skip"
)

// Skip reasons emitted by the hand extractor.
const (
	SkipNoHands   = "no_hands"
	SkipMultiHand = "multi_hand"
)

// LandmarkFrame is one holistic-landmark frame as published by the
// ingress gateway. Landmarks carries exactly 1662 values.
type LandmarkFrame struct {
	SessionID    string        `json:"session_id"`
	ConnectionID string        `json:"connection_id"`
	TimestampMS  int64         `json:"timestamp"`
	Landmarks    []float64     `json:"landmarks"`
	Metadata     FrameMetadata `json:"metadata"`
}

type FrameMetadata struct {
	Source    string `json:"source"`
	EventTime string `json:"event_time"`
}

// LetterEvent is one classifier output on the letters stream: either a
// prediction or a skip. Skip events carry no prediction fields but keep
// multi_hand so the resolver can tell the two skip causes apart.
type LetterEvent struct {
	SessionID        string         `json:"session_id"`
	ConnectionID     string         `json:"connection_id"`
	Type             string         `json:"event_type"`
	Char             string         `json:"prediction,omitempty"`
	Confidence       float64        `json:"confidence,omitempty"`
	Handedness       string         `json:"handedness,omitempty"`
	SkipReason       string         `json:"skip_reason,omitempty"`
	MultiHand        bool           `json:"multi_hand"`
	ProcessingTimeMS float64        `json:"processing_time_ms"`
	TimestampMS      int64          `json:"timestamp"`
	Metadata         LetterMetadata `json:"metadata"`
}

type LetterMetadata struct {
	Source         string `json:"source"`
	ModelType      string `json:"model_type,omitempty"`
	Fingerspelling bool   `json:"fingerspelling,omitempty"`
	Message        string `json:"message,omitempty"`
}

// Suggestion is one ranked lexicon candidate for a raw word.
type Suggestion struct {
	Surface         string  `json:"surface"`
	AtlasScore      float64 `json:"atlas_score"`
	AliasConfidence float64 `json:"alias_confidence"`
	HybridScore     float64 `json:"hybrid_score"`
	MatchedVia      string  `json:"matched_via,omitempty"`
}

// ResolvedWord is the finalized word with its ranked results, delivered
// to the client that owns the session.
type ResolvedWord struct {
	SessionID    string       `json:"session_id"`
	UserID       string       `json:"user_id"`
	RawWord      string       `json:"raw_word"`
	Results      []Suggestion `json:"all_results"`
	Timestamp    string       `json:"timestamp"`
	SearchMethod string       `json:"search_method"`
}

// UploadNotification announces a new document in the uploads bucket.
type UploadNotification struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	Etag   string `json:"etag"`
	Size   int64  `json:"size"`
	UserID string `json:"user_id"`
}

// OCRDoneNotification reports completion of an OCR job.
type OCRDoneNotification struct {
	NotificationID string   `json:"notification_id"`
	JobID          string   `json:"job_id"`
	Status         string   `json:"status"`
	Lines          []string `json:"lines"`
	BlockCount     int      `json:"block_count"`
	TableCount     int      `json:"table_count"`
}

// TermsReadyNotification announces that cleaned terms for a job are
// waiting in the raw bucket.
type TermsReadyNotification struct {
	JobID     string `json:"job_id"`
	UserID    string `json:"user_id"`
	TermsKey  string `json:"terms_s3_key"`
	TermCount int    `json:"term_count"`
}

// Marshal is a convenience wrapper so call sites publish one-liners.
func Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}
