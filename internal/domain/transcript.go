package domain

import "time"

// SpeakerType identifies who produced a transcript segment.
type SpeakerType string

const (
	SpeakerInterviewer SpeakerType = "INTERVIEWER"
	SpeakerCandidate   SpeakerType = "CANDIDATE"
	SpeakerSystem      SpeakerType = "SYSTEM"
)

// Valid reports whether the speaker type is one of the known values.
func (s SpeakerType) Valid() bool {
	switch s {
	case SpeakerInterviewer, SpeakerCandidate, SpeakerSystem:
		return true
	}
	return false
}

// TranscriptSegment is one utterance within a session. Segments form a set
// keyed by (SessionID, SequenceNumber); SequenceNumber is the only defined
// ordering, not wall-clock time, because segments arrive out of network order.
// Segments are created once by ingestion and never updated.
type TranscriptSegment struct {
	SessionID      string      `db:"session_id"      json:"sessionId"`
	SequenceNumber int64       `db:"sequence_number" json:"sequenceNumber"`
	SpeakerType    SpeakerType `db:"speaker_type"    json:"speakerType"`
	SpeakerID      string      `db:"speaker_id"      json:"speakerId"`
	SpeakerName    string      `db:"speaker_name"    json:"speakerName"`
	Content        string      `db:"content"         json:"content"`

	// StartTime and EndTime are offsets in seconds within the call.
	StartTime  float64 `db:"start_time" json:"startTime"`
	EndTime    float64 `db:"end_time"   json:"endTime"`
	Confidence float64 `db:"confidence" json:"confidence"`

	// Derived tags are opaque annotations produced upstream. The ingestor
	// stores them and never computes them.
	Sentiment  *string  `db:"sentiment"  json:"sentiment,omitempty"`
	Keywords   []string `db:"keywords"   json:"keywords,omitempty"`
	Importance *int     `db:"importance" json:"importance,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Validate checks the segment shape at the ingestion boundary.
func (t *TranscriptSegment) Validate() error {
	if t.SequenceNumber < 0 {
		return Validationf("sequenceNumber must be non-negative, got %d", t.SequenceNumber)
	}
	if t.Content == "" {
		return Validationf("content is required for sequenceNumber %d", t.SequenceNumber)
	}
	if !t.SpeakerType.Valid() {
		return Validationf("unknown speakerType %q for sequenceNumber %d", t.SpeakerType, t.SequenceNumber)
	}
	if t.Confidence < 0 || t.Confidence > 1 {
		return Validationf("confidence must be within [0,1], got %g", t.Confidence)
	}
	if t.EndTime < t.StartTime {
		return Validationf("endTime %g precedes startTime %g", t.EndTime, t.StartTime)
	}
	return nil
}

// IngestStatus is the per-segment outcome of a bulk ingestion.
type IngestStatus string

const (
	IngestCreated   IngestStatus = "CREATED"
	IngestDuplicate IngestStatus = "DUPLICATE"
	IngestConflict  IngestStatus = "CONFLICT"
	IngestInvalid   IngestStatus = "INVALID"
	IngestFailed    IngestStatus = "FAILED"
)

// SegmentResult reports the outcome for a single segment in a batch.
type SegmentResult struct {
	SequenceNumber int64        `json:"sequenceNumber"`
	Status         IngestStatus `json:"status"`
	Reason         string       `json:"reason,omitempty"`
}

// IngestResult is the per-segment result list for a batch, enabling
// partial-success handling upstream.
type IngestResult struct {
	SessionID string          `json:"sessionId"`
	Results   []SegmentResult `json:"results"`
}
