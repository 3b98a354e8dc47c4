package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/jonesrussell/interview-orchestrator/internal/domain"
)

// TranscriptRepository manages transcript segments in PostgreSQL.
type TranscriptRepository struct {
	db *sql.DB
}

// NewTranscriptRepository creates a new repository.
func NewTranscriptRepository(db *sql.DB) *TranscriptRepository {
	return &TranscriptRepository{db: db}
}

// InsertSegment writes a segment keyed by (session_id, sequence_number).
// The bool reports whether a row was inserted; false means the key already
// exists and the caller must read back the stored content to classify the
// replay as duplicate or conflict.
func (r *TranscriptRepository) InsertSegment(ctx context.Context, seg *domain.TranscriptSegment) (bool, error) {
	query := `
		INSERT INTO transcript_segments (
			session_id, sequence_number, speaker_type, speaker_id, speaker_name,
			content, start_time, end_time, confidence, sentiment, keywords,
			importance, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		ON CONFLICT (session_id, sequence_number) DO NOTHING`

	result, err := r.db.ExecContext(ctx, query,
		seg.SessionID, seg.SequenceNumber, seg.SpeakerType, seg.SpeakerID, seg.SpeakerName,
		seg.Content, seg.StartTime, seg.EndTime, seg.Confidence, seg.Sentiment,
		pq.StringArray(seg.Keywords), seg.Importance,
	)
	if err != nil {
		return false, fmt.Errorf("insert segment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get affected rows: %w", err)
	}
	return rows == 1, nil
}

// GetSegmentContent returns the stored content for a sequence number, used to
// distinguish an idempotent replay from a conflicting rewrite.
func (r *TranscriptRepository) GetSegmentContent(ctx context.Context, sessionID string, sequenceNumber int64) (string, error) {
	var content string
	err := r.db.QueryRowContext(ctx,
		`SELECT content FROM transcript_segments WHERE session_id = $1 AND sequence_number = $2`,
		sessionID, sequenceNumber,
	).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get segment content: %w", err)
	}
	return content, nil
}

// ListBySession returns all segments for a session ordered by sequence number.
func (r *TranscriptRepository) ListBySession(ctx context.Context, sessionID string) ([]domain.TranscriptSegment, error) {
	query := `
		SELECT session_id, sequence_number, speaker_type, speaker_id, speaker_name,
		       content, start_time, end_time, confidence, sentiment, keywords,
		       importance, created_at
		FROM transcript_segments
		WHERE session_id = $1
		ORDER BY sequence_number ASC`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer rows.Close()

	segments := []domain.TranscriptSegment{}
	for rows.Next() {
		var seg domain.TranscriptSegment
		var keywords pq.StringArray
		if err := rows.Scan(
			&seg.SessionID, &seg.SequenceNumber, &seg.SpeakerType, &seg.SpeakerID, &seg.SpeakerName,
			&seg.Content, &seg.StartTime, &seg.EndTime, &seg.Confidence, &seg.Sentiment,
			&keywords, &seg.Importance, &seg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		seg.Keywords = keywords
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}
