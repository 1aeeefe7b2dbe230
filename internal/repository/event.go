package repository

import (
	"context"
	"fmt"

	"photo-frame-portal/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EventRepository appends and replays pair events
type EventRepository struct {
	db *pgxpool.Pool
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

// Create appends an event and fills in its sequence number and timestamp
func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	query := `
		INSERT INTO events (pair_id, sender, event_type, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING seq, created_at
	`
	err := r.db.QueryRow(ctx, query,
		event.PairID, event.Sender, event.EventType, []byte(event.Payload),
	).Scan(&event.Seq, &event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

// ListSince returns up to limit events of a pair with seq greater than afterSeq, oldest first
func (r *EventRepository) ListSince(ctx context.Context, pairID string, afterSeq int64, limit int) ([]*models.Event, error) {
	query := `
		SELECT seq, pair_id, sender, event_type, payload, created_at
		FROM events
		WHERE pair_id = $1 AND seq > $2
		ORDER BY seq ASC
		LIMIT $3
	`
	rows, err := r.db.Query(ctx, query, pairID, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		var e models.Event
		var payload []byte
		if err := rows.Scan(&e.Seq, &e.PairID, &e.Sender, &e.EventType, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Payload = payload
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return events, nil
}
