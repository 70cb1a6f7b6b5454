package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/permitflow-api/internal/models"
)

// PermitEventRepository appends and reads the permit audit trail.
type PermitEventRepository struct {
	db *sqlx.DB
}

// NewPermitEventRepository constructs the repository.
func NewPermitEventRepository(db *sqlx.DB) *PermitEventRepository {
	return &PermitEventRepository{db: db}
}

// Create appends an event.
func (r *PermitEventRepository) Create(ctx context.Context, event *models.PermitEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO permit_events
	(id, permit_id, tracking_id, action, from_status, to_status, actor, note, created_at)
	VALUES (:id, :permit_id, :tracking_id, :action, :from_status, :to_status, :actor, :note, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("create permit event: %w", err)
	}
	return nil
}

// ListByTrackingID returns the events of one permit in chronological order.
func (r *PermitEventRepository) ListByTrackingID(ctx context.Context, trackingID string) ([]models.PermitEvent, error) {
	const query = `SELECT id, permit_id, tracking_id, action, from_status, to_status, actor, note, created_at
	FROM permit_events WHERE tracking_id = $1 ORDER BY created_at ASC, id ASC`
	var events []models.PermitEvent
	if err := r.db.SelectContext(ctx, &events, query, normaliseTrackingID(trackingID)); err != nil {
		return nil, fmt.Errorf("list permit events: %w", err)
	}
	return events, nil
}
