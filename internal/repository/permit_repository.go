package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/permitflow-api/internal/models"
)

const permitColumns = `id, tracking_id, status, approval_token, actioned_token, data, rejection_remarks,
       ai_suggestions, resubmitted_from, resubmitted_to, created_at, updated_at`

// PermitRepository persists permits in PostgreSQL, keeping the form payload as JSONB.
type PermitRepository struct {
	db *sqlx.DB
}

// NewPermitRepository constructs the repository.
func NewPermitRepository(db *sqlx.DB) *PermitRepository {
	return &PermitRepository{db: db}
}

// Create inserts a new permit row.
func (r *PermitRepository) Create(ctx context.Context, permit *models.Permit) error {
	return insertPermit(ctx, r.db, permit)
}

func insertPermit(ctx context.Context, ext sqlx.ExtContext, permit *models.Permit) error {
	if permit.ID == "" {
		permit.ID = uuid.NewString()
	}
	if permit.Status == "" {
		permit.Status = models.PermitStatusPending
	}
	now := time.Now().UTC()
	if permit.CreatedAt.IsZero() {
		permit.CreatedAt = now
	}
	if permit.UpdatedAt.IsZero() {
		permit.UpdatedAt = permit.CreatedAt
	}
	const query = `INSERT INTO permits
	(id, tracking_id, status, approval_token, data, resubmitted_from, created_at, updated_at)
	VALUES (:id, :tracking_id, :status, :approval_token, :data, :resubmitted_from, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, ext, query, permit); err != nil {
		return fmt.Errorf("create permit: %w", err)
	}
	return nil
}

// GetByTrackingID fetches a permit by tracking ID, ignoring case.
func (r *PermitRepository) GetByTrackingID(ctx context.Context, trackingID string) (*models.Permit, error) {
	query := `SELECT ` + permitColumns + ` FROM permits WHERE tracking_id = $1`
	var permit models.Permit
	if err := r.db.GetContext(ctx, &permit, query, normaliseTrackingID(trackingID)); err != nil {
		return nil, err
	}
	return &permit, nil
}

// GetByToken resolves a permit by its live approval token or the token consumed by its last action.
func (r *PermitRepository) GetByToken(ctx context.Context, token string) (*models.Permit, error) {
	query := `SELECT ` + permitColumns + ` FROM permits WHERE approval_token = $1 OR actioned_token = $1 LIMIT 1`
	var permit models.Permit
	if err := r.db.GetContext(ctx, &permit, query, token); err != nil {
		return nil, err
	}
	return &permit, nil
}

// TrackingIDExists reports whether a tracking ID is already taken.
func (r *PermitRepository) TrackingIDExists(ctx context.Context, trackingID string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM permits WHERE tracking_id = $1)`, normaliseTrackingID(trackingID)); err != nil {
		return false, fmt.Errorf("check tracking id: %w", err)
	}
	return exists, nil
}

// List returns permits matching the filter, newest first, and the total match count.
func (r *PermitRepository) List(ctx context.Context, filter models.PermitFilter) ([]models.Permit, int, error) {
	args := make([]interface{}, 0, 4)
	conditions := make([]string, 0, 4)
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Region != "" {
		args = append(args, filter.Region)
		conditions = append(conditions, fmt.Sprintf("data->>'region' = $%d", len(args)))
	}
	if filter.Circle != "" {
		args = append(args, filter.Circle)
		conditions = append(conditions, fmt.Sprintf("data->>'circle' = $%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+search+"%")
		p := len(args)
		conditions = append(conditions, fmt.Sprintf(`(tracking_id ILIKE $%[1]d OR data->>'siteName' ILIKE $%[1]d
		OR data->>'siteId' ILIKE $%[1]d OR data->>'requesterCompany' ILIKE $%[1]d
		OR data->>'requesterEmail' ILIKE $%[1]d OR data->>'approverEmail' ILIKE $%[1]d)`, p))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM permits"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count permits: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf("SELECT %s FROM permits%s ORDER BY created_at DESC LIMIT %d OFFSET %d", permitColumns, where, limit, offset)

	var permits []models.Permit
	if err := r.db.SelectContext(ctx, &permits, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list permits: %w", err)
	}
	return permits, total, nil
}

// ApplyDecision atomically moves a Pending permit holding the token to the decided status,
// rotating the token and remembering the consumed one. The decision and its time are kept
// in their own columns so later transitions do not change reporting. It returns
// sql.ErrNoRows when no Pending permit holds the token.
func (r *PermitRepository) ApplyDecision(ctx context.Context, decision models.PermitDecision) (*models.Permit, error) {
	query := `UPDATE permits
	SET status = $2, approval_token = $3, actioned_token = approval_token, rejection_remarks = $4, updated_at = $5,
	    decision = $2, decided_at = $5
	WHERE approval_token = $1 AND status = 'Pending'
	RETURNING ` + permitColumns
	var permit models.Permit
	err := r.db.GetContext(ctx, &permit, query, decision.Token, decision.Status, decision.NewToken, decision.Remarks, decision.At)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("apply permit decision: %w", err)
	}
	return &permit, nil
}

// AttachSuggestions stores correction suggestions on a rejected permit.
func (r *PermitRepository) AttachSuggestions(ctx context.Context, trackingID, suggestions string, at time.Time) error {
	const query = `UPDATE permits SET ai_suggestions = $2, updated_at = $3 WHERE tracking_id = $1 AND status = 'Rejected'`
	result, err := r.db.ExecContext(ctx, query, normaliseTrackingID(trackingID), suggestions, at)
	if err != nil {
		return fmt.Errorf("attach suggestions: %w", err)
	}
	return expectAffected(result)
}

// CreateResubmission inserts replacement and marks the permit it names in ResubmittedFrom
// as Resubmitted in one transaction, so both links exist or neither does. An original that
// already has a forward link yields sql.ErrNoRows and nothing is written. A Pending original
// has its token consumed so an outstanding approval link stops working.
func (r *PermitRepository) CreateResubmission(ctx context.Context, replacement *models.Permit, originalToken string, at time.Time) (original *models.Permit, err error) {
	if replacement.ResubmittedFrom == nil {
		return nil, fmt.Errorf("create resubmission: replacement has no original")
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin resubmission transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := `UPDATE permits
	SET status = 'Resubmitted', resubmitted_to = $2, approval_token = $3,
	    actioned_token = CASE WHEN status = 'Pending' THEN approval_token ELSE actioned_token END,
	    updated_at = $4
	WHERE tracking_id = $1 AND resubmitted_to IS NULL
	RETURNING ` + permitColumns
	var linked models.Permit
	if err = tx.GetContext(ctx, &linked, query, normaliseTrackingID(*replacement.ResubmittedFrom), replacement.TrackingID, originalToken, at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("mark permit resubmitted: %w", err)
	}
	if err = insertPermit(ctx, tx, replacement); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit resubmission: %w", err)
	}
	return &linked, nil
}

func normaliseTrackingID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

func expectAffected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check affected rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
