package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/noah-isme/permitflow-api/internal/models"
)

// CountByStatus tallies all permits per status.
func (r *PermitRepository) CountByStatus(ctx context.Context) (models.StatusCounts, error) {
	const query = `SELECT COUNT(*) AS total,
	COUNT(*) FILTER (WHERE status = 'Pending') AS pending,
	COUNT(*) FILTER (WHERE status = 'Approved') AS approved,
	COUNT(*) FILTER (WHERE status = 'Rejected') AS rejected,
	COUNT(*) FILTER (WHERE status = 'Resubmitted') AS resubmitted
	FROM permits`
	var counts models.StatusCounts
	if err := r.db.GetContext(ctx, &counts, query); err != nil {
		return models.StatusCounts{}, fmt.Errorf("count permits by status: %w", err)
	}
	return counts, nil
}

// AverageDecisionHours returns the mean time from submission to approver decision.
func (r *PermitRepository) AverageDecisionHours(ctx context.Context) (float64, error) {
	const query = `SELECT COALESCE(AVG(EXTRACT(EPOCH FROM (decided_at - created_at))) / 3600.0, 0)
	FROM permits
	WHERE decided_at IS NOT NULL`
	var hours float64
	if err := r.db.GetContext(ctx, &hours, query); err != nil {
		return 0, fmt.Errorf("average decision time: %w", err)
	}
	return hours, nil
}

// MonthlyDecisions counts approvals and rejections per UTC calendar month since the given instant.
func (r *PermitRepository) MonthlyDecisions(ctx context.Context, since time.Time) ([]models.MonthlyDecisions, error) {
	const query = `SELECT to_char(date_trunc('month', decided_at AT TIME ZONE 'UTC'), 'YYYY-MM') AS month,
	COUNT(*) FILTER (WHERE decision = 'Approved') AS approved,
	COUNT(*) FILTER (WHERE decision = 'Rejected') AS rejected
	FROM permits
	WHERE decided_at >= $1
	GROUP BY 1 ORDER BY 1`
	var rows []models.MonthlyDecisions
	if err := r.db.SelectContext(ctx, &rows, query, since.UTC()); err != nil {
		return nil, fmt.Errorf("monthly decisions: %w", err)
	}
	return rows, nil
}

// CountByRegion tallies permits per region, largest first.
func (r *PermitRepository) CountByRegion(ctx context.Context) ([]models.RegionCount, error) {
	const query = `SELECT COALESCE(data->>'region', '') AS region, COUNT(*) AS count
	FROM permits GROUP BY 1 ORDER BY 2 DESC, 1`
	var rows []models.RegionCount
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("count permits by region: %w", err)
	}
	return rows, nil
}
