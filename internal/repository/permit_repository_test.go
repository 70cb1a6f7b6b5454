package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/permitflow-api/internal/models"
)

var permitRowColumns = []string{"id", "tracking_id", "status", "approval_token", "actioned_token", "data", "rejection_remarks",
	"ai_suggestions", "resubmitted_from", "resubmitted_to", "created_at", "updated_at"}

func newPermitRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func samplePermitData(t *testing.T) []byte {
	raw, err := json.Marshal(models.PermitData{
		SiteID:         "S1",
		SiteName:       "Tower One",
		Region:         "South",
		Circle:         "Kerala",
		RequesterEmail: "req@example.com",
		ApproverEmail:  "app@example.com",
	})
	require.NoError(t, err)
	return raw
}

func TestPermitRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newPermitRepoMock(t)
	defer cleanup()

	repo := NewPermitRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO permits")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	permit := &models.Permit{TrackingID: "PTW/RV/S1/2024-25/ABC123", ApprovalToken: "tok"}
	require.NoError(t, repo.Create(context.Background(), permit))
	require.NotEmpty(t, permit.ID)
	require.Equal(t, models.PermitStatusPending, permit.Status)
	require.Equal(t, permit.CreatedAt, permit.UpdatedAt)

	now := time.Now()
	rows := sqlmock.NewRows(permitRowColumns).
		AddRow(permit.ID, permit.TrackingID, "Pending", "tok", nil, samplePermitData(t), nil, nil, nil, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM permits WHERE tracking_id = $1")).
		WithArgs("PTW/RV/S1/2024-25/ABC123").
		WillReturnRows(rows)

	found, err := repo.GetByTrackingID(context.Background(), " ptw/rv/s1/2024-25/abc123 ")
	require.NoError(t, err)
	require.Equal(t, permit.ID, found.ID)
	require.Equal(t, "Tower One", found.Data.SiteName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPermitRepositoryGetByTokenMatchesConsumedToken(t *testing.T) {
	db, mock, cleanup := newPermitRepoMock(t)
	defer cleanup()

	repo := NewPermitRepository(db)
	now := time.Now()
	rows := sqlmock.NewRows(permitRowColumns).
		AddRow("p-1", "PTW/RV/S1/2024-25/ABC123", "Approved", "fresh", "old", samplePermitData(t), nil, nil, nil, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE approval_token = $1 OR actioned_token = $1")).
		WithArgs("old").
		WillReturnRows(rows)

	found, err := repo.GetByToken(context.Background(), "old")
	require.NoError(t, err)
	require.Equal(t, models.PermitStatusApproved, found.Status)
	require.NotNil(t, found.ActionedToken)
	require.Equal(t, "old", *found.ActionedToken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPermitRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newPermitRepoMock(t)
	defer cleanup()

	repo := NewPermitRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM permits WHERE status = $1 AND data->>'region' = $2")).
		WithArgs(models.PermitStatusRejected, "South", "%tower%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	now := time.Now()
	mock.ExpectQuery("ORDER BY created_at DESC LIMIT 10 OFFSET 0").
		WithArgs(models.PermitStatusRejected, "South", "%tower%").
		WillReturnRows(sqlmock.NewRows(permitRowColumns).
			AddRow("p-1", "PTW/RV/S1/2024-25/ABC123", "Rejected", "t", "t0", samplePermitData(t), "fix", nil, nil, nil, now, now))

	list, total, err := repo.List(context.Background(), models.PermitFilter{
		Status: models.PermitStatusRejected,
		Region: "South",
		Search: "tower",
		Limit:  10,
	})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, list, 1)
	require.Equal(t, "fix", *list[0].RejectionRemarks)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPermitRepositoryApplyDecision(t *testing.T) {
	db, mock, cleanup := newPermitRepoMock(t)
	defer cleanup()

	repo := NewPermitRepository(db)
	at := time.Now().UTC()
	remarks := "missing harness"
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("decision = $2, decided_at = $5")+`\s+`+regexp.QuoteMeta("WHERE approval_token = $1 AND status = 'Pending'")).
		WithArgs("tok", models.PermitStatusRejected, "new-tok", &remarks, at).
		WillReturnRows(sqlmock.NewRows(permitRowColumns).
			AddRow("p-1", "PTW/RV/S1/2024-25/ABC123", "Rejected", "new-tok", "tok", samplePermitData(t), remarks, nil, nil, nil, now, at))

	updated, err := repo.ApplyDecision(context.Background(), models.PermitDecision{
		Token: "tok", NewToken: "new-tok", Status: models.PermitStatusRejected, Remarks: &remarks, At: at,
	})
	require.NoError(t, err)
	require.Equal(t, models.PermitStatusRejected, updated.Status)
	require.Equal(t, "new-tok", updated.ApprovalToken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPermitRepositoryApplyDecisionGuard(t *testing.T) {
	db, mock, cleanup := newPermitRepoMock(t)
	defer cleanup()

	repo := NewPermitRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE approval_token = $1 AND status = 'Pending'")).
		WillReturnRows(sqlmock.NewRows(permitRowColumns))

	_, err := repo.ApplyDecision(context.Background(), models.PermitDecision{Token: "tok", NewToken: "n", Status: models.PermitStatusApproved, At: time.Now()})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPermitRepositoryAttachSuggestions(t *testing.T) {
	db, mock, cleanup := newPermitRepoMock(t)
	defer cleanup()

	repo := NewPermitRepository(db)
	at := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE permits SET ai_suggestions = $2")).
		WithArgs("PTW/RV/S1/2024-25/ABC123", "add harness photo", at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.AttachSuggestions(context.Background(), "ptw/rv/s1/2024-25/abc123", "add harness photo", at))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE permits SET ai_suggestions = $2")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.ErrorIs(t, repo.AttachSuggestions(context.Background(), "x", "y", at), sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPermitRepositoryCreateResubmission(t *testing.T) {
	db, mock, cleanup := newPermitRepoMock(t)
	defer cleanup()

	repo := NewPermitRepository(db)
	at := time.Now().UTC()
	now := time.Now()
	from := "ptw/rv/s1/2024-25/old001"
	replacement := &models.Permit{TrackingID: "PTW/RV/S1/2024-25/NEW001", ApprovalToken: "new-tok", ResubmittedFrom: &from}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE tracking_id = $1 AND resubmitted_to IS NULL")).
		WithArgs("PTW/RV/S1/2024-25/OLD001", "PTW/RV/S1/2024-25/NEW001", "rotated", at).
		WillReturnRows(sqlmock.NewRows(permitRowColumns).
			AddRow("p-1", "PTW/RV/S1/2024-25/OLD001", "Resubmitted", "rotated", "tok", samplePermitData(t), "fix", nil, nil, "PTW/RV/S1/2024-25/NEW001", now, at))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO permits")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	original, err := repo.CreateResubmission(context.Background(), replacement, "rotated", at)
	require.NoError(t, err)
	require.Equal(t, models.PermitStatusResubmitted, original.Status)
	require.Equal(t, "PTW/RV/S1/2024-25/NEW001", *original.ResubmittedTo)
	require.NotEmpty(t, replacement.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPermitRepositoryCreateResubmissionRollsBack(t *testing.T) {
	db, mock, cleanup := newPermitRepoMock(t)
	defer cleanup()

	repo := NewPermitRepository(db)
	at := time.Now().UTC()
	from := "PTW/RV/S1/2024-25/OLD001"

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("resubmitted_to IS NULL")).
		WillReturnRows(sqlmock.NewRows(permitRowColumns))
	mock.ExpectRollback()
	_, err := repo.CreateResubmission(context.Background(), &models.Permit{TrackingID: "PTW/RV/S1/2024-25/NEW002", ResubmittedFrom: &from}, "rotated", at)
	require.ErrorIs(t, err, sql.ErrNoRows)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("resubmitted_to IS NULL")).
		WillReturnRows(sqlmock.NewRows(permitRowColumns).
			AddRow("p-1", from, "Resubmitted", "rotated", nil, samplePermitData(t), nil, nil, nil, "PTW/RV/S1/2024-25/NEW003", at, at))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO permits")).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()
	_, err = repo.CreateResubmission(context.Background(), &models.Permit{TrackingID: "PTW/RV/S1/2024-25/NEW003", ResubmittedFrom: &from}, "rotated", at)
	require.ErrorIs(t, err, sql.ErrConnDone)

	_, err = repo.CreateResubmission(context.Background(), &models.Permit{TrackingID: "PTW/RV/S1/2024-25/NEW004"}, "rotated", at)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPermitRepositoryTrackingIDExists(t *testing.T) {
	db, mock, cleanup := newPermitRepoMock(t)
	defer cleanup()

	repo := NewPermitRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("PTW/RV/S1/2024-25/ABC123").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.TrackingIDExists(context.Background(), "PTW/RV/S1/2024-25/ABC123")
	require.NoError(t, err)
	require.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPermitRepositoryReportQueries(t *testing.T) {
	db, mock, cleanup := newPermitRepoMock(t)
	defer cleanup()

	repo := NewPermitRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("COUNT(*) FILTER (WHERE status = 'Pending')")).
		WillReturnRows(sqlmock.NewRows([]string{"total", "pending", "approved", "rejected", "resubmitted"}).AddRow(10, 2, 5, 2, 1))
	counts, err := repo.CountByStatus(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.StatusCounts{Total: 10, Pending: 2, Approved: 5, Rejected: 2, Resubmitted: 1}, counts)

	mock.ExpectQuery(regexp.QuoteMeta("EXTRACT(EPOCH FROM (decided_at - created_at))")).
		WillReturnRows(sqlmock.NewRows([]string{"avg"}).AddRow(12.5))
	hours, err := repo.AverageDecisionHours(context.Background())
	require.NoError(t, err)
	require.InDelta(t, 12.5, hours, 0.001)

	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("to_char(date_trunc('month', decided_at AT TIME ZONE 'UTC'), 'YYYY-MM')")).
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"month", "approved", "rejected"}).AddRow("2024-03", 3, 1))
	monthly, err := repo.MonthlyDecisions(context.Background(), since)
	require.NoError(t, err)
	require.Equal(t, []models.MonthlyDecisions{{Month: "2024-03", Approved: 3, Rejected: 1}}, monthly)

	mock.ExpectQuery(regexp.QuoteMeta("data->>'region'")).
		WillReturnRows(sqlmock.NewRows([]string{"region", "count"}).AddRow("South", 6).AddRow("North", 4))
	regions, err := repo.CountByRegion(context.Background())
	require.NoError(t, err)
	require.Len(t, regions, 2)
	require.Equal(t, "South", regions[0].Region)
	require.NoError(t, mock.ExpectationsWereMet())
}
