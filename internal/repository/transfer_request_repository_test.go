package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/case-assignment-api/internal/models"
)

func TestTransferRequestRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTransferRequestRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO case_transfer_requests")).WillReturnResult(sqlmock.NewResult(1, 1))

	request := &models.CaseTransferRequest{CaseID: "case-1", FromUserID: "att-1", ToUserID: "att-2", RequestedBy: "att-1", Reason: "conflict"}
	require.NoError(t, repo.Create(context.Background(), request))
	assert.Equal(t, models.TransferPending, request.Status)
	assert.Equal(t, models.UrgencyMedium, request.Urgency)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferRequestRepositoryMarkProcessedOnlyFromPending(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTransferRequestRepository(db)

	params := MarkProcessedParams{ID: "tr-1", Status: models.TransferApproved, ApprovedBy: "sup-1", ProcessedAt: time.Now().UTC()}
	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND status = 'PENDING'")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND status = 'PENDING'")).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.MarkProcessed(context.Background(), nil, params))
	err := repo.MarkProcessed(context.Background(), nil, params)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferRequestRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTransferRequestRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM case_transfer_requests WHERE case_id = $1 AND status IN ($2)")).
		WithArgs("case-1", "PENDING").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY requested_at DESC LIMIT 10 OFFSET 0")).
		WithArgs("case-1", "PENDING").
		WillReturnRows(sqlmock.NewRows([]string{"id", "case_id", "from_user_id", "to_user_id", "requested_by", "reason", "urgency",
			"status", "approved_by", "approval_notes", "requested_at", "processed_at"}).
			AddRow("tr-1", "case-1", "att-1", "att-2", "att-1", "conflict", "HIGH", "PENDING", nil, nil, time.Now(), nil))

	list, total, err := repo.List(context.Background(), models.TransferFilter{
		CaseID: "case-1",
		Status: []models.TransferStatus{models.TransferPending},
		Limit:  10,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, models.UrgencyHigh, list[0].Urgency)
	require.NoError(t, mock.ExpectationsWereMet())
}
