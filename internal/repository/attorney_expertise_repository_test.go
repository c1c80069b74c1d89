package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/case-assignment-api/internal/models"
)

var expertiseColumns = []string{"id", "attorney_id", "expertise_area", "proficiency_level", "years_experience",
	"cases_handled", "success_rate", "last_case_date", "created_at", "updated_at"}

func TestAttorneyExpertiseRepositoryUpsertReturnsExistingID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttorneyExpertiseRepository(db)

	created := time.Now().Add(-24 * time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (attorney_id, expertise_area) DO UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("exp-existing", created))

	record := &models.AttorneyExpertise{
		AttorneyID:       "att-1",
		ExpertiseArea:    "PERSONAL_INJURY",
		ProficiencyLevel: models.ProficiencyAdvanced,
		YearsExperience:  6,
	}
	require.NoError(t, repo.Upsert(context.Background(), record))
	assert.Equal(t, "exp-existing", record.ID)
	assert.WithinDuration(t, created, record.CreatedAt, time.Second)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttorneyExpertiseRepositoryListByArea(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttorneyExpertiseRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("attorney_id = ANY($2)")).
		WithArgs("family", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(expertiseColumns).
			AddRow("exp-1", "att-1", "FAMILY", "EXPERT", 10, 40, 85.5, now, now, now))

	records, err := repo.ListByArea(context.Background(), "family", []string{"att-1", "att-2"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.ProficiencyExpert, records[0].ProficiencyLevel)

	empty, err := repo.ListByArea(context.Background(), "family", nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttorneyExpertiseRepositoryRecordOutcome(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttorneyExpertiseRepository(db)

	closed := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("cases_handled = cases_handled + 1")).
		WithArgs("att-1", "FAMILY", true, closed).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("cases_handled = cases_handled + 1")).
		WithArgs("att-2", "FAMILY", false, closed).
		WillReturnResult(sqlmock.NewResult(0, 0))

	updated, err := repo.RecordOutcome(context.Background(), nil, "att-1", "FAMILY", true, closed)
	require.NoError(t, err)
	assert.True(t, updated)

	updated, err = repo.RecordOutcome(context.Background(), nil, "att-2", "FAMILY", false, closed)
	require.NoError(t, err)
	assert.False(t, updated)
	require.NoError(t, mock.ExpectationsWereMet())
}
