package database

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/campscout/internal/domain"
)

func requestRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "parent_id", "source_url", "source_name", "market", "status",
		"claimed_by", "claimed_at", "generated_code", "code_version", "feedback",
		"test_retry_count", "max_test_retries", "last_test", "exploration",
		"source_id", "notes", "created_at", "updated_at",
	})
}

func TestRequestRepository_ClaimNext(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRequestRepository(db)

	now := time.Now()
	rows := requestRows().AddRow(
		"req-1", nil, "https://camps.example.com", "Example Camps", "seattle",
		domain.RequestStatusInProgress, "worker-1", now, nil, 0, []byte("[]"),
		0, 3, nil, nil, nil, "", now, now,
	)

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE development_requests`)).
		WithArgs(domain.RequestStatusInProgress, "worker-1", domain.RequestStatusPending, "seattle").
		WillReturnRows(rows)

	req, err := repo.ClaimNext(context.Background(), "worker-1", "seattle")
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, domain.RequestStatusInProgress, req.Status)
	assert.Equal(t, "worker-1", *req.ClaimedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepository_ClaimNext_Empty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRequestRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE development_requests`)).
		WithArgs(domain.RequestStatusInProgress, "worker-1", domain.RequestStatusPending, "").
		WillReturnError(sql.ErrNoRows)

	req, err := repo.ClaimNext(context.Background(), "worker-1", "")
	require.NoError(t, err)
	assert.Nil(t, req, "empty queue must yield nil, not an error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepository_Create_Defaults(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRequestRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO development_requests`)).
		WithArgs(
			sqlmock.AnyArg(), nil, "https://camps.example.com", "Example Camps",
			"seattle", domain.RequestStatusPending, sqlmock.AnyArg(),
			domain.DefaultMaxTestRetries, sqlmock.AnyArg(), "",
		).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).
			AddRow(time.Now(), time.Now()))

	req := &domain.DevelopmentRequest{
		SourceURL:  "https://camps.example.com",
		SourceName: "Example Camps",
		Market:     "seattle",
	}
	require.NoError(t, repo.Create(context.Background(), req))
	assert.Equal(t, domain.RequestStatusPending, req.Status)
	assert.Equal(t, domain.DefaultMaxTestRetries, req.MaxTestRetries)
	assert.NotEmpty(t, req.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepository_ExistsForURL(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRequestRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT COUNT(*) FROM development_requests WHERE source_url = $1`,
	)).WithArgs("https://camps.example.com").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	exists, err := repo.ExistsForURL(context.Background(), "https://camps.example.com")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}
