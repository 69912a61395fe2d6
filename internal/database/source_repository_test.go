package database

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/campscout/internal/domain"
)

func TestSourceRepository_DeployLogic_ClearsRegenerationFlags(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSourceRepository(db)

	script := "extract()"
	mock.ExpectExec(regexp.QuoteMeta(
		`SET module_name = $1, script_code = $2, is_active = true,
		    needs_regeneration = false, consecutive_zero_results = 0,`,
	)).WithArgs(nil, script, "src-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.DeployLogic(context.Background(), "src-1", nil, &script))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSourceRepository_DeployLogic_ModuleVariant(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSourceRepository(db)

	module := "html_listing"
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE sources`)).
		WithArgs(module, nil, "src-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.DeployLogic(context.Background(), "src-1", &module, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSourceRepository_DeployLogic_RejectsBothKinds(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSourceRepository(db)

	module := "html_listing"
	script := "extract()"
	err := repo.DeployLogic(context.Background(), "src-1", &module, &script)
	require.ErrorIs(t, err, domain.ErrAmbiguousLogic)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSourceRepository_DeployLogic_UnknownSource(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSourceRepository(db)

	script := "extract()"
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE sources`)).
		WithArgs(nil, script, "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeployLogic(context.Background(), "missing", nil, &script)
	require.ErrorIs(t, err, ErrSourceNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
