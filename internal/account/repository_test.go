package account

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepository(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewRepository(db), mock
}

func accountRows(id string, tokenVersion int, suspendedAt, deletedAt any) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "email", "password_hash", "token_version", "active",
		"suspended_at", "suspension_reason", "deleted_at", "created_at", "updated_at",
	}).AddRow(id, "vet@example.com", "$2a$10$hash", tokenVersion, true, suspendedAt, nil, deletedAt, now, now)
}

func TestFindByID(t *testing.T) {
	repo, mock := newMockRepository(t)
	id := uuid.NewString()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, email, password_hash, token_version, active, suspended_at, suspension_reason, deleted_at, created_at, updated_at`)).
		WithArgs(id).
		WillReturnRows(accountRows(id, 3, nil, nil))

	acct, err := repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, acct.ID)
	assert.Equal(t, "vet@example.com", acct.Email)
	assert.Equal(t, 3, acct.TokenVersion)
	assert.True(t, acct.Usable())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByID_NotFound(t *testing.T) {
	repo, mock := newMockRepository(t)
	id := uuid.NewString()

	mock.ExpectQuery("SELECT").WithArgs(id).WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindByEmail_SuspendedAccountScansNullables(t *testing.T) {
	repo, mock := newMockRepository(t)
	id := uuid.NewString()
	suspendedAt := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE lower(email) = lower($1)`)).
		WithArgs("vet@example.com").
		WillReturnRows(accountRows(id, 1, suspendedAt, nil))

	acct, err := repo.FindByEmail(context.Background(), "vet@example.com")
	require.NoError(t, err)
	require.NotNil(t, acct.SuspendedAt)
	assert.False(t, acct.Usable())
	assert.Nil(t, acct.DeletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExistsByEmail(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS`)).
		WithArgs("vet@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsByEmail(context.Background(), "vet@example.com")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCreate(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO accounts`)).
		WithArgs(sqlmock.AnyArg(), "vet@example.com", "$2a$10$hash", 1, true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	acct, err := repo.Create(context.Background(), "  Vet@Example.COM ", "$2a$10$hash")
	require.NoError(t, err)
	assert.Equal(t, "vet@example.com", acct.Email)
	assert.Equal(t, 1, acct.TokenVersion)
	assert.True(t, acct.Active)
	_, err = uuid.Parse(acct.ID)
	assert.NoError(t, err, "ids are uuids")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCurrentTokenVersion(t *testing.T) {
	repo, mock := newMockRepository(t)
	id := uuid.NewString()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT token_version FROM accounts`)).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"token_version"}).AddRow(7))

	version, err := repo.CurrentTokenVersion(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 7, version)
}

func TestBumpTokenVersion(t *testing.T) {
	repo, mock := newMockRepository(t)
	id := uuid.NewString()

	mock.ExpectQuery(regexp.QuoteMeta(`SET token_version = token_version + 1`)).
		WithArgs(id, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"token_version"}).AddRow(2))

	version, err := repo.BumpTokenVersion(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 2, version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBumpTokenVersion_NotFound(t *testing.T) {
	repo, mock := newMockRepository(t)
	id := uuid.NewString()

	mock.ExpectQuery(regexp.QuoteMeta(`SET token_version = token_version + 1`)).
		WithArgs(id, sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.BumpTokenVersion(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSuspend_NotFound(t *testing.T) {
	repo, mock := newMockRepository(t)
	id := uuid.NewString()

	mock.ExpectExec(regexp.QuoteMeta(`SET suspended_at = $2`)).
		WithArgs(id, sqlmock.AnyArg(), "abuse").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Suspend(context.Background(), id, "abuse"), ErrNotFound)
}

func TestSoftDelete(t *testing.T) {
	repo, mock := newMockRepository(t)
	id := uuid.NewString()

	mock.ExpectExec(regexp.QuoteMeta(`SET deleted_at = $2, active = FALSE`)).
		WithArgs(id, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SoftDelete(context.Background(), id))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHardDeletePurged(t *testing.T) {
	repo, mock := newMockRepository(t)
	cutoff := time.Now().UTC().Add(-30 * 24 * time.Hour)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM accounts`)).
		WithArgs(cutoff, 500).
		WillReturnResult(sqlmock.NewResult(0, 12))

	deleted, err := repo.HardDeletePurged(context.Background(), cutoff, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(12), deleted)
}
