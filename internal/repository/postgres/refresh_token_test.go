package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecomstack/identity/internal/domain"
	"github.com/ecomstack/identity/pkg/database"
	apperrors "github.com/ecomstack/identity/pkg/errors"
)

func newTokenTestFixture(t *testing.T) (*RefreshTokenRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	repo := NewRefreshTokenRepository(mock)
	return repo, mock
}

func sampleTokenRecord() *domain.RefreshTokenRecord {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.RefreshTokenRecord{
		ID:        "33333333-3333-3333-3333-333333333333",
		AccountID: "11111111-1111-1111-1111-111111111111",
		TokenHash: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		CreatedAt: now,
		ExpiresAt: now.Add(240 * time.Hour),
	}
}

func tokenRow(rec *domain.RefreshTokenRecord) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "account_id", "token_hash", "created_at", "expires_at", "revoked_at", "replaced_by",
	}).AddRow(
		rec.ID, rec.AccountID, rec.TokenHash, rec.CreatedAt, rec.ExpiresAt, rec.RevokedAt, rec.ReplacedBy,
	)
}

func TestRefreshTokenRepository_Create_Success(t *testing.T) {
	repo, mock := newTokenTestFixture(t)
	defer mock.Close()

	rec := sampleTokenRecord()

	mock.ExpectExec("INSERT INTO refresh_tokens").
		WithArgs(rec.ID, rec.AccountID, rec.TokenHash, rec.CreatedAt, rec.ExpiresAt, rec.RevokedAt, rec.ReplacedBy).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Create(context.Background(), rec)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshTokenRepository_GetByHash_Success(t *testing.T) {
	repo, mock := newTokenTestFixture(t)
	defer mock.Close()

	rec := sampleTokenRecord()

	mock.ExpectQuery("SELECT .+ FROM refresh_tokens WHERE token_hash =").
		WithArgs(rec.TokenHash).
		WillReturnRows(tokenRow(rec))

	got, err := repo.GetByHash(context.Background(), rec.TokenHash)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.AccountID, got.AccountID)
	assert.Nil(t, got.RevokedAt)
	assert.Nil(t, got.ReplacedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshTokenRepository_GetByHash_NotFound(t *testing.T) {
	repo, mock := newTokenTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM refresh_tokens WHERE token_hash =").
		WithArgs("unknown-hash").
		WillReturnError(pgx.ErrNoRows)

	got, err := repo.GetByHash(context.Background(), "unknown-hash")
	assert.Nil(t, got)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound), "expected ErrNotFound, got: %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshTokenRepository_RevokeActive_Winner(t *testing.T) {
	repo, mock := newTokenTestFixture(t)
	defer mock.Close()

	rec := sampleTokenRecord()
	now := time.Now().UTC()
	replacedBy := "44444444-4444-4444-4444-444444444444"

	mock.ExpectExec("UPDATE refresh_tokens").
		WithArgs(now, &replacedBy, rec.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	won, err := repo.RevokeActive(context.Background(), rec.ID, now, &replacedBy)
	require.NoError(t, err)
	assert.True(t, won)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshTokenRepository_RevokeActive_AlreadyRevoked(t *testing.T) {
	repo, mock := newTokenTestFixture(t)
	defer mock.Close()

	rec := sampleTokenRecord()
	now := time.Now().UTC()

	// The row exists but revoked_at is already set, so the guarded update
	// touches nothing.
	mock.ExpectExec("UPDATE refresh_tokens").
		WithArgs(now, (*string)(nil), rec.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	won, err := repo.RevokeActive(context.Background(), rec.ID, now, nil)
	require.NoError(t, err)
	assert.False(t, won)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshTokenRepository_RevokeAllByAccountID(t *testing.T) {
	repo, mock := newTokenTestFixture(t)
	defer mock.Close()

	now := time.Now().UTC()

	mock.ExpectExec("UPDATE refresh_tokens").
		WithArgs(now, "11111111-1111-1111-1111-111111111111").
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	err := repo.RevokeAllByAccountID(context.Background(), "11111111-1111-1111-1111-111111111111", now)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
