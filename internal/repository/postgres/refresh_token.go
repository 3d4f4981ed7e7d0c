package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ecomstack/identity/internal/domain"
	apperrors "github.com/ecomstack/identity/pkg/errors"
)

// RefreshTokenRepository implements repository.RefreshTokenRepository using
// PostgreSQL.
type RefreshTokenRepository struct {
	db DB
}

// NewRefreshTokenRepository creates a new PostgreSQL-backed refresh token
// repository.
func NewRefreshTokenRepository(db DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

// Create stores a new refresh token record in the database.
func (r *RefreshTokenRepository) Create(ctx context.Context, rec *domain.RefreshTokenRecord) error {
	query := `
		INSERT INTO refresh_tokens (id, account_id, token_hash, created_at, expires_at, revoked_at, replaced_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := resolve(ctx, r.db).Exec(ctx, query,
		rec.ID,
		rec.AccountID,
		rec.TokenHash,
		rec.CreatedAt,
		rec.ExpiresAt,
		rec.RevokedAt,
		rec.ReplacedBy,
	)
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}

	return nil
}

// GetByHash retrieves a refresh token record by its token hash.
func (r *RefreshTokenRepository) GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshTokenRecord, error) {
	query := `
		SELECT id, account_id, token_hash, created_at, expires_at, revoked_at, replaced_by
		FROM refresh_tokens
		WHERE token_hash = $1`

	var rec domain.RefreshTokenRecord
	err := resolve(ctx, r.db).QueryRow(ctx, query, tokenHash).Scan(
		&rec.ID,
		&rec.AccountID,
		&rec.TokenHash,
		&rec.CreatedAt,
		&rec.ExpiresAt,
		&rec.RevokedAt,
		&rec.ReplacedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan refresh token: %w", err)
	}

	return &rec, nil
}

// RevokeActive marks the record revoked only if it is still unrevoked. The
// WHERE revoked_at IS NULL guard makes concurrent revocations of the same
// record resolve to exactly one winner; the losers see false.
func (r *RefreshTokenRepository) RevokeActive(ctx context.Context, id string, now time.Time, replacedBy *string) (bool, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = $1, replaced_by = $2
		WHERE id = $3 AND revoked_at IS NULL`

	ct, err := resolve(ctx, r.db).Exec(ctx, query, now, replacedBy, id)
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}

	return ct.RowsAffected() > 0, nil
}

// RevokeAllByAccountID revokes every active refresh token for the account.
func (r *RefreshTokenRepository) RevokeAllByAccountID(ctx context.Context, accountID string, now time.Time) error {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = $1
		WHERE account_id = $2 AND revoked_at IS NULL`

	_, err := resolve(ctx, r.db).Exec(ctx, query, now, accountID)
	if err != nil {
		return fmt.Errorf("revoke refresh tokens by account: %w", err)
	}

	return nil
}
