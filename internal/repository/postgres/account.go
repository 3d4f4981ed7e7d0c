package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ecomstack/identity/internal/domain"
	apperrors "github.com/ecomstack/identity/pkg/errors"
)

// AccountRepository implements repository.AccountRepository using PostgreSQL.
type AccountRepository struct {
	db DB
}

// NewAccountRepository creates a new PostgreSQL-backed account repository.
func NewAccountRepository(db DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `id, email, username, password_hash, first_name, last_name, email_confirmed,
		verification_code, verification_code_expires_at, security_stamp, cart_id, is_active, roles,
		created_at, updated_at`

// Create inserts a new account into the database.
func (r *AccountRepository) Create(ctx context.Context, a *domain.Account) error {
	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := resolve(ctx, r.db).Exec(ctx, query,
		a.ID,
		a.Email,
		a.Username,
		a.PasswordHash,
		a.FirstName,
		a.LastName,
		a.EmailConfirmed,
		a.VerificationCode,
		a.VerificationCodeExpiresAt,
		a.SecurityStamp,
		a.CartID,
		a.IsActive,
		a.Roles,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateEmail
		}
		return fmt.Errorf("insert account: %w", err)
	}

	return nil
}

// GetByID retrieves an account by its ID.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE id = $1`

	return r.scanAccount(ctx, query, id)
}

// GetByEmail retrieves an account by its email address. The lookup is
// case-insensitive to match the unique index on LOWER(email).
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE LOWER(email) = LOWER($1)`

	return r.scanAccount(ctx, query, email)
}

// Update modifies an existing account in the database.
func (r *AccountRepository) Update(ctx context.Context, a *domain.Account) error {
	a.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE accounts
		SET email = $1, username = $2, password_hash = $3, first_name = $4, last_name = $5,
		    email_confirmed = $6, verification_code = $7, verification_code_expires_at = $8,
		    security_stamp = $9, cart_id = $10, is_active = $11, roles = $12, updated_at = $13
		WHERE id = $14`

	ct, err := resolve(ctx, r.db).Exec(ctx, query,
		a.Email,
		a.Username,
		a.PasswordHash,
		a.FirstName,
		a.LastName,
		a.EmailConfirmed,
		a.VerificationCode,
		a.VerificationCodeExpiresAt,
		a.SecurityStamp,
		a.CartID,
		a.IsActive,
		a.Roles,
		a.UpdatedAt,
		a.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateEmail
		}
		return fmt.Errorf("update account: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("account", a.ID)
	}

	return nil
}

// scanAccount is a helper that executes a query expected to return a single
// account row.
func (r *AccountRepository) scanAccount(ctx context.Context, query string, args ...any) (*domain.Account, error) {
	var a domain.Account

	err := resolve(ctx, r.db).QueryRow(ctx, query, args...).Scan(
		&a.ID,
		&a.Email,
		&a.Username,
		&a.PasswordHash,
		&a.FirstName,
		&a.LastName,
		&a.EmailConfirmed,
		&a.VerificationCode,
		&a.VerificationCodeExpiresAt,
		&a.SecurityStamp,
		&a.CartID,
		&a.IsActive,
		&a.Roles,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}

	return &a, nil
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
