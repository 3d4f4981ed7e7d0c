package repository

import (
	"context"
	"time"

	"github.com/ecomstack/identity/internal/domain"
)

// AccountRepository defines the interface for account persistence operations.
type AccountRepository interface {
	// Create inserts a new account into the store.
	Create(ctx context.Context, account *domain.Account) error

	// GetByID retrieves an account by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Account, error)

	// GetByEmail retrieves an account by its email address.
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)

	// Update modifies an existing account in the store.
	Update(ctx context.Context, account *domain.Account) error
}

// RefreshTokenRepository defines the interface for refresh token persistence
// operations. Records are never deleted; revocation is a soft state change.
type RefreshTokenRepository interface {
	// Create stores a new refresh token record.
	Create(ctx context.Context, record *domain.RefreshTokenRecord) error

	// GetByHash retrieves a refresh token record by its token hash.
	GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshTokenRecord, error)

	// RevokeActive marks the record revoked if and only if it is not
	// already revoked, optionally linking the record that replaces it.
	// Returns false when another caller revoked it first.
	RevokeActive(ctx context.Context, id string, now time.Time, replacedBy *string) (bool, error)

	// RevokeAllByAccountID revokes every active token for the account.
	RevokeAllByAccountID(ctx context.Context, accountID string, now time.Time) error
}

// TxManager runs a function within a database transaction. The transaction is
// carried in the context passed to fn, so repository calls made with that
// context join the transaction. fn returning an error rolls everything back.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
