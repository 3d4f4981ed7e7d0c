package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/ecomstack/identity/internal/domain"
)

const refreshTokenBytes = 32

// DefaultRefreshTokenTTL matches the 10-day session window.
const DefaultRefreshTokenTTL = 240 * time.Hour

// RefreshTokenFactory mints opaque refresh tokens and their unpersisted
// storage records. The raw token is 32 bytes of crypto/rand in standard
// base64; only its SHA-256 digest goes into the record.
type RefreshTokenFactory struct {
	ttl  time.Duration
	rand io.Reader
	now  func() time.Time
}

// NewRefreshTokenFactory creates a factory with the given token lifetime.
// A non-positive ttl falls back to DefaultRefreshTokenTTL.
func NewRefreshTokenFactory(ttl time.Duration) *RefreshTokenFactory {
	if ttl <= 0 {
		ttl = DefaultRefreshTokenTTL
	}
	return &RefreshTokenFactory{
		ttl:  ttl,
		rand: rand.Reader,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// WithRand overrides the entropy source. For tests.
func (f *RefreshTokenFactory) WithRand(r io.Reader) *RefreshTokenFactory {
	f.rand = r
	return f
}

// WithNow overrides the clock. For tests.
func (f *RefreshTokenFactory) WithNow(now func() time.Time) *RefreshTokenFactory {
	f.now = now
	return f
}

// Mint generates a new raw refresh token and the record to persist for it.
// The record is not stored; callers persist it within their own transaction.
func (f *RefreshTokenFactory) Mint(accountID string) (raw string, record *domain.RefreshTokenRecord, err error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := io.ReadFull(f.rand, buf); err != nil {
		return "", nil, fmt.Errorf("read random bytes: %w", err)
	}

	raw = base64.StdEncoding.EncodeToString(buf)
	now := f.now()

	record = &domain.RefreshTokenRecord{
		ID:        uuid.New().String(),
		AccountID: accountID,
		TokenHash: HashToken(raw),
		CreatedAt: now,
		ExpiresAt: now.Add(f.ttl),
	}
	return raw, record, nil
}

// HashToken returns the SHA-256 hex digest stored in place of the raw token.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
