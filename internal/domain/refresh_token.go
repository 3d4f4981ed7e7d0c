package domain

import (
	"time"
)

// RefreshTokenRecord is the stored form of an opaque refresh token. The raw
// token never touches the database; only its SHA-256 hex digest is persisted.
// Records are never deleted: revoked rows form an audit trail and let replays
// of rotated-out tokens be detected.
type RefreshTokenRecord struct {
	ID        string     `json:"id"`
	AccountID string     `json:"account_id"`
	TokenHash string     `json:"-"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`

	// ReplacedBy links to the record that superseded this one during
	// rotation. Set only when the token was rotated, not plainly revoked.
	ReplacedBy *string `json:"replaced_by,omitempty"`
}

// Revoked reports whether the token has been explicitly revoked.
func (t *RefreshTokenRecord) Revoked() bool {
	return t.RevokedAt != nil
}

// Expired reports whether the token is past its expiry at the given instant.
func (t *RefreshTokenRecord) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Active reports whether the token can still be presented: not revoked and
// not expired.
func (t *RefreshTokenRecord) Active(now time.Time) bool {
	return !t.Revoked() && !t.Expired(now)
}
