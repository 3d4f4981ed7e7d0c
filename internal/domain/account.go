package domain

import (
	"time"
)

// Account roles.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// Account represents a registered identity.
type Account struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	Username       string `json:"username"`
	PasswordHash   string `json:"-"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	EmailConfirmed bool   `json:"email_confirmed"`

	// VerificationCode and VerificationCodeExpiresAt are set together on
	// registration and cleared together on confirmation.
	VerificationCode          *string    `json:"-"`
	VerificationCodeExpiresAt *time.Time `json:"-"`

	// SecurityStamp changes whenever the account's credentials change.
	// Password reset tokens are bound to it, so rotating it invalidates
	// every outstanding reset token.
	SecurityStamp string `json:"-"`

	CartID    *string   `json:"cart_id,omitempty"`
	IsActive  bool      `json:"is_active"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// VerificationCodePresent reports whether an unconsumed verification code is
// stored on the account.
func (a *Account) VerificationCodePresent() bool {
	return a.VerificationCode != nil && a.VerificationCodeExpiresAt != nil
}

// VerificationCodeValid reports whether the stored verification code is still
// within its validity window at the given instant.
func (a *Account) VerificationCodeValid(now time.Time) bool {
	return a.VerificationCodePresent() && now.Before(*a.VerificationCodeExpiresAt)
}

// HasRole reports whether the account holds the given role.
func (a *Account) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}
