package domain

import (
	"time"
)

// TokenPair carries a freshly issued access/refresh token pair.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// LoginResult is returned by Login and Refresh: the token pair plus the
// account metadata clients render without another round trip.
type LoginResult struct {
	TokenPair
	AccountID string   `json:"account_id"`
	Email     string   `json:"email"`
	Username  string   `json:"username"`
	Roles     []string `json:"roles"`
}
