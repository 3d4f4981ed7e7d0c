package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/google/uuid"

	"github.com/ecomstack/identity/internal/domain"
	apperrors "github.com/ecomstack/identity/pkg/errors"
)

// ForgotPasswordMessage is returned for known and unknown emails alike so the
// endpoint cannot be used to enumerate accounts.
const ForgotPasswordMessage = "If the email is registered, a password reset link has been sent."

// Reset link clients.
const (
	ClientWeb    = "web"
	ClientMobile = "mobile"
)

// ResetLinkConfig describes how password reset links are assembled for each
// client.
type ResetLinkConfig struct {
	// WebBaseURL is the web frontend base, e.g. "https://shop.example.com".
	WebBaseURL string

	// MobileScheme is the app's deep link scheme, e.g. "ecomstack".
	MobileScheme string

	// Page is the reset page path or deep link host, e.g. "reset-password".
	Page string
}

// ForgotPasswordInput holds the parameters for requesting a password reset.
type ForgotPasswordInput struct {
	Email string

	// Client selects the link style: ClientWeb or ClientMobile.
	Client string
}

// ForgotPassword starts the reset flow. The response carries no signal about
// whether the email is registered; for known accounts a reset link is built
// and handed to the notification pipeline fire-and-forget.
func (s *IdentityService) ForgotPassword(ctx context.Context, input ForgotPasswordInput) error {
	input.Email = normalizeEmail(input.Email)
	if input.Email == "" {
		return apperrors.InvalidInput("email is required")
	}

	if s.resetLimiter != nil && !s.resetLimiter.Allow(ctx, input.Email) {
		return apperrors.TooManyRequests("too many password reset requests, please try again later")
	}

	account, err := s.accounts.GetByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.InfoContext(ctx, "password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("get account for password reset: %w", err)
	}

	token := s.resetTokens.Generate(account.ID, account.SecurityStamp)
	link := s.buildResetLink(input.Client, account.ID, token)

	// Fire-and-forget so publish latency cannot leak account existence.
	if err := s.producer.PublishPasswordResetRequested(ctx, account.ID, account.Email, link); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish password_reset_requested event",
			slog.String("account_id", account.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "password reset requested",
		slog.String("account_id", account.ID),
	)

	return nil
}

// ResetPassword completes the reset flow: the token is checked against the
// account's current security stamp, the password is re-hashed, the stamp is
// rotated and every refresh session is revoked so all devices re-login.
func (s *IdentityService) ResetPassword(ctx context.Context, accountID, encodedToken, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return domain.ErrAccountNotFound
		}
		return fmt.Errorf("get account for password reset: %w", err)
	}

	if !s.resetTokens.Validate(account.ID, account.SecurityStamp, encodedToken) {
		return domain.ErrInvalidOrExpiredResetToken
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	now := s.now()
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		account.PasswordHash = hash
		// Rotating the stamp kills every outstanding reset token.
		account.SecurityStamp = uuid.New().String()

		if err := s.accounts.Update(ctx, account); err != nil {
			return fmt.Errorf("update account password: %w", err)
		}
		return s.tokens.RevokeAllByAccountID(ctx, account.ID, now)
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "password reset completed",
		slog.String("account_id", account.ID),
	)

	return nil
}

// buildResetLink assembles the client-appropriate reset link carrying the
// account id and token as query parameters.
func (s *IdentityService) buildResetLink(client, accountID, token string) string {
	query := url.Values{}
	query.Set("userId", accountID)
	query.Set("token", token)

	if client == ClientMobile && s.resetLinks.MobileScheme != "" {
		return fmt.Sprintf("%s://%s?%s", s.resetLinks.MobileScheme, s.resetLinks.Page, query.Encode())
	}
	return fmt.Sprintf("%s/%s?%s", s.resetLinks.WebBaseURL, s.resetLinks.Page, query.Encode())
}
