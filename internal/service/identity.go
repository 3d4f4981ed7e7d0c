package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/ecomstack/identity/internal/auth"
	"github.com/ecomstack/identity/internal/domain"
	"github.com/ecomstack/identity/internal/repository"
	apperrors "github.com/ecomstack/identity/pkg/errors"
)

// minPasswordLength is the minimum password length required.
const minPasswordLength = 8

// DefaultVerificationCodeTTL is the validity window of emailed codes.
const DefaultVerificationCodeTTL = time.Hour

// CartCreator provisions a cart for a confirmed account. *cart.Client
// satisfies this.
type CartCreator interface {
	CreateCart(ctx context.Context, accountID string) (string, error)
}

// EventPublisher publishes identity domain events. *event.Producer satisfies
// this.
type EventPublisher interface {
	PublishEmailVerificationRequested(ctx context.Context, accountID, email, code string, expiresAt time.Time) error
	PublishPasswordResetRequested(ctx context.Context, accountID, email, resetLink string) error
}

// RateLimiter throttles a keyed action. *ratelimit.Limiter satisfies this.
type RateLimiter interface {
	Allow(ctx context.Context, key string) bool
	Reset(ctx context.Context, key string)
}

// IdentityService implements the account and token lifecycle: registration,
// email verification, login, refresh token rotation, revocation and the
// password reset flow.
type IdentityService struct {
	accounts repository.AccountRepository
	tokens   repository.RefreshTokenRepository
	tx       repository.TxManager

	codes       *auth.CodeGenerator
	refreshFact *auth.RefreshTokenFactory
	issuer      *auth.TokenIssuer
	resetTokens *auth.ResetTokenProvider
	hasher      *auth.PasswordHasher

	carts    CartCreator
	producer EventPublisher

	loginLimiter RateLimiter
	resetLimiter RateLimiter

	resetLinks ResetLinkConfig
	codeTTL    time.Duration

	logger *slog.Logger
	now    func() time.Time
}

// IdentityServiceDeps bundles the collaborators of the identity service.
type IdentityServiceDeps struct {
	Accounts repository.AccountRepository
	Tokens   repository.RefreshTokenRepository
	Tx       repository.TxManager

	Codes       *auth.CodeGenerator
	RefreshFact *auth.RefreshTokenFactory
	Issuer      *auth.TokenIssuer
	ResetTokens *auth.ResetTokenProvider
	Hasher      *auth.PasswordHasher

	Carts    CartCreator
	Producer EventPublisher

	// LoginLimiter and ResetLimiter are optional; nil disables throttling.
	LoginLimiter RateLimiter
	ResetLimiter RateLimiter

	ResetLinks ResetLinkConfig

	// CodeTTL is the verification code validity window; zero means
	// DefaultVerificationCodeTTL.
	CodeTTL time.Duration

	Logger *slog.Logger
}

// NewIdentityService creates a new identity service.
func NewIdentityService(deps IdentityServiceDeps) *IdentityService {
	codeTTL := deps.CodeTTL
	if codeTTL <= 0 {
		codeTTL = DefaultVerificationCodeTTL
	}

	return &IdentityService{
		accounts:     deps.Accounts,
		tokens:       deps.Tokens,
		tx:           deps.Tx,
		codes:        deps.Codes,
		refreshFact:  deps.RefreshFact,
		issuer:       deps.Issuer,
		resetTokens:  deps.ResetTokens,
		hasher:       deps.Hasher,
		carts:        deps.Carts,
		producer:     deps.Producer,
		loginLimiter: deps.LoginLimiter,
		resetLimiter: deps.ResetLimiter,
		resetLinks:   deps.ResetLinks,
		codeTTL:      codeTTL,
		logger:       deps.Logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithNow overrides the clock. For tests.
func (s *IdentityService) WithNow(now func() time.Time) *IdentityService {
	s.now = now
	return s
}

// --- Input types ---

// RegisterInput holds the parameters for registering a new account.
type RegisterInput struct {
	Email     string
	Username  string
	Password  string
	FirstName string
	LastName  string
}

// LoginInput holds the parameters for logging in.
type LoginInput struct {
	Email    string
	Password string
}

// --- Operations ---

// Register creates an unconfirmed account with a fresh verification code and
// publishes the verification email event. The code never appears in the
// return value or the logs.
func (s *IdentityService) Register(ctx context.Context, input RegisterInput) (*domain.Account, error) {
	input.Email = normalizeEmail(input.Email)
	if input.Email == "" {
		return nil, apperrors.InvalidInput("email is required")
	}
	if input.Username == "" {
		return nil, apperrors.InvalidInput("username is required")
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}

	// Check for an existing account first so the common case gets the
	// proper error; the unique index is the backstop for races.
	if _, err := s.accounts.GetByEmail(ctx, input.Email); err == nil {
		return nil, domain.ErrDuplicateEmail
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("check existing account: %w", err)
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	code, err := s.codes.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate verification code: %w", err)
	}

	now := s.now()
	codeExpiry := now.Add(s.codeTTL)
	account := &domain.Account{
		ID:                        uuid.New().String(),
		Email:                     input.Email,
		Username:                  input.Username,
		PasswordHash:              hash,
		FirstName:                 input.FirstName,
		LastName:                  input.LastName,
		EmailConfirmed:            false,
		VerificationCode:          &code,
		VerificationCodeExpiresAt: &codeExpiry,
		SecurityStamp:             uuid.New().String(),
		IsActive:                  true,
		Roles:                     []string{domain.RoleCustomer},
		CreatedAt:                 now,
		UpdatedAt:                 now,
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, err
	}

	// Fire-and-forget: a failed email event must not fail registration.
	if err := s.producer.PublishEmailVerificationRequested(ctx, account.ID, account.Email, code, codeExpiry); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish email_verification_requested event",
			slog.String("account_id", account.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "account registered",
		slog.String("account_id", account.ID),
		slog.String("email", account.Email),
	)

	return account, nil
}

// VerifyEmail confirms the account using the emailed code and provisions the
// account's cart. Confirmation and cart assignment commit together; a cart
// service failure rolls the confirmation back.
func (s *IdentityService) VerifyEmail(ctx context.Context, email, code string) error {
	account, err := s.accounts.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return domain.ErrAccountNotFound
		}
		return fmt.Errorf("get account for verification: %w", err)
	}

	if account.EmailConfirmed {
		return domain.ErrAlreadyConfirmed
	}
	if !account.VerificationCodePresent() || *account.VerificationCode != code {
		return domain.ErrCodeMismatch
	}
	if !account.VerificationCodeValid(s.now()) {
		return domain.ErrCodeExpired
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		account.EmailConfirmed = true
		account.VerificationCode = nil
		account.VerificationCodeExpiresAt = nil

		cartID, err := s.carts.CreateCart(ctx, account.ID)
		if err != nil {
			return fmt.Errorf("create cart: %w", err)
		}
		account.CartID = &cartID

		if err := s.accounts.Update(ctx, account); err != nil {
			return fmt.Errorf("confirm account: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "email verified",
		slog.String("account_id", account.ID),
	)

	return nil
}

// Login authenticates the account and starts a fresh session: every active
// refresh token is revoked and one new token is issued, atomically.
func (s *IdentityService) Login(ctx context.Context, input LoginInput) (*domain.LoginResult, error) {
	input.Email = normalizeEmail(input.Email)
	if input.Email == "" {
		return nil, apperrors.InvalidInput("email is required")
	}
	if input.Password == "" {
		return nil, apperrors.InvalidInput("password is required")
	}

	if s.loginLimiter != nil && !s.loginLimiter.Allow(ctx, input.Email) {
		return nil, apperrors.TooManyRequests("too many login attempts, please try again later")
	}

	account, err := s.accounts.GetByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// Same error as a wrong password; do not reveal which.
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get account for login: %w", err)
	}

	if !s.hasher.Verify(account.PasswordHash, input.Password) {
		return nil, domain.ErrInvalidCredentials
	}
	if !account.IsActive {
		return nil, apperrors.Unauthorized("account is deactivated")
	}
	if !account.EmailConfirmed {
		return nil, domain.ErrEmailNotConfirmed
	}

	result, err := s.startSession(ctx, account)
	if err != nil {
		return nil, err
	}

	if s.loginLimiter != nil {
		s.loginLimiter.Reset(ctx, input.Email)
	}

	s.logger.InfoContext(ctx, "account logged in",
		slog.String("account_id", account.ID),
	)

	return result, nil
}

// Refresh rotates a refresh token: the presented token is revoked and
// replaced by a new one in a single transaction. Concurrent presentations of
// the same token yield exactly one winner; the rest get InactiveToken.
func (s *IdentityService) Refresh(ctx context.Context, rawToken string) (*domain.LoginResult, error) {
	if rawToken == "" {
		return nil, apperrors.InvalidInput("refresh token is required")
	}

	record, err := s.tokens.GetByHash(ctx, auth.HashToken(rawToken))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, domain.ErrInvalidToken
		}
		return nil, fmt.Errorf("get refresh token: %w", err)
	}

	now := s.now()
	if !record.Active(now) {
		// A rotated-out token coming back is a replay signal.
		if record.Revoked() && record.ReplacedBy != nil {
			s.logger.WarnContext(ctx, "rotated refresh token presented again, possible compromise",
				slog.String("account_id", record.AccountID),
				slog.String("token_id", record.ID),
			)
		}
		return nil, domain.ErrInactiveToken
	}

	account, err := s.accounts.GetByID(ctx, record.AccountID)
	if err != nil {
		return nil, fmt.Errorf("get account for refresh: %w", err)
	}

	raw, replacement, err := s.refreshFact.Mint(account.ID)
	if err != nil {
		return nil, fmt.Errorf("mint refresh token: %w", err)
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		won, err := s.tokens.RevokeActive(ctx, record.ID, now, &replacement.ID)
		if err != nil {
			return err
		}
		if !won {
			// Another request rotated this token first.
			return domain.ErrInactiveToken
		}
		return s.tokens.Create(ctx, replacement)
	})
	if err != nil {
		return nil, err
	}

	accessToken, accessExpiry, err := s.issuer.Issue(account.ID, account.Email, account.Username, account.Roles)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "refresh token rotated",
		slog.String("account_id", account.ID),
	)

	return &domain.LoginResult{
		TokenPair: domain.TokenPair{
			AccessToken:      accessToken,
			AccessExpiresAt:  accessExpiry,
			RefreshToken:     raw,
			RefreshExpiresAt: replacement.ExpiresAt,
		},
		AccountID: account.ID,
		Email:     account.Email,
		Username:  account.Username,
		Roles:     account.Roles,
	}, nil
}

// Revoke invalidates the presented refresh token. Revoking an unknown token
// fails with InvalidToken and revoking an inactive one with InactiveToken;
// neither is a silent success.
func (s *IdentityService) Revoke(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return apperrors.InvalidInput("refresh token is required")
	}

	record, err := s.tokens.GetByHash(ctx, auth.HashToken(rawToken))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return domain.ErrInvalidToken
		}
		return fmt.Errorf("get refresh token: %w", err)
	}

	now := s.now()
	if !record.Active(now) {
		return domain.ErrInactiveToken
	}

	won, err := s.tokens.RevokeActive(ctx, record.ID, now, nil)
	if err != nil {
		return err
	}
	if !won {
		return domain.ErrInactiveToken
	}

	s.logger.InfoContext(ctx, "refresh token revoked",
		slog.String("account_id", record.AccountID),
	)

	return nil
}

// Logout revokes the session's refresh token on behalf of the authenticated
// account. A token belonging to a different account is treated as unknown.
func (s *IdentityService) Logout(ctx context.Context, accountID, rawToken string) error {
	if rawToken == "" {
		return apperrors.InvalidInput("refresh token is required")
	}

	record, err := s.tokens.GetByHash(ctx, auth.HashToken(rawToken))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return domain.ErrInvalidToken
		}
		return fmt.Errorf("get refresh token: %w", err)
	}
	if record.AccountID != accountID {
		return domain.ErrInvalidToken
	}

	now := s.now()
	if !record.Active(now) {
		return domain.ErrInactiveToken
	}

	won, err := s.tokens.RevokeActive(ctx, record.ID, now, nil)
	if err != nil {
		return err
	}
	if !won {
		return domain.ErrInactiveToken
	}

	s.logger.InfoContext(ctx, "account logged out",
		slog.String("account_id", accountID),
	)

	return nil
}

// --- Helpers ---

// startSession revokes every active refresh token for the account and stores
// one fresh token, atomically, then issues the access token.
func (s *IdentityService) startSession(ctx context.Context, account *domain.Account) (*domain.LoginResult, error) {
	raw, record, err := s.refreshFact.Mint(account.ID)
	if err != nil {
		return nil, fmt.Errorf("mint refresh token: %w", err)
	}

	now := s.now()
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.tokens.RevokeAllByAccountID(ctx, account.ID, now); err != nil {
			return err
		}
		return s.tokens.Create(ctx, record)
	})
	if err != nil {
		return nil, err
	}

	accessToken, accessExpiry, err := s.issuer.Issue(account.ID, account.Email, account.Username, account.Roles)
	if err != nil {
		return nil, err
	}

	return &domain.LoginResult{
		TokenPair: domain.TokenPair{
			AccessToken:      accessToken,
			AccessExpiresAt:  accessExpiry,
			RefreshToken:     raw,
			RefreshExpiresAt: record.ExpiresAt,
		},
		AccountID: account.ID,
		Email:     account.Email,
		Username:  account.Username,
		Roles:     account.Roles,
	}, nil
}

// normalizeEmail canonicalizes an email address for storage, lookup and rate
// limiter keying. Accounts store the lowercase form so it agrees with the
// unique index on LOWER(email).
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validatePassword checks that the password meets minimum complexity
// requirements.
func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return apperrors.InvalidInput(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	var hasUpper, hasLower, hasDigit bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasDigit = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit {
		return apperrors.InvalidInput("password must contain at least one uppercase letter, one lowercase letter, and one digit")
	}

	return nil
}
