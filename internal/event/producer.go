package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	pkgkafka "github.com/ecomstack/identity/pkg/kafka"
)

// Kafka topic constants for identity domain events. The notification service
// consumes these and sends the actual emails.
const (
	TopicEmailVerificationRequested = "identity.email_verification_requested"
	TopicPasswordResetRequested     = "identity.password_reset_requested"
)

// Aggregate type constant.
const AggregateTypeAccount = "account"

// Source identifier for events originating from the identity service.
const SourceIdentityService = "identity-service"

// EmailVerificationRequestedData is the payload for an
// email_verification_requested event.
type EmailVerificationRequestedData struct {
	AccountID string    `json:"account_id"`
	Email     string    `json:"email"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PasswordResetRequestedData is the payload for a password_reset_requested
// event. ResetLink is the fully formed web URL or mobile deep link.
type PasswordResetRequestedData struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
	ResetLink string `json:"reset_link"`
}

// Producer publishes identity domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the identity service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishEmailVerificationRequested publishes an email_verification_requested
// event carrying the code the notification service mails out.
func (p *Producer) PublishEmailVerificationRequested(ctx context.Context, accountID, email, code string, expiresAt time.Time) error {
	data := EmailVerificationRequestedData{
		AccountID: accountID,
		Email:     email,
		Code:      code,
		ExpiresAt: expiresAt,
	}

	event, err := pkgkafka.NewEvent(TopicEmailVerificationRequested, accountID, AggregateTypeAccount, SourceIdentityService, data)
	if err != nil {
		return fmt.Errorf("create email_verification_requested event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicEmailVerificationRequested, event); err != nil {
		return fmt.Errorf("publish email_verification_requested event: %w", err)
	}

	p.logger.DebugContext(ctx, "published email_verification_requested event",
		slog.String("account_id", accountID),
	)

	return nil
}

// PublishPasswordResetRequested publishes a password_reset_requested event.
// The reset token travels only inside the link; it is never logged.
func (p *Producer) PublishPasswordResetRequested(ctx context.Context, accountID, email, resetLink string) error {
	data := PasswordResetRequestedData{
		AccountID: accountID,
		Email:     email,
		ResetLink: resetLink,
	}

	event, err := pkgkafka.NewEvent(TopicPasswordResetRequested, accountID, AggregateTypeAccount, SourceIdentityService, data)
	if err != nil {
		return fmt.Errorf("create password_reset_requested event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicPasswordResetRequested, event); err != nil {
		return fmt.Errorf("publish password_reset_requested event: %w", err)
	}

	p.logger.DebugContext(ctx, "published password_reset_requested event",
		slog.String("account_id", accountID),
	)

	return nil
}
