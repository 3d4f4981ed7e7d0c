package domain

import (
	"net/http"

	apperrors "github.com/ecomstack/identity/pkg/errors"
)

// Identity error taxonomy. Each value carries a stable code, a client-safe
// message and an HTTP status hint. Handlers map them with errors.As; services
// return them as-is so callers can branch on the code.
var (
	ErrDuplicateEmail = &apperrors.AppError{
		Code:    "DUPLICATE_EMAIL",
		Message: "an account with this email already exists",
		Status:  http.StatusConflict,
		Err:     apperrors.ErrAlreadyExists,
	}

	ErrAccountNotFound = &apperrors.AppError{
		Code:    "ACCOUNT_NOT_FOUND",
		Message: "account not found",
		Status:  http.StatusNotFound,
		Err:     apperrors.ErrNotFound,
	}

	ErrAlreadyConfirmed = &apperrors.AppError{
		Code:    "ALREADY_CONFIRMED",
		Message: "email is already confirmed",
		Status:  http.StatusConflict,
		Err:     apperrors.ErrConflict,
	}

	ErrCodeMismatch = &apperrors.AppError{
		Code:    "CODE_MISMATCH",
		Message: "verification code is incorrect",
		Status:  http.StatusUnauthorized,
		Err:     apperrors.ErrUnauthorized,
	}

	ErrCodeExpired = &apperrors.AppError{
		Code:    "CODE_EXPIRED",
		Message: "verification code has expired",
		Status:  http.StatusUnauthorized,
		Err:     apperrors.ErrUnauthorized,
	}

	// ErrInvalidCredentials is returned for unknown emails and wrong
	// passwords alike so login failures do not reveal which one it was.
	ErrInvalidCredentials = &apperrors.AppError{
		Code:    "INVALID_CREDENTIALS",
		Message: "invalid email or password",
		Status:  http.StatusUnauthorized,
		Err:     apperrors.ErrUnauthorized,
	}

	ErrEmailNotConfirmed = &apperrors.AppError{
		Code:    "EMAIL_NOT_CONFIRMED",
		Message: "email address has not been confirmed",
		Status:  http.StatusUnauthorized,
		Err:     apperrors.ErrUnauthorized,
	}

	ErrInvalidToken = &apperrors.AppError{
		Code:    "INVALID_TOKEN",
		Message: "token is not recognized",
		Status:  http.StatusUnauthorized,
		Err:     apperrors.ErrUnauthorized,
	}

	ErrInactiveToken = &apperrors.AppError{
		Code:    "INACTIVE_TOKEN",
		Message: "token is no longer active",
		Status:  http.StatusUnauthorized,
		Err:     apperrors.ErrUnauthorized,
	}

	ErrInvalidOrExpiredResetToken = &apperrors.AppError{
		Code:    "INVALID_OR_EXPIRED_TOKEN",
		Message: "password reset token is invalid or has expired",
		Status:  http.StatusUnauthorized,
		Err:     apperrors.ErrUnauthorized,
	}
)
