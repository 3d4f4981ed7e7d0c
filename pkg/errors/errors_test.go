package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	err := NotFound("account", "acc-1")
	assert.Equal(t, "NOT_FOUND: account with id acc-1 not found", err.Error())

	wrapped := Internal(errors.New("db down"))
	assert.Contains(t, wrapped.Error(), "db down")
}

func TestAppError_Unwrap(t *testing.T) {
	assert.ErrorIs(t, NotFound("account", "acc-1"), ErrNotFound)
	assert.ErrorIs(t, AlreadyExists("account", "email", "a@b.com"), ErrAlreadyExists)
	assert.ErrorIs(t, InvalidInput("bad"), ErrInvalidInput)
	assert.ErrorIs(t, Unauthorized("nope"), ErrUnauthorized)
	assert.ErrorIs(t, Forbidden("nope"), ErrForbidden)
	assert.ErrorIs(t, Conflict("clash"), ErrConflict)
	assert.ErrorIs(t, TooManyRequests("slow down"), ErrRateLimited)
	assert.ErrorIs(t, ServiceUnavailable("down"), ErrServiceUnavail)
}

func TestAppError_UnwrapThroughWrap(t *testing.T) {
	err := Wrap(NotFound("account", "acc-1"), "get account")

	assert.ErrorIs(t, err, ErrNotFound)

	var appErr *AppError
	assert.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusNotFound, appErr.Status)
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{NotFound("account", "x"), http.StatusNotFound},
		{InvalidInput("bad"), http.StatusBadRequest},
		{Unauthorized("nope"), http.StatusUnauthorized},
		{TooManyRequests("slow"), http.StatusTooManyRequests},
		{fmt.Errorf("wrapped: %w", ErrConflict), http.StatusConflict},
		{fmt.Errorf("wrapped: %w", ErrServiceUnavail), http.StatusServiceUnavailable},
		{errors.New("anything else"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.status, HTTPStatus(tc.err), "error: %v", tc.err)
	}
}
