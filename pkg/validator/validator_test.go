package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registrationForm struct {
	Email    string `validate:"required,email"`
	Username string `validate:"required,min=3,max=50"`
	Password string `validate:"required,min=8,password"`
}

func TestValidate_Valid(t *testing.T) {
	err := Validate(registrationForm{
		Email:    "alice@example.com",
		Username: "alice",
		Password: "Sup3rSecret",
	})
	assert.NoError(t, err)
}

func TestValidate_CollectsFieldErrors(t *testing.T) {
	err := Validate(registrationForm{
		Email:    "not-an-email",
		Username: "al",
		Password: "short",
	})
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)

	fields := valErr.Fields()
	assert.Equal(t, "must be a valid email address", fields["Email"])
	assert.Equal(t, "must be at least 3 characters", fields["Username"])
	assert.Equal(t, "must be at least 8 characters", fields["Password"])
}

func TestValidate_PasswordComplexity(t *testing.T) {
	cases := []struct {
		name     string
		password string
		valid    bool
	}{
		{"all classes", "Sup3rSecret", true},
		{"no uppercase", "alllowercase1", false},
		{"no lowercase", "ALLUPPERCASE1", false},
		{"no digit", "NoDigitsHere", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(registrationForm{
				Email:    "alice@example.com",
				Username: "alice",
				Password: tc.password,
			})
			if tc.valid {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				var valErr *ValidationError
				require.ErrorAs(t, err, &valErr)
				assert.Contains(t, valErr.Fields()["Password"], "uppercase")
			}
		})
	}
}

func TestValidationError_Error(t *testing.T) {
	err := Validate(registrationForm{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Email")
	assert.Contains(t, err.Error(), "is required")
}
