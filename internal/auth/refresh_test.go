package auth

import (
	"bytes"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshTokenFactory_Mint(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	factory := NewRefreshTokenFactory(48 * time.Hour).WithNow(func() time.Time { return now })

	raw, record, err := factory.Mint("acc-1")
	require.NoError(t, err)

	decoded, err := base64.StdEncoding.DecodeString(raw)
	require.NoError(t, err)
	assert.Len(t, decoded, refreshTokenBytes)

	assert.NotEmpty(t, record.ID)
	assert.Equal(t, "acc-1", record.AccountID)
	assert.Equal(t, HashToken(raw), record.TokenHash)
	assert.Equal(t, now, record.CreatedAt)
	assert.Equal(t, now.Add(48*time.Hour), record.ExpiresAt)
	assert.Nil(t, record.RevokedAt)
	assert.Nil(t, record.ReplacedBy)
}

func TestRefreshTokenFactory_Mint_UniqueTokens(t *testing.T) {
	factory := NewRefreshTokenFactory(0)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		raw, record, err := factory.Mint("acc-1")
		require.NoError(t, err)
		assert.False(t, seen[raw], "raw token repeated")
		assert.False(t, seen[record.TokenHash], "token hash repeated")
		seen[raw] = true
		seen[record.TokenHash] = true
	}
}

func TestRefreshTokenFactory_DefaultTTL(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	factory := NewRefreshTokenFactory(0).WithNow(func() time.Time { return now })

	_, record, err := factory.Mint("acc-1")
	require.NoError(t, err)
	assert.Equal(t, now.Add(DefaultRefreshTokenTTL), record.ExpiresAt)
}

func TestRefreshTokenFactory_Mint_RandFailure(t *testing.T) {
	factory := NewRefreshTokenFactory(0).WithRand(failingReader{})

	_, _, err := factory.Mint("acc-1")
	require.Error(t, err)
}

func TestHashToken_Deterministic(t *testing.T) {
	a := HashToken("some-token")
	b := HashToken("some-token")
	c := HashToken("other-token")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestRefreshTokenFactory_Mint_DeterministicRand(t *testing.T) {
	entropy := bytes.Repeat([]byte{0xAB}, refreshTokenBytes)
	factory := NewRefreshTokenFactory(0).WithRand(bytes.NewReader(entropy))

	raw, _, err := factory.Mint("acc-1")
	require.NoError(t, err)
	assert.Equal(t, base64.StdEncoding.EncodeToString(entropy), raw)
}
