package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasherRoundTrip(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("correct horse")
	require.NoError(t, err)
	assert.NoError(t, h.Compare(hash, "correct horse"))
	assert.ErrorIs(t, h.Compare(hash, "wrong"), ErrBadPassword)
	assert.ErrorIs(t, h.Compare("", "anything"), ErrBadPassword)
}

func TestTokenServiceIssueAndParse(t *testing.T) {
	svc, err := NewTokenService("0123456789abcdef0123", time.Hour)
	require.NoError(t, err)

	raw, exp, err := svc.GenerateAccessToken("user-1", "staff")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)

	claims, err := svc.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "staff", claims.Role)
}

func TestTokenServiceRejectsExpiredAndForeign(t *testing.T) {
	svc, err := NewTokenService("0123456789abcdef0123", time.Minute)
	require.NoError(t, err)
	raw, _, err := svc.GenerateAccessToken("user-1", "admin")
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(time.Hour) }
	_, err = svc.Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other, err := NewTokenService("another-secret-value-xx", time.Minute)
	require.NoError(t, err)
	_, err = other.Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTokenServiceShortSecret(t *testing.T) {
	_, err := NewTokenService("short", time.Minute)
	assert.Error(t, err)
}
