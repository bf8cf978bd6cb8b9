package storage

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSessionCodes(t *testing.T) *SessionCodes {
	t.Helper()

	codes, err := NewSessionCodes(newTestStorage(t), bytes.Repeat([]byte("k"), KeySize))
	require.NoError(t, err)
	return codes
}

func TestNewSessionCodes_InvalidKey(t *testing.T) {
	_, err := NewSessionCodes(newTestStorage(t), []byte("too-short"))
	assert.ErrorIs(t, err, ErrInvalidKeySize)
}

func TestSessionCodes_RoundTrip(t *testing.T) {
	codes := newTestSessionCodes(t)
	ctx := context.Background()
	now := time.Now()
	expiresAt := now.Add(5 * time.Minute).Unix()

	err := codes.CreateCode(ctx, "auth-code-1", "secret-access-token", expiresAt)
	require.NoError(t, err)

	token, gotExpiry, err := codes.RedeemCode(ctx, "auth-code-1", now)
	require.NoError(t, err)
	assert.Equal(t, "secret-access-token", token)
	assert.Equal(t, expiresAt, gotExpiry)

	// A redeemed code cannot be redeemed again.
	_, _, err = codes.RedeemCode(ctx, "auth-code-1", now)
	assert.ErrorIs(t, err, ErrAlreadyRedeemed)
}

func TestSessionCodes_TokenStoredEncrypted(t *testing.T) {
	codes := newTestSessionCodes(t)
	ctx := context.Background()

	err := codes.CreateCode(ctx, "auth-code-2", "secret-access-token", time.Now().Add(5*time.Minute).Unix())
	require.NoError(t, err)

	sc, err := codes.store.GetSessionCode(ctx, "auth-code-2")
	require.NoError(t, err)
	assert.NotContains(t, string(sc.EncryptedToken), "secret-access-token")
}

func TestSessionCodes_CreateCode_EmptyToken(t *testing.T) {
	codes := newTestSessionCodes(t)

	err := codes.CreateCode(context.Background(), "auth-code-3", "", time.Now().Unix())
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSessionCodes_RedeemCode_Expired(t *testing.T) {
	codes := newTestSessionCodes(t)
	ctx := context.Background()
	now := time.Now()

	err := codes.CreateCode(ctx, "auth-code-4", "secret-access-token", now.Add(-time.Minute).Unix())
	require.NoError(t, err)

	_, _, err = codes.RedeemCode(ctx, "auth-code-4", now)
	assert.ErrorIs(t, err, ErrExpired)
}
