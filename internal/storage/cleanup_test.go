package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanupVerifications(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, storage.CreateVerification(ctx, "fresh", "verifier", ""))
	require.NoError(t, storage.CreateVerification(ctx, "stale", "verifier", ""))

	// Backdate one row past the retention window.
	_, err := storage.db.ExecContext(ctx, `
		UPDATE verification_requests
		SET created_at = datetime('now', '-1 hour')
		WHERE state = 'stale'`)
	require.NoError(t, err)

	deleted, err := storage.CleanupVerifications(ctx, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = storage.GetVerification(ctx, "fresh")
	assert.NoError(t, err)
	_, err = storage.GetVerification(ctx, "stale")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCleanupVerifications_InvalidRetention(t *testing.T) {
	storage := newTestStorage(t)

	_, err := storage.CleanupVerifications(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCleanupSessionCodes(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, storage.CreateSessionCode(ctx, "live", []byte("c"), []byte("n"), now.Add(5*time.Minute).Unix()))
	require.NoError(t, storage.CreateSessionCode(ctx, "expired", []byte("c"), []byte("n"), now.Add(-time.Minute).Unix()))
	require.NoError(t, storage.CreateSessionCode(ctx, "redeemed", []byte("c"), []byte("n"), now.Add(5*time.Minute).Unix()))

	_, err := storage.RedeemSessionCode(ctx, "redeemed", now)
	require.NoError(t, err)

	deleted, err := storage.CleanupSessionCodes(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	_, err = storage.GetSessionCode(ctx, "live")
	assert.NoError(t, err)
	_, err = storage.GetSessionCode(ctx, "expired")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = storage.GetSessionCode(ctx, "redeemed")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCleanupSessionCodes_Empty(t *testing.T) {
	storage := newTestStorage(t)

	deleted, err := storage.CleanupSessionCodes(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, deleted)
}
