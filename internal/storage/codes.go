package storage

import (
	"context"
	"fmt"
	"time"
)

// SessionCodes handles the logic for storing and redeeming session codes,
// encrypting access tokens on the way in and decrypting them on the way out.
type SessionCodes struct {
	store         *SQLiteStorage
	encryptionKey []byte
}

// NewSessionCodes creates a SessionCodes broker over the given store.
func NewSessionCodes(store *SQLiteStorage, key []byte) (*SessionCodes, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}
	return &SessionCodes{store: store, encryptionKey: key}, nil
}

// CreateCode stores a session code for a freshly exchanged access token.
// expiresAt is the absolute expiry in seconds since epoch.
func (s *SessionCodes) CreateCode(ctx context.Context, code, accessToken string, expiresAt int64) error {
	if accessToken == "" {
		return fmt.Errorf("%w: access token cannot be empty", ErrInvalidInput)
	}

	ciphertext, nonce, err := EncryptAccessToken(s.encryptionKey, []byte(accessToken))
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}

	return s.store.CreateSessionCode(ctx, code, ciphertext, nonce, expiresAt)
}

// RedeemCode redeems a session code exactly once, returning the decrypted
// access token and its absolute expiry. Redemption failures come back as
// ErrNotFound, ErrAlreadyRedeemed or ErrExpired.
func (s *SessionCodes) RedeemCode(ctx context.Context, code string, now time.Time) (accessToken string, expiresAt int64, err error) {
	sc, err := s.store.RedeemSessionCode(ctx, code, now)
	if err != nil {
		return "", 0, err
	}

	plaintext, err := DecryptAccessToken(s.encryptionKey, sc.EncryptedToken, sc.Nonce)
	if err != nil {
		return "", 0, fmt.Errorf("failed to decrypt access token: %w", err)
	}

	return string(plaintext), sc.ExpiresAt, nil
}
