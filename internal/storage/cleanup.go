package storage

import (
	"context"
	"fmt"
	"time"
)

// CleanupVerifications removes verification requests older than the
// retention period. Verification rows are read once at callback time and
// never again; leaving them around forever is a replay liability.
func (s *SQLiteStorage) CleanupVerifications(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, fmt.Errorf("%w: retention period must be positive", ErrInvalidInput)
	}

	query := `
		DELETE FROM verification_requests
		WHERE created_at < datetime('now', ?)
	`
	result, err := s.db.ExecContext(ctx, query, fmt.Sprintf("-%d seconds", int64(retention.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup verification requests: %w", err)
	}

	return result.RowsAffected()
}

// CleanupSessionCodes removes session codes that can no longer be redeemed:
// past their expiry or already redeemed.
func (s *SQLiteStorage) CleanupSessionCodes(ctx context.Context, now time.Time) (int64, error) {
	query := `
		DELETE FROM session_codes
		WHERE expires_in < ? OR redeemed = TRUE
	`
	result, err := s.db.ExecContext(ctx, query, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup session codes: %w", err)
	}

	return result.RowsAffected()
}
