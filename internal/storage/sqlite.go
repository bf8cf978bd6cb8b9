package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrNotFound        = errors.New("not found")
	ErrAlreadyRedeemed = errors.New("session code already redeemed")
	ErrExpired         = errors.New("session code expired")
)

// StateVerificationIdentifier tags verification rows created by the login
// flow.
const StateVerificationIdentifier = "state_verification"

// VerificationRequest binds an unguessable state parameter to the PKCE code
// verifier generated at login time. The verifier is a secret and must never
// be logged.
type VerificationRequest struct {
	State      string
	Identifier string
	Value      string // the PKCE code verifier
	ReturnURL  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SessionCode is the single-use redemption record created after a
// successful token exchange. The access token is stored encrypted.
type SessionCode struct {
	Code           string
	EncryptedToken []byte
	Nonce          []byte
	ExpiresAt      int64 // absolute expiry, seconds since epoch
	Redeemed       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SQLiteStorage handles all database operations.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// New wraps an already-open database handle. Use OpenDatabase to open a
// pool-configured handle from a file path.
func New(db *sql.DB) *SQLiteStorage {
	return &SQLiteStorage{db: db}
}

// CreateVerification persists the (state -> codeVerifier, returnURL)
// binding. The state column is the primary key, so duplicate states fail at
// the store, not in process memory.
func (s *SQLiteStorage) CreateVerification(ctx context.Context, state, codeVerifier, returnURL string) error {
	if state == "" {
		return fmt.Errorf("%w: state cannot be empty", ErrInvalidInput)
	}
	if codeVerifier == "" {
		return fmt.Errorf("%w: code verifier cannot be empty", ErrInvalidInput)
	}

	var ret interface{}
	if returnURL != "" {
		ret = returnURL
	}

	query := `INSERT INTO verification_requests (state, identifier, value, return_url) VALUES (?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, state, StateVerificationIdentifier, codeVerifier, ret)
	if err != nil {
		return fmt.Errorf("failed to store verification: %w", err)
	}
	return nil
}

// GetVerification retrieves a verification request by its state.
func (s *SQLiteStorage) GetVerification(ctx context.Context, state string) (*VerificationRequest, error) {
	if state == "" {
		return nil, fmt.Errorf("%w: state cannot be empty", ErrInvalidInput)
	}

	v := &VerificationRequest{}
	var returnURL sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT state, identifier, value, return_url, created_at, updated_at
		FROM verification_requests
		WHERE state = ?`,
		state).Scan(&v.State, &v.Identifier, &v.Value, &returnURL, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: verification for state", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get verification: %w", err)
	}
	if returnURL.Valid {
		v.ReturnURL = returnURL.String
	}
	return v, nil
}

// CreateSessionCode persists an encrypted session code row keyed by the
// provider's authorization code.
func (s *SQLiteStorage) CreateSessionCode(ctx context.Context, code string, encryptedToken, nonce []byte, expiresAt int64) error {
	if code == "" {
		return fmt.Errorf("%w: code cannot be empty", ErrInvalidInput)
	}
	if len(encryptedToken) == 0 {
		return fmt.Errorf("%w: encrypted token cannot be empty", ErrInvalidInput)
	}
	if len(nonce) == 0 {
		return fmt.Errorf("%w: nonce cannot be empty", ErrInvalidInput)
	}

	query := `INSERT INTO session_codes (code, encrypted_token, nonce, expires_in) VALUES (?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, code, encryptedToken, nonce, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to store session code: %w", err)
	}
	return nil
}

// GetSessionCode retrieves a session code row without mutating it.
func (s *SQLiteStorage) GetSessionCode(ctx context.Context, code string) (*SessionCode, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: code cannot be empty", ErrInvalidInput)
	}
	return scanSessionCode(s.db.QueryRowContext(ctx, `
		SELECT code, encrypted_token, nonce, expires_in, redeemed, created_at, updated_at
		FROM session_codes
		WHERE code = ?`, code))
}

// RedeemSessionCode atomically reads a session code and marks it redeemed.
// The read and the mark run in one transaction so a code can be redeemed at
// most once, even across concurrent requests or multiple processes sharing
// the store. Returns ErrNotFound, ErrAlreadyRedeemed or ErrExpired when the
// code cannot be redeemed; those paths leave the row untouched.
func (s *SQLiteStorage) RedeemSessionCode(ctx context.Context, code string, now time.Time) (*SessionCode, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: code cannot be empty", ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sc, err := scanSessionCode(tx.QueryRowContext(ctx, `
		SELECT code, encrypted_token, nonce, expires_in, redeemed, created_at, updated_at
		FROM session_codes
		WHERE code = ?`, code))
	if err != nil {
		return nil, err
	}

	if sc.Redeemed {
		return nil, ErrAlreadyRedeemed
	}
	if now.Unix() > sc.ExpiresAt {
		return nil, ErrExpired
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE session_codes
		SET redeemed = TRUE, updated_at = CURRENT_TIMESTAMP
		WHERE code = ? AND redeemed = FALSE`, code)
	if err != nil {
		return nil, fmt.Errorf("failed to mark session code redeemed: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, ErrAlreadyRedeemed
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit redemption: %w", err)
	}

	sc.Redeemed = true
	return sc, nil
}

func scanSessionCode(row *sql.Row) (*SessionCode, error) {
	sc := &SessionCode{}
	err := row.Scan(&sc.Code, &sc.EncryptedToken, &sc.Nonce, &sc.ExpiresAt, &sc.Redeemed, &sc.CreatedAt, &sc.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: session code", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get session code: %w", err)
	}
	return sc, nil
}

// Ping verifies the database connection is alive.
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
