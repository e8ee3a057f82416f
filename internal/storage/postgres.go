package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zonefree41/getfiletax/internal/security"
)

const uniqueViolation = "23505"

// Store is the single shared-state boundary of the portal: accounts, sessions
// and contact submissions, all on one Postgres pool. Passwords are hashed here
// so no caller can persist a credential it chose the encoding for.
type Store struct {
	pool   *pgxpool.Pool
	argon2 security.Argon2Params
}

func New(pool *pgxpool.Pool, argon2 security.Argon2Params) *Store {
	return &Store{pool: pool, argon2: argon2}
}

const accountColumns = `id, name, email, password_hash, role, tax_status, reset_token_hash, reset_token_expires_at, created_at`

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.Role, &a.TaxStatus, &a.ResetTokenHash, &a.ResetTokenExpiresAt, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return &a, nil
}

// CreateAccount hashes the plaintext password and inserts a new account.
// Uniqueness is enforced by the accounts_email_key index, not a pre-check,
// so two concurrent signups with the same email cannot both succeed.
func (s *Store) CreateAccount(ctx context.Context, name, email, password, role string) (*Account, error) {
	hash, err := security.HashPassword(password, s.argon2)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO accounts (name, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING `+accountColumns+`
	`, name, email, hash, role)

	account, err := scanAccount(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrDuplicateAccount
		}
		return nil, err
	}
	return account, nil
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*Account, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE lower(email) = lower($1)
	`, email)
	return scanAccount(row)
}

func (s *Store) GetAccountByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
	`, id)
	return scanAccount(row)
}

func (s *Store) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.Role, &a.TaxStatus, &a.ResetTokenHash, &a.ResetTokenExpiresAt, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// MarkCompleted transitions pending -> completed. A second call for an already
// completed account is a no-op; there is no reverse transition.
func (s *Store) MarkCompleted(ctx context.Context, id uuid.UUID) (*Account, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE accounts
		SET tax_status = 'completed'
		WHERE id = $1
		RETURNING `+accountColumns+`
	`, id)
	return scanAccount(row)
}

// SetResetToken records the hash of a freshly issued reset token, replacing
// any outstanding token for the account.
func (s *Store) SetResetToken(ctx context.Context, email, tokenHash string, expiresAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE accounts
		SET reset_token_hash = $2, reset_token_expires_at = $3
		WHERE lower(email) = lower($1)
	`, email, tokenHash, expiresAt)
	if err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ConsumeResetToken validates the token, updates the credential and clears the
// token in one statement. Expiry is checked here, at consumption time, and the
// row predicate makes validate-and-clear atomic: a consumed or expired token
// matches no row and the same token can never be replayed.
func (s *Store) ConsumeResetToken(ctx context.Context, tokenHash, newPassword string) error {
	hash, err := security.HashPassword(newPassword, s.argon2)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE accounts
		SET password_hash = $2, reset_token_hash = NULL, reset_token_expires_at = NULL
		WHERE reset_token_hash = $1 AND reset_token_expires_at > now()
	`, tokenHash, hash)
	if err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidOrExpiredToken
	}
	return nil
}

func (s *Store) CreateSession(ctx context.Context, tokenHash string, accountID uuid.UUID, kind string, expiresAt time.Time) (*Session, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO sessions (token_hash, account_id, kind, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, token_hash, account_id, kind, created_at, expires_at
	`, tokenHash, accountID, kind, expiresAt)

	var sess Session
	if err := row.Scan(&sess.ID, &sess.TokenHash, &sess.AccountID, &sess.Kind, &sess.CreatedAt, &sess.ExpiresAt); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &sess, nil
}

// GetSessionByTokenHash treats expired rows as absent.
func (s *Store) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*Session, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, token_hash, account_id, kind, created_at, expires_at
		FROM sessions
		WHERE token_hash = $1 AND expires_at > now()
	`, tokenHash)

	var sess Session
	if err := row.Scan(&sess.ID, &sess.TokenHash, &sess.AccountID, &sess.Kind, &sess.CreatedAt, &sess.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &sess, nil
}

// DeleteSessionByTokenHash is idempotent; deleting an absent session is fine.
func (s *Store) DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *Store) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) CreateContactSubmission(ctx context.Context, name, email, phone, message string) (*ContactSubmission, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO contact_submissions (name, email, phone, message)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, email, phone, message, created_at
	`, name, email, phone, message)

	var sub ContactSubmission
	if err := row.Scan(&sub.ID, &sub.Name, &sub.Email, &sub.Phone, &sub.Message, &sub.CreatedAt); err != nil {
		return nil, fmt.Errorf("create contact submission: %w", err)
	}
	return &sub, nil
}

func (s *Store) ListContactSubmissions(ctx context.Context) ([]ContactSubmission, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, email, phone, message, created_at
		FROM contact_submissions
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list contact submissions: %w", err)
	}
	defer rows.Close()

	var subs []ContactSubmission
	for rows.Next() {
		var sub ContactSubmission
		if err := rows.Scan(&sub.ID, &sub.Name, &sub.Email, &sub.Phone, &sub.Message, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan contact submission: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}
