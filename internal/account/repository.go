package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("account not found")

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const accountColumns = `id, email, password_hash, token_version, active, suspended_at, suspension_reason, deleted_at, created_at, updated_at`

func (r *Repository) FindByID(ctx context.Context, id string) (Account, error) {
	return r.queryOne(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
	`, id)
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (Account, error) {
	return r.queryOne(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE lower(email) = lower($1)
	`, strings.TrimSpace(email))
}

func (r *Repository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM accounts WHERE lower(email) = lower($1))
	`, strings.TrimSpace(email)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check email exists: %w", err)
	}

	return exists, nil
}

func (r *Repository) Create(ctx context.Context, email, passwordHash string) (Account, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Account{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	now := time.Now().UTC()
	a := Account{
		ID:           id.String(),
		Email:        strings.TrimSpace(strings.ToLower(email)),
		PasswordHash: passwordHash,
		TokenVersion: 1,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO accounts (id, email, password_hash, token_version, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`, a.ID, a.Email, a.PasswordHash, a.TokenVersion, a.Active, now)
	if err != nil {
		return Account{}, fmt.Errorf("insert account: %w", err)
	}

	return a, nil
}

// CurrentTokenVersion reads the account's stored version. A token embedding
// any other value is stale.
func (r *Repository) CurrentTokenVersion(ctx context.Context, id string) (int, error) {
	var version int
	err := r.db.QueryRowContext(ctx, `
		SELECT token_version FROM accounts WHERE id = $1
	`, id).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("query token version: %w", err)
	}

	return version, nil
}

// BumpTokenVersion atomically increments the version and returns the new
// value. The single UPDATE keeps the increment race-free under concurrent
// requests; no application-level read-modify-write is involved.
func (r *Repository) BumpTokenVersion(ctx context.Context, id string) (int, error) {
	var version int
	err := r.db.QueryRowContext(ctx, `
		UPDATE accounts
		SET token_version = token_version + 1, updated_at = $2
		WHERE id = $1
		RETURNING token_version
	`, id, time.Now().UTC()).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("bump token version: %w", err)
	}

	return version, nil
}

func (r *Repository) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	return r.exec(ctx, `
		UPDATE accounts
		SET password_hash = $2, updated_at = $3
		WHERE id = $1
	`, id, passwordHash, time.Now().UTC())
}

func (r *Repository) Suspend(ctx context.Context, id, reason string) error {
	now := time.Now().UTC()
	return r.exec(ctx, `
		UPDATE accounts
		SET suspended_at = $2, suspension_reason = $3, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL
	`, id, now, strings.TrimSpace(reason))
}

func (r *Repository) Restore(ctx context.Context, id string) error {
	return r.exec(ctx, `
		UPDATE accounts
		SET suspended_at = NULL, suspension_reason = '', updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL
	`, id, time.Now().UTC())
}

func (r *Repository) SoftDelete(ctx context.Context, id string) error {
	now := time.Now().UTC()
	return r.exec(ctx, `
		UPDATE accounts
		SET deleted_at = $2, active = FALSE, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL
	`, id, now)
}

// HardDeletePurged physically removes accounts that were soft-deleted before
// the cutoff. Irreversible; only the maintenance endpoint calls it.
func (r *Repository) HardDeletePurged(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 500
	}

	res, err := r.db.ExecContext(ctx, `
		WITH purgeable AS (
			SELECT id
			FROM accounts
			WHERE deleted_at IS NOT NULL AND deleted_at < $1
			ORDER BY deleted_at ASC
			LIMIT $2
		)
		DELETE FROM accounts a
		USING purgeable
		WHERE a.id = purgeable.id
	`, cutoff.UTC(), batchSize)
	if err != nil {
		return 0, fmt.Errorf("hard delete purged accounts: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purged accounts rows affected: %w", err)
	}

	return affected, nil
}

func (r *Repository) queryOne(ctx context.Context, query string, args ...any) (Account, error) {
	var a Account
	var suspendedAt, deletedAt sql.NullTime
	var suspensionReason sql.NullString

	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&a.ID, &a.Email, &a.PasswordHash, &a.TokenVersion, &a.Active,
		&suspendedAt, &suspensionReason, &deletedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, fmt.Errorf("query account: %w", err)
	}

	if suspendedAt.Valid {
		value := suspendedAt.Time.UTC()
		a.SuspendedAt = &value
	}
	if suspensionReason.Valid {
		a.SuspensionReason = suspensionReason.String
	}
	if deletedAt.Valid {
		value := deletedAt.Time.UTC()
		a.DeletedAt = &value
	}

	return a, nil
}

func (r *Repository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("account rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}
