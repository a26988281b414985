package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/basket-lsat/backend/internal/models"
)

// ErrTokenInvalid is returned when a password reset token is unknown, expired or already used.
var ErrTokenInvalid = errors.New("invalid or expired reset token")

// Repository handles user and password-reset-token persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const q = `SELECT id, email, password_hash, full_name, role, membership_status, created_at, updated_at
		FROM users WHERE id = $1`
	var u models.User
	err := r.pool.QueryRow(ctx, q, id).Scan(&u.ID, &u.Email, &u.Password, &u.FullName, &u.Role, &u.MembershipStatus, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail returns a user by email, or nil when no account exists.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `SELECT id, email, password_hash, full_name, role, membership_status, created_at, updated_at
		FROM users WHERE LOWER(email) = LOWER($1)`
	var u models.User
	err := r.pool.QueryRow(ctx, q, email).Scan(&u.ID, &u.Email, &u.Password, &u.FullName, &u.Role, &u.MembershipStatus, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user.
func (r *Repository) Create(ctx context.Context, email, passwordHash, fullName string, role models.Role) (*models.User, error) {
	const q = `INSERT INTO users (email, password_hash, full_name, role)
		VALUES (LOWER($1), $2, $3, $4)
		RETURNING id, email, password_hash, full_name, role, membership_status, created_at, updated_at`
	var u models.User
	err := r.pool.QueryRow(ctx, q, email, passwordHash, fullName, string(role)).
		Scan(&u.ID, &u.Email, &u.Password, &u.FullName, &u.Role, &u.MembershipStatus, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdatePassword replaces the user's password hash.
func (r *Repository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	const q = `UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.pool.Exec(ctx, q, passwordHash, id)
	return err
}

// SetMembershipStatus updates the user's materials membership.
func (r *Repository) SetMembershipStatus(ctx context.Context, id uuid.UUID, status models.MembershipStatus) error {
	const q = `UPDATE users SET membership_status = $1, updated_at = NOW() WHERE id = $2`
	tag, err := r.pool.Exec(ctx, q, string(status), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// HasActiveMembership reports whether the user has paid materials access.
func (r *Repository) HasActiveMembership(ctx context.Context, id uuid.UUID) (bool, error) {
	const q = `SELECT membership_status FROM users WHERE id = $1`
	var status string
	if err := r.pool.QueryRow(ctx, q, id).Scan(&status); err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return models.MembershipStatus(status) == models.MembershipActive, nil
}

// CreatePasswordResetToken stores a single-use reset token for the user.
func (r *Repository) CreatePasswordResetToken(ctx context.Context, token string, userID uuid.UUID, expiresAt time.Time) error {
	const q = `INSERT INTO password_reset_tokens (token, user_id, expires_at) VALUES ($1, $2, $3)`
	_, err := r.pool.Exec(ctx, q, token, userID, expiresAt)
	return err
}

// ConsumePasswordResetToken marks the token used and returns its user ID.
// Returns ErrTokenInvalid for unknown, expired or already-used tokens.
func (r *Repository) ConsumePasswordResetToken(ctx context.Context, token string) (uuid.UUID, error) {
	const q = `UPDATE password_reset_tokens SET used_at = NOW()
		WHERE token = $1 AND used_at IS NULL AND expires_at > NOW()
		RETURNING user_id`
	var userID uuid.UUID
	err := r.pool.QueryRow(ctx, q, token).Scan(&userID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return uuid.Nil, ErrTokenInvalid
		}
		return uuid.Nil, err
	}
	return userID, nil
}
