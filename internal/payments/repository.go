package payments

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/basket-lsat/backend/internal/models"
)

// Repository handles payment persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a payments repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a pending payment row for a checkout session.
func (r *Repository) Create(ctx context.Context, p *models.Payment) error {
	const q = `INSERT INTO payments (user_id, stripe_session_id, amount_cents, currency, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, p.UserID, p.StripeSessionID, p.AmountCents, p.Currency, p.Status).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

// MarkCompleted sets the payment row for a session to completed.
func (r *Repository) MarkCompleted(ctx context.Context, stripeSessionID string) error {
	const q = `UPDATE payments SET status = $1, updated_at = NOW() WHERE stripe_session_id = $2`
	_, err := r.pool.Exec(ctx, q, models.PaymentStatusCompleted, stripeSessionID)
	return err
}

// ListByUser returns a user's payments, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Payment, error) {
	const q = `SELECT id, user_id, stripe_session_id, amount_cents, currency, status, created_at, updated_at
		FROM payments WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Payment
	for rows.Next() {
		var p models.Payment
		if err := rows.Scan(&p.ID, &p.UserID, &p.StripeSessionID, &p.AmountCents, &p.Currency, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}
