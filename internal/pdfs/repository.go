package pdfs

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/basket-lsat/backend/internal/models"
)

// ErrNotFound is returned when no PDF row matches the given id.
var ErrNotFound = errors.New("pdf not found")

// Repository handles study-guide persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a pdfs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new PDF record.
func (r *Repository) Create(ctx context.Context, p *models.PDF) error {
	const q = `INSERT INTO pdfs (title, section, s3_key, file_name, file_size, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, p.Title, p.Section, p.S3Key, p.FileName, p.FileSize, p.CreatedBy).
		Scan(&p.ID, &p.CreatedAt)
}

// GetByID returns a PDF by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.PDF, error) {
	const q = `SELECT id, title, section, s3_key, file_name, file_size, COALESCE(created_by, '00000000-0000-0000-0000-000000000000'::uuid), created_at
		FROM pdfs WHERE id = $1`
	var p models.PDF
	err := r.pool.QueryRow(ctx, q, id).Scan(&p.ID, &p.Title, &p.Section, &p.S3Key, &p.FileName, &p.FileSize, &p.CreatedBy, &p.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// List returns all PDFs ordered by section then creation time.
func (r *Repository) List(ctx context.Context) ([]models.PDF, error) {
	const q = `SELECT id, title, section, s3_key, file_name, file_size, COALESCE(created_by, '00000000-0000-0000-0000-000000000000'::uuid), created_at
		FROM pdfs ORDER BY section, created_at`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.PDF
	for rows.Next() {
		var p models.PDF
		if err := rows.Scan(&p.ID, &p.Title, &p.Section, &p.S3Key, &p.FileName, &p.FileSize, &p.CreatedBy, &p.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// Delete removes a PDF record.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM pdfs WHERE id = $1`, id)
	return err
}
