package videos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/basket-lsat/backend/internal/models"
)

// ErrNotFound is returned when no video row matches the given id.
var ErrNotFound = errors.New("video not found")

// Store is the persistence surface the video handlers need. Implemented by
// *Repository; faked in tests.
type Store interface {
	Create(ctx context.Context, v *models.Video) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error)
	Delete(ctx context.Context, id uuid.UUID) error
	SetUploadSession(ctx context.Context, id uuid.UUID, uploadID, assetID string) error
	AttachAsset(ctx context.Context, id uuid.UUID, assetID string) error
	MarkReady(ctx context.Context, id uuid.UUID, assetID, playbackID string) error
	MarkErrored(ctx context.Context, id uuid.UUID) error
	MarkErroredByAsset(ctx context.Context, assetID string) (bool, error)
	FindByAssetID(ctx context.Context, assetID string) (*models.Video, error)
	FindLatestPending(ctx context.Context) (*models.Video, error)
	List(ctx context.Context) ([]models.Video, error)
	ListReady(ctx context.Context) ([]models.Video, error)
}

const videoColumns = `id, title, section, COALESCE(mux_upload_id,''), COALESCE(mux_asset_id,''), COALESCE(mux_playback_id,''), status, COALESCE(created_by, '00000000-0000-0000-0000-000000000000'::uuid), created_at, updated_at`

// Repository handles video persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a videos repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanVideo(row pgx.Row) (*models.Video, error) {
	var v models.Video
	err := row.Scan(&v.ID, &v.Title, &v.Section, &v.MuxUploadID, &v.MuxAssetID, &v.MuxPlaybackID, &v.Status, &v.CreatedBy, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Create inserts a new video in processing state with no external identifiers.
func (r *Repository) Create(ctx context.Context, v *models.Video) error {
	const q = `INSERT INTO videos (title, section, status, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, v.Title, v.Section, string(models.VideoStatusProcessing), v.CreatedBy).
		Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt)
}

// GetByID returns a video by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	v, err := scanVideo(r.pool.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

// Delete removes a video row. Used as the compensating action when upload
// session creation fails at the provider.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM videos WHERE id = $1`, id)
	return err
}

// SetUploadSession stores the upload session handle (and asset id when the
// provider returned one immediately).
func (r *Repository) SetUploadSession(ctx context.Context, id uuid.UUID, uploadID, assetID string) error {
	const q = `UPDATE videos SET mux_upload_id = $1, mux_asset_id = NULLIF($2,''), updated_at = NOW() WHERE id = $3`
	tag, err := r.pool.Exec(ctx, q, uploadID, assetID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AttachAsset links an asset id to the record without changing status.
func (r *Repository) AttachAsset(ctx context.Context, id uuid.UUID, assetID string) error {
	const q = `UPDATE videos SET mux_asset_id = $1, updated_at = NOW() WHERE id = $2`
	tag, err := r.pool.Exec(ctx, q, assetID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkReady sets the asset and playback ids and moves the record to ready.
// Replays with the same ids are no-ops beyond the timestamp.
func (r *Repository) MarkReady(ctx context.Context, id uuid.UUID, assetID, playbackID string) error {
	const q = `UPDATE videos SET mux_asset_id = $1, mux_playback_id = NULLIF($2,''), status = $3, updated_at = NOW() WHERE id = $4`
	tag, err := r.pool.Exec(ctx, q, assetID, playbackID, string(models.VideoStatusReady), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkErrored moves the record to errored unless it is already ready.
// A ready record never regresses.
func (r *Repository) MarkErrored(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE videos SET status = (CASE WHEN status = 'ready' THEN status ELSE 'errored' END), updated_at = NOW() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkErroredByAsset is MarkErrored keyed by asset id; reports whether any row matched.
func (r *Repository) MarkErroredByAsset(ctx context.Context, assetID string) (bool, error) {
	const q = `UPDATE videos SET status = (CASE WHEN status = 'ready' THEN status ELSE 'errored' END), updated_at = NOW() WHERE mux_asset_id = $1`
	tag, err := r.pool.Exec(ctx, q, assetID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// FindByAssetID returns the video already associated with an asset id, or nil.
func (r *Repository) FindByAssetID(ctx context.Context, assetID string) (*models.Video, error) {
	v, err := scanVideo(r.pool.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE mux_asset_id = $1`, assetID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return v, nil
}

// FindLatestPending returns the most-recently-created processing video with no
// asset id, or nil. Last-resort webhook correlation for records created before
// passthrough tokens were introduced; can misattribute when several uploads
// are in flight.
func (r *Repository) FindLatestPending(ctx context.Context) (*models.Video, error) {
	const q = `SELECT ` + videoColumns + ` FROM videos
		WHERE mux_asset_id IS NULL AND status = 'processing'
		ORDER BY created_at DESC LIMIT 1`
	v, err := scanVideo(r.pool.QueryRow(ctx, q))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return v, nil
}

// List returns all videos, newest first.
func (r *Repository) List(ctx context.Context) ([]models.Video, error) {
	return r.list(ctx, `SELECT `+videoColumns+` FROM videos ORDER BY created_at DESC`)
}

// ListReady returns playable videos ordered by section then creation time.
func (r *Repository) ListReady(ctx context.Context) ([]models.Video, error) {
	return r.list(ctx, `SELECT `+videoColumns+` FROM videos WHERE status = 'ready' ORDER BY section, created_at`)
}

func (r *Repository) list(ctx context.Context, q string) ([]models.Video, error) {
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Video
	for rows.Next() {
		var v models.Video
		if err := rows.Scan(&v.ID, &v.Title, &v.Section, &v.MuxUploadID, &v.MuxAssetID, &v.MuxPlaybackID, &v.Status, &v.CreatedBy, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	return list, rows.Err()
}
