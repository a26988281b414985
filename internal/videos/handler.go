package videos

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/basket-lsat/backend/internal/models"
	"github.com/basket-lsat/backend/internal/mux"
	"github.com/basket-lsat/backend/pkg/response"
)

const maxTitleLen = 200

// MuxAPI is the subset of the Mux client the video handlers use.
type MuxAPI interface {
	CreateUpload(ctx context.Context, params mux.CreateUploadParams) (*mux.Upload, error)
	GetUpload(ctx context.Context, id string) (*mux.Upload, error)
	GetAsset(ctx context.Context, id string) (*mux.Asset, error)
}

// passthrough is the correlation token embedded in the Mux upload session and
// echoed back on asset webhooks.
type passthrough struct {
	VideoID string `json:"videoId"`
}

// UploadRequest is the body for POST /admin/videos/upload.
type UploadRequest struct {
	Title   string `json:"title" binding:"required"`
	Section string `json:"section" binding:"required"`
}

// Handler handles video HTTP endpoints.
type Handler struct {
	store  Store
	mux    MuxAPI
	logger *zap.Logger
}

// NewHandler creates a videos handler.
func NewHandler(store Store, muxAPI MuxAPI, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, mux: muxAPI, logger: logger}
}

// CreateUpload handles POST /admin/videos/upload. Creates the video record,
// then a Mux direct upload session carrying the record id as passthrough, and
// returns the upload URL. The browser uploads file bytes straight to Mux;
// this service never touches them. If Mux rejects the session request the
// just-created record is deleted so no orphan processing row remains.
func (h *Handler) CreateUpload(c *gin.Context) {
	var req UploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" || len(title) > maxTitleLen {
		response.BadRequest(c, "title must be between 1 and 200 characters")
		return
	}
	if !models.ValidSection(req.Section) {
		response.BadRequest(c, "invalid section. Must be one of: introduction, lr, rc, final-tips")
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	video := &models.Video{
		Title:     title,
		Section:   req.Section,
		Status:    models.VideoStatusProcessing,
		CreatedBy: userID,
	}
	if err := h.store.Create(c.Request.Context(), video); err != nil {
		h.logger.Error("create video record failed", zap.Error(err))
		response.Internal(c, "failed to create video record")
		return
	}

	token, _ := json.Marshal(passthrough{VideoID: video.ID.String()})
	upload, err := h.mux.CreateUpload(c.Request.Context(), mux.CreateUploadParams{
		CORSOrigin:  "*",
		Passthrough: string(token),
	})
	if err != nil {
		// Compensating delete: avoid orphan processing records with no
		// provider-side session to ever complete them.
		if delErr := h.store.Delete(c.Request.Context(), video.ID); delErr != nil {
			h.logger.Error("compensating delete failed", zap.Error(delErr), zap.String("video_id", video.ID.String()))
		}
		h.logger.Error("mux create upload failed", zap.Error(err))
		response.Internal(c, "video provider error: "+err.Error())
		return
	}

	if err := h.store.SetUploadSession(c.Request.Context(), video.ID, upload.ID, upload.AssetID); err != nil {
		// Upload session exists; the webhook will still correlate via passthrough.
		h.logger.Warn("persist upload session failed", zap.Error(err), zap.String("video_id", video.ID.String()))
	}

	response.OK(c, gin.H{
		"video_id":   video.ID,
		"upload_id":  upload.ID,
		"upload_url": upload.URL,
		"asset_id":   upload.AssetID,
	})
}

// List handles GET /admin/videos. Returns all videos newest first.
func (h *Handler) List(c *gin.Context) {
	list, err := h.store.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list videos failed", zap.Error(err))
		response.Internal(c, "failed to list videos")
		return
	}
	response.OK(c, list)
}

// ListReady handles GET /materials/videos. Members only; returns playable
// videos with playback ids, ordered by section.
func (h *Handler) ListReady(c *gin.Context) {
	list, err := h.store.ListReady(c.Request.Context())
	if err != nil {
		h.logger.Error("list ready videos failed", zap.Error(err))
		response.Internal(c, "failed to list videos")
		return
	}
	response.OK(c, list)
}

// Delete handles DELETE /admin/videos/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid video id")
		return
	}
	if _, err := h.store.GetByID(c.Request.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "video not found")
			return
		}
		response.Internal(c, "failed to load video")
		return
	}
	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		h.logger.Error("delete video failed", zap.Error(err), zap.String("video_id", id.String()))
		response.Internal(c, "failed to delete video")
		return
	}
	response.OK(c, gin.H{"deleted": true})
}
