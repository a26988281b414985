package videos

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/basket-lsat/backend/internal/models"
	"github.com/basket-lsat/backend/internal/mux"
	"github.com/basket-lsat/backend/pkg/response"
)

// CheckStatus handles POST /admin/videos/:id/check-status. Forces a status
// refresh for one record without waiting for a webhook.
//
// Idempotent: repeated calls converge on the same terminal state and a ready
// record is never regressed, so it short-circuits before any provider call.
func (h *Handler) CheckStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid video id")
		return
	}
	ctx := c.Request.Context()

	video, err := h.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "video not found")
			return
		}
		response.Internal(c, "failed to load video")
		return
	}

	if video.Status == models.VideoStatusReady {
		response.OK(c, gin.H{"status": models.VideoStatusReady, "asset_id": video.MuxAssetID, "playback_id": video.MuxPlaybackID})
		return
	}

	switch {
	case video.MuxUploadID != "" && video.MuxAssetID == "":
		h.checkUpload(c, video)
	case video.MuxAssetID != "":
		h.checkAsset(c, video)
	default:
		response.BadRequest(c, "video has no upload session or asset id")
	}
}

// checkUpload queries the upload session: an asset id means the video can be
// resolved to ready; a terminal upload failure marks it errored; otherwise it
// is still processing.
func (h *Handler) checkUpload(c *gin.Context, video *models.Video) {
	ctx := c.Request.Context()

	upload, err := h.mux.GetUpload(ctx, video.MuxUploadID)
	if err != nil {
		h.logger.Error("get upload failed", zap.Error(err), zap.String("video_id", video.ID.String()))
		response.Internal(c, "failed to check upload status: "+err.Error())
		return
	}

	if upload.AssetID != "" {
		asset, err := h.mux.GetAsset(ctx, upload.AssetID)
		if err != nil {
			h.logger.Error("get asset failed", zap.Error(err), zap.String("asset_id", upload.AssetID))
			response.Internal(c, "failed to check asset status: "+err.Error())
			return
		}
		playbackID := asset.FirstPlaybackID()
		if err := h.store.MarkReady(ctx, video.ID, upload.AssetID, playbackID); err != nil {
			response.Internal(c, "failed to update video")
			return
		}
		response.OK(c, gin.H{"status": models.VideoStatusReady, "asset_id": upload.AssetID, "playback_id": playbackID})
		return
	}

	if upload.TerminalFailure() {
		if err := h.store.MarkErrored(ctx, video.ID); err != nil {
			response.Internal(c, "failed to update video")
			return
		}
		response.OK(c, gin.H{"status": models.VideoStatusErrored})
		return
	}

	response.OK(c, gin.H{"status": models.VideoStatusProcessing})
}

// checkAsset queries the asset directly; used when the record already has an
// asset id but no playback id yet.
func (h *Handler) checkAsset(c *gin.Context, video *models.Video) {
	ctx := c.Request.Context()

	asset, err := h.mux.GetAsset(ctx, video.MuxAssetID)
	if err != nil {
		h.logger.Error("get asset failed", zap.Error(err), zap.String("asset_id", video.MuxAssetID))
		response.Internal(c, "failed to check asset status: "+err.Error())
		return
	}

	if asset.Status == mux.AssetStatusReady {
		playbackID := asset.FirstPlaybackID()
		if err := h.store.MarkReady(ctx, video.ID, video.MuxAssetID, playbackID); err != nil {
			response.Internal(c, "failed to update video")
			return
		}
		response.OK(c, gin.H{"status": models.VideoStatusReady, "playback_id": playbackID})
		return
	}

	response.OK(c, gin.H{"status": models.VideoStatusProcessing})
}
