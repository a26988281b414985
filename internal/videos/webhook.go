package videos

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/basket-lsat/backend/internal/mux"
	"github.com/basket-lsat/backend/pkg/response"
)

// EventType identifies a Mux webhook event.
type EventType string

const (
	EventAssetReady         EventType = "video.asset.ready"
	EventAssetErrored       EventType = "video.asset.errored"
	EventUploadAssetCreated EventType = "video.upload.asset_created"
)

// WebhookEvent is the Mux webhook envelope.
type WebhookEvent struct {
	Type EventType `json:"type"`
	Data struct {
		ID          string           `json:"id"`
		AssetID     string           `json:"asset_id"`
		PlaybackIDs []mux.PlaybackID `json:"playback_ids"`
		Passthrough string           `json:"passthrough"`
	} `json:"data"`
}

// WebhookHandler consumes asynchronous asset notifications from Mux and
// reconciles them onto video records.
type WebhookHandler struct {
	store  Store
	secret string
	logger *zap.Logger
}

// NewWebhookHandler creates a Mux webhook handler. An empty secret disables
// signature verification (local development only).
func NewWebhookHandler(store Store, secret string, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{store: store, secret: secret, logger: logger}
}

// HandleEvent handles POST /webhooks/mux.
//
// Responses: 200 for any recognized event, even when no record matched (a
// retry from the provider cannot resolve an unmatched event, so acknowledging
// avoids retry storms; the body carries a warning for operators). 400 for
// malformed payloads, 401 for signature mismatch, 500 when the database
// update itself fails (the provider will redeliver).
func (h *WebhookHandler) HandleEvent(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.BadRequest(c, "failed to read body")
		return
	}

	if h.secret != "" {
		signature := c.GetHeader("Mux-Signature")
		if !mux.VerifySignature(h.secret, body, signature) {
			h.logger.Warn("mux webhook signature mismatch")
			response.Unauthorized(c, "invalid signature")
			return
		}
	}

	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		response.BadRequest(c, "invalid event payload")
		return
	}

	switch event.Type {
	case EventAssetReady:
		h.assetReady(c, &event)
	case EventAssetErrored:
		h.assetErrored(c, &event)
	case EventUploadAssetCreated:
		h.uploadAssetCreated(c, &event)
	default:
		// Unhandled event types are acknowledged so Mux does not retry them.
		response.OK(c, gin.H{"received": true})
	}
}

// correlate recovers the originating video id from the passthrough token.
// Returns uuid.Nil when the token is absent or unparseable.
func correlate(token string) uuid.UUID {
	if token == "" {
		return uuid.Nil
	}
	var p passthrough
	if err := json.Unmarshal([]byte(token), &p); err != nil {
		return uuid.Nil
	}
	id, err := uuid.Parse(p.VideoID)
	if err != nil {
		return uuid.Nil
	}
	return id
}

func (h *WebhookHandler) assetReady(c *gin.Context, event *WebhookEvent) {
	assetID := event.Data.ID
	if assetID == "" {
		response.BadRequest(c, "missing asset id")
		return
	}
	var playbackID string
	if len(event.Data.PlaybackIDs) > 0 {
		playbackID = event.Data.PlaybackIDs[0].ID
	}
	ctx := c.Request.Context()

	// Strategy 1: passthrough token names the record directly.
	if videoID := correlate(event.Data.Passthrough); videoID != uuid.Nil {
		err := h.store.MarkReady(ctx, videoID, assetID, playbackID)
		if err == nil {
			h.logger.Info("video ready via passthrough", zap.String("video_id", videoID.String()), zap.String("asset_id", assetID))
			response.OK(c, gin.H{"received": true})
			return
		}
		if !errors.Is(err, ErrNotFound) {
			h.logger.Error("mark ready failed", zap.Error(err), zap.String("video_id", videoID.String()))
			response.Internal(c, "failed to update video status")
			return
		}
	}

	// Strategy 2: a record already carries this asset id.
	existing, err := h.store.FindByAssetID(ctx, assetID)
	if err != nil {
		response.Internal(c, "failed to look up video")
		return
	}
	if existing != nil {
		if err := h.store.MarkReady(ctx, existing.ID, assetID, playbackID); err != nil {
			h.logger.Error("mark ready failed", zap.Error(err), zap.String("video_id", existing.ID.String()))
			response.Internal(c, "failed to update video status")
			return
		}
		h.logger.Info("video ready via asset id", zap.String("video_id", existing.ID.String()), zap.String("asset_id", assetID))
		response.OK(c, gin.H{"received": true})
		return
	}

	// Strategy 3: newest processing record with no asset yet. Best effort for
	// uploads that predate passthrough tokens; can misattribute when several
	// such uploads are in flight.
	pending, err := h.store.FindLatestPending(ctx)
	if err != nil {
		response.Internal(c, "failed to look up video")
		return
	}
	if pending != nil {
		if err := h.store.MarkReady(ctx, pending.ID, assetID, playbackID); err != nil {
			h.logger.Error("mark ready failed", zap.Error(err), zap.String("video_id", pending.ID.String()))
			response.Internal(c, "failed to update video status")
			return
		}
		h.logger.Info("video ready via pending fallback", zap.String("video_id", pending.ID.String()), zap.String("asset_id", assetID))
		response.OK(c, gin.H{"received": true})
		return
	}

	h.logger.Warn("asset ready event matched no video", zap.String("asset_id", assetID))
	response.OK(c, gin.H{"received": true, "warning": "no matching video found"})
}

func (h *WebhookHandler) assetErrored(c *gin.Context, event *WebhookEvent) {
	assetID := event.Data.ID
	if assetID == "" {
		response.BadRequest(c, "missing asset id")
		return
	}
	ctx := c.Request.Context()

	if videoID := correlate(event.Data.Passthrough); videoID != uuid.Nil {
		err := h.store.MarkErrored(ctx, videoID)
		if err == nil {
			h.logger.Info("video errored via passthrough", zap.String("video_id", videoID.String()))
			response.OK(c, gin.H{"received": true})
			return
		}
		if !errors.Is(err, ErrNotFound) {
			response.Internal(c, "failed to update video status")
			return
		}
	}

	matched, err := h.store.MarkErroredByAsset(ctx, assetID)
	if err != nil {
		response.Internal(c, "failed to update video status")
		return
	}
	if matched {
		h.logger.Info("video errored via asset id", zap.String("asset_id", assetID))
		response.OK(c, gin.H{"received": true})
		return
	}

	h.logger.Warn("asset errored event matched no video", zap.String("asset_id", assetID))
	response.OK(c, gin.H{"received": true, "warning": "no matching video found"})
}

// uploadAssetCreated opportunistically attaches the asset id to the record
// (status unchanged) so later status checks can query the asset before ready.
func (h *WebhookHandler) uploadAssetCreated(c *gin.Context, event *WebhookEvent) {
	assetID := event.Data.AssetID
	videoID := correlate(event.Data.Passthrough)
	if videoID == uuid.Nil || assetID == "" {
		response.OK(c, gin.H{"received": true})
		return
	}
	if err := h.store.AttachAsset(c.Request.Context(), videoID, assetID); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.OK(c, gin.H{"received": true, "warning": "no matching video found"})
			return
		}
		response.Internal(c, "failed to update video")
		return
	}
	h.logger.Info("asset attached to video", zap.String("video_id", videoID.String()), zap.String("asset_id", assetID))
	response.OK(c, gin.H{"received": true})
}
