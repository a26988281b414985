package recaptcha

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/basket-lsat/backend/pkg/response"
)

// VerifyRequest is the body for POST /verify-recaptcha.
type VerifyRequest struct {
	Token string `json:"token" binding:"required"`
}

// Handler exposes token verification to the client for pre-submit checks.
type Handler struct {
	verifier *Verifier
	logger   *zap.Logger
}

// NewHandler creates a recaptcha handler.
func NewHandler(verifier *Verifier, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{verifier: verifier, logger: logger}
}

// Verify handles POST /verify-recaptcha.
func (h *Handler) Verify(c *gin.Context) {
	if h.verifier == nil {
		response.ServiceUnavailable(c, "recaptcha not configured")
		return
	}
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "missing reCAPTCHA token")
		return
	}
	result, err := h.verifier.Check(c.Request.Context(), req.Token)
	if err != nil {
		h.logger.Warn("recaptcha check failed", zap.Error(err))
		response.Internal(c, "failed to verify reCAPTCHA")
		return
	}
	if !result.Success {
		response.BadRequest(c, "reCAPTCHA verification failed")
		return
	}
	if result.Score < h.verifier.threshold {
		h.logger.Warn("recaptcha score below threshold", zap.Float64("score", result.Score))
		response.BadRequest(c, "reCAPTCHA verification failed")
		return
	}
	response.OK(c, gin.H{"score": result.Score})
}
