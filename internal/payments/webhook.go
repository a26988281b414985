package payments

import (
	"context"
	"encoding/json"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
	"go.uber.org/zap"

	"github.com/basket-lsat/backend/internal/models"
	"github.com/basket-lsat/backend/pkg/queue"
	"github.com/basket-lsat/backend/pkg/response"
)

// MembershipStore activates a user's materials membership after payment.
// Implemented by the auth repository.
type MembershipStore interface {
	SetMembershipStatus(ctx context.Context, userID uuid.UUID, status models.MembershipStatus) error
}

// EmailEnqueuer queues outbound email jobs for the worker.
type EmailEnqueuer interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// PaymentStore finalizes payment rows. Implemented by *Repository.
type PaymentStore interface {
	MarkCompleted(ctx context.Context, stripeSessionID string) error
}

// WebhookHandler handles Stripe webhooks.
type WebhookHandler struct {
	repo        PaymentStore
	memberships MembershipStore
	emails      EmailEnqueuer
	secret      string
	logger      *zap.Logger
}

// NewWebhookHandler creates a Stripe webhook handler. emails may be nil.
func NewWebhookHandler(repo PaymentStore, memberships MembershipStore, emails EmailEnqueuer, secret string, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{repo: repo, memberships: memberships, emails: emails, secret: secret, logger: logger}
}

// HandleEvent handles POST /webhooks/stripe. Verifies the Stripe-Signature
// header over the raw body; on checkout.session.completed, activates the
// paying user's membership and marks the payment row completed.
func (h *WebhookHandler) HandleEvent(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.BadRequest(c, "failed to read body")
		return
	}
	signature := c.GetHeader("Stripe-Signature")
	if signature == "" {
		response.BadRequest(c, "missing Stripe-Signature header")
		return
	}

	event, err := webhook.ConstructEvent(body, signature, h.secret)
	if err != nil {
		h.logger.Warn("stripe webhook signature verification failed", zap.Error(err))
		response.BadRequest(c, "webhook signature verification failed")
		return
	}

	if event.Type != "checkout.session.completed" {
		response.OK(c, gin.H{"received": true})
		return
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		response.BadRequest(c, "invalid checkout session payload")
		return
	}
	userIDStr := sess.Metadata["user_id"]
	if userIDStr == "" {
		response.BadRequest(c, "missing user_id in session metadata")
		return
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		response.BadRequest(c, "invalid user_id in session metadata")
		return
	}

	ctx := c.Request.Context()
	if err := h.memberships.SetMembershipStatus(ctx, userID, models.MembershipActive); err != nil {
		h.logger.Error("activate membership failed", zap.Error(err), zap.String("user_id", userID.String()))
		response.Internal(c, "failed to update membership status")
		return
	}
	if err := h.repo.MarkCompleted(ctx, sess.ID); err != nil {
		h.logger.Warn("mark payment completed failed", zap.Error(err), zap.String("session_id", sess.ID))
	}

	if h.emails != nil && sess.CustomerEmail != "" {
		err := h.emails.EnqueueEmail(ctx, queue.EmailPayload{
			EmailType:      queue.EmailTypePurchaseReceipt,
			RecipientEmail: sess.CustomerEmail,
			Subject:        "Your Basket LSAT materials access",
			BodyHTML:       "<p>Thanks for your purchase. Your lifetime materials access is now active.</p>",
		})
		if err != nil {
			h.logger.Warn("enqueue receipt email failed", zap.Error(err))
		}
	}

	h.logger.Info("membership activated", zap.String("user_id", userID.String()), zap.String("session_id", sess.ID))
	response.OK(c, gin.H{"received": true, "user_id": userID})
}
