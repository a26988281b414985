package payments

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"go.uber.org/zap"

	"github.com/basket-lsat/backend/internal/models"
	"github.com/basket-lsat/backend/pkg/response"
)

// CheckoutClient creates Stripe Checkout Sessions. Implemented by
// StripeCheckout; faked in tests.
type CheckoutClient interface {
	NewSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// StripeCheckout calls the Stripe API using the globally configured key.
type StripeCheckout struct{}

// NewSession creates a checkout session via the Stripe SDK.
func (StripeCheckout) NewSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return session.New(params)
}

// Config holds checkout settings for the materials product.
type Config struct {
	PriceCents int64
	SiteURL    string
}

// Handler handles payment HTTP endpoints.
type Handler struct {
	repo     *Repository
	checkout CheckoutClient
	cfg      Config
	logger   *zap.Logger
}

// NewHandler creates a payments handler.
func NewHandler(repo *Repository, checkout CheckoutClient, cfg Config, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, checkout: checkout, cfg: cfg, logger: logger}
}

// CreateMaterialsCheckout handles POST /checkout/materials. Creates a
// payment-mode Checkout Session for lifetime materials access with the user
// id in metadata, records a pending payment row, and returns the hosted
// checkout URL.
func (h *Handler) CreateMaterialsCheckout(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)
	email, _ := c.MustGet("user_email").(string)

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String("usd"),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String("LSAT Materials Access (Lifetime)"),
						Description: stripe.String("Lifetime access to the Basket LSAT video library, study guides, and all future additions."),
					},
					UnitAmount: stripe.Int64(h.cfg.PriceCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(fmt.Sprintf("%s/materials?purchase=success", h.cfg.SiteURL)),
		CancelURL:  stripe.String(fmt.Sprintf("%s/pricing?purchase=cancelled", h.cfg.SiteURL)),
	}
	if email != "" {
		params.CustomerEmail = stripe.String(email)
	}
	params.AddMetadata("user_id", userID.String())

	sess, err := h.checkout.NewSession(params)
	if err != nil {
		h.logger.Error("create checkout session failed", zap.Error(err), zap.String("user_id", userID.String()))
		response.Internal(c, "unable to start checkout session")
		return
	}

	payment := &models.Payment{
		UserID:          userID,
		StripeSessionID: sess.ID,
		AmountCents:     h.cfg.PriceCents,
		Currency:        "usd",
		Status:          models.PaymentStatusPending,
	}
	if err := h.repo.Create(c.Request.Context(), payment); err != nil {
		// The session exists either way; the webhook completes membership on payment.
		h.logger.Warn("record pending payment failed", zap.Error(err), zap.String("session_id", sess.ID))
	}

	response.OK(c, gin.H{"url": sess.URL})
}

// ListMine handles GET /payments. Returns the caller's payment history.
func (h *Handler) ListMine(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)
	list, err := h.repo.ListByUser(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to list payments")
		return
	}
	response.OK(c, list)
}
