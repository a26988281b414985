package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"

	"github.com/basket-lsat/backend/internal/models"
	"github.com/basket-lsat/backend/pkg/queue"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testStripeSecret = "whsec_stripe_test"

type fakeMemberships struct {
	activated map[uuid.UUID]models.MembershipStatus
	fail      bool
}

func (f *fakeMemberships) SetMembershipStatus(_ context.Context, userID uuid.UUID, status models.MembershipStatus) error {
	if f.fail {
		return fmt.Errorf("store down")
	}
	if f.activated == nil {
		f.activated = make(map[uuid.UUID]models.MembershipStatus)
	}
	f.activated[userID] = status
	return nil
}

type fakePayments struct {
	completed []string
}

func (f *fakePayments) MarkCompleted(_ context.Context, stripeSessionID string) error {
	f.completed = append(f.completed, stripeSessionID)
	return nil
}

type fakeEmails struct {
	sent []queue.EmailPayload
}

func (f *fakeEmails) EnqueueEmail(_ context.Context, payload queue.EmailPayload) error {
	f.sent = append(f.sent, payload)
	return nil
}

// stripeSignature builds a valid Stripe-Signature header for payload.
func stripeSignature(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func postStripeWebhook(t *testing.T, h *WebhookHandler, payload []byte, header string) *httptest.ResponseRecorder {
	t.Helper()
	router := gin.New()
	router.POST("/webhooks/stripe", h.HandleEvent)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
	if header != "" {
		req.Header.Set("Stripe-Signature", header)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func checkoutCompletedPayload(userID uuid.UUID, sessionID, email string) []byte {
	return []byte(fmt.Sprintf(`{
		"api_version": %q,
		"type": "checkout.session.completed",
		"data": {
			"object": {
				"id": %q,
				"object": "checkout.session",
				"customer_email": %q,
				"metadata": {"user_id": %q}
			}
		}
	}`, stripe.APIVersion, sessionID, email, userID))
}

func TestStripeWebhookActivatesMembership(t *testing.T) {
	t.Parallel()
	memberships := &fakeMemberships{}
	paymentsStore := &fakePayments{}
	emails := &fakeEmails{}
	h := NewWebhookHandler(paymentsStore, memberships, emails, testStripeSecret, nil)

	userID := uuid.New()
	payload := checkoutCompletedPayload(userID, "cs_test_1", "student@example.com")
	w := postStripeWebhook(t, h, payload, stripeSignature(payload, testStripeSecret, time.Now()))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if memberships.activated[userID] != models.MembershipActive {
		t.Fatalf("membership = %q, want active", memberships.activated[userID])
	}
	if len(paymentsStore.completed) != 1 || paymentsStore.completed[0] != "cs_test_1" {
		t.Fatalf("completed sessions = %v", paymentsStore.completed)
	}
	if len(emails.sent) != 1 || emails.sent[0].RecipientEmail != "student@example.com" {
		t.Fatalf("receipt emails = %v", emails.sent)
	}
}

func TestStripeWebhookRejectsBadSignature(t *testing.T) {
	t.Parallel()
	memberships := &fakeMemberships{}
	h := NewWebhookHandler(&fakePayments{}, memberships, nil, testStripeSecret, nil)

	payload := checkoutCompletedPayload(uuid.New(), "cs_test_2", "")
	w := postStripeWebhook(t, h, payload, stripeSignature(payload, "wrong-secret", time.Now()))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if len(memberships.activated) != 0 {
		t.Fatalf("membership activated on rejected event: %v", memberships.activated)
	}
}

func TestStripeWebhookRequiresSignatureHeader(t *testing.T) {
	t.Parallel()
	h := NewWebhookHandler(&fakePayments{}, &fakeMemberships{}, nil, testStripeSecret, nil)
	payload := checkoutCompletedPayload(uuid.New(), "cs_test_3", "")

	w := postStripeWebhook(t, h, payload, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestStripeWebhookIgnoresOtherEventTypes(t *testing.T) {
	t.Parallel()
	memberships := &fakeMemberships{}
	h := NewWebhookHandler(&fakePayments{}, memberships, nil, testStripeSecret, nil)

	payload := []byte(fmt.Sprintf(`{"api_version": %q, "type": "invoice.paid", "data": {"object": {}}}`, stripe.APIVersion))
	w := postStripeWebhook(t, h, payload, stripeSignature(payload, testStripeSecret, time.Now()))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(memberships.activated) != 0 {
		t.Fatalf("membership activated for unrelated event: %v", memberships.activated)
	}
}

func TestStripeWebhookRejectsMissingUserID(t *testing.T) {
	t.Parallel()
	h := NewWebhookHandler(&fakePayments{}, &fakeMemberships{}, nil, testStripeSecret, nil)

	payload := []byte(fmt.Sprintf(`{
		"api_version": %q,
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_test_4", "object": "checkout.session", "metadata": {}}}
	}`, stripe.APIVersion))
	w := postStripeWebhook(t, h, payload, stripeSignature(payload, testStripeSecret, time.Now()))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestStripeWebhookMembershipFailureReturns500(t *testing.T) {
	t.Parallel()
	h := NewWebhookHandler(&fakePayments{}, &fakeMemberships{fail: true}, nil, testStripeSecret, nil)

	payload := checkoutCompletedPayload(uuid.New(), "cs_test_5", "")
	w := postStripeWebhook(t, h, payload, stripeSignature(payload, testStripeSecret, time.Now()))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
}
