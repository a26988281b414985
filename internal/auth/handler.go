package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/basket-lsat/backend/internal/models"
	"github.com/basket-lsat/backend/pkg/queue"
	"github.com/basket-lsat/backend/pkg/response"
	"github.com/basket-lsat/backend/pkg/utils"
)

const resetTokenTTL = time.Hour

// CaptchaVerifier checks a client-supplied reCAPTCHA token. Nil disables the check.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token string) error
}

// EmailEnqueuer queues outbound email jobs for the worker.
type EmailEnqueuer interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// SignupRequest is the body for POST /auth/signup.
type SignupRequest struct {
	Email          string `json:"email" binding:"required,email"`
	Password       string `json:"password" binding:"required,min=8"`
	FullName       string `json:"full_name" binding:"required"`
	RecaptchaToken string `json:"recaptcha_token"`
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// CheckEmailRequest is the body for POST /auth/check-email.
type CheckEmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ForgotPasswordRequest is the body for POST /auth/forgot-password.
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetPasswordRequest is the body for POST /auth/reset-password.
type ResetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token string            `json:"token"`
	User  models.UserPublic `json:"user"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	repo    *Repository
	jwt     *JWTService
	captcha CaptchaVerifier
	emails  EmailEnqueuer
	siteURL string
	logger  *zap.Logger
}

// NewHandler creates an auth handler. captcha and emails may be nil.
func NewHandler(repo *Repository, jwt *JWTService, captcha CaptchaVerifier, emails EmailEnqueuer, siteURL string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, jwt: jwt, captcha: captcha, emails: emails, siteURL: siteURL, logger: logger}
}

// Signup handles POST /auth/signup.
func (h *Handler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	if h.captcha != nil {
		if err := h.captcha.Verify(c.Request.Context(), req.RecaptchaToken); err != nil {
			response.BadRequest(c, "recaptcha verification failed")
			return
		}
	}

	existing, err := h.repo.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		response.Internal(c, "failed to check email")
		return
	}
	if existing != nil {
		response.BadRequest(c, "email already registered")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}

	user, err := h.repo.Create(c.Request.Context(), req.Email, hash, req.FullName, models.RoleStudent)
	if err != nil {
		h.logger.Error("create user failed", zap.Error(err))
		response.Internal(c, "failed to create user")
		return
	}

	token, err := h.jwt.Generate(user.ID, user.Email, string(user.Role))
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}

	response.Created(c, TokenResponse{Token: token, User: user.ToPublic()})
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	user, err := h.repo.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		response.Internal(c, "failed to load user")
		return
	}
	if user == nil || !utils.CheckPassword(req.Password, user.Password) {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	token, err := h.jwt.Generate(user.ID, user.Email, string(user.Role))
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}

	c.JSON(http.StatusOK, response.Body{Success: true, Data: TokenResponse{Token: token, User: user.ToPublic()}})
}

// CheckEmail handles POST /auth/check-email. Used by the signup form to flag
// already-registered addresses before submitting.
func (h *Handler) CheckEmail(c *gin.Context) {
	var req CheckEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	user, err := h.repo.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		// On lookup failure, report not-exists so signup is not blocked.
		h.logger.Warn("check email failed", zap.Error(err))
		response.OK(c, gin.H{"exists": false})
		return
	}
	response.OK(c, gin.H{"exists": user != nil})
}

// ForgotPassword handles POST /auth/forgot-password. Always responds 200 so
// the endpoint does not reveal whether an account exists.
func (h *Handler) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	user, err := h.repo.GetByEmail(c.Request.Context(), req.Email)
	if err != nil || user == nil {
		response.OK(c, gin.H{"sent": true})
		return
	}

	token, err := utils.RandomToken(32)
	if err != nil {
		response.Internal(c, "failed to create reset token")
		return
	}
	if err := h.repo.CreatePasswordResetToken(c.Request.Context(), token, user.ID, time.Now().Add(resetTokenTTL)); err != nil {
		h.logger.Error("store reset token failed", zap.Error(err), zap.String("user_id", user.ID.String()))
		response.Internal(c, "failed to create reset token")
		return
	}

	if h.emails != nil {
		resetLink := fmt.Sprintf("%s/reset-password?token=%s", h.siteURL, token)
		err := h.emails.EnqueueEmail(c.Request.Context(), queue.EmailPayload{
			EmailType:      queue.EmailTypePasswordReset,
			RecipientEmail: user.Email,
			Subject:        "Reset your Basket LSAT password",
			BodyHTML:       fmt.Sprintf("<p>Hi %s,</p><p>Reset your password using this link (valid for 1 hour):</p><p><a href=%q>%s</a></p>", user.FullName, resetLink, resetLink),
		})
		if err != nil {
			h.logger.Error("enqueue reset email failed", zap.Error(err), zap.String("user_id", user.ID.String()))
		}
	}

	response.OK(c, gin.H{"sent": true})
}

// ResetPassword handles POST /auth/reset-password.
func (h *Handler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	userID, err := h.repo.ConsumePasswordResetToken(c.Request.Context(), req.Token)
	if err != nil {
		if errors.Is(err, ErrTokenInvalid) {
			response.BadRequest(c, "invalid or expired reset token")
			return
		}
		response.Internal(c, "failed to verify reset token")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}
	if err := h.repo.UpdatePassword(c.Request.Context(), userID, hash); err != nil {
		h.logger.Error("update password failed", zap.Error(err), zap.String("user_id", userID.String()))
		response.Internal(c, "failed to update password")
		return
	}

	response.OK(c, gin.H{"reset": true})
}

// Profile handles GET /profile. Returns the caller's profile including membership status.
func (h *Handler) Profile(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)
	user, err := h.repo.GetByID(c.Request.Context(), userID)
	if err != nil {
		response.NotFound(c, "user not found")
		return
	}
	response.OK(c, user.ToPublic())
}
