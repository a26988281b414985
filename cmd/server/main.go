// Package main runs the Basket LSAT site backend with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/basket-lsat/backend/config"
	"github.com/basket-lsat/backend/internal/auth"
	"github.com/basket-lsat/backend/internal/middleware"
	"github.com/basket-lsat/backend/internal/mux"
	"github.com/basket-lsat/backend/internal/payments"
	"github.com/basket-lsat/backend/internal/pdfs"
	"github.com/basket-lsat/backend/internal/ratelimit"
	"github.com/basket-lsat/backend/internal/recaptcha"
	"github.com/basket-lsat/backend/internal/videos"
	"github.com/basket-lsat/backend/pkg/database"
	"github.com/basket-lsat/backend/pkg/queue"
	"github.com/basket-lsat/backend/pkg/redis"
	"github.com/basket-lsat/backend/pkg/response"
	"github.com/basket-lsat/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			MaterialsBucket:      cfg.AWS.MaterialsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	stripe.Key = cfg.Stripe.SecretKey

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	muxClient := mux.NewClient(cfg.Mux.BaseURL, cfg.Mux.TokenID, cfg.Mux.TokenSecret)
	if !muxClient.Configured() {
		logger.Warn("mux credentials not configured; video uploads will fail")
	}

	var captcha *recaptcha.Verifier
	if cfg.Recaptcha.SecretKey != "" {
		captcha = recaptcha.New(cfg.Recaptcha.SecretKey, cfg.Recaptcha.Threshold, cfg.Recaptcha.VerifyURL)
	}
	recaptchaHandler := recaptcha.NewHandler(captcha, logger)

	// Auth
	authRepo := auth.NewRepository(pool)
	var captchaVerifier auth.CaptchaVerifier
	if captcha != nil {
		captchaVerifier = captcha
	}
	authHandler := auth.NewHandler(authRepo, jwtService, captchaVerifier, jobQueue, cfg.Server.SiteURL, logger)

	// Videos (Mux-backed lesson library)
	videoRepo := videos.NewRepository(pool)
	videoHandler := videos.NewHandler(videoRepo, muxClient, logger)
	videoWebhook := videos.NewWebhookHandler(videoRepo, cfg.Mux.WebhookSecret, logger)

	// Study guides (S3-backed PDFs)
	pdfRepo := pdfs.NewRepository(pool)
	pdfHandler := pdfs.NewHandler(pdfRepo, s3Client, logger)

	// Payments (Stripe checkout for lifetime materials access)
	paymentRepo := payments.NewRepository(pool)
	paymentHandler := payments.NewHandler(paymentRepo, payments.StripeCheckout{}, payments.Config{
		PriceCents: cfg.Stripe.MaterialsPriceCents,
		SiteURL:    cfg.Server.SiteURL,
	}, logger)
	stripeWebhook := payments.NewWebhookHandler(paymentRepo, authRepo, jobQueue, cfg.Stripe.WebhookSecret, logger)

	// Fixed-window limiter for public endpoints; swept once a minute.
	limiter := ratelimit.New(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowSeconds)*time.Second)
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	go limiter.Sweep(sweepCtx, time.Minute)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Booking page config (Calendly widget is embedded client-side)
	router.GET("/booking/config", func(c *gin.Context) {
		response.OK(c, gin.H{"scheduling_url": cfg.Booking.SchedulingURL})
	})

	// Public, rate limited
	limited := router.Group("")
	limited.Use(middleware.RateLimit(limiter))
	{
		limited.POST("/verify-recaptcha", recaptchaHandler.Verify)
		limited.POST("/auth/signup", authHandler.Signup)
		limited.POST("/auth/login", authHandler.Login)
		limited.POST("/auth/check-email", authHandler.CheckEmail)
		limited.POST("/auth/forgot-password", authHandler.ForgotPassword)
		limited.POST("/auth/reset-password", authHandler.ResetPassword)
	}

	// Webhooks (no JWT; each handler verifies its provider signature)
	router.POST("/webhooks/mux", videoWebhook.HandleEvent)
	router.POST("/webhooks/stripe", stripeWebhook.HandleEvent)

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/profile", authHandler.Profile)
		api.POST("/checkout/materials", paymentHandler.CreateMaterialsCheckout)
		api.GET("/payments", paymentHandler.ListMine)

		// Paywalled materials area
		materials := api.Group("/materials")
		materials.Use(middleware.RequireMembership(authRepo))
		{
			materials.GET("/videos", videoHandler.ListReady)
			materials.GET("/pdfs", pdfHandler.List)
			materials.GET("/pdfs/:id/download-url", pdfHandler.GenerateDownloadURL)
		}

		// Admin dashboard
		admin := api.Group("/admin")
		admin.Use(middleware.RequireRole("admin"))
		{
			admin.GET("/videos", videoHandler.List)
			admin.POST("/videos/upload", videoHandler.CreateUpload)
			admin.POST("/videos/:id/check-status", videoHandler.CheckStatus)
			admin.DELETE("/videos/:id", videoHandler.Delete)
			admin.POST("/pdfs/upload", pdfHandler.Upload)
			admin.DELETE("/pdfs/:id", pdfHandler.Delete)
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	sweepCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
