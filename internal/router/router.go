package router

import (
	"time"

	"artisan/config"
	"artisan/internal/handler"
	"artisan/internal/middleware"
	"artisan/internal/repository"
	"artisan/internal/service"
	"artisan/internal/ws"
	"artisan/pkg/cloudinary"
	"artisan/pkg/pi"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func Setup(cfg *config.Config, db *gorm.DB, cloud cloudinary.Client) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RateLimit(middleware.NewInMemoryRateLimiter(100, 60*time.Second)))

	// Repositories
	userRepo := repository.NewUserRepository(db)
	videoRepo := repository.NewVideoRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	chatHub := ws.NewChatHub()

	// Provider client and services
	piClient := pi.NewClient(cfg.Pi.BaseURL, cfg.Pi.APIKey, cfg.Pi.Timeout, cfg.Pi.MaxRetries, cfg.Pi.RetryBackoff)
	verifier := pi.NewSignatureVerifier(cfg.Pi.WebhookSecret)
	authSvc := service.NewAuthService(cfg, userRepo)
	paymentSvc := service.NewPaymentService(&cfg.Pi, paymentRepo, videoRepo, piClient)

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc)
	videoHandler := handler.NewVideoHandler(videoRepo, cloud)
	paymentHandler := handler.NewPaymentHandler(paymentSvc)
	webhookHandler := handler.NewPaymentWebhookHandler(paymentSvc, verifier)
	rtcHandler := handler.NewRTCHandler(&cfg.Agora)

	authMw := middleware.AuthRequired(&cfg.JWT)

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.POST("/pi/signin", authHandler.PiSignin)
		}

		videos := api.Group("/videos")
		{
			videos.GET("", videoHandler.List)
			videos.GET("/:id", videoHandler.Get)
			videos.POST("", authMw, videoHandler.Create)
			videos.POST("/upload", authMw, videoHandler.Upload)
			videos.PATCH("/:id", authMw, videoHandler.Update)
			videos.DELETE("/:id", authMw, videoHandler.Delete)
		}

		payments := api.Group("/payments")
		{
			payments.POST("/create", authMw, paymentHandler.Create)
			// Approve and complete are provider-originated; the provider
			// cannot authenticate as a user, so they carry no user auth.
			payments.POST("/approve", paymentHandler.Approve)
			payments.POST("/complete", paymentHandler.Complete)
			payments.POST("/webhook", webhookHandler.Handle)
			payments.GET("/status/:provider_reference", authMw, paymentHandler.Status)
			payments.GET("/my-payments", authMw, paymentHandler.MyPayments)
		}

		api.GET("/rtc/token", authMw, rtcHandler.Token)
		api.GET("/ws/chat", handler.UpgradeChatWS(&cfg.JWT, chatHub, messageRepo))
	}

	return r
}
