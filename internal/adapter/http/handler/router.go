package handler

import (
	"wallet-ledger-service/internal/adapter/http/middleware"
	"wallet-ledger-service/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	VerifierSvc    ports.EventVerifier
	DispatcherSvc  ports.EventDispatcher
	ReportingSvc   ports.ReportingService
	TokenSvc       ports.TokenService
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep, verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// --- Processor deliveries (signature-authenticated) ---
	webhookHandler := NewWebhookHandler(deps.VerifierSvc, deps.DispatcherSvc)
	r.POST("/webhooks/payments", webhookHandler.HandleEvent)

	// --- JWT-authenticated read API ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	walletHandler := NewWalletHandler(deps.ReportingSvc)

	v1 := r.Group("/api/v1")
	wallets := v1.Group("/wallets", jwtAuth)
	{
		wallets.GET("/:user_id", walletHandler.GetBalance)
		wallets.GET("/:user_id/transactions", walletHandler.ListTransactions)
		wallets.GET("/:user_id/stats", walletHandler.GetStats)
	}

	return r
}
