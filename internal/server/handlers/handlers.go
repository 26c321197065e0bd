package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	paymentservice "github.com/lumenlearn/pvs/internal/application/payment"
	"github.com/lumenlearn/pvs/internal/application/verification"
	"github.com/lumenlearn/pvs/internal/server/middleware"
	"github.com/lumenlearn/pvs/internal/server/websocket"
	"github.com/lumenlearn/pvs/pkg/config"
)

type Handlers struct {
	PaymentSvc      paymentservice.IPaymentService
	VerificationSvc verification.IVerificationService
	Hub             *websocket.Hub
	Logger          zerolog.Logger
	Config          *config.Config
}

func New(
	paymentSvc paymentservice.IPaymentService,
	verificationSvc verification.IVerificationService,
	hub *websocket.Hub,
	logger zerolog.Logger,
	config *config.Config,
) *Handlers {
	return &Handlers{
		PaymentSvc:      paymentSvc,
		VerificationSvc: verificationSvc,
		Hub:             hub,
		Logger:          logger,
		Config:          config,
	}
}

func (h *Handlers) SetupHandlers(router *gin.Engine) {
	paymentHandler := NewPaymentHandler(h.PaymentSvc, h.VerificationSvc, h.Logger)
	healthHandler := NewHealthHandler()

	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	// Realtime payment status push for dashboards.
	router.GET("/status", func(c *gin.Context) {
		h.Hub.HandleConnection(c.Writer, c.Request)
	})

	v1 := router.Group("/v1")
	{
		payments := v1.Group("/payments")
		payments.Use(middleware.APIKeyAuth(h.Config.Security.APIKey))
		{
			payments.POST("", paymentHandler.Submit)
			payments.GET("/:id", paymentHandler.Get)
		}

		admin := v1.Group("/payments")
		admin.Use(middleware.AdminAuth(h.Config.JWT.Secret))
		{
			admin.POST("/:id/verify", paymentHandler.VerifyNow)
			admin.POST("/:id/reject", paymentHandler.Reject)
			admin.POST("/:id/approve", paymentHandler.Approve)
		}

		stats := v1.Group("/stats")
		stats.Use(middleware.APIKeyAuth(h.Config.Security.APIKey))
		{
			stats.GET("", paymentHandler.Stats)
		}
	}
}
