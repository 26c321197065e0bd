package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	paymentservice "github.com/lumenlearn/pvs/internal/application/payment"
	"github.com/lumenlearn/pvs/internal/application/verification"
	"github.com/lumenlearn/pvs/internal/server/handlers"
	"github.com/lumenlearn/pvs/internal/server/websocket"
	"github.com/lumenlearn/pvs/pkg/config"
)

type Server struct {
	PaymentSvc      paymentservice.IPaymentService
	VerificationSvc verification.IVerificationService
	Cfg             *config.Config
	Logger          zerolog.Logger
	Router          *gin.Engine
	httpServer      *http.Server
	Hub             *websocket.Hub
}

func New(cfg *config.Config, paymentSvc paymentservice.IPaymentService, verificationSvc verification.IVerificationService, logger zerolog.Logger, hub *websocket.Hub) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	return &Server{
		Cfg:             cfg,
		PaymentSvc:      paymentSvc,
		VerificationSvc: verificationSvc,
		Logger:          logger,
		Router:          router,
		Hub:             hub,
	}
}

func (s *Server) SetupRouter() {
	handler := handlers.New(
		s.PaymentSvc,
		s.VerificationSvc,
		s.Hub,
		s.Logger,
		s.Cfg,
	)
	handler.SetupHandlers(s.Router)
}

// Start runs the HTTP server and blocks until SIGINT or SIGTERM, then drains
// in-flight requests before returning.
func (s *Server) Start() {
	s.SetupRouter()

	s.httpServer = &http.Server{
		Addr:         s.Cfg.Server.Host + ":" + s.Cfg.Server.Port,
		Handler:      s.Router,
		ReadTimeout:  20 * time.Second,
		WriteTimeout: 20 * time.Second,
	}

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)

	s.Logger.Info().Msgf("Starting server on %s", s.httpServer.Addr)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.Logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-stopChan
	s.Logger.Info().Msg("Shutdown signal received, shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.Logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	s.Logger.Info().Msg("Server exited gracefully")
}
