package main

import (
	"context"

	"github.com/lumenlearn/pvs/internal/application/fraud"
	paymentservice "github.com/lumenlearn/pvs/internal/application/payment"
	"github.com/lumenlearn/pvs/internal/application/subscription"
	"github.com/lumenlearn/pvs/internal/application/verification"
	"github.com/lumenlearn/pvs/internal/infrastructure/ai"
	"github.com/lumenlearn/pvs/internal/infrastructure/database"
	"github.com/lumenlearn/pvs/internal/infrastructure/explorer"
	"github.com/lumenlearn/pvs/internal/repositories/attemptrepo"
	"github.com/lumenlearn/pvs/internal/repositories/paymentrepo"
	"github.com/lumenlearn/pvs/internal/repositories/subscriptionrepo"
	"github.com/lumenlearn/pvs/internal/server"
	"github.com/lumenlearn/pvs/internal/server/websocket"
	"github.com/lumenlearn/pvs/pkg/config"
	"github.com/lumenlearn/pvs/pkg/logger"
)

func main() {
	logger := logger.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.ShutDown()

	paymentRepo := paymentrepo.New(db, logger)
	attemptRepo := attemptrepo.New(db, logger)
	subscriptionRepo := subscriptionrepo.New(db, logger)

	registry, err := explorer.NewRegistry(cfg.PaymentMethods, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to build explorer registry")
	}

	extractor := ai.NewReceiptExtractor(cfg.Extractor, logger)
	scorer := fraud.NewScorer(cfg.Fraud)
	activator := subscription.NewActivator(subscriptionRepo, logger)

	paymentSvc := paymentservice.New(
		paymentRepo,
		extractor,
		scorer,
		cfg,
		logger,
		activator.Activate,
	)

	hub := websocket.NewHub(cfg.WebSocket, logger)

	verificationSvc := verification.New(
		paymentRepo,
		attemptRepo,
		registry,
		activator,
		hub,
		cfg.Verification,
		logger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	verificationSvc.Start(ctx)
	defer verificationSvc.Stop()

	srv := server.New(cfg, paymentSvc, verificationSvc, logger, hub)
	srv.Start()
}
