package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lumenlearn/pvs/internal/domain"
	"github.com/lumenlearn/pvs/internal/repositories/subscriptionrepo"
)

const subscriptionPeriod = 30 * 24 * time.Hour

// Activator applies the side effect of a confirmed payment: one active
// subscription per user, upserted on user id, so a repeated call for the
// same payment cannot create duplicates.
type Activator struct {
	subscriptionRepo subscriptionrepo.ISubscriptionRepository
	logger           zerolog.Logger
}

func NewActivator(subscriptionRepo subscriptionrepo.ISubscriptionRepository, logger zerolog.Logger) *Activator {
	return &Activator{
		subscriptionRepo: subscriptionRepo,
		logger:           logger,
	}
}

func (a *Activator) Activate(ctx context.Context, p *domain.Payment) error {
	start := time.Now()
	end := start.Add(subscriptionPeriod)

	if err := a.subscriptionRepo.Upsert(ctx, p.UserID, p.PlanID, p.ID, start, end); err != nil {
		return fmt.Errorf("failed to activate subscription for payment %s: %w", p.ID, err)
	}

	a.logger.Info().
		Str("payment_id", p.ID).
		Str("user_id", p.UserID).
		Str("plan_id", p.PlanID).
		Time("period_end", end).
		Msg("Subscription activated")
	return nil
}
