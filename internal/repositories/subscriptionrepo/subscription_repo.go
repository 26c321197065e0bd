package subscriptionrepo

import (
	"context"
	"time"

	"github.com/lumenlearn/pvs/internal/domain"
)

type ISubscriptionRepository interface {
	// Upsert activates a subscription for the user, replacing any existing
	// row for the same user id. Safe to call twice for the same user/plan.
	Upsert(ctx context.Context, userID, planID, paymentID string, periodStart, periodEnd time.Time) error
	GetByUser(ctx context.Context, userID string) (*domain.Subscription, error)
}
