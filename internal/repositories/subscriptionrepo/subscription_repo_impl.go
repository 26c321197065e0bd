package subscriptionrepo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lumenlearn/pvs/internal/domain"
	"github.com/lumenlearn/pvs/internal/infrastructure/database"
)

type subscriptionRepositoryImpl struct {
	db     *sql.DB
	logger zerolog.Logger
}

func New(db *database.DBManager, logger zerolog.Logger) ISubscriptionRepository {
	return &subscriptionRepositoryImpl{
		db:     db.Db,
		logger: logger,
	}
}

func (r *subscriptionRepositoryImpl) Upsert(ctx context.Context, userID, planID, paymentID string, periodStart, periodEnd time.Time) error {
	query := `INSERT INTO subscriptions
		(id, user_id, plan_id, status, period_start, period_end, payment_id, created_at, updated_at)
		VALUES ($1, $2, $3, 'active', $4, $5, $6, $7, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			plan_id = EXCLUDED.plan_id,
			status = 'active',
			period_start = EXCLUDED.period_start,
			period_end = EXCLUDED.period_end,
			payment_id = EXCLUDED.payment_id,
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		uuid.New().String(), userID, planID, periodStart, periodEnd, paymentID, time.Now(),
	)
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", userID).Str("plan_id", planID).Msg("Failed to upsert subscription")
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

func (r *subscriptionRepositoryImpl) GetByUser(ctx context.Context, userID string) (*domain.Subscription, error) {
	query := `SELECT id, user_id, plan_id, status, period_start, period_end, payment_id, created_at, updated_at
		FROM subscriptions WHERE user_id = $1`

	var s domain.Subscription
	var status string
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&s.ID, &s.UserID, &s.PlanID, &status, &s.PeriodStart, &s.PeriodEnd, &s.PaymentID, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to get subscription")
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	s.Status = domain.SubscriptionStatus(status)
	return &s, nil
}
