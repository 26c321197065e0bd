package domain

import "time"

type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionExpired  SubscriptionStatus = "expired"
	SubscriptionCanceled SubscriptionStatus = "canceled"
)

// Subscription is the side effect of a confirmed payment. One active
// subscription per user; activation upserts on user_id.
type Subscription struct {
	ID          string             `json:"id" db:"id"`
	UserID      string             `json:"user_id" db:"user_id"`
	PlanID      string             `json:"plan_id" db:"plan_id"`
	Status      SubscriptionStatus `json:"status" db:"status"`
	PeriodStart time.Time          `json:"period_start" db:"period_start"`
	PeriodEnd   time.Time          `json:"period_end" db:"period_end"`
	PaymentID   string             `json:"payment_id" db:"payment_id"`
	CreatedAt   time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at" db:"updated_at"`
}
