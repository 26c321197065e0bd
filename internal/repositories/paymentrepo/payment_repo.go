package paymentrepo

import (
	"context"
	"time"

	"github.com/lumenlearn/pvs/internal/domain"
)

type IPaymentRepository interface {
	Create(ctx context.Context, p *domain.Payment) error
	GetByID(ctx context.Context, id string) (*domain.Payment, error)

	// LoadDue selects payments needing a verification pass: non-terminal,
	// attempts below the maximum, not yet expired, oldest first, capped at
	// limit.
	LoadDue(ctx context.Context, maxAttempts, limit int, now time.Time) ([]domain.Payment, error)

	// Claim marks a payment verifying and increments its attempt counter in
	// one statement. Returns nil when the payment is already terminal.
	Claim(ctx context.Context, id string, now time.Time) (*domain.Payment, error)

	// ApplyResult writes back the verification state of one pass.
	ApplyResult(ctx context.Context, p *domain.Payment) error

	MarkExpired(ctx context.Context, id string) error
	AdminOverride(ctx context.Context, id string, status domain.PaymentStatus, notes string) error

	CountByImageHash(ctx context.Context, hash, excludeID string) (int, error)
	CountByTxRef(ctx context.Context, txRef, excludeID string) (int, error)

	Stats(ctx context.Context, windowHours int) (*domain.PaymentStats, error)
}
