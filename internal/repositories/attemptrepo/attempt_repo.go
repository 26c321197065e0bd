package attemptrepo

import (
	"context"

	"github.com/lumenlearn/pvs/internal/domain"
)

// IAttemptRepository is append-only: attempts are audit rows, never mutated
// or deleted.
type IAttemptRepository interface {
	Append(ctx context.Context, attempt *domain.VerificationAttempt) error
	ListByPayment(ctx context.Context, paymentID string, limit int) ([]domain.VerificationAttempt, error)
}
