package subscription

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/lumenlearn/pvs/internal/domain"
)

type upsertCall struct {
	userID, planID, paymentID string
	periodStart, periodEnd    time.Time
}

type fakeSubscriptionRepo struct {
	calls []upsertCall
	err   error
}

func (r *fakeSubscriptionRepo) Upsert(ctx context.Context, userID, planID, paymentID string, periodStart, periodEnd time.Time) error {
	if r.err != nil {
		return r.err
	}
	r.calls = append(r.calls, upsertCall{userID, planID, paymentID, periodStart, periodEnd})
	return nil
}

func (r *fakeSubscriptionRepo) GetByUser(ctx context.Context, userID string) (*domain.Subscription, error) {
	return nil, nil
}

func confirmedPayment() *domain.Payment {
	return &domain.Payment{
		ID:     "pay-1",
		UserID: "user-1",
		PlanID: "plan-pro",
		Status: domain.StatusConfirmed,
	}
}

func TestActivate(t *testing.T) {
	repo := &fakeSubscriptionRepo{}
	a := NewActivator(repo, zerolog.Nop())

	if err := a.Activate(context.Background(), confirmedPayment()); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	if len(repo.calls) != 1 {
		t.Fatalf("upsert calls = %d, want 1", len(repo.calls))
	}
	call := repo.calls[0]
	if call.userID != "user-1" || call.planID != "plan-pro" || call.paymentID != "pay-1" {
		t.Errorf("upsert call = %+v", call)
	}

	period := call.periodEnd.Sub(call.periodStart)
	if period != 30*24*time.Hour {
		t.Errorf("subscription period = %v, want 30 days", period)
	}
}

func TestActivateRepeatable(t *testing.T) {
	repo := &fakeSubscriptionRepo{}
	a := NewActivator(repo, zerolog.Nop())

	p := confirmedPayment()
	if err := a.Activate(context.Background(), p); err != nil {
		t.Fatalf("first Activate: %v", err)
	}
	if err := a.Activate(context.Background(), p); err != nil {
		t.Fatalf("repeated Activate: %v", err)
	}
	// Both calls upsert on the same user; the store collapses them to one
	// active subscription.
	if len(repo.calls) != 2 {
		t.Fatalf("upsert calls = %d, want 2", len(repo.calls))
	}
	if repo.calls[0].userID != repo.calls[1].userID {
		t.Error("repeated activation targeted different users")
	}
}

func TestActivatePropagatesStoreError(t *testing.T) {
	repo := &fakeSubscriptionRepo{err: fmt.Errorf("connection refused")}
	a := NewActivator(repo, zerolog.Nop())

	if err := a.Activate(context.Background(), confirmedPayment()); err == nil {
		t.Fatal("store error swallowed")
	}
}
