package verification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lumenlearn/pvs/internal/domain"
	"github.com/lumenlearn/pvs/internal/infrastructure/explorer"
	"github.com/lumenlearn/pvs/internal/repositories/attemptrepo"
	"github.com/lumenlearn/pvs/internal/repositories/paymentrepo"
	"github.com/lumenlearn/pvs/pkg/config"
)

// Broadcaster pushes payment status changes to subscribed clients.
type Broadcaster interface {
	BroadcastPayment(p domain.Payment)
}

// Activator applies the confirmed-payment side effect.
type Activator interface {
	Activate(ctx context.Context, p *domain.Payment) error
}

type IVerificationService interface {
	// Start launches the background loop: one immediate tick, then one tick
	// per polling interval. Ticks never overlap; a long tick delays the
	// next one.
	Start(ctx context.Context)

	// Stop halts the timer and waits for any in-flight batch to finish.
	Stop()

	// VerifyNow runs the same per-record verification routine the loop
	// uses, for admin-triggered re-checks. Returns whether the payment is
	// confirmed afterwards.
	VerifyNow(ctx context.Context, paymentID string) (bool, error)
}

type verificationService struct {
	paymentRepo paymentrepo.IPaymentRepository
	attemptRepo attemptrepo.IAttemptRepository
	registry    *explorer.Registry
	activator   Activator
	hub         Broadcaster
	cfg         config.VerificationConfig
	logger      zerolog.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func New(
	paymentRepo paymentrepo.IPaymentRepository,
	attemptRepo attemptrepo.IAttemptRepository,
	registry *explorer.Registry,
	activator Activator,
	hub Broadcaster,
	cfg config.VerificationConfig,
	logger zerolog.Logger,
) IVerificationService {
	return &verificationService{
		paymentRepo: paymentRepo,
		attemptRepo: attemptRepo,
		registry:    registry,
		activator:   activator,
		hub:         hub,
		cfg:         cfg,
		logger:      logger,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

func (s *verificationService) Start(ctx context.Context) {
	go func() {
		defer close(s.done)

		s.logger.Info().
			Dur("polling_interval", s.cfg.PollingInterval).
			Int("batch_size", s.cfg.BatchSize).
			Int("max_attempts", s.cfg.MaxAttempts).
			Msg("Starting payment verification scheduler")

		ticker := time.NewTicker(s.cfg.PollingInterval)
		defer ticker.Stop()

		s.runTick(ctx)

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("Payment verification scheduler stopped")
				return
			case <-s.stop:
				s.logger.Info().Msg("Payment verification scheduler stopped")
				return
			case <-ticker.C:
				s.runTick(ctx)
			}
		}
	}()
}

func (s *verificationService) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

// runTick selects one bounded batch and drives every record through a
// verification pass. Records are verified concurrently up to the worker
// cap; the tick returns only when the whole batch has finished.
func (s *verificationService) runTick(ctx context.Context) {
	payments, err := s.paymentRepo.LoadDue(ctx, s.cfg.MaxAttempts, s.cfg.BatchSize, time.Now())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load due payments")
		return
	}
	if len(payments) == 0 {
		return
	}

	semaphore := make(chan struct{}, s.cfg.ConcurrentWorkers)
	var wg sync.WaitGroup
	for i := range payments {
		p := payments[i]
		semaphore <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-semaphore }()
			s.verifyOne(ctx, p, domain.AttemptAutomatic)
		}()
	}
	wg.Wait()
}

func (s *verificationService) VerifyNow(ctx context.Context, paymentID string) (bool, error) {
	p, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return false, err
	}
	if p == nil {
		return false, fmt.Errorf("payment not found: %s", paymentID)
	}
	if p.Status.IsTerminal() {
		return p.Status == domain.StatusConfirmed, nil
	}

	s.verifyOne(ctx, *p, domain.AttemptManual)

	updated, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return false, err
	}
	return updated != nil && updated.Status == domain.StatusConfirmed, nil
}

// verifyOne runs a single verification pass over one payment: claim it,
// query the chain, record the attempt, apply the state transition. A panic
// in one pass is isolated so the rest of the batch still completes.
func (s *verificationService) verifyOne(ctx context.Context, p domain.Payment, attemptType domain.AttemptType) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("payment_id", p.ID).
				Interface("panic", r).
				Msg("Verification pass panicked")
			s.recordAttempt(ctx, p.ID, attemptType, domain.OutcomeError, nil, fmt.Sprintf("panic: %v", r))
		}
	}()

	now := time.Now()

	if p.Expired(now) {
		if err := s.paymentRepo.MarkExpired(ctx, p.ID); err != nil {
			s.logger.Error().Err(err).Str("payment_id", p.ID).Msg("Failed to expire payment")
			return
		}
		s.recordAttempt(ctx, p.ID, attemptType, domain.OutcomeExpired, nil, "")
		p.Status = domain.StatusExpired
		s.broadcast(p)
		s.logger.Info().Str("payment_id", p.ID).Msg("Payment expired")
		return
	}

	claimed, err := s.paymentRepo.Claim(ctx, p.ID, now)
	if err != nil {
		s.logger.Error().Err(err).Str("payment_id", p.ID).Msg("Failed to claim payment")
		return
	}
	if claimed == nil {
		// Already terminal; nothing to do.
		return
	}

	adapter, ok := s.registry.Adapter(claimed.MethodSymbol)
	if !ok {
		s.recordAttempt(ctx, claimed.ID, attemptType, domain.OutcomeError, nil,
			fmt.Sprintf("no chain adapter configured for method %s", claimed.MethodSymbol))
		s.failPayment(ctx, claimed, fmt.Sprintf("no chain adapter configured for method %s", claimed.MethodSymbol))
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	result := adapter.Verify(callCtx, domain.VerifyRequest{
		TxRef:          claimed.TxRef,
		ExpectedTo:     claimed.ToAddress,
		ExpectedAmount: claimed.Amount,
	})
	cancel()

	s.applyResult(ctx, claimed, attemptType, result)
}

// applyResult maps a normalized chain result onto the payment state machine.
func (s *verificationService) applyResult(ctx context.Context, p *domain.Payment, attemptType domain.AttemptType, result domain.VerificationResult) {
	switch {
	case !result.Success:
		// Transient infrastructure failure: retry until attempts exhaust.
		s.recordAttempt(ctx, p.ID, attemptType, domain.OutcomeError, result.RawResponse, result.Error)
		s.retryOrFail(ctx, p, "verification attempts exhausted: "+result.Error)

	case result.Mismatch:
		// Definitive mismatch: the on-chain facts cannot change, so waiting
		// for more confirmations is pointless.
		s.recordAttempt(ctx, p.ID, attemptType, domain.OutcomeMismatch, result.RawResponse, result.MismatchReason)
		s.mergeChainState(p, result)
		s.failPayment(ctx, p, result.MismatchReason)

	case result.Confirmed:
		s.recordAttempt(ctx, p.ID, attemptType, domain.OutcomeConfirmed, result.RawResponse, "")
		s.confirmPayment(ctx, p, result)

	default:
		// Found with insufficient depth, or not yet visible to the
		// explorer. Both are retried; a slow-to-propagate transaction must
		// not be rejected early.
		errText := ""
		if !result.Found {
			errText = "transaction not found by explorer"
		}
		s.recordAttempt(ctx, p.ID, attemptType, domain.OutcomePending, result.RawResponse, errText)
		s.mergeChainState(p, result)
		s.retryOrFail(ctx, p, "verification attempts exhausted before confirmation")
	}
}

func (s *verificationService) confirmPayment(ctx context.Context, p *domain.Payment, result domain.VerificationResult) {
	now := time.Now()
	p.Status = domain.StatusConfirmed
	p.VerifiedAt = &now
	s.mergeChainState(p, result)

	if err := s.paymentRepo.ApplyResult(ctx, p); err != nil {
		s.logger.Error().Err(err).Str("payment_id", p.ID).Msg("Failed to persist confirmation")
		return
	}

	s.logger.Info().
		Str("payment_id", p.ID).
		Str("tx_ref", p.TxRef).
		Int("confirmations", p.Confirmations).
		Msg("Payment confirmed")

	if err := s.activator.Activate(ctx, p); err != nil {
		s.logger.Error().Err(err).Str("payment_id", p.ID).Msg("Failed to activate subscription")
	}
	s.broadcast(*p)
}

func (s *verificationService) retryOrFail(ctx context.Context, p *domain.Payment, exhaustedReason string) {
	if p.VerificationAttempts >= s.cfg.MaxAttempts {
		p.Status = domain.StatusFailed
		p.FailureReason = exhaustedReason
	} else {
		p.Status = domain.StatusPending
	}

	if err := s.paymentRepo.ApplyResult(ctx, p); err != nil {
		s.logger.Error().Err(err).Str("payment_id", p.ID).Msg("Failed to persist verification result")
		return
	}
	if p.Status == domain.StatusFailed {
		s.logger.Warn().
			Str("payment_id", p.ID).
			Int("attempts", p.VerificationAttempts).
			Str("reason", p.FailureReason).
			Msg("Payment failed")
		s.broadcast(*p)
	}
}

func (s *verificationService) failPayment(ctx context.Context, p *domain.Payment, reason string) {
	p.Status = domain.StatusFailed
	p.FailureReason = reason

	if err := s.paymentRepo.ApplyResult(ctx, p); err != nil {
		s.logger.Error().Err(err).Str("payment_id", p.ID).Msg("Failed to persist failure")
		return
	}
	s.logger.Warn().
		Str("payment_id", p.ID).
		Str("tx_ref", p.TxRef).
		Str("reason", reason).
		Msg("Payment failed")
	s.broadcast(*p)
}

// mergeChainState copies chain facts onto the record. Confirmations only
// move forward; the store enforces the same monotonicity.
func (s *verificationService) mergeChainState(p *domain.Payment, result domain.VerificationResult) {
	if result.Confirmations > p.Confirmations {
		p.Confirmations = result.Confirmations
	}
	if result.BlockHeight != nil {
		p.BlockHeight = result.BlockHeight
	}
	if result.BlockHash != nil {
		p.BlockHash = result.BlockHash
	}
	if result.NetworkFee != nil {
		p.NetworkFee = result.NetworkFee
	}
}

// recordAttempt appends one audit row. Failures are logged but never abort
// the pass: the audit trail is best effort, the state machine is not.
func (s *verificationService) recordAttempt(ctx context.Context, paymentID string, attemptType domain.AttemptType, outcome domain.AttemptOutcome, raw []byte, errText string) {
	attempt := &domain.VerificationAttempt{
		ID:          uuid.New().String(),
		PaymentID:   paymentID,
		AttemptType: attemptType,
		Outcome:     outcome,
		RawResponse: raw,
		ErrorText:   errText,
		CreatedAt:   time.Now(),
	}
	if err := s.attemptRepo.Append(ctx, attempt); err != nil {
		s.logger.Error().Err(err).Str("payment_id", paymentID).Msg("Failed to record verification attempt")
	}
}

func (s *verificationService) broadcast(p domain.Payment) {
	if s.hub != nil {
		s.hub.BroadcastPayment(p)
	}
}
