package payment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lumenlearn/pvs/internal/application/fraud"
	"github.com/lumenlearn/pvs/internal/domain"
	"github.com/lumenlearn/pvs/internal/infrastructure/ai"
	"github.com/lumenlearn/pvs/internal/repositories/paymentrepo"
	"github.com/lumenlearn/pvs/pkg/config"
)

type SubmitInput struct {
	UserID        string  `json:"user_id" binding:"required"`
	PlanID        string  `json:"plan_id" binding:"required"`
	TxRef         string  `json:"tx_ref" binding:"required"`
	FromAddress   string  `json:"from_address"`
	Amount        float64 `json:"amount" binding:"required"`
	Currency      string  `json:"currency" binding:"required"`
	MethodSymbol  string  `json:"method_symbol" binding:"required"`
	ProofImageURL string  `json:"proof_image_url"`
	ProofImage    []byte  `json:"proof_image,omitempty"`
}

type IPaymentService interface {
	// Submit creates the payment record and runs the synchronous fraud
	// pass. It succeeds once the record exists, regardless of fraud score;
	// verification happens asynchronously.
	Submit(ctx context.Context, in SubmitInput) (*domain.Payment, error)
	Get(ctx context.Context, id string) (*domain.Payment, error)
	Stats(ctx context.Context, windowHours int) (*domain.PaymentStats, error)
	AdminOverride(ctx context.Context, id string, status domain.PaymentStatus, notes string) (*domain.Payment, error)
}

type paymentService struct {
	paymentRepo paymentrepo.IPaymentRepository
	extractor   ai.ReceiptExtractor
	scorer      *fraud.Scorer
	cfg         *config.Config
	logger      zerolog.Logger
	activate    func(ctx context.Context, p *domain.Payment) error
}

func New(
	paymentRepo paymentrepo.IPaymentRepository,
	extractor ai.ReceiptExtractor,
	scorer *fraud.Scorer,
	cfg *config.Config,
	logger zerolog.Logger,
	activate func(ctx context.Context, p *domain.Payment) error,
) IPaymentService {
	return &paymentService{
		paymentRepo: paymentRepo,
		extractor:   extractor,
		scorer:      scorer,
		cfg:         cfg,
		logger:      logger,
		activate:    activate,
	}
}

func (s *paymentService) Submit(ctx context.Context, in SubmitInput) (*domain.Payment, error) {
	method, ok := s.cfg.Method(in.MethodSymbol)
	if !ok {
		return nil, fmt.Errorf("unsupported payment method: %s", in.MethodSymbol)
	}

	now := time.Now()
	p := &domain.Payment{
		ID:                    uuid.New().String(),
		UserID:                in.UserID,
		PlanID:                in.PlanID,
		TxRef:                 in.TxRef,
		FromAddress:           in.FromAddress,
		ToAddress:             method.RecipientAddress,
		Amount:                in.Amount,
		Currency:              in.Currency,
		MethodSymbol:          in.MethodSymbol,
		ProofImageURL:         in.ProofImageURL,
		Status:                domain.StatusPending,
		RequiredConfirmations: method.RequiredConfirmations,
		ExpiresAt:             now.Add(s.cfg.Verification.PaymentTTL),
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if len(in.ProofImage) > 0 {
		p.ProofImageHash = hashProof(in.ProofImage)
	}

	assessment := s.assessFraud(ctx, p, method)
	p.FraudScore = assessment.FraudScore
	p.AIConfidence = assessment.Confidence
	p.AutoApproved = assessment.AutoApproved
	p.ValidationStatus = string(assessment.ValidationStatus)

	if err := s.paymentRepo.Create(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("payment_id", p.ID).
		Str("user_id", p.UserID).
		Str("method", p.MethodSymbol).
		Float64("fraud_score", p.FraudScore).
		Str("validation_status", p.ValidationStatus).
		Msg("Payment submitted")

	return p, nil
}

// assessFraud runs the submission-time fraud pass. The duplicate lookups run
// unconditionally; an extraction failure degrades the assessment instead of
// failing the submission.
func (s *paymentService) assessFraud(ctx context.Context, p *domain.Payment, method config.PaymentMethodConfig) domain.FraudAssessment {
	dupImages, err := s.paymentRepo.CountByImageHash(ctx, p.ProofImageHash, p.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("payment_id", p.ID).Msg("Duplicate image lookup failed")
	}
	dupRefs, err := s.paymentRepo.CountByTxRef(ctx, p.TxRef, p.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("payment_id", p.ID).Msg("Duplicate reference lookup failed")
	}

	input := fraud.Input{
		DuplicateImages: dupImages,
		DuplicateRefs:   dupRefs,
		DeclaredAmount:  p.Amount,
		DeclaredMethod:  p.MethodSymbol,
	}

	if p.ProofImageURL == "" {
		input.ExtractFailed = true
		return s.scorer.Score(input)
	}

	extractCtx, cancel := context.WithTimeout(ctx, s.cfg.Extractor.Timeout)
	defer cancel()

	receipt, err := s.extractor.Extract(extractCtx, p.ProofImageURL, domain.VerifyRequest{
		TxRef:          p.TxRef,
		ExpectedTo:     method.RecipientAddress,
		ExpectedAmount: p.Amount,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("payment_id", p.ID).Msg("Receipt extraction failed, degrading fraud assessment")
		input.ExtractFailed = true
		return s.scorer.Score(input)
	}

	input.Receipt = receipt
	if receipt.Amount != nil {
		p.ExtractedAmount = receipt.Amount
	}
	p.ExtractedCurrency = receipt.Currency
	p.ExtractedMethod = receipt.Method
	p.ExtractedToAddr = receipt.ToAddress
	p.AIAnalysis = receipt.RawAnalysis

	return s.scorer.Score(input)
}

func (s *paymentService) Get(ctx context.Context, id string) (*domain.Payment, error) {
	return s.paymentRepo.GetByID(ctx, id)
}

func (s *paymentService) Stats(ctx context.Context, windowHours int) (*domain.PaymentStats, error) {
	if windowHours <= 0 {
		windowHours = 24
	}
	return s.paymentRepo.Stats(ctx, windowHours)
}

// AdminOverride applies a terminal rejection or a forced confirmation.
// A forced confirmation still activates the subscription; the upsert is
// idempotent so repeating it is harmless.
func (s *paymentService) AdminOverride(ctx context.Context, id string, status domain.PaymentStatus, notes string) (*domain.Payment, error) {
	if status != domain.StatusRejected && status != domain.StatusConfirmed {
		return nil, fmt.Errorf("admin override must target rejected or confirmed, got %s", status)
	}

	p, err := s.paymentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("payment not found: %s", id)
	}

	if err := s.paymentRepo.AdminOverride(ctx, id, status, notes); err != nil {
		return nil, err
	}

	p.Status = status
	p.AdminOverride = true
	p.AdminNotes = notes

	if status == domain.StatusConfirmed && s.activate != nil {
		if err := s.activate(ctx, p); err != nil {
			s.logger.Error().Err(err).Str("payment_id", id).Msg("Failed to activate subscription after forced confirmation")
			return nil, err
		}
	}

	s.logger.Info().
		Str("payment_id", id).
		Str("status", string(status)).
		Msg("Admin override applied")
	return p, nil
}

func hashProof(image []byte) string {
	digest := sha256.Sum256(image)
	return hex.EncodeToString(digest[:])
}
