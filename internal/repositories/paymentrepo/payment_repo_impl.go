package paymentrepo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sqlc-dev/pqtype"

	"github.com/lumenlearn/pvs/internal/domain"
	"github.com/lumenlearn/pvs/internal/infrastructure/database"
)

type paymentRepositoryImpl struct {
	db     *sql.DB
	logger zerolog.Logger
}

func New(db *database.DBManager, logger zerolog.Logger) IPaymentRepository {
	return &paymentRepositoryImpl{
		db:     db.Db,
		logger: logger,
	}
}

const paymentColumns = `id, user_id, plan_id, tx_ref, from_address, to_address, amount, currency,
	method_symbol, proof_image_url, proof_image_hash, status, confirmations,
	required_confirmations, block_height, block_hash, network_fee,
	verification_attempts, last_attempt_at, verified_at, expires_at, failure_reason,
	extracted_amount, extracted_currency, extracted_method, extracted_to_address,
	ai_confidence, fraud_score, validation_status, ai_analysis,
	auto_approved, admin_override, admin_notes, created_at, updated_at`

func (r *paymentRepositoryImpl) Create(ctx context.Context, p *domain.Payment) error {
	query := `INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31,$32,$33,$34,$35)`

	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.UserID, p.PlanID, p.TxRef, p.FromAddress, p.ToAddress, p.Amount, p.Currency,
		p.MethodSymbol, p.ProofImageURL, p.ProofImageHash, string(p.Status), p.Confirmations,
		p.RequiredConfirmations, p.BlockHeight, p.BlockHash, p.NetworkFee,
		p.VerificationAttempts, p.LastAttemptAt, p.VerifiedAt, p.ExpiresAt, p.FailureReason,
		p.ExtractedAmount, p.ExtractedCurrency, p.ExtractedMethod, p.ExtractedToAddr,
		p.AIConfidence, p.FraudScore, p.ValidationStatus,
		pqtype.NullRawMessage{RawMessage: p.AIAnalysis, Valid: p.AIAnalysis != nil},
		p.AutoApproved, p.AdminOverride, p.AdminNotes, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("payment_id", p.ID).Msg("Failed to create payment")
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (r *paymentRepositoryImpl) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	p, err := scanPayment(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("payment_id", id).Msg("Failed to get payment")
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return p, nil
}

func (r *paymentRepositoryImpl) LoadDue(ctx context.Context, maxAttempts, limit int, now time.Time) ([]domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments
		WHERE status IN ('pending', 'verifying')
		  AND verification_attempts < $1
		  AND expires_at > $2
		ORDER BY created_at ASC
		LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, maxAttempts, now, limit)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to load due payments")
		return nil, fmt.Errorf("failed to load due payments: %w", err)
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

func (r *paymentRepositoryImpl) Claim(ctx context.Context, id string, now time.Time) (*domain.Payment, error) {
	query := `UPDATE payments
		SET status = 'verifying',
		    verification_attempts = verification_attempts + 1,
		    last_attempt_at = $2,
		    updated_at = $2
		WHERE id = $1 AND status IN ('pending', 'verifying')
		RETURNING ` + paymentColumns

	p, err := scanPayment(r.db.QueryRowContext(ctx, query, id, now))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("payment_id", id).Msg("Failed to claim payment")
		return nil, fmt.Errorf("failed to claim payment: %w", err)
	}
	return p, nil
}

func (r *paymentRepositoryImpl) ApplyResult(ctx context.Context, p *domain.Payment) error {
	query := `UPDATE payments
		SET status = $2,
		    confirmations = GREATEST(confirmations, $3),
		    block_height = COALESCE($4, block_height),
		    block_hash = COALESCE($5, block_hash),
		    network_fee = COALESCE($6, network_fee),
		    verified_at = COALESCE($7, verified_at),
		    failure_reason = $8,
		    updated_at = $9
		WHERE id = $1 AND status NOT IN ('confirmed', 'failed', 'rejected', 'expired')`

	res, err := r.db.ExecContext(ctx, query,
		p.ID, string(p.Status), p.Confirmations,
		p.BlockHeight, p.BlockHash, p.NetworkFee, p.VerifiedAt,
		p.FailureReason, time.Now(),
	)
	if err != nil {
		r.logger.Error().Err(err).Str("payment_id", p.ID).Str("status", string(p.Status)).Msg("Failed to apply verification result")
		return fmt.Errorf("failed to apply verification result: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("payment %s is terminal, result not applied", p.ID)
	}
	return nil
}

func (r *paymentRepositoryImpl) MarkExpired(ctx context.Context, id string) error {
	query := `UPDATE payments
		SET status = 'expired', failure_reason = 'payment window expired', updated_at = $2
		WHERE id = $1 AND status IN ('pending', 'verifying')`

	if _, err := r.db.ExecContext(ctx, query, id, time.Now()); err != nil {
		r.logger.Error().Err(err).Str("payment_id", id).Msg("Failed to mark payment expired")
		return fmt.Errorf("failed to mark payment expired: %w", err)
	}
	return nil
}

func (r *paymentRepositoryImpl) AdminOverride(ctx context.Context, id string, status domain.PaymentStatus, notes string) error {
	query := `UPDATE payments
		SET status = $2,
		    admin_override = TRUE,
		    admin_notes = $3,
		    verified_at = CASE WHEN $2 = 'confirmed' THEN COALESCE(verified_at, $4) ELSE verified_at END,
		    updated_at = $4
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, string(status), notes, time.Now())
	if err != nil {
		r.logger.Error().Err(err).Str("payment_id", id).Str("status", string(status)).Msg("Failed to apply admin override")
		return fmt.Errorf("failed to apply admin override: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("payment %s not found", id)
	}
	return nil
}

func (r *paymentRepositoryImpl) CountByImageHash(ctx context.Context, hash, excludeID string) (int, error) {
	if hash == "" {
		return 0, nil
	}
	var count int
	query := `SELECT COUNT(*) FROM payments WHERE proof_image_hash = $1 AND id <> $2`
	if err := r.db.QueryRowContext(ctx, query, hash, excludeID).Scan(&count); err != nil {
		r.logger.Error().Err(err).Msg("Failed to count payments by image hash")
		return 0, fmt.Errorf("failed to count payments by image hash: %w", err)
	}
	return count, nil
}

func (r *paymentRepositoryImpl) CountByTxRef(ctx context.Context, txRef, excludeID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM payments WHERE tx_ref = $1 AND id <> $2`
	if err := r.db.QueryRowContext(ctx, query, txRef, excludeID).Scan(&count); err != nil {
		r.logger.Error().Err(err).Msg("Failed to count payments by tx ref")
		return 0, fmt.Errorf("failed to count payments by tx ref: %w", err)
	}
	return count, nil
}

func (r *paymentRepositoryImpl) Stats(ctx context.Context, windowHours int) (*domain.PaymentStats, error) {
	since := time.Now().Add(-time.Duration(windowHours) * time.Hour)

	stats := &domain.PaymentStats{
		WindowHours:     windowHours,
		StatusBreakdown: make(map[string]int),
	}

	query := `SELECT status, COUNT(*), COALESCE(AVG(verification_attempts), 0)
		FROM payments WHERE created_at >= $1 GROUP BY status`
	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to query payment stats")
		return nil, fmt.Errorf("failed to query payment stats: %w", err)
	}
	defer rows.Close()

	var weightedAttempts float64
	for rows.Next() {
		var status string
		var count int
		var avgAttempts float64
		if err := rows.Scan(&status, &count, &avgAttempts); err != nil {
			return nil, fmt.Errorf("failed to scan payment stats: %w", err)
		}
		stats.StatusBreakdown[status] = count
		stats.TotalPayments += int64(count)
		weightedAttempts += avgAttempts * float64(count)
	}
	if stats.TotalPayments > 0 {
		stats.AverageAttempts = weightedAttempts / float64(stats.TotalPayments)
	}
	return stats, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var p domain.Payment
	var status, validationStatus string
	var blockHeight sql.NullInt64
	var blockHash, failureReason, extractedCurrency, extractedMethod, extractedTo, adminNotes sql.NullString
	var networkFee, extractedAmount sql.NullFloat64
	var lastAttemptAt, verifiedAt sql.NullTime
	var aiAnalysis pqtype.NullRawMessage

	err := row.Scan(
		&p.ID, &p.UserID, &p.PlanID, &p.TxRef, &p.FromAddress, &p.ToAddress, &p.Amount, &p.Currency,
		&p.MethodSymbol, &p.ProofImageURL, &p.ProofImageHash, &status, &p.Confirmations,
		&p.RequiredConfirmations, &blockHeight, &blockHash, &networkFee,
		&p.VerificationAttempts, &lastAttemptAt, &verifiedAt, &p.ExpiresAt, &failureReason,
		&extractedAmount, &extractedCurrency, &extractedMethod, &extractedTo,
		&p.AIConfidence, &p.FraudScore, &validationStatus, &aiAnalysis,
		&p.AutoApproved, &p.AdminOverride, &adminNotes, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Status = domain.PaymentStatus(status)
	p.ValidationStatus = validationStatus
	if blockHeight.Valid {
		p.BlockHeight = &blockHeight.Int64
	}
	if blockHash.Valid {
		p.BlockHash = &blockHash.String
	}
	if networkFee.Valid {
		p.NetworkFee = &networkFee.Float64
	}
	if lastAttemptAt.Valid {
		t := lastAttemptAt.Time
		p.LastAttemptAt = &t
	}
	if verifiedAt.Valid {
		t := verifiedAt.Time
		p.VerifiedAt = &t
	}
	if extractedAmount.Valid {
		p.ExtractedAmount = &extractedAmount.Float64
	}
	p.FailureReason = failureReason.String
	p.ExtractedCurrency = extractedCurrency.String
	p.ExtractedMethod = extractedMethod.String
	p.ExtractedToAddr = extractedTo.String
	p.AdminNotes = adminNotes.String
	if aiAnalysis.Valid {
		p.AIAnalysis = aiAnalysis.RawMessage
	}
	return &p, nil
}
