package attemptrepo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/sqlc-dev/pqtype"

	"github.com/lumenlearn/pvs/internal/domain"
	"github.com/lumenlearn/pvs/internal/infrastructure/database"
)

type attemptRepositoryImpl struct {
	db     *sql.DB
	logger zerolog.Logger
}

func New(db *database.DBManager, logger zerolog.Logger) IAttemptRepository {
	return &attemptRepositoryImpl{
		db:     db.Db,
		logger: logger,
	}
}

func (r *attemptRepositoryImpl) Append(ctx context.Context, attempt *domain.VerificationAttempt) error {
	query := `INSERT INTO verification_attempts
		(id, payment_id, attempt_type, outcome, raw_response, error_text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query,
		attempt.ID,
		attempt.PaymentID,
		string(attempt.AttemptType),
		string(attempt.Outcome),
		pqtype.NullRawMessage{RawMessage: attempt.RawResponse, Valid: attempt.RawResponse != nil},
		attempt.ErrorText,
		attempt.CreatedAt,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("payment_id", attempt.PaymentID).Msg("Failed to append verification attempt")
		return fmt.Errorf("failed to append verification attempt: %w", err)
	}
	return nil
}

func (r *attemptRepositoryImpl) ListByPayment(ctx context.Context, paymentID string, limit int) ([]domain.VerificationAttempt, error) {
	query := `SELECT id, payment_id, attempt_type, outcome, raw_response, error_text, created_at
		FROM verification_attempts
		WHERE payment_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, paymentID, limit)
	if err != nil {
		r.logger.Error().Err(err).Str("payment_id", paymentID).Msg("Failed to list verification attempts")
		return nil, fmt.Errorf("failed to list verification attempts: %w", err)
	}
	defer rows.Close()

	var attempts []domain.VerificationAttempt
	for rows.Next() {
		var a domain.VerificationAttempt
		var attemptType, outcome string
		var errorText sql.NullString
		var raw pqtype.NullRawMessage
		if err := rows.Scan(&a.ID, &a.PaymentID, &attemptType, &outcome, &raw, &errorText, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan verification attempt: %w", err)
		}
		a.AttemptType = domain.AttemptType(attemptType)
		a.Outcome = domain.AttemptOutcome(outcome)
		a.ErrorText = errorText.String
		if raw.Valid {
			a.RawResponse = raw.RawMessage
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
