package domain

import (
	"encoding/json"
	"time"
)

type AttemptType string

const (
	AttemptAutomatic AttemptType = "automatic"
	AttemptManual    AttemptType = "manual"
)

type AttemptOutcome string

const (
	OutcomeConfirmed AttemptOutcome = "confirmed"
	OutcomePending   AttemptOutcome = "pending"
	OutcomeMismatch  AttemptOutcome = "mismatch"
	OutcomeError     AttemptOutcome = "error"
	OutcomeExpired   AttemptOutcome = "expired"
)

// VerificationAttempt is an append-only audit row, one per verification pass
// over a payment. Never mutated or deleted.
type VerificationAttempt struct {
	ID          string          `json:"id" db:"id"`
	PaymentID   string          `json:"payment_id" db:"payment_id"`
	AttemptType AttemptType     `json:"attempt_type" db:"attempt_type"`
	Outcome     AttemptOutcome  `json:"outcome" db:"outcome"`
	RawResponse json.RawMessage `json:"raw_response" db:"raw_response"`
	ErrorText   string          `json:"error_text" db:"error_text"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}
