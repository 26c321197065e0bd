package domain

import (
	"encoding/json"
	"time"
)

type PaymentStatus string

const (
	StatusPending   PaymentStatus = "pending"
	StatusVerifying PaymentStatus = "verifying"
	StatusConfirmed PaymentStatus = "confirmed"
	StatusFailed    PaymentStatus = "failed"
	StatusRejected  PaymentStatus = "rejected"
	StatusExpired   PaymentStatus = "expired"
)

// IsTerminal reports whether no automatic transition leaves the status.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case StatusConfirmed, StatusFailed, StatusRejected, StatusExpired:
		return true
	}
	return false
}

var transitions = map[PaymentStatus][]PaymentStatus{
	StatusPending:   {StatusVerifying, StatusExpired, StatusRejected},
	StatusVerifying: {StatusPending, StatusConfirmed, StatusFailed, StatusExpired, StatusRejected},
}

// CanTransition reports whether the automatic state machine allows
// from -> to. Admin rejection is permitted from any non-terminal state and
// is encoded in the table above.
func CanTransition(from, to PaymentStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Payment is the unit of work: a user-submitted claim that a crypto
// transaction paying for a plan exists on chain.
type Payment struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"user_id" db:"user_id"`
	PlanID string `json:"plan_id" db:"plan_id"`

	// Claim as submitted by the user.
	TxRef          string  `json:"tx_ref" db:"tx_ref"`
	FromAddress    string  `json:"from_address" db:"from_address"`
	ToAddress      string  `json:"to_address" db:"to_address"`
	Amount         float64 `json:"amount" db:"amount"`
	Currency       string  `json:"currency" db:"currency"`
	MethodSymbol   string  `json:"method_symbol" db:"method_symbol"`
	ProofImageURL  string  `json:"proof_image_url" db:"proof_image_url"`
	ProofImageHash string  `json:"proof_image_hash" db:"proof_image_hash"`

	// Verification state.
	Status                PaymentStatus `json:"status" db:"status"`
	Confirmations         int           `json:"confirmations" db:"confirmations"`
	RequiredConfirmations int           `json:"required_confirmations" db:"required_confirmations"`
	BlockHeight           *int64        `json:"block_height" db:"block_height"`
	BlockHash             *string       `json:"block_hash" db:"block_hash"`
	NetworkFee            *float64      `json:"network_fee" db:"network_fee"`
	VerificationAttempts  int           `json:"verification_attempts" db:"verification_attempts"`
	LastAttemptAt         *time.Time    `json:"last_attempt_at" db:"last_attempt_at"`
	VerifiedAt            *time.Time    `json:"verified_at" db:"verified_at"`
	ExpiresAt             time.Time     `json:"expires_at" db:"expires_at"`
	FailureReason         string        `json:"failure_reason" db:"failure_reason"`

	// Fraud state, fixed at submission time.
	ExtractedAmount   *float64        `json:"extracted_amount" db:"extracted_amount"`
	ExtractedCurrency string          `json:"extracted_currency" db:"extracted_currency"`
	ExtractedMethod   string          `json:"extracted_method" db:"extracted_method"`
	ExtractedToAddr   string          `json:"extracted_to_address" db:"extracted_to_address"`
	AIConfidence      float64         `json:"ai_confidence" db:"ai_confidence"`
	FraudScore        float64         `json:"fraud_score" db:"fraud_score"`
	ValidationStatus  string          `json:"validation_status" db:"validation_status"`
	AIAnalysis        json.RawMessage `json:"ai_analysis,omitempty" db:"ai_analysis"`
	AutoApproved      bool            `json:"auto_approved" db:"auto_approved"`
	AdminOverride     bool            `json:"admin_override" db:"admin_override"`
	AdminNotes        string          `json:"admin_notes" db:"admin_notes"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Expired reports whether the payment's verification window has closed.
func (p *Payment) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && now.After(p.ExpiresAt)
}

// PaymentStats is the read-only aggregate exposed to dashboards.
type PaymentStats struct {
	WindowHours     int            `json:"window_hours"`
	TotalPayments   int64          `json:"total_payments"`
	StatusBreakdown map[string]int `json:"status_breakdown"`
	AverageAttempts float64        `json:"average_attempts"`
}
