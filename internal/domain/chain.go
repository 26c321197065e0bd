package domain

import "encoding/json"

type ChainFamily string

const (
	ChainFamilyUTXO    ChainFamily = "utxo"
	ChainFamilyAccount ChainFamily = "account"
)

// VerifyRequest is the chain-agnostic input to a chain adapter.
type VerifyRequest struct {
	TxRef          string
	ExpectedTo     string
	ExpectedAmount float64
	Epsilon        float64
}

// VerificationResult is the normalized outcome of one explorer lookup.
//
// Success=false signals an infrastructure or transient failure (network,
// rate limit, malformed response) and must never be read as "transaction
// invalid". Confirmed is only meaningful when Success is true.
type VerificationResult struct {
	Success               bool            `json:"success"`
	Found                 bool            `json:"found"`
	Confirmed             bool            `json:"confirmed"`
	Mismatch              bool            `json:"mismatch"`
	MismatchReason        string          `json:"mismatch_reason,omitempty"`
	Confirmations         int             `json:"confirmations"`
	RequiredConfirmations int             `json:"required_confirmations"`
	BlockHeight           *int64          `json:"block_height,omitempty"`
	BlockHash             *string         `json:"block_hash,omitempty"`
	NetworkFee            *float64        `json:"network_fee,omitempty"`
	Error                 string          `json:"error,omitempty"`
	RawResponse           json.RawMessage `json:"raw_response,omitempty"`
}
