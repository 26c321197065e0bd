package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lumenlearn/pvs/internal/domain"
	"github.com/lumenlearn/pvs/pkg/config"
	"github.com/lumenlearn/pvs/pkg/currency"
)

const utxoDecimals = 8

// EsploraClient verifies UTXO-family transactions against an Esplora-style
// block explorer REST API.
type EsploraClient struct {
	method     config.PaymentMethodConfig
	httpClient *http.Client
	logger     zerolog.Logger
}

type esploraTx struct {
	TxID   string `json:"txid"`
	Fee    int64  `json:"fee"`
	Status struct {
		Confirmed   bool   `json:"confirmed"`
		BlockHeight int64  `json:"block_height"`
		BlockHash   string `json:"block_hash"`
		BlockTime   int64  `json:"block_time"`
	} `json:"status"`
	Vout []struct {
		ScriptPubKeyAddress string `json:"scriptpubkey_address"`
		Value               int64  `json:"value"`
	} `json:"vout"`
}

func NewEsploraClient(method config.PaymentMethodConfig, logger zerolog.Logger) *EsploraClient {
	return &EsploraClient{
		method:     method,
		httpClient: newHTTPClient(0),
		logger:     logger.With().Str("adapter", "esplora").Str("symbol", method.Symbol).Logger(),
	}
}

func (c *EsploraClient) Symbol() string             { return c.method.Symbol }
func (c *EsploraClient) Family() domain.ChainFamily { return domain.ChainFamilyUTXO }

func (c *EsploraClient) Verify(ctx context.Context, req domain.VerifyRequest) domain.VerificationResult {
	if req.Epsilon == 0 {
		req.Epsilon = c.method.AmountEpsilon
	}

	raw, status, err := c.get(ctx, "/tx/"+req.TxRef)
	if err != nil {
		c.logger.Warn().Err(err).Str("tx_ref", req.TxRef).Msg("Explorer request failed")
		return infraFailure(err)
	}
	if status == http.StatusNotFound {
		// Not yet propagated or a bad reference; the caller decides how long
		// to keep retrying.
		return domain.VerificationResult{
			Success:               true,
			Found:                 false,
			RequiredConfirmations: c.method.RequiredConfirmations,
		}
	}
	if status != http.StatusOK {
		return infraFailure(fmt.Errorf("explorer request failed with status %d", status))
	}

	var tx esploraTx
	if err := json.Unmarshal(raw, &tx); err != nil {
		return infraFailure(fmt.Errorf("failed to parse explorer response: %w", err))
	}

	result := domain.VerificationResult{
		Success:               true,
		Found:                 true,
		RequiredConfirmations: c.method.RequiredConfirmations,
		RawResponse:           raw,
	}

	fee := currency.FromBaseUnits(tx.Fee, utxoDecimals)
	result.NetworkFee = &fee

	if tx.Status.Confirmed {
		tip, err := c.tipHeight(ctx)
		if err != nil {
			c.logger.Warn().Err(err).Str("tx_ref", req.TxRef).Msg("Failed to fetch tip height")
			return infraFailure(err)
		}
		result.BlockHeight = &tx.Status.BlockHeight
		hash := tx.Status.BlockHash
		result.BlockHash = &hash
		if tip >= tx.Status.BlockHeight {
			result.Confirmations = int(tip - tx.Status.BlockHeight + 1)
		}
	}

	// A transaction's outputs are immutable: if none pays the expected
	// address the expected amount, no amount of waiting changes that.
	paysRecipient := false
	amountMatches := false
	for _, out := range tx.Vout {
		if !strings.EqualFold(out.ScriptPubKeyAddress, req.ExpectedTo) {
			continue
		}
		paysRecipient = true
		if req.ExpectedAmount <= 0 {
			amountMatches = true
			break
		}
		amount := currency.FromBaseUnits(out.Value, utxoDecimals)
		if currency.AmountsMatch(amount, req.ExpectedAmount, req.Epsilon) {
			amountMatches = true
			break
		}
	}

	switch {
	case !paysRecipient:
		result.Mismatch = true
		result.MismatchReason = "no output pays the expected address"
	case !amountMatches:
		result.Mismatch = true
		result.MismatchReason = "output amount does not match the declared amount"
	default:
		result.Confirmed = result.Confirmations >= c.method.RequiredConfirmations
	}

	return result
}

func (c *EsploraClient) tipHeight(ctx context.Context) (int64, error) {
	raw, status, err := c.get(ctx, "/blocks/tip/height")
	if err != nil {
		return 0, err
	}
	if status != http.StatusOK {
		return 0, fmt.Errorf("tip height request failed with status %d", status)
	}
	height, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse tip height: %w", err)
	}
	return height, nil
}

func (c *EsploraClient) get(ctx context.Context, path string) ([]byte, int, error) {
	url := strings.TrimSuffix(c.method.ExplorerBaseURL, "/") + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	if c.method.ExplorerAPIKey != "" {
		req.Header.Set("X-API-Key", c.method.ExplorerAPIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("explorer request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, resp.StatusCode, nil
}
