package explorer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/lumenlearn/pvs/internal/domain"
	"github.com/lumenlearn/pvs/pkg/config"
	"github.com/lumenlearn/pvs/pkg/currency"
)

const nativeDecimals = 18

// transferTopic is keccak256("Transfer(address,address,uint256)").
const transferTopic = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"

// JSONRPCClient verifies account/contract-family transactions via an
// Ethereum-style JSON-RPC endpoint. Native transfers are validated against
// the transaction's to/value; token transfers are validated by decoding the
// Transfer event from the receipt logs.
type JSONRPCClient struct {
	method     config.PaymentMethodConfig
	httpClient *http.Client
	logger     zerolog.Logger
	requestID  int64
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int64         `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type rpcTransaction struct {
	Hash        string  `json:"hash"`
	From        string  `json:"from"`
	To          string  `json:"to"`
	Value       string  `json:"value"`
	BlockNumber *string `json:"blockNumber"`
	BlockHash   *string `json:"blockHash"`
	Input       string  `json:"input"`
}

type rpcReceipt struct {
	Status            string   `json:"status"`
	BlockNumber       string   `json:"blockNumber"`
	BlockHash         string   `json:"blockHash"`
	GasUsed           string   `json:"gasUsed"`
	EffectiveGasPrice string   `json:"effectiveGasPrice"`
	Logs              []rpcLog `json:"logs"`
}

type rpcLog struct {
	Address string   `json:"address"`
	Topics  []string `json:"topics"`
	Data    string   `json:"data"`
}

func NewJSONRPCClient(method config.PaymentMethodConfig, logger zerolog.Logger) *JSONRPCClient {
	return &JSONRPCClient{
		method:     method,
		httpClient: newHTTPClient(0),
		logger:     logger.With().Str("adapter", "jsonrpc").Str("symbol", method.Symbol).Logger(),
	}
}

func (c *JSONRPCClient) Symbol() string             { return c.method.Symbol }
func (c *JSONRPCClient) Family() domain.ChainFamily { return domain.ChainFamilyAccount }

func (c *JSONRPCClient) Verify(ctx context.Context, req domain.VerifyRequest) domain.VerificationResult {
	if req.Epsilon == 0 {
		req.Epsilon = c.method.AmountEpsilon
	}

	rawTx, err := c.call(ctx, "eth_getTransactionByHash", []interface{}{req.TxRef})
	if err != nil {
		c.logger.Warn().Err(err).Str("tx_ref", req.TxRef).Msg("Explorer request failed")
		return infraFailure(err)
	}
	if isNullResult(rawTx) {
		return domain.VerificationResult{
			Success:               true,
			Found:                 false,
			RequiredConfirmations: c.method.RequiredConfirmations,
		}
	}

	var tx rpcTransaction
	if err := json.Unmarshal(rawTx, &tx); err != nil {
		return infraFailure(fmt.Errorf("failed to parse transaction response: %w", err))
	}

	result := domain.VerificationResult{
		Success:               true,
		Found:                 true,
		RequiredConfirmations: c.method.RequiredConfirmations,
		RawResponse:           rawTx,
	}

	rawReceipt, err := c.call(ctx, "eth_getTransactionReceipt", []interface{}{req.TxRef})
	if err != nil {
		return infraFailure(err)
	}

	var receipt *rpcReceipt
	if !isNullResult(rawReceipt) {
		receipt = &rpcReceipt{}
		if err := json.Unmarshal(rawReceipt, receipt); err != nil {
			return infraFailure(fmt.Errorf("failed to parse receipt response: %w", err))
		}
	}

	if receipt != nil {
		height, err := parseHexInt(receipt.BlockNumber)
		if err != nil {
			return infraFailure(fmt.Errorf("failed to parse receipt block number: %w", err))
		}
		current, err := c.blockNumber(ctx)
		if err != nil {
			return infraFailure(err)
		}
		result.BlockHeight = &height
		hash := receipt.BlockHash
		result.BlockHash = &hash
		if current >= height {
			result.Confirmations = int(current - height + 1)
		}

		if gasUsed, err1 := parseHexBig(receipt.GasUsed); err1 == nil {
			if gasPrice, err2 := parseHexBig(receipt.EffectiveGasPrice); err2 == nil {
				fee := currency.FromBigBaseUnits(new(big.Int).Mul(gasUsed, gasPrice), nativeDecimals)
				result.NetworkFee = &fee
			}
		}

		if receipt.Status == "0x0" {
			result.Mismatch = true
			result.MismatchReason = "transaction reverted on chain"
			return result
		}
	}

	if c.method.ContractAddress != "" {
		c.validateTokenTransfer(&result, &tx, receipt, req)
	} else {
		c.validateNativeTransfer(&result, &tx, req)
	}

	if !result.Mismatch {
		result.Confirmed = result.Confirmations >= c.method.RequiredConfirmations
	}
	return result
}

func (c *JSONRPCClient) validateNativeTransfer(result *domain.VerificationResult, tx *rpcTransaction, req domain.VerifyRequest) {
	if !strings.EqualFold(tx.To, req.ExpectedTo) {
		result.Mismatch = true
		result.MismatchReason = "transaction recipient does not match the expected address"
		return
	}
	if req.ExpectedAmount <= 0 {
		return
	}
	wei, err := parseHexBig(tx.Value)
	if err != nil {
		result.Mismatch = true
		result.MismatchReason = "transaction value is not parseable"
		return
	}
	amount := currency.FromBigBaseUnits(wei, nativeDecimals)
	if !currency.AmountsMatch(amount, req.ExpectedAmount, req.Epsilon) {
		result.Mismatch = true
		result.MismatchReason = "transaction value does not match the declared amount"
	}
}

// validateTokenTransfer decodes the ERC-20 Transfer event from the receipt
// logs and checks recipient and amount. Without a receipt the transfer is
// still in flight, so only the contract address is checked.
func (c *JSONRPCClient) validateTokenTransfer(result *domain.VerificationResult, tx *rpcTransaction, receipt *rpcReceipt, req domain.VerifyRequest) {
	if !strings.EqualFold(tx.To, c.method.ContractAddress) {
		result.Mismatch = true
		result.MismatchReason = "transaction is not a call to the token contract"
		return
	}
	if receipt == nil {
		return
	}

	decimals := c.method.TokenDecimals
	if decimals == 0 {
		decimals = nativeDecimals
	}

	for _, lg := range receipt.Logs {
		if !strings.EqualFold(lg.Address, c.method.ContractAddress) {
			continue
		}
		if len(lg.Topics) < 3 || !strings.EqualFold(lg.Topics[0], transferTopic) {
			continue
		}
		recipient := topicAddress(lg.Topics[2])
		if !strings.EqualFold(recipient, req.ExpectedTo) {
			continue
		}
		if req.ExpectedAmount <= 0 {
			return
		}
		units, err := parseHexBig(lg.Data)
		if err != nil {
			continue
		}
		amount := currency.FromBigBaseUnits(units, decimals)
		if currency.AmountsMatch(amount, req.ExpectedAmount, req.Epsilon) {
			return
		}
	}

	result.Mismatch = true
	result.MismatchReason = "no token transfer to the expected address for the declared amount"
}

func (c *JSONRPCClient) blockNumber(ctx context.Context) (int64, error) {
	raw, err := c.call(ctx, "eth_blockNumber", []interface{}{})
	if err != nil {
		return 0, err
	}
	var hex string
	if err := json.Unmarshal(raw, &hex); err != nil {
		return 0, fmt.Errorf("failed to parse block number response: %w", err)
	}
	return parseHexInt(hex)
}

func (c *JSONRPCClient) call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	// One client per symbol is shared by concurrent verification passes.
	id := atomic.AddInt64(&c.requestID, 1)
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      id,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimSuffix(c.method.ExplorerBaseURL, "/")
	if c.method.ExplorerAPIKey != "" {
		url += "/" + c.method.ExplorerAPIKey
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rpc request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.logger.Error().
			Int("status_code", resp.StatusCode).
			Str("rpc_method", method).
			Str("response_body", string(body)).
			Msg("RPC request failed")
		return nil, fmt.Errorf("rpc request failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return nil, fmt.Errorf("failed to parse rpc response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	return rpcResp.Result, nil
}

func isNullResult(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "" || trimmed == "null"
}

func parseHexBig(hex string) (*big.Int, error) {
	cleaned := strings.TrimPrefix(strings.TrimSpace(hex), "0x")
	if cleaned == "" {
		return nil, fmt.Errorf("empty hex value")
	}
	v, ok := new(big.Int).SetString(cleaned, 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex value: %s", hex)
	}
	return v, nil
}

func parseHexInt(hex string) (int64, error) {
	v, err := parseHexBig(hex)
	if err != nil {
		return 0, err
	}
	if !v.IsInt64() {
		return 0, fmt.Errorf("hex value out of int64 range: %s", hex)
	}
	return v.Int64(), nil
}

// topicAddress extracts the 20-byte address from a 32-byte log topic.
func topicAddress(topic string) string {
	cleaned := strings.TrimPrefix(topic, "0x")
	if len(cleaned) < 40 {
		return topic
	}
	return "0x" + cleaned[len(cleaned)-40:]
}
