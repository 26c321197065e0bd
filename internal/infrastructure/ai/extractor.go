package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/lumenlearn/pvs/internal/domain"
	"github.com/lumenlearn/pvs/pkg/config"
)

// ReceiptExtractor is the black-box AI vision call that reads a payment
// proof image into structured fields. It may fail or time out; callers must
// degrade rather than propagate.
type ReceiptExtractor interface {
	Extract(ctx context.Context, imageURL string, expected domain.VerifyRequest) (*domain.ExtractedReceipt, error)
}

type extractorClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries int
	logger     zerolog.Logger
}

func NewReceiptExtractor(cfg config.ExtractorConfig, logger zerolog.Logger) ReceiptExtractor {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &extractorClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries: cfg.MaxRetries,
		logger:     logger.With().Str("client", "extractor").Logger(),
	}
}

type extractRequest struct {
	ImageURL       string  `json:"image_url"`
	ExpectedAmount float64 `json:"expected_amount"`
	ExpectedTo     string  `json:"expected_to_address"`
	ExpectedTxRef  string  `json:"expected_tx_ref"`
}

func (c *extractorClient) Extract(ctx context.Context, imageURL string, expected domain.VerifyRequest) (*domain.ExtractedReceipt, error) {
	payload, err := json.Marshal(extractRequest{
		ImageURL:       imageURL,
		ExpectedAmount: expected.ExpectedAmount,
		ExpectedTo:     expected.ExpectedTo,
		ExpectedTxRef:  expected.TxRef,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal extraction request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Second * time.Duration(1<<(attempt-1))):
			}
		}

		receipt, retryable, err := c.doExtract(ctx, payload)
		if err == nil {
			return receipt, nil
		}
		lastErr = err
		if !retryable {
			break
		}
		c.logger.Warn().Err(err).Int("attempt", attempt+1).Msg("Extraction request failed, retrying")
	}

	c.logger.Error().Err(lastErr).Str("image_url", imageURL).Msg("Extraction failed after all retries")
	return nil, fmt.Errorf("receipt extraction failed: %w", lastErr)
}

func (c *extractorClient) doExtract(ctx context.Context, payload []byte) (*domain.ExtractedReceipt, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/receipts/extract", bytes.NewReader(payload))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, true, fmt.Errorf("server error (status %d): %s", resp.StatusCode, string(body))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("client error (status %d): %s", resp.StatusCode, string(body))
	}

	var receipt domain.ExtractedReceipt
	if err := json.Unmarshal(body, &receipt); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	receipt.RawAnalysis = body
	return &receipt, false, nil
}
