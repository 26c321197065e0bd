package explorer

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/lumenlearn/pvs/internal/domain"
	"github.com/lumenlearn/pvs/pkg/config"
)

// Adapter is the chain-agnostic verification contract. Implementations are
// pure reads against a public explorer; calling Verify twice with the same
// inputs yields the same result modulo real chain state.
//
// Infrastructure failures surface as Success=false on the result, never as a
// Go error, so callers cannot confuse "explorer down" with "tx invalid".
type Adapter interface {
	Symbol() string
	Family() domain.ChainFamily
	Verify(ctx context.Context, req domain.VerifyRequest) domain.VerificationResult
}

// Registry holds one adapter per configured payment method, selected once at
// config load rather than re-dispatched per call.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(methods []config.PaymentMethodConfig, logger zerolog.Logger) (*Registry, error) {
	adapters := make(map[string]Adapter, len(methods))
	for _, m := range methods {
		switch domain.ChainFamily(m.ChainFamily) {
		case domain.ChainFamilyUTXO:
			adapters[m.Symbol] = NewEsploraClient(m, logger)
		case domain.ChainFamilyAccount:
			adapters[m.Symbol] = NewJSONRPCClient(m, logger)
		default:
			return nil, fmt.Errorf("payment method %s: unknown chain family %q", m.Symbol, m.ChainFamily)
		}
	}
	return &Registry{adapters: adapters}, nil
}

func (r *Registry) Adapter(symbol string) (Adapter, bool) {
	a, ok := r.adapters[symbol]
	return a, ok
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

func infraFailure(err error) domain.VerificationResult {
	return domain.VerificationResult{
		Success: false,
		Error:   err.Error(),
	}
}
