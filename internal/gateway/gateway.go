// Package gateway issues calls to external model endpoints and normalizes
// their outcomes. A call either yields a Result (content, reasoning trace,
// usage) or a *errors.GatewayError carrying a failure category. Nothing else
// crosses this boundary: callers decide whether to proceed without a failed
// participant.
package gateway

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/synod-dev/synod/internal/errors"
	"github.com/synod-dev/synod/internal/logging"
)

// Usage holds normalized token accounting for one call.
type Usage struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	CostUSD          float64 `json:"cost_usd"`
}

// Result is the normalized success outcome of one model call.
type Result struct {
	// Model is the identity the call was issued against.
	Model string `json:"model"`
	// Content is the final aggregated completion text.
	Content string `json:"content"`
	// Reasoning is the model's reasoning trace, when the provider exposes one.
	Reasoning string `json:"reasoning,omitempty"`
	// Usage is the normalized token accounting.
	Usage Usage `json:"usage"`
	// Latency is the wall-clock duration of the call.
	Latency time.Duration `json:"latency"`
}

// Request describes one model call.
type Request struct {
	// Model is the model identity, e.g. "openai/gpt-5.1" or "gemini-3-pro".
	Model string
	// System is an optional system prompt.
	System string
	// Prompt is the user content.
	Prompt string
	// OnToken, when non-nil, receives partial content deltas as they stream
	// in. The final Result still carries the full aggregate. Callbacks are
	// invoked from the calling goroutine of Complete.
	OnToken func(delta string)
}

// Backend issues calls against one provider API.
type Backend interface {
	// Name identifies the backend for logging ("openrouter", "gemini").
	Name() string
	// Complete performs one call. Failures are always *errors.GatewayError.
	Complete(ctx context.Context, req Request) (*Result, error)
}

// Pricing holds per-model USD prices per million tokens, used to estimate
// call cost when the provider does not report one.
type Pricing struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// Registry routes model identities to backends by longest matching prefix
// and enforces the gateway contract: Complete never panics, always returns
// either a Result or a *errors.GatewayError, and stamps latency and cost.
type Registry struct {
	fallback Backend
	prefixes map[string]Backend
	pricing  map[string]Pricing
	timeout  time.Duration
	logger   *logging.Logger
}

// NewRegistry creates a Registry that routes unmatched models to fallback.
func NewRegistry(fallback Backend, logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Registry{
		fallback: fallback,
		prefixes: make(map[string]Backend),
		pricing:  make(map[string]Pricing),
		logger:   logger,
	}
}

// Register routes models whose identity starts with prefix to b.
func (r *Registry) Register(prefix string, b Backend) {
	r.prefixes[prefix] = b
}

// SetPricing records the price table for a model identity.
func (r *Registry) SetPricing(model string, p Pricing) {
	r.pricing[model] = p
}

// SetTimeout bounds every call issued through the registry. A hung provider
// connection then fails as a timeout instead of stalling its stage; zero
// disables the bound.
func (r *Registry) SetTimeout(d time.Duration) {
	r.timeout = d
}

// Route returns the backend responsible for the given model identity.
func (r *Registry) Route(model string) Backend {
	// Longest prefix wins so "openai/" can coexist with "openai/o".
	keys := make([]string, 0, len(r.prefixes))
	for k := range r.prefixes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })

	for _, k := range keys {
		if strings.HasPrefix(model, k) {
			return r.prefixes[k]
		}
	}
	return r.fallback
}

// Complete issues one call through the routed backend.
func (r *Registry) Complete(ctx context.Context, req Request) (res *Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("backend panicked", "model", req.Model, "panic", fmt.Sprint(p))
			res = nil
			err = errors.NewGatewayError(req.Model, errors.CategoryUnknown, fmt.Errorf("backend panic: %v", p))
		}
	}()

	backend := r.Route(req.Model)
	if backend == nil {
		return nil, errors.NewGatewayError(req.Model, errors.CategoryUnknown, fmt.Errorf("no backend registered"))
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	res, err = backend.Complete(ctx, req)
	if err != nil {
		var gwErr *errors.GatewayError
		if !errors.As(err, &gwErr) {
			// A backend leaked an unclassified error past its own
			// normalization. Keep the contract intact.
			err = errors.NewGatewayError(req.Model, errors.CategoryOf(err), err)
		}
		return nil, err
	}

	res.Model = req.Model
	res.Latency = time.Since(start)
	if res.Usage.CostUSD == 0 {
		res.Usage.CostUSD = r.estimateCost(req.Model, res.Usage)
	}
	return res, nil
}

// estimateCost computes the USD cost of a call from the configured price
// table. Returns 0 when no pricing is known for the model.
func (r *Registry) estimateCost(model string, u Usage) float64 {
	p, ok := r.pricing[model]
	if !ok {
		return 0
	}
	return float64(u.PromptTokens)/1e6*p.InputPerMTok +
		float64(u.CompletionTokens)/1e6*p.OutputPerMTok
}
