package gateway

import (
	"context"
	stderrors "errors"
	"net"

	"github.com/sashabaranov/go-openai"
	"google.golang.org/genai"

	"github.com/synod-dev/synod/internal/errors"
)

// categoryForStatus maps an HTTP status code to a failure category.
// The mapping follows OpenRouter/OpenAI conventions: 402 is an exhausted
// balance, 429 is throttling, and everything 5xx is provider trouble.
func categoryForStatus(status int) errors.Category {
	switch {
	case status == 401 || status == 403:
		return errors.CategoryAuth
	case status == 402:
		return errors.CategoryBilling
	case status == 408:
		return errors.CategoryTimeout
	case status == 429:
		return errors.CategoryRateLimit
	case status >= 500:
		return errors.CategoryTransient
	default:
		return errors.CategoryUnknown
	}
}

// normalizeOpenAIError converts any error returned by the go-openai client
// into a *errors.GatewayError.
func normalizeOpenAIError(model string, err error) *errors.GatewayError {
	if cat, ok := commonCategory(err); ok {
		return errors.NewGatewayError(model, cat, err)
	}

	var apiErr *openai.APIError
	if stderrors.As(err, &apiErr) {
		return errors.NewGatewayError(model, categoryForStatus(apiErr.HTTPStatusCode), err)
	}

	var reqErr *openai.RequestError
	if stderrors.As(err, &reqErr) {
		return errors.NewGatewayError(model, categoryForStatus(reqErr.HTTPStatusCode), err)
	}

	return errors.NewGatewayError(model, errors.CategoryUnknown, err)
}

// normalizeGenAIError converts any error returned by the genai client into
// a *errors.GatewayError.
func normalizeGenAIError(model string, err error) *errors.GatewayError {
	if cat, ok := commonCategory(err); ok {
		return errors.NewGatewayError(model, cat, err)
	}

	var apiErr genai.APIError
	if stderrors.As(err, &apiErr) {
		return errors.NewGatewayError(model, categoryForStatus(apiErr.Code), err)
	}

	return errors.NewGatewayError(model, errors.CategoryUnknown, err)
}

// commonCategory classifies provider-independent failures: deadlines and
// network-level timeouts. Returns ok=false when the error needs
// provider-specific handling.
func commonCategory(err error) (errors.Category, bool) {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.CategoryTimeout, true
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return errors.CategoryTimeout, true
	}

	return errors.CategoryUnknown, false
}
