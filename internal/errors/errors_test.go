package errors

import (
	"context"
	"fmt"
	"testing"
)

func TestGatewayErrorError(t *testing.T) {
	tests := []struct {
		name string
		err  *GatewayError
		want string
	}{
		{
			name: "with cause",
			err:  NewGatewayError("openrouter/gpt-5.1", CategoryRateLimit, New("429 too many requests")),
			want: "gateway: openrouter/gpt-5.1: rate_limit: 429 too many requests",
		},
		{
			name: "without cause",
			err:  NewGatewayError("gemini-3-pro", CategoryBilling, nil),
			want: "gateway: gemini-3-pro: billing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGatewayErrorUnwrap(t *testing.T) {
	base := New("underlying")
	err := NewGatewayError("m", CategoryUnknown, base)

	if !Is(err, base) {
		t.Error("Is() did not match wrapped error")
	}

	var gwErr *GatewayError
	wrapped := fmt.Errorf("round failed: %w", err)
	if !As(wrapped, &gwErr) {
		t.Fatal("As() did not find GatewayError in chain")
	}
	if gwErr.Model != "m" {
		t.Errorf("Model = %q, want %q", gwErr.Model, "m")
	}
}

func TestCategoryOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{
			name: "gateway error",
			err:  NewGatewayError("m", CategoryAuth, nil),
			want: CategoryAuth,
		},
		{
			name: "wrapped gateway error",
			err:  fmt.Errorf("stage: %w", NewGatewayError("m", CategoryBilling, nil)),
			want: CategoryBilling,
		},
		{
			name: "deadline exceeded",
			err:  context.DeadlineExceeded,
			want: CategoryTimeout,
		},
		{
			name: "plain error",
			err:  New("boom"),
			want: CategoryUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CategoryOf(tt.err); got != tt.want {
				t.Errorf("CategoryOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "rate limit", err: NewGatewayError("m", CategoryRateLimit, nil), want: true},
		{name: "timeout", err: NewGatewayError("m", CategoryTimeout, nil), want: true},
		{name: "transient", err: NewGatewayError("m", CategoryTransient, nil), want: true},
		{name: "billing", err: NewGatewayError("m", CategoryBilling, nil), want: false},
		{name: "auth", err: NewGatewayError("m", CategoryAuth, nil), want: false},
		{name: "canceled", err: context.Canceled, want: false},
		{name: "unknown", err: New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}
