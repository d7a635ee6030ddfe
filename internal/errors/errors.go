// Package errors provides centralized error definitions and error handling
// utilities for the Synod codebase. It defines domain-specific errors,
// gateway failure categories, error constructors with context wrapping,
// and error classification helpers.
//
// # Error Types
//
// Domain-specific errors represent errors from specific subsystems:
//   - GatewayError: a normalized failure from a model backend call
//   - ConversationError: errors related to conversation storage
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewGatewayError("openrouter/qwen-max", errors.CategoryRateLimit, baseErr)
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrConversationNotFound) { ... }
//
//	var gwErr *errors.GatewayError
//	if errors.As(err, &gwErr) { ... }
//
//	if errors.IsRetryable(err) { ... }
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Category classifies a model backend failure. Categories are stable wire
// values: they appear in events and persisted sessions.
type Category string

const (
	// CategoryBilling indicates the account has run out of credit or quota.
	CategoryBilling Category = "billing"
	// CategoryAuth indicates a rejected or missing API key.
	CategoryAuth Category = "auth"
	// CategoryRateLimit indicates the provider throttled the call.
	CategoryRateLimit Category = "rate_limit"
	// CategoryTimeout indicates the call exceeded its deadline.
	CategoryTimeout Category = "timeout"
	// CategoryTransient indicates a provider-side failure that may succeed on retry.
	CategoryTransient Category = "transient"
	// CategoryUnknown is the fallback for unclassified failures.
	CategoryUnknown Category = "unknown"
)

// String returns the wire value of the category.
func (c Category) String() string { return string(c) }

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Conversation-related sentinel errors
var (
	// ErrConversationNotFound indicates that a conversation could not be found.
	ErrConversationNotFound = New("conversation not found")
	// ErrConversationLocked indicates that a conversation is locked by another process.
	ErrConversationLocked = New("conversation is locked")
	// ErrConversationCorrupted indicates that stored conversation data is corrupted.
	ErrConversationCorrupted = New("conversation data corrupted")
)

// Deliberation-related sentinel errors
var (
	// ErrNoParticipants indicates that a round was started with no participants.
	ErrNoParticipants = New("no participants configured")
	// ErrAllParticipantsFailed indicates that every call in a round failed.
	ErrAllParticipantsFailed = New("all participants failed")
	// ErrPendingStale indicates that a pending checkpoint is too old to resume.
	ErrPendingStale = New("pending state is stale")
	// ErrNoPendingState indicates a resume was requested with nothing to resume.
	ErrNoPendingState = New("no pending state to resume")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// GatewayError
// -----------------------------------------------------------------------------

// GatewayError is the normalized failure of a single model backend call.
// It is the only error type that crosses the gateway boundary: backends
// classify provider errors into a Category and wrap the cause.
type GatewayError struct {
	// Model is the identity of the model whose call failed.
	Model string
	// Category classifies the failure for grouping and retry decisions.
	Category Category
	// Err is the underlying cause, if any.
	Err error
}

// NewGatewayError creates a GatewayError for the given model and category.
func NewGatewayError(model string, category Category, err error) *GatewayError {
	return &GatewayError{Model: model, Category: category, Err: err}
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway: %s: %s: %v", e.Model, e.Category, e.Err)
	}
	return fmt.Sprintf("gateway: %s: %s", e.Model, e.Category)
}

// Unwrap returns the underlying error.
func (e *GatewayError) Unwrap() error { return e.Err }

// Message returns a human-readable failure message without the gateway prefix.
func (e *GatewayError) Message() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Category)
}

// -----------------------------------------------------------------------------
// ConversationError
// -----------------------------------------------------------------------------

// ConversationError wraps a storage failure with the conversation it concerns.
type ConversationError struct {
	// ID is the conversation identifier.
	ID string
	// Op is the storage operation that failed ("load", "save", "lock", ...).
	Op string
	// Err is the underlying cause.
	Err error
}

// NewConversationError creates a ConversationError.
func NewConversationError(id, op string, err error) *ConversationError {
	return &ConversationError{ID: id, Op: op, Err: err}
}

// Error implements the error interface.
func (e *ConversationError) Error() string {
	return fmt.Sprintf("conversation %s: %s: %v", e.ID, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConversationError) Unwrap() error { return e.Err }

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// CategoryOf extracts the failure category from an error chain.
// Returns CategoryUnknown for errors that did not originate at the gateway.
func CategoryOf(err error) Category {
	var gwErr *GatewayError
	if As(err, &gwErr) {
		return gwErr.Category
	}
	if Is(err, context.DeadlineExceeded) || Is(err, ErrTimeout) {
		return CategoryTimeout
	}
	return CategoryUnknown
}

// IsRetryable reports whether a failed call may succeed if reissued.
// Billing and auth failures are configuration problems and never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if Is(err, context.Canceled) {
		return false
	}
	switch CategoryOf(err) {
	case CategoryRateLimit, CategoryTimeout, CategoryTransient:
		return true
	default:
		return false
	}
}
