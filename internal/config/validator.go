package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure.
type ValidationError struct {
	Field   string // The config field path (e.g., "council.participants")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels.
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation
// errors found.
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError
	errs = append(errs, c.validateCouncil()...)
	errs = append(errs, c.validateGateway()...)
	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateLogging()...)
	return errs
}

func (c *Config) validateCouncil() []ValidationError {
	var errs []ValidationError

	if len(c.Council.Participants) == 0 {
		errs = append(errs, ValidationError{
			Field:   "council.participants",
			Value:   c.Council.Participants,
			Message: "at least one participant model is required",
		})
	}

	seen := make(map[string]bool, len(c.Council.Participants))
	for _, p := range c.Council.Participants {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, ValidationError{
				Field:   "council.participants",
				Value:   p,
				Message: "participant model identity cannot be empty",
			})
			continue
		}
		if seen[p] {
			errs = append(errs, ValidationError{
				Field:   "council.participants",
				Value:   p,
				Message: "duplicate participant model identity",
			})
		}
		seen[p] = true
	}

	if strings.TrimSpace(c.Council.Synthesizer) == "" {
		errs = append(errs, ValidationError{
			Field:   "council.synthesizer",
			Value:   c.Council.Synthesizer,
			Message: "synthesizer model identity is required",
		})
	}

	if c.Council.DebateRounds < 1 || c.Council.DebateRounds > 10 {
		errs = append(errs, ValidationError{
			Field:   "council.debate_rounds",
			Value:   c.Council.DebateRounds,
			Message: "must be between 1 and 10",
		})
	}

	if c.Council.StaleAfterMinutes < 1 {
		errs = append(errs, ValidationError{
			Field:   "council.stale_after_minutes",
			Value:   c.Council.StaleAfterMinutes,
			Message: "must be at least 1",
		})
	}

	return errs
}

func (c *Config) validateGateway() []ValidationError {
	var errs []ValidationError

	if c.Gateway.RequestTimeoutSeconds < 1 {
		errs = append(errs, ValidationError{
			Field:   "gateway.request_timeout_seconds",
			Value:   c.Gateway.RequestTimeoutSeconds,
			Message: "must be at least 1",
		})
	}

	for model, p := range c.Gateway.Pricing {
		if p.InputPerMTok < 0 || p.OutputPerMTok < 0 {
			errs = append(errs, ValidationError{
				Field:   "gateway.pricing." + model,
				Value:   p,
				Message: "token prices cannot be negative",
			})
		}
	}

	return errs
}

func (c *Config) validateServer() []ValidationError {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return []ValidationError{{
			Field:   "server.addr",
			Value:   c.Server.Addr,
			Message: "listen address is required",
		}}
	}
	return nil
}

func (c *Config) validateLogging() []ValidationError {
	if !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		return []ValidationError{{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		}}
	}
	return nil
}
