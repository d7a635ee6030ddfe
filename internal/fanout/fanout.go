// Package fanout dispatches a set of model calls concurrently for one
// deliberation round. It supports batch delivery (wait for all) and
// progressive delivery (per-completion callback). Every unit of work
// carries an explicit correlation key: results are attributed by that key,
// never by position or object identity, so out-of-order completion cannot
// misattribute a response.
package fanout

import (
	"context"

	"github.com/sourcegraph/conc"

	"github.com/synod-dev/synod/internal/gateway"
)

// Caller issues one model call. *gateway.Registry satisfies this, as do
// test fakes.
type Caller interface {
	Complete(ctx context.Context, req gateway.Request) (*gateway.Result, error)
}

// Call is one unit of work in a round.
type Call struct {
	// Key correlates the outcome back to the participant. It must be unique
	// within the round (the participant's model identity in practice).
	Key string
	// Request is the gateway request to issue.
	Request gateway.Request
}

// Outcome is the completed result of one Call, tagged with its key.
type Outcome struct {
	// Key is the correlation key of the originating Call.
	Key string
	// Result is the normalized success, nil when Err is set.
	Result *gateway.Result
	// Err is the normalized failure, nil when Result is set.
	Err error
}

// Batch dispatches all calls concurrently and waits for every one to finish.
// The returned slice is ordered by the calls slice, not by completion order.
// Individual failures are carried in their Outcome; Batch itself never fails.
func Batch(ctx context.Context, caller Caller, calls []Call) []Outcome {
	return Progressive(ctx, caller, calls, nil)
}

// Progressive dispatches all calls concurrently and invokes onComplete as
// each one finishes, in completion order. onComplete runs on a single
// goroutine: callbacks are serialized, so callers can append to shared
// round state without locking. A slow or failed call never blocks or
// cancels the others. The returned slice is ordered by the calls slice.
func Progressive(ctx context.Context, caller Caller, calls []Call, onComplete func(Outcome)) []Outcome {
	if len(calls) == 0 {
		return nil
	}

	indexByKey := make(map[string]int, len(calls))
	for i, call := range calls {
		indexByKey[call.Key] = i
	}

	completions := make(chan Outcome, len(calls))

	var wg conc.WaitGroup
	for _, call := range calls {
		call := call
		wg.Go(func() {
			result, err := caller.Complete(ctx, call.Request)
			completions <- Outcome{Key: call.Key, Result: result, Err: err}
		})
	}

	go func() {
		wg.Wait()
		close(completions)
	}()

	// Single consumer: completion callbacks and result placement both happen
	// here, keyed by the correlation key carried through the channel.
	outcomes := make([]Outcome, len(calls))
	for outcome := range completions {
		outcomes[indexByKey[outcome.Key]] = outcome
		if onComplete != nil {
			onComplete(outcome)
		}
	}

	return outcomes
}

// AllFailed reports whether every outcome in the round carries an error.
// An empty round is not considered all-failed.
func AllFailed(outcomes []Outcome) bool {
	if len(outcomes) == 0 {
		return false
	}
	for _, o := range outcomes {
		if o.Err == nil {
			return false
		}
	}
	return true
}

// Successes returns the outcomes that completed without error, preserving
// the submission order of the round.
func Successes(outcomes []Outcome) []Outcome {
	var ok []Outcome
	for _, o := range outcomes {
		if o.Err == nil {
			ok = append(ok, o)
		}
	}
	return ok
}
