package view

import (
	"github.com/synod-dev/synod/internal/council"
)

// Replay reconstructs the event sequence a stored session would have
// produced, minus token deltas. Feeding it through Reduce yields the same
// terminal snapshot as watching the deliberation live, which is what lets
// a client reopen an old conversation with the code path it renders live
// streams with.
func Replay(session *council.Session) []council.Event {
	if session == nil {
		return nil
	}

	var events []council.Event
	for _, round := range session.Rounds {
		stage := council.Stage(round.Kind)
		events = append(events, council.Event{
			Type:  council.EventStageStart,
			Stage: stage,
			Round: round.Index,
			Total: len(round.Responses),
		})
		for i, resp := range round.Responses {
			resp := resp
			events = append(events,
				council.Event{
					Type:     council.EventModelComplete,
					Stage:    stage,
					Round:    round.Index,
					Model:    resp.Model,
					Response: &resp,
				},
				council.Event{
					Type:      council.EventStageProgress,
					Stage:     stage,
					Round:     round.Index,
					Completed: i + 1,
					Total:     len(round.Responses),
				},
			)
		}
		events = append(events, council.Event{
			Type:      council.EventStageComplete,
			Stage:     stage,
			Round:     round.Index,
			Standings: round.Standings,
		})
	}

	for _, pe := range session.Errors {
		pe := pe
		events = append(events, council.Event{
			Type:  council.EventModelError,
			Stage: pe.Stage,
			Model: pe.Model,
			Error: &pe,
		})
	}

	if session.Synthesis != nil {
		events = append(events,
			council.Event{
				Type:  council.EventSynthesisStart,
				Model: session.Synthesis.Model,
			},
			council.Event{
				Type:      council.EventSynthesisComplete,
				Synthesis: session.Synthesis,
				LabelMap:  labelMapOf(session),
			},
		)
	}

	events = append(events,
		council.Event{Type: council.EventMetricsComplete, Metrics: &session.Metrics},
		council.Event{Type: council.EventSessionComplete},
	)
	return events
}

// SnapshotOf renders a stored session directly.
func SnapshotOf(session *council.Session) Snapshot {
	return ReduceAll(Snapshot{}, Replay(session))
}

func labelMapOf(session *council.Session) map[string]string {
	for _, round := range session.Rounds {
		if len(round.LabelMap) > 0 {
			return round.LabelMap
		}
	}
	return nil
}
