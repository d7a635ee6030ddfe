// Package view derives client-side display state from the event stream.
// Reduce is a pure fold: the same event sequence always produces the same
// Snapshot, whether the events arrive live over a stream or are replayed
// from a stored session. Clients render snapshots and never interpret
// events themselves.
package view

import (
	"github.com/synod-dev/synod/internal/council"
	"github.com/synod-dev/synod/internal/ranking"
)

// RoundView is the display state of one round.
type RoundView struct {
	Index     int
	Kind      council.RoundKind
	Responses []council.ParticipantResponse
	Standings []ranking.Standing
	Completed int
	Total     int
	Loading   bool
}

// Snapshot is everything a client needs to render a deliberation.
type Snapshot struct {
	Stage  council.Stage
	Rounds []RoundView
	// Streams holds in-flight partial content per model for the current
	// concurrent stage.
	Streams map[string]string
	// SynthesisStream holds in-flight partial synthesis content.
	SynthesisStream string
	Synthesis       *council.Synthesis
	LabelMap        map[string]string
	Errors          []council.ParticipantError
	Metrics         *council.Metrics
	Loading         bool
	Done            bool
	Interrupted     bool
	// FatalError is set by session_error: the deliberation never started.
	FatalError string
}

// Reduce folds one event into a snapshot, returning a new snapshot. The
// input is never mutated; shared slices and maps are copied before change.
// Unknown event types are ignored so older clients survive newer servers.
func Reduce(s Snapshot, ev council.Event) Snapshot {
	switch ev.Type {
	case council.EventStageStart:
		s.Stage = ev.Stage
		s.Loading = true
		s.Streams = map[string]string{}
		s.Rounds = append(copyRounds(s.Rounds), RoundView{
			Index:   ev.Round,
			Kind:    council.RoundKind(ev.Stage),
			Total:   ev.Total,
			Loading: true,
		})

	case council.EventStageProgress:
		s.Rounds = updateRound(s.Rounds, ev.Round, func(r *RoundView) {
			r.Completed = ev.Completed
			r.Total = ev.Total
		})

	case council.EventModelPartialToken:
		if ev.Stage == council.StageSynthesis {
			s.SynthesisStream += ev.Delta
			break
		}
		streams := copyStreams(s.Streams)
		streams[ev.Model] += ev.Delta
		s.Streams = streams

	case council.EventModelComplete:
		if ev.Response == nil {
			break
		}
		resp := *ev.Response
		s.Rounds = updateRound(s.Rounds, ev.Round, func(r *RoundView) {
			r.Responses = append(append([]council.ParticipantResponse(nil), r.Responses...), resp)
		})
		streams := copyStreams(s.Streams)
		delete(streams, ev.Model)
		s.Streams = streams

	case council.EventModelError:
		if ev.Error != nil {
			s.Errors = append(append([]council.ParticipantError(nil), s.Errors...), *ev.Error)
		}
		streams := copyStreams(s.Streams)
		delete(streams, ev.Model)
		s.Streams = streams

	case council.EventStageComplete:
		s.Rounds = updateRound(s.Rounds, ev.Round, func(r *RoundView) {
			r.Loading = false
			if len(ev.Standings) > 0 {
				r.Standings = ev.Standings
			}
		})
		s.Streams = map[string]string{}

	case council.EventSynthesisStart:
		s.Stage = council.StageSynthesis
		s.Loading = true
		s.SynthesisStream = ""

	case council.EventSynthesisComplete:
		s.Synthesis = ev.Synthesis
		if len(ev.LabelMap) > 0 {
			s.LabelMap = ev.LabelMap
		}
		s.SynthesisStream = ""

	case council.EventMetricsComplete:
		s.Metrics = ev.Metrics

	case council.EventSessionComplete:
		s.Stage = council.StageDone
		s.Done = true
		s.Loading = false
		s.Streams = nil
		s.SynthesisStream = ""

	case council.EventSessionError:
		s.Loading = false
		if ev.Error != nil {
			s.FatalError = ev.Error.Message
		}

	case council.EventSessionInterrupted:
		s.Interrupted = true
		s.Loading = false
		s.Streams = nil
	}
	return s
}

// ReduceAll folds a whole event sequence.
func ReduceAll(s Snapshot, events []council.Event) Snapshot {
	for _, ev := range events {
		s = Reduce(s, ev)
	}
	return s
}

func copyRounds(rounds []RoundView) []RoundView {
	return append([]RoundView(nil), rounds...)
}

func copyStreams(streams map[string]string) map[string]string {
	out := make(map[string]string, len(streams))
	for k, v := range streams {
		out[k] = v
	}
	return out
}

// updateRound applies fn to a copy of the round with the given index.
// Events for rounds the snapshot never saw start are dropped.
func updateRound(rounds []RoundView, index int, fn func(*RoundView)) []RoundView {
	for i := range rounds {
		if rounds[i].Index == index {
			out := copyRounds(rounds)
			fn(&out[i])
			return out
		}
	}
	return rounds
}
