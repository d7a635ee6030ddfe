package council

import (
	"github.com/synod-dev/synod/internal/errors"
	"github.com/synod-dev/synod/internal/ranking"
)

// EventType discriminates the progress event union. Values are stable wire
// strings consumed by remote clients.
type EventType string

const (
	EventStageStart         EventType = "stage_start"
	EventStageProgress      EventType = "stage_progress"
	EventModelPartialToken  EventType = "model_partial_token"
	EventModelComplete      EventType = "model_complete"
	EventModelError         EventType = "model_error"
	EventStageComplete      EventType = "stage_complete"
	EventSynthesisStart     EventType = "synthesis_start"
	EventSynthesisComplete  EventType = "synthesis_complete"
	EventMetricsComplete    EventType = "metrics_complete"
	EventSessionComplete    EventType = "session_complete"
	EventSessionError       EventType = "session_error"
	EventSessionInterrupted EventType = "session_interrupted"
)

// Event is one typed progress record. Exactly the fields relevant to the
// Type are populated; everything else stays zero and is omitted from the
// wire form.
type Event struct {
	Type  EventType `json:"type"`
	Stage Stage     `json:"stage,omitempty"`
	// Round is the round index the event belongs to.
	Round int `json:"round,omitempty"`
	// Model identifies the participant for model-scoped events.
	Model string `json:"model,omitempty"`
	// Delta carries one streamed content fragment (model_partial_token).
	Delta string `json:"delta,omitempty"`
	// Response carries the completed participant response (model_complete).
	Response *ParticipantResponse `json:"response,omitempty"`
	// Error carries a failed participant call (model_error, session_error).
	Error *ParticipantError `json:"error,omitempty"`
	// Completed/Total report stage progress (stage_progress).
	Completed int `json:"completed,omitempty"`
	Total     int `json:"total,omitempty"`
	// Standings carries aggregate peer rankings (stage_complete of a
	// rankings round).
	Standings []ranking.Standing `json:"standings,omitempty"`
	// LabelMap reveals the label→model bijection (synthesis_complete).
	LabelMap map[string]string `json:"label_map,omitempty"`
	// Synthesis carries the final answer (synthesis_complete).
	Synthesis *Synthesis `json:"synthesis,omitempty"`
	// Metrics carries session totals (metrics_complete).
	Metrics *Metrics `json:"metrics,omitempty"`
}

// Emitter receives ordered progress events. Implementations must be safe
// for concurrent use: token deltas from parallel streams arrive on gateway
// goroutines while stage events arrive on the orchestrator goroutine.
type Emitter func(Event)

func newStageStartEvent(stage Stage, round, total int) Event {
	return Event{Type: EventStageStart, Stage: stage, Round: round, Total: total}
}

func newStageProgressEvent(stage Stage, round, completed, total int) Event {
	return Event{Type: EventStageProgress, Stage: stage, Round: round, Completed: completed, Total: total}
}

func newModelPartialTokenEvent(stage Stage, round int, model, delta string) Event {
	return Event{Type: EventModelPartialToken, Stage: stage, Round: round, Model: model, Delta: delta}
}

func newModelCompleteEvent(stage Stage, round int, resp ParticipantResponse) Event {
	return Event{Type: EventModelComplete, Stage: stage, Round: round, Model: resp.Model, Response: &resp}
}

func newModelErrorEvent(stage Stage, round int, model string, err error) Event {
	pe := &ParticipantError{
		Model:    model,
		Stage:    stage,
		Category: errors.CategoryOf(err),
		Message:  err.Error(),
	}
	var gwErr *errors.GatewayError
	if errors.As(err, &gwErr) {
		pe.Message = gwErr.Message()
	}
	return Event{Type: EventModelError, Stage: stage, Round: round, Model: model, Error: pe}
}

func newStageCompleteEvent(stage Stage, round int, standings []ranking.Standing) Event {
	return Event{Type: EventStageComplete, Stage: stage, Round: round, Standings: standings}
}

func newSynthesisStartEvent(model string) Event {
	return Event{Type: EventSynthesisStart, Stage: StageSynthesis, Model: model}
}

func newSynthesisCompleteEvent(s Synthesis, labelMap map[string]string) Event {
	return Event{Type: EventSynthesisComplete, Stage: StageSynthesis, Model: s.Model, Synthesis: &s, LabelMap: labelMap}
}

func newMetricsCompleteEvent(m Metrics) Event {
	return Event{Type: EventMetricsComplete, Stage: StageDone, Metrics: &m}
}

func newSessionCompleteEvent() Event {
	return Event{Type: EventSessionComplete, Stage: StageDone}
}

func newSessionErrorEvent(stage Stage, err error) Event {
	return Event{
		Type:  EventSessionError,
		Stage: stage,
		Error: &ParticipantError{Stage: stage, Category: errors.CategoryOf(err), Message: err.Error()},
	}
}

func newSessionInterruptedEvent(stage Stage) Event {
	return Event{Type: EventSessionInterrupted, Stage: stage}
}
