// Package council runs a structured multi-model deliberation: independent
// model backends answer the same question, anonymously critique each
// other's answers, and a designated synthesizer produces the final answer.
// The orchestrator sequences stages, checkpoints progress for resumability,
// and emits ordered progress events.
package council

import (
	"strings"
	"time"

	"github.com/synod-dev/synod/internal/errors"
	"github.com/synod-dev/synod/internal/ranking"
)

// Stage identifies a step of the deliberation state machine. Debate-mode
// round kinds double as stages so events stay uniform across modes.
type Stage string

const (
	StageResponses Stage = "responses"
	StageRankings  Stage = "rankings"
	StageSynthesis Stage = "synthesis"
	StageDone      Stage = "done"

	// Debate-mode stages.
	StageOpening  Stage = "opening"
	StageRebuttal Stage = "rebuttal"
	StageClosing  Stage = "closing"
)

// RoundKind discriminates what a round's responses are.
type RoundKind string

const (
	RoundResponses RoundKind = "responses"
	RoundRankings  RoundKind = "rankings"
	RoundOpening   RoundKind = "opening"
	RoundRebuttal  RoundKind = "rebuttal"
	RoundClosing   RoundKind = "closing"
)

// Mode selects the deliberation shape.
type Mode string

const (
	// ModeCouncil is the single-track pipeline: responses, rankings, synthesis.
	ModeCouncil Mode = "council"
	// ModeDebate is the multi-round variant: opening, N rebuttals, closing,
	// synthesis.
	ModeDebate Mode = "debate"
)

// SynthesisFailedMarker prefixes synthesis content when the synthesizer
// call failed. The session still completes; clients recognize the marker
// and offer a synthesis-only retry.
const SynthesisFailedMarker = "[synthesis-failed]"

// Metrics aggregates cost, token counts, and latency. Latencies compose as
// max within a concurrent stage and sum across sequential stages.
type Metrics struct {
	CostUSD          float64       `json:"cost_usd"`
	PromptTokens     int           `json:"prompt_tokens"`
	CompletionTokens int           `json:"completion_tokens"`
	TotalTokens      int           `json:"total_tokens"`
	Latency          time.Duration `json:"latency_ns"`
}

// ParticipantResponse is one model's contribution to a round.
type ParticipantResponse struct {
	// Label is the opaque label the response is shown under, when the round
	// is anonymized. Empty for rounds that use real identities.
	Label string `json:"label,omitempty"`
	// Model is the backing model identity.
	Model string `json:"model"`
	// Content is the response text.
	Content string `json:"content"`
	// Reasoning is the model's reasoning trace, when available.
	Reasoning string `json:"reasoning,omitempty"`
	// Metrics is the per-call accounting.
	Metrics Metrics `json:"metrics"`
	// Ranking is the ordered label list parsed from this response, set only
	// in rankings rounds.
	Ranking []string `json:"ranking,omitempty"`
}

// Round is one completed pass of participants producing responses.
type Round struct {
	Index     int                   `json:"index"`
	Kind      RoundKind             `json:"kind"`
	Responses []ParticipantResponse `json:"responses"`
	// LabelMap is the label→model bijection for anonymized rounds.
	LabelMap map[string]string `json:"label_map,omitempty"`
	// Standings carries the aggregate peer ranking, set on rankings rounds.
	Standings []ranking.Standing `json:"standings,omitempty"`
}

// Synthesis is the final answer produced from all prior rounds.
type Synthesis struct {
	Model     string  `json:"model"`
	Content   string  `json:"content"`
	Reasoning string  `json:"reasoning,omitempty"`
	Metrics   Metrics `json:"metrics"`
}

// Failed reports whether this synthesis is an error placeholder that should
// be retried rather than a real answer.
func (s *Synthesis) Failed() bool {
	return s != nil && strings.HasPrefix(s.Content, SynthesisFailedMarker)
}

// ParticipantError records one failed model call, grouped by category for
// display.
type ParticipantError struct {
	Model    string          `json:"model"`
	Stage    Stage           `json:"stage"`
	Category errors.Category `json:"category"`
	Message  string          `json:"message"`
}

// Session is one full deliberation.
type Session struct {
	ID        string             `json:"id"`
	Mode      Mode               `json:"mode"`
	Question  string             `json:"question"`
	Rounds    []Round            `json:"rounds"`
	Synthesis *Synthesis         `json:"synthesis,omitempty"`
	Errors    []ParticipantError `json:"errors,omitempty"`
	Metrics   Metrics            `json:"metrics"`
	CreatedAt time.Time          `json:"created_at"`
}

// PendingState is the durable checkpoint of an in-flight or interrupted
// session. It exists exactly while a stage has started without a recorded
// terminal event.
type PendingState struct {
	// SessionID ties the checkpoint to the session that created it.
	SessionID string `json:"session_id"`
	// Question is the user content the session is deliberating.
	Question string `json:"question"`
	// Mode is the deliberation shape of the interrupted session.
	Mode Mode `json:"mode"`
	// Stage is the last stage that started.
	Stage Stage `json:"stage"`
	// StageComplete reports whether that stage recorded all of its data
	// before the interruption.
	StageComplete bool `json:"stage_complete"`
	// Rounds holds the fully completed rounds so far.
	Rounds []Round `json:"rounds,omitempty"`
	// Partial holds responses of the in-flight round, appended as they
	// arrive.
	Partial []ParticipantResponse `json:"partial,omitempty"`
	// UpdatedAt is the time of the last checkpoint write.
	UpdatedAt time.Time `json:"updated_at"`
}

// IsStale reports whether the checkpoint is too old to resume.
func (p *PendingState) IsStale(now time.Time, threshold time.Duration) bool {
	return now.Sub(p.UpdatedAt) > threshold
}
