package view

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synod-dev/synod/internal/council"
	"github.com/synod-dev/synod/internal/errors"
	"github.com/synod-dev/synod/internal/ranking"
)

func respEvent(stage council.Stage, round int, resp council.ParticipantResponse) council.Event {
	return council.Event{
		Type:     council.EventModelComplete,
		Stage:    stage,
		Round:    round,
		Model:    resp.Model,
		Response: &resp,
	}
}

func TestReduceAccumulatesStreams(t *testing.T) {
	s := Reduce(Snapshot{}, council.Event{Type: council.EventStageStart, Stage: council.StageResponses, Total: 2})
	require.True(t, s.Loading)
	require.Len(t, s.Rounds, 1)
	assert.True(t, s.Rounds[0].Loading)

	s = Reduce(s, council.Event{Type: council.EventModelPartialToken, Stage: council.StageResponses, Model: "a/one", Delta: "hel"})
	s = Reduce(s, council.Event{Type: council.EventModelPartialToken, Stage: council.StageResponses, Model: "a/one", Delta: "lo"})
	s = Reduce(s, council.Event{Type: council.EventModelPartialToken, Stage: council.StageResponses, Model: "b/two", Delta: "hi"})
	assert.Equal(t, "hello", s.Streams["a/one"])
	assert.Equal(t, "hi", s.Streams["b/two"])

	// Completion replaces the stream with the final response.
	s = Reduce(s, respEvent(council.StageResponses, 0, council.ParticipantResponse{Model: "a/one", Content: "hello"}))
	assert.NotContains(t, s.Streams, "a/one")
	require.Len(t, s.Rounds[0].Responses, 1)

	s = Reduce(s, council.Event{Type: council.EventStageComplete, Stage: council.StageResponses, Round: 0})
	assert.False(t, s.Rounds[0].Loading)
	assert.Empty(t, s.Streams)
}

func TestReduceIsPure(t *testing.T) {
	base := Reduce(Snapshot{}, council.Event{Type: council.EventStageStart, Stage: council.StageResponses, Total: 2})
	base = Reduce(base, council.Event{Type: council.EventModelPartialToken, Stage: council.StageResponses, Model: "a/one", Delta: "x"})

	next := Reduce(base, council.Event{Type: council.EventModelPartialToken, Stage: council.StageResponses, Model: "a/one", Delta: "y"})
	next = Reduce(next, respEvent(council.StageResponses, 0, council.ParticipantResponse{Model: "a/one", Content: "xy"}))

	// The earlier snapshot must be unaffected by later reductions.
	assert.Equal(t, "x", base.Streams["a/one"])
	assert.Empty(t, base.Rounds[0].Responses)
	assert.Equal(t, "xy", next.Rounds[0].Responses[0].Content)
}

func TestReduceUnknownEventIsNoOp(t *testing.T) {
	s := Reduce(Snapshot{}, council.Event{Type: council.EventStageStart, Stage: council.StageResponses})
	got := Reduce(s, council.Event{Type: council.EventType("future_event")})
	assert.Equal(t, s, got)
}

func TestReduceTerminalEvents(t *testing.T) {
	s := Reduce(Snapshot{}, council.Event{Type: council.EventStageStart, Stage: council.StageResponses})
	s = Reduce(s, council.Event{Type: council.EventModelPartialToken, Stage: council.StageResponses, Model: "a/one", Delta: "x"})

	interrupted := Reduce(s, council.Event{Type: council.EventSessionInterrupted, Stage: council.StageResponses})
	assert.True(t, interrupted.Interrupted)
	assert.False(t, interrupted.Loading)
	// Accumulated data survives; only activity flags clear.
	require.Len(t, interrupted.Rounds, 1)

	done := Reduce(s, council.Event{Type: council.EventSessionComplete})
	assert.Equal(t, council.StageDone, done.Stage)
	assert.False(t, done.Loading)
	assert.Empty(t, done.Streams)
}

func TestReduceSessionError(t *testing.T) {
	s := Reduce(Snapshot{}, council.Event{
		Type:  council.EventSessionError,
		Stage: council.StageResponses,
		Error: &council.ParticipantError{Message: "no participants configured"},
	})
	assert.Equal(t, "no participants configured", s.FatalError)
	assert.False(t, s.Loading)
}

func TestReduceSynthesisStreaming(t *testing.T) {
	s := Reduce(Snapshot{}, council.Event{Type: council.EventSynthesisStart, Model: "chair"})
	assert.True(t, s.Loading)

	s = Reduce(s, council.Event{Type: council.EventModelPartialToken, Stage: council.StageSynthesis, Model: "chair", Delta: "the "})
	s = Reduce(s, council.Event{Type: council.EventModelPartialToken, Stage: council.StageSynthesis, Model: "chair", Delta: "answer"})
	assert.Equal(t, "the answer", s.SynthesisStream)

	s = Reduce(s, council.Event{
		Type:      council.EventSynthesisComplete,
		Synthesis: &council.Synthesis{Model: "chair", Content: "the answer"},
		LabelMap:  map[string]string{"Response 01": "a/one"},
	})
	assert.Empty(t, s.SynthesisStream)
	require.NotNil(t, s.Synthesis)
	assert.Equal(t, "the answer", s.Synthesis.Content)
	assert.Equal(t, "a/one", s.LabelMap["Response 01"])
}

// storedSession builds a completed two-stage session the way the
// orchestrator persists one.
func storedSession() *council.Session {
	return &council.Session{
		ID:       "sess-1",
		Mode:     council.ModeCouncil,
		Question: "why?",
		Rounds: []council.Round{
			{
				Index: 0,
				Kind:  council.RoundResponses,
				Responses: []council.ParticipantResponse{
					{Model: "a/one", Content: "answer one"},
					{Model: "b/two", Content: "answer two"},
				},
			},
			{
				Index: 1,
				Kind:  council.RoundRankings,
				Responses: []council.ParticipantResponse{
					{Model: "a/one", Label: "Response 01", Content: "FINAL RANKING:...", Ranking: []string{"Response 02", "Response 01"}},
				},
				LabelMap: map[string]string{"Response 01": "a/one", "Response 02": "b/two"},
				Standings: []ranking.Standing{
					{Label: "Response 02", Model: "b/two", MeanRank: 1, Reviews: 1},
					{Label: "Response 01", Model: "a/one", MeanRank: 2, Reviews: 1},
				},
			},
		},
		Errors: []council.ParticipantError{
			{Model: "c/three", Stage: council.StageResponses, Category: errors.CategoryRateLimit, Message: "throttled"},
		},
		Synthesis: &council.Synthesis{Model: "chair", Content: "the final word"},
		Metrics:   council.Metrics{CostUSD: 0.07, TotalTokens: 70, Latency: time.Second},
	}
}

func TestReplayConvergesWithLiveStream(t *testing.T) {
	session := storedSession()

	// The live sequence for the same session, with progress and token
	// noise a stored replay does not reproduce.
	live := []council.Event{
		{Type: council.EventStageStart, Stage: council.StageResponses, Round: 0, Total: 3},
		{Type: council.EventModelPartialToken, Stage: council.StageResponses, Model: "a/one", Delta: "answer "},
		{Type: council.EventModelPartialToken, Stage: council.StageResponses, Model: "a/one", Delta: "one"},
		respEvent(council.StageResponses, 0, session.Rounds[0].Responses[0]),
		{Type: council.EventStageProgress, Stage: council.StageResponses, Round: 0, Completed: 1, Total: 3},
		{Type: council.EventModelError, Stage: council.StageResponses, Round: 0, Model: "c/three", Error: &session.Errors[0]},
		{Type: council.EventStageProgress, Stage: council.StageResponses, Round: 0, Completed: 2, Total: 3},
		respEvent(council.StageResponses, 0, session.Rounds[0].Responses[1]),
		{Type: council.EventStageProgress, Stage: council.StageResponses, Round: 0, Completed: 3, Total: 3},
		{Type: council.EventStageComplete, Stage: council.StageResponses, Round: 0},
		{Type: council.EventStageStart, Stage: council.StageRankings, Round: 1, Total: 2},
		respEvent(council.StageRankings, 1, session.Rounds[1].Responses[0]),
		{Type: council.EventStageComplete, Stage: council.StageRankings, Round: 1, Standings: session.Rounds[1].Standings},
		{Type: council.EventSynthesisStart, Model: "chair"},
		{Type: council.EventModelPartialToken, Stage: council.StageSynthesis, Model: "chair", Delta: "the final word"},
		{Type: council.EventSynthesisComplete, Synthesis: session.Synthesis, LabelMap: session.Rounds[1].LabelMap},
		{Type: council.EventMetricsComplete, Metrics: &session.Metrics},
		{Type: council.EventSessionComplete},
	}

	fromLive := ReduceAll(Snapshot{}, live)
	fromReplay := SnapshotOf(session)

	assert.Equal(t, fromLive.Stage, fromReplay.Stage)
	assert.Equal(t, fromLive.Synthesis, fromReplay.Synthesis)
	assert.Equal(t, fromLive.LabelMap, fromReplay.LabelMap)
	assert.Equal(t, fromLive.Errors, fromReplay.Errors)
	assert.Equal(t, fromLive.Metrics, fromReplay.Metrics)
	require.Len(t, fromReplay.Rounds, len(fromLive.Rounds))
	for i := range fromLive.Rounds {
		assert.Equal(t, fromLive.Rounds[i].Kind, fromReplay.Rounds[i].Kind, "round %d", i)
		assert.Equal(t, fromLive.Rounds[i].Responses, fromReplay.Rounds[i].Responses, "round %d", i)
		assert.Equal(t, fromLive.Rounds[i].Standings, fromReplay.Rounds[i].Standings, "round %d", i)
		assert.False(t, fromReplay.Rounds[i].Loading, "round %d still loading", i)
	}
	assert.Equal(t, fromLive.Done, fromReplay.Done)
	assert.True(t, fromReplay.Done)
}

func TestSnapshotOfNilSession(t *testing.T) {
	// A nil session replays to the empty terminal sequence.
	assert.Nil(t, Replay(nil))
}
