package council

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/synod-dev/synod/internal/errors"
	"github.com/synod-dev/synod/internal/fanout"
	"github.com/synod-dev/synod/internal/gateway"
	"github.com/synod-dev/synod/internal/label"
	"github.com/synod-dev/synod/internal/logging"
	"github.com/synod-dev/synod/internal/ranking"
)

// DefaultStaleAfter is how old a pending checkpoint may be and still be
// resumed.
const DefaultStaleAfter = 30 * time.Minute

// PendingStore is the durable checkpoint the orchestrator writes while a
// session is in flight. One conversation has at most one writer at a time;
// a concurrent second orchestration for the same id is a precondition
// violation handled upstream, not here.
type PendingStore interface {
	// LoadPending returns the checkpoint for a conversation, or
	// errors.ErrNoPendingState when none exists.
	LoadPending(conversationID string) (*PendingState, error)
	// MarkStarted records that a stage started, replacing any in-flight
	// partial data while keeping previously completed rounds.
	MarkStarted(conversationID string, state PendingState) error
	// AppendPartial adds one arrived response to the in-flight stage.
	AppendPartial(conversationID string, resp ParticipantResponse) error
	// MarkComplete records the finished round for the in-flight stage.
	MarkComplete(conversationID string, round Round) error
	// ClearPending removes the checkpoint after a terminal event.
	ClearPending(conversationID string) error
}

// Options configures a deliberation.
type Options struct {
	// Participants are the council model identities. Order is significant:
	// labels, standings tie-breaks, and returned rounds follow it.
	Participants []string
	// Synthesizer is the model identity that produces the final answer.
	Synthesizer string
	// AnonymizeSynthesis keeps opaque labels in the synthesizer prompt.
	// When false the synthesizer sees real identities. Default true: the
	// anonymity that kept peer review honest is kept end to end.
	AnonymizeSynthesis bool
	// StaleAfter bounds how old a pending checkpoint may be and still be
	// resumed. Zero means DefaultStaleAfter.
	StaleAfter time.Duration
}

// Request describes one deliberation run.
type Request struct {
	// ConversationID scopes storage and resumability.
	ConversationID string
	// Content is the user's question.
	Content string
	// Mode selects single-track council or multi-round debate.
	Mode Mode
	// DebateRounds is the number of rebuttal rounds in debate mode.
	DebateRounds int
	// Resume requests re-entry at the stage recorded in PendingState.
	Resume bool
	// Context is optional enrichment text prepended opaquely to the
	// first-stage prompt only.
	Context string
}

// Orchestrator sequences deliberation stages. It is single-threaded: each
// stage's fan-out completes before the next dependent stage starts, and
// stage events are strictly ordered. It always runs to completion
// server-side; abandoning the event stream is the client's business.
type Orchestrator struct {
	caller  fanout.Caller
	pending PendingStore
	logger  *logging.Logger
	opts    Options
}

// New creates an Orchestrator.
func New(caller fanout.Caller, pending PendingStore, logger *logging.Logger, opts Options) *Orchestrator {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if opts.StaleAfter == 0 {
		opts.StaleAfter = DefaultStaleAfter
	}
	return &Orchestrator{caller: caller, pending: pending, logger: logger, opts: opts}
}

// Run executes one full deliberation, emitting ordered progress events.
// Per-participant failures accumulate on the session and never abort a
// round; only configuration problems and interruption return an error.
func (o *Orchestrator) Run(ctx context.Context, req Request, emit Emitter) (*Session, error) {
	if emit == nil {
		emit = func(Event) {}
	}
	if len(o.opts.Participants) == 0 {
		err := errors.ErrNoParticipants
		emit(newSessionErrorEvent(StageResponses, err))
		return nil, err
	}
	if req.Mode == "" {
		req.Mode = ModeCouncil
	}

	session := &Session{
		ID:        uuid.NewString(),
		Mode:      req.Mode,
		Question:  req.Content,
		CreatedAt: time.Now(),
	}

	resumed := o.loadResumable(req)
	if resumed != nil {
		session.ID = resumed.SessionID
		session.Rounds = append(session.Rounds, resumed.Rounds...)
		if req.Content == "" {
			req.Content = resumed.Question
			session.Question = resumed.Question
		}
		// The checkpoint decides the pipeline: an interrupted debate must
		// continue as a debate no matter what the resume request says.
		if resumed.Mode != "" {
			req.Mode = resumed.Mode
			session.Mode = resumed.Mode
		}
		o.logger.WithConversation(req.ConversationID).Info("resuming deliberation",
			"stage", string(resumed.Stage),
			"rounds_recovered", len(resumed.Rounds),
		)
		o.replayRecovered(session, emit)
	}

	logger := o.logger.WithConversation(req.ConversationID).WithSession(session.ID)

	var err error
	switch req.Mode {
	case ModeDebate:
		err = o.runDebate(ctx, req, session, emit, logger)
	default:
		err = o.runCouncil(ctx, req, session, emit, logger)
	}
	if err != nil {
		return session, err
	}

	o.finish(req.ConversationID, session, emit, logger)
	return session, nil
}

// loadResumable returns a pending checkpoint usable for resume, or nil.
// Stale checkpoints and checkpoints with no completed round are ignored:
// re-running a stage is always correct, re-using stale data is not.
func (o *Orchestrator) loadResumable(req Request) *PendingState {
	if !req.Resume || o.pending == nil {
		return nil
	}
	p, err := o.pending.LoadPending(req.ConversationID)
	if err != nil {
		return nil
	}
	if p.IsStale(time.Now(), o.opts.StaleAfter) {
		o.logger.WithConversation(req.ConversationID).Warn("pending state is stale, restarting",
			"updated_at", p.UpdatedAt,
		)
		return nil
	}
	if len(p.Rounds) == 0 {
		return nil
	}
	return p
}

// replayRecovered re-emits the events of recovered rounds so a resumed
// stream converges to the same client snapshot as an uninterrupted one.
func (o *Orchestrator) replayRecovered(session *Session, emit Emitter) {
	for _, round := range session.Rounds {
		stage := Stage(round.Kind)
		emit(newStageStartEvent(stage, round.Index, len(round.Responses)))
		for i, resp := range round.Responses {
			emit(newModelCompleteEvent(stage, round.Index, resp))
			emit(newStageProgressEvent(stage, round.Index, i+1, len(round.Responses)))
		}
		emit(newStageCompleteEvent(stage, round.Index, round.Standings))
	}
}

// runCouncil drives the three-stage pipeline: responses, rankings,
// synthesis.
func (o *Orchestrator) runCouncil(ctx context.Context, req Request, session *Session, emit Emitter, logger *logging.Logger) error {
	if len(session.Rounds) == 0 {
		prompt := buildResponsePrompt(req.Content, req.Context)
		round := o.concurrentRound(ctx, req.ConversationID, session, roundSpec{
			stage:  StageResponses,
			kind:   RoundResponses,
			index:  0,
			system: ResponseSystemPrompt,
			prompt: func(string) string { return prompt },
			stream: true,
		}, o.opts.Participants, emit, logger)
		session.Rounds = append(session.Rounds, round)
	}
	if err := o.checkInterrupted(ctx, StageResponses, emit, logger); err != nil {
		return err
	}

	if !hasRound(session.Rounds, RoundRankings) {
		o.stageRankings(ctx, req, session, emit, logger)
	}
	if err := o.checkInterrupted(ctx, StageRankings, emit, logger); err != nil {
		return err
	}

	o.stageSynthesis(ctx, req, session, emit, logger)
	return o.checkInterrupted(ctx, StageSynthesis, emit, logger)
}

// roundSpec parameterizes one fan-out round.
type roundSpec struct {
	stage Stage
	kind  RoundKind
	index int
	// system is the system prompt for every call in the round.
	system string
	// prompt builds the per-participant prompt from its opaque label
	// (empty for non-anonymized rounds).
	prompt func(ownLabel string) string
	// labels resolves participants to labels; nil for real-identity rounds.
	labels *label.Map
	// stream forwards partial tokens as events (progressive delivery).
	stream bool
}

// concurrentRound fans one round out over the given participants and folds
// the completions into a Round. Failures are isolated per participant and
// accumulated on the session. The round completes even with zero successes.
func (o *Orchestrator) concurrentRound(ctx context.Context, conversationID string, session *Session, spec roundSpec, participants []string, emit Emitter, logger *logging.Logger) Round {
	stageLogger := logger.WithStage(string(spec.stage))
	emit(newStageStartEvent(spec.stage, spec.index, len(participants)))
	o.markStarted(conversationID, session, spec.stage)

	calls := make([]fanout.Call, 0, len(participants))
	for _, model := range participants {
		model := model
		greq := gateway.Request{Model: model, System: spec.system}
		ownLabel := ""
		if spec.labels != nil {
			ownLabel, _ = spec.labels.LabelFor(model)
		}
		greq.Prompt = spec.prompt(ownLabel)
		if spec.stream {
			greq.OnToken = func(delta string) {
				emit(newModelPartialTokenEvent(spec.stage, spec.index, model, delta))
			}
		}
		calls = append(calls, fanout.Call{Key: model, Request: greq})
	}

	// Completion callbacks are serialized by the executor, so appends to
	// the session and checkpoint need no extra locking.
	completed := 0
	onComplete := func(out fanout.Outcome) {
		completed++
		if out.Err != nil {
			stageLogger.Warn("participant failed",
				"model", out.Key,
				"category", string(errors.CategoryOf(out.Err)),
			)
			session.Errors = append(session.Errors, participantError(spec.stage, out.Key, out.Err))
			emit(newModelErrorEvent(spec.stage, spec.index, out.Key, out.Err))
		} else {
			resp := responseFrom(out.Result, spec.labels)
			o.appendPartial(conversationID, resp)
			emit(newModelCompleteEvent(spec.stage, spec.index, resp))
		}
		emit(newStageProgressEvent(spec.stage, spec.index, completed, len(participants)))
	}

	outcomes := fanout.Progressive(ctx, o.caller, calls, onComplete)

	round := Round{Index: spec.index, Kind: spec.kind}
	for _, out := range fanout.Successes(outcomes) {
		round.Responses = append(round.Responses, responseFrom(out.Result, spec.labels))
	}
	if spec.labels != nil {
		round.LabelMap = spec.labels.ToWire()
	}
	if fanout.AllFailed(outcomes) {
		stageLogger.Error("all participants failed", "participants", len(participants))
	}

	o.markComplete(conversationID, round)
	emit(newStageCompleteEvent(spec.stage, spec.index, nil))
	return round
}

// stageRankings builds the label map from stage-1 survivors, fans the
// anonymized review prompt out in batch mode, parses the rankings, and
// aggregates standings.
func (o *Orchestrator) stageRankings(ctx context.Context, req Request, session *Session, emit Emitter, logger *logging.Logger) {
	stageLogger := logger.WithStage(string(StageRankings))
	first := session.Rounds[0]
	index := len(session.Rounds)

	survivors := make([]string, 0, len(first.Responses))
	for _, r := range first.Responses {
		survivors = append(survivors, r.Model)
	}

	emit(newStageStartEvent(StageRankings, index, len(survivors)))
	o.markStarted(req.ConversationID, session, StageRankings)

	if len(survivors) == 0 {
		// Nothing to rank: the stage still completes so the session can
		// reach a terminal state.
		round := Round{Index: index, Kind: RoundRankings}
		o.markComplete(req.ConversationID, round)
		session.Rounds = append(session.Rounds, round)
		emit(newStageCompleteEvent(StageRankings, index, nil))
		return
	}

	labels, err := label.New(survivors)
	if err != nil {
		// Duplicate participants are rejected at configuration time; this
		// is unreachable with a validated config but must not crash.
		stageLogger.Error("label assignment failed", "error", err)
		round := Round{Index: index, Kind: RoundRankings}
		o.markComplete(req.ConversationID, round)
		session.Rounds = append(session.Rounds, round)
		emit(newStageCompleteEvent(StageRankings, index, nil))
		return
	}

	anonymized := labeledResponses(first.Responses, labels)
	reviewPrompt := buildReviewPrompt(req.Content, anonymized)

	calls := make([]fanout.Call, 0, len(survivors))
	for _, model := range survivors {
		calls = append(calls, fanout.Call{Key: model, Request: gateway.Request{
			Model:  model,
			Prompt: reviewPrompt,
		}})
	}

	outcomes := fanout.Batch(ctx, o.caller, calls)

	round := Round{Index: index, Kind: RoundRankings, LabelMap: labels.ToWire()}
	var parsed [][]string
	for _, out := range outcomes {
		if out.Err != nil {
			stageLogger.Warn("reviewer failed",
				"model", out.Key,
				"category", string(errors.CategoryOf(out.Err)),
			)
			session.Errors = append(session.Errors, participantError(StageRankings, out.Key, out.Err))
			emit(newModelErrorEvent(StageRankings, index, out.Key, out.Err))
			continue
		}
		resp := responseFrom(out.Result, labels)
		resp.Ranking = ranking.Parse(out.Result.Content, labels.Labels())
		if len(resp.Ranking) == 0 {
			stageLogger.Warn("unparseable evaluation", "model", out.Key)
		} else {
			parsed = append(parsed, resp.Ranking)
		}
		round.Responses = append(round.Responses, resp)
		emit(newModelCompleteEvent(StageRankings, index, resp))
	}

	round.Standings = ranking.Aggregate(parsed, labels)
	o.markComplete(req.ConversationID, round)
	session.Rounds = append(session.Rounds, round)
	emit(newStageCompleteEvent(StageRankings, index, round.Standings))
}

// stageSynthesis issues the single synthesizer call. A failed call, or no
// material to synthesize from, yields marker-prefixed content rather than
// an aborted session: the session still reaches done and only synthesis
// needs a retry.
func (o *Orchestrator) stageSynthesis(ctx context.Context, req Request, session *Session, emit Emitter, logger *logging.Logger) {
	emit(newSynthesisStartEvent(o.opts.Synthesizer))
	o.markStarted(req.ConversationID, session, StageSynthesis)

	synthesis := o.synthesize(ctx, session, emit, logger)
	session.Synthesis = &synthesis

	emit(newSynthesisCompleteEvent(synthesis, sessionLabelMap(session)))
	o.clearPending(req.ConversationID)
}

// synthesize builds the synthesizer prompt from the session's rounds and
// performs the call.
func (o *Orchestrator) synthesize(ctx context.Context, session *Session, emit Emitter, logger *logging.Logger) Synthesis {
	stageLogger := logger.WithStage(string(StageSynthesis))

	material, standings := synthesisMaterial(session)
	if len(material) == 0 {
		stageLogger.Error("no material to synthesize")
		session.Errors = append(session.Errors, ParticipantError{
			Model:    o.opts.Synthesizer,
			Stage:    StageSynthesis,
			Category: errors.CategoryUnknown,
			Message:  "no responses to synthesize from",
		})
		return Synthesis{
			Model:   o.opts.Synthesizer,
			Content: fmt.Sprintf("%s unknown: no responses to synthesize from", SynthesisFailedMarker),
		}
	}

	var prompt string
	if session.Mode == ModeDebate {
		prompt = fmt.Sprintf(SynthesisPromptTemplate,
			session.Question,
			buildTranscript(session.Rounds),
			"(no peer ranking available)",
		)
	} else {
		prompt = buildSynthesisPrompt(session.Question, material, standings, o.opts.AnonymizeSynthesis)
	}

	res, err := o.caller.Complete(ctx, gateway.Request{
		Model:  o.opts.Synthesizer,
		Prompt: prompt,
		OnToken: func(delta string) {
			emit(newModelPartialTokenEvent(StageSynthesis, 0, o.opts.Synthesizer, delta))
		},
	})
	if err != nil {
		stageLogger.Error("synthesizer failed",
			"model", o.opts.Synthesizer,
			"category", string(errors.CategoryOf(err)),
		)
		session.Errors = append(session.Errors, participantError(StageSynthesis, o.opts.Synthesizer, err))
		emit(newModelErrorEvent(StageSynthesis, 0, o.opts.Synthesizer, err))
		return Synthesis{
			Model:   o.opts.Synthesizer,
			Content: fmt.Sprintf("%s %s: %s", SynthesisFailedMarker, errors.CategoryOf(err), errorMessage(err)),
		}
	}

	return Synthesis{
		Model:     o.opts.Synthesizer,
		Content:   res.Content,
		Reasoning: res.Reasoning,
		Metrics:   metricsFrom(res),
	}
}

// RetrySynthesis reruns only the synthesis stage against an existing
// session's rounds, replacing the Synthesis entity and recomputing totals.
// Prior rounds are untouched.
func (o *Orchestrator) RetrySynthesis(ctx context.Context, conversationID string, session *Session, emit Emitter) *Session {
	if emit == nil {
		emit = func(Event) {}
	}
	logger := o.logger.WithConversation(conversationID).WithSession(session.ID)

	emit(newSynthesisStartEvent(o.opts.Synthesizer))
	synthesis := o.synthesize(ctx, session, emit, logger)
	session.Synthesis = &synthesis
	emit(newSynthesisCompleteEvent(synthesis, sessionLabelMap(session)))

	o.finish(conversationID, session, emit, logger)
	return session
}

// runDebate drives the multi-round variant: opening, N rebuttals with
// escalating context, closing, synthesis. The same fan-out, ledger, and
// checkpoint machinery carries it; round kind is the discriminator.
func (o *Orchestrator) runDebate(ctx context.Context, req Request, session *Session, emit Emitter, logger *logging.Logger) error {
	rebuttals := req.DebateRounds
	if rebuttals < 1 {
		rebuttals = 1
	}

	if len(session.Rounds) == 0 {
		prompt := buildResponsePrompt(fmt.Sprintf(OpeningPromptTemplate, req.Content), req.Context)
		round := o.concurrentRound(ctx, req.ConversationID, session, roundSpec{
			stage:  StageOpening,
			kind:   RoundOpening,
			index:  0,
			prompt: func(string) string { return prompt },
			stream: true,
		}, o.opts.Participants, emit, logger)
		session.Rounds = append(session.Rounds, round)
	}
	if err := o.checkInterrupted(ctx, StageOpening, emit, logger); err != nil {
		return err
	}

	survivors := make([]string, 0, len(session.Rounds[0].Responses))
	for _, r := range session.Rounds[0].Responses {
		survivors = append(survivors, r.Model)
	}

	var labels *label.Map
	if len(survivors) > 0 {
		var err error
		labels, err = label.New(survivors)
		if err != nil {
			return err
		}
		// The opening round was produced before labels existed; attribute
		// it retroactively so transcripts stay anonymous.
		relabelRound(&session.Rounds[0], labels)
	}

	for i := len(session.Rounds); i <= rebuttals && len(survivors) > 0; i++ {
		rebuttalIndex := i
		round := o.concurrentRound(ctx, req.ConversationID, session, roundSpec{
			stage: StageRebuttal,
			kind:  RoundRebuttal,
			index: rebuttalIndex,
			prompt: func(ownLabel string) string {
				return fmt.Sprintf(RebuttalPromptTemplate, ownLabel, rebuttalIndex, req.Content, buildTranscript(session.Rounds))
			},
			labels: labels,
		}, survivors, emit, logger)
		session.Rounds = append(session.Rounds, round)
		if err := o.checkInterrupted(ctx, StageRebuttal, emit, logger); err != nil {
			return err
		}
	}

	if len(survivors) > 0 && !hasRound(session.Rounds, RoundClosing) {
		round := o.concurrentRound(ctx, req.ConversationID, session, roundSpec{
			stage: StageClosing,
			kind:  RoundClosing,
			index: len(session.Rounds),
			prompt: func(ownLabel string) string {
				return fmt.Sprintf(ClosingPromptTemplate, ownLabel, req.Content, buildTranscript(session.Rounds))
			},
			labels: labels,
		}, survivors, emit, logger)
		session.Rounds = append(session.Rounds, round)
		if err := o.checkInterrupted(ctx, StageClosing, emit, logger); err != nil {
			return err
		}
	}

	o.stageSynthesis(ctx, req, session, emit, logger)
	return o.checkInterrupted(ctx, StageSynthesis, emit, logger)
}

// finish computes session totals and emits the terminal events. Metrics
// aggregation is monotonic: each completed stage only adds to the totals.
func (o *Orchestrator) finish(conversationID string, session *Session, emit Emitter, logger *logging.Logger) {
	session.Metrics = sessionMetrics(session.Rounds, session.Synthesis)
	emit(newMetricsCompleteEvent(session.Metrics))
	emit(newSessionCompleteEvent())
	logger.Info("deliberation complete",
		"rounds", len(session.Rounds),
		"errors", len(session.Errors),
		"cost_usd", session.Metrics.CostUSD,
		"total_tokens", session.Metrics.TotalTokens,
	)
}

// checkInterrupted turns context cancellation between stages into an
// interrupted session. The pending checkpoint is intentionally left in
// place: it is what resume re-enters from.
func (o *Orchestrator) checkInterrupted(ctx context.Context, stage Stage, emit Emitter, logger *logging.Logger) error {
	if ctx.Err() == nil {
		return nil
	}
	logger.Warn("deliberation interrupted", "stage", string(stage))
	emit(newSessionInterruptedEvent(stage))
	return fmt.Errorf("deliberation interrupted at %s: %w", stage, ctx.Err())
}

// Checkpoint helpers. A nil store disables checkpointing (tests, one-shot
// runs); checkpoint write failures are logged and the deliberation goes on:
// losing resumability is better than losing the session.

func (o *Orchestrator) markStarted(conversationID string, session *Session, stage Stage) {
	if o.pending == nil {
		return
	}
	err := o.pending.MarkStarted(conversationID, PendingState{
		SessionID: session.ID,
		Question:  session.Question,
		Mode:      session.Mode,
		Stage:     stage,
		Rounds:    session.Rounds,
	})
	if err != nil {
		o.logger.Error("failed to checkpoint stage start", "stage", string(stage), "error", err)
	}
}

func (o *Orchestrator) appendPartial(conversationID string, resp ParticipantResponse) {
	if o.pending == nil {
		return
	}
	if err := o.pending.AppendPartial(conversationID, resp); err != nil {
		o.logger.Error("failed to checkpoint partial response", "model", resp.Model, "error", err)
	}
}

func (o *Orchestrator) markComplete(conversationID string, round Round) {
	if o.pending == nil {
		return
	}
	if err := o.pending.MarkComplete(conversationID, round); err != nil {
		o.logger.Error("failed to checkpoint round completion", "kind", string(round.Kind), "error", err)
	}
}

func (o *Orchestrator) clearPending(conversationID string) {
	if o.pending == nil {
		return
	}
	if err := o.pending.ClearPending(conversationID); err != nil {
		o.logger.Error("failed to clear pending state", "error", err)
	}
}

// -----------------------------------------------------------------------------
// Conversions
// -----------------------------------------------------------------------------

// responseFrom converts a gateway result into a participant response,
// attributing the round label when the round is anonymized.
func responseFrom(res *gateway.Result, labels *label.Map) ParticipantResponse {
	resp := ParticipantResponse{
		Model:     res.Model,
		Content:   res.Content,
		Reasoning: res.Reasoning,
		Metrics:   metricsFrom(res),
	}
	if labels != nil {
		resp.Label, _ = labels.LabelFor(res.Model)
	}
	return resp
}

func metricsFrom(res *gateway.Result) Metrics {
	return Metrics{
		CostUSD:          res.Usage.CostUSD,
		PromptTokens:     res.Usage.PromptTokens,
		CompletionTokens: res.Usage.CompletionTokens,
		TotalTokens:      res.Usage.TotalTokens,
		Latency:          res.Latency,
	}
}

func participantError(stage Stage, model string, err error) ParticipantError {
	pe := ParticipantError{
		Model:    model,
		Stage:    stage,
		Category: errors.CategoryOf(err),
		Message:  err.Error(),
	}
	var gwErr *errors.GatewayError
	if errors.As(err, &gwErr) {
		pe.Message = gwErr.Message()
	}
	return pe
}

func errorMessage(err error) string {
	var gwErr *errors.GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Message()
	}
	return err.Error()
}

// labeledResponses returns copies of the responses carrying their opaque
// labels, for anonymized prompt building.
func labeledResponses(responses []ParticipantResponse, labels *label.Map) []ParticipantResponse {
	out := make([]ParticipantResponse, len(responses))
	for i, r := range responses {
		r.Label, _ = labels.LabelFor(r.Model)
		out[i] = r
	}
	return out
}

// relabelRound stamps labels onto an already-completed round.
func relabelRound(round *Round, labels *label.Map) {
	for i := range round.Responses {
		round.Responses[i].Label, _ = labels.LabelFor(round.Responses[i].Model)
	}
	round.LabelMap = labels.ToWire()
}

// synthesisMaterial selects what the synthesizer sees: the labeled
// first-round responses plus standings for council mode, or every debate
// round for debate mode.
func synthesisMaterial(session *Session) ([]ParticipantResponse, []ranking.Standing) {
	if len(session.Rounds) == 0 {
		return nil, nil
	}

	var material []ParticipantResponse
	var standings []ranking.Standing

	first := session.Rounds[0]
	if labelMap := sessionLabelMap(session); labelMap != nil {
		material = labeledResponses(first.Responses, label.FromStored(labelMap))
	} else {
		material = first.Responses
	}

	for _, round := range session.Rounds {
		if round.Kind == RoundRankings {
			standings = round.Standings
		}
	}

	if session.Mode == ModeDebate {
		// Debate synthesis reads the whole transcript; material is only
		// used for the empty-session check.
		material = nil
		for _, round := range session.Rounds {
			material = append(material, round.Responses...)
		}
	}
	return material, standings
}

// sessionLabelMap returns the label map of the session's anonymized round,
// or nil when no round was anonymized.
func sessionLabelMap(session *Session) map[string]string {
	for _, round := range session.Rounds {
		if len(round.LabelMap) > 0 {
			return round.LabelMap
		}
	}
	return nil
}

func hasRound(rounds []Round, kind RoundKind) bool {
	for _, r := range rounds {
		if r.Kind == kind {
			return true
		}
	}
	return false
}
