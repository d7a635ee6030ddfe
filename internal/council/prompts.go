package council

import (
	"fmt"
	"strings"

	"github.com/synod-dev/synod/internal/label"
	"github.com/synod-dev/synod/internal/ranking"
)

// ResponseSystemPrompt frames the first-stage answer.
const ResponseSystemPrompt = `You are one of several independent AI models answering the same question.
Answer thoroughly and directly using your own judgment. Do not speculate about
what other models might say.`

// ReviewPromptTemplate is the peer-evaluation prompt. Responses are shown
// under opaque labels only; the reviewer must end with the ranking marker.
const ReviewPromptTemplate = `You are evaluating anonymized responses to the following question.

## Question
%s

## Responses
%s

## Your Task

1. Evaluate each response for accuracy, depth, and clarity.
2. Briefly justify your assessment of each response.
3. End your evaluation with the literal line "%s" followed by every response
   label, best first, one per line. Example:

%s
%s

Do not guess which model wrote which response.`

// SynthesisPromptTemplate asks the synthesizer for the final answer.
const SynthesisPromptTemplate = `You are the chairman of a council of AI models that has deliberated on a question.

## Question
%s

## Council Responses
%s

## Peer Ranking (best first)
%s

Produce the single best final answer to the question. Draw on the strongest
material from the council responses, weighted by the peer ranking, and
resolve any contradictions between them. Answer the question directly; do
not describe the deliberation process.`

// Debate-mode templates.

// OpeningPromptTemplate starts a debate round.
const OpeningPromptTemplate = `You are one of several AI models in a structured debate.

## Question
%s

State your opening position. Commit to a clear stance and support it with
your strongest arguments.`

// RebuttalPromptTemplate continues a debate with the transcript so far.
const RebuttalPromptTemplate = `You are %s in a structured debate (rebuttal round %d).

## Question
%s

## Transcript so far
%s

Respond to the other positions: concede points that are correct, rebut
points that are not, and strengthen your own case with new material.`

// ClosingPromptTemplate ends a debate.
const ClosingPromptTemplate = `You are %s in a structured debate, now at closing statements.

## Question
%s

## Transcript so far
%s

Give your closing statement: your final position in its strongest, most
concise form, acknowledging what the debate has changed about it.`

// buildResponsePrompt assembles the first-stage prompt. Enrichment context,
// when present, is prepended opaquely: the pipeline attaches no meaning to it.
func buildResponsePrompt(question, context string) string {
	if context == "" {
		return question
	}
	return context + "\n\n" + question
}

// buildReviewPrompt renders the peer-evaluation prompt for one reviewer.
// Content references labels only, never real identity.
func buildReviewPrompt(question string, responses []ParticipantResponse) string {
	var sb strings.Builder
	for _, r := range responses {
		fmt.Fprintf(&sb, "### %s\n%s\n\n", r.Label, r.Content)
	}
	return fmt.Sprintf(ReviewPromptTemplate,
		question,
		strings.TrimRight(sb.String(), "\n"),
		ranking.Marker,
		ranking.Marker,
		exampleRankingList(len(responses)),
	)
}

// exampleRankingList renders an example ordered list for the review prompt.
func exampleRankingList(n int) string {
	if n > 3 {
		n = 3
	}
	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		lines = append(lines, label.Format(i))
	}
	return strings.Join(lines, "\n")
}

// buildSynthesisPrompt renders the synthesizer prompt. When anonymize is
// set, responses keep their opaque labels even though peer review has
// ended; otherwise real identities are shown.
func buildSynthesisPrompt(question string, responses []ParticipantResponse, standings []ranking.Standing, anonymize bool) string {
	var sb strings.Builder
	for _, r := range responses {
		name := r.Label
		if !anonymize || name == "" {
			name = r.Model
		}
		fmt.Fprintf(&sb, "### %s\n%s\n\n", name, r.Content)
	}

	var rank strings.Builder
	if len(standings) == 0 {
		rank.WriteString("(no peer ranking available)")
	}
	for i, s := range standings {
		name := s.Label
		if !anonymize {
			name = s.Model
		}
		if s.Reviews == 0 {
			fmt.Fprintf(&rank, "%d. %s (unranked)\n", i+1, name)
			continue
		}
		fmt.Fprintf(&rank, "%d. %s (mean rank %.2f across %d reviews)\n", i+1, name, s.MeanRank, s.Reviews)
	}

	return fmt.Sprintf(SynthesisPromptTemplate,
		question,
		strings.TrimRight(sb.String(), "\n"),
		strings.TrimRight(rank.String(), "\n"),
	)
}

// buildTranscript renders prior debate rounds by label, oldest first.
// Later rounds see strictly more context than earlier ones.
func buildTranscript(rounds []Round) string {
	var sb strings.Builder
	for _, round := range rounds {
		fmt.Fprintf(&sb, "## Round %d (%s)\n\n", round.Index+1, round.Kind)
		for _, r := range round.Responses {
			name := r.Label
			if name == "" {
				name = r.Model
			}
			fmt.Fprintf(&sb, "### %s\n%s\n\n", name, r.Content)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
