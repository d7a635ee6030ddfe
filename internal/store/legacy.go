package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/synod-dev/synod/internal/council"
	"github.com/synod-dev/synod/internal/ranking"
)

// Older documents stored assistant turns as fixed stage1/stage2/stage3
// fields with single-letter labels ("Response A") instead of the unified
// round list. They are converted to the canonical shape exactly once, at
// load; nothing past this file knows the old shape existed.

type legacyResponse struct {
	Model     string `json:"model"`
	Response  string `json:"response"`
	Reasoning string `json:"reasoning,omitempty"`
}

type legacyRanking struct {
	Model   string   `json:"model"`
	Ranking string   `json:"ranking"`
	Parsed  []string `json:"parsed_ranking,omitempty"`
}

type legacyAggregate struct {
	Label         string  `json:"label"`
	AverageRank   float64 `json:"average_rank"`
	RankingsCount int     `json:"rankings_count"`
}

type legacyMessage struct {
	Role         string            `json:"role"`
	Content      string            `json:"content"`
	Timestamp    time.Time         `json:"timestamp"`
	Stage1       []legacyResponse  `json:"stage1"`
	Stage2       []legacyRanking   `json:"stage2"`
	Stage3       *legacyResponse   `json:"stage3"`
	LabelToModel map[string]string `json:"label_to_model"`
	Aggregate    []legacyAggregate `json:"aggregate_rankings"`
}

// rawConversation defers message decoding so each message can be sniffed
// for shape individually.
type rawConversation struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Messages  []json.RawMessage `json:"messages"`
}

func decodeConversation(data []byte) (*Conversation, error) {
	var raw rawConversation
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	conv := &Conversation{
		ID:        raw.ID,
		Title:     raw.Title,
		CreatedAt: raw.CreatedAt,
		UpdatedAt: raw.UpdatedAt,
	}
	for i, rm := range raw.Messages {
		msg, err := decodeMessage(rm)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		conv.Messages = append(conv.Messages, msg)
	}
	return conv, nil
}

// decodeMessage sniffs the stored shape: the presence of a stage1 field
// marks the old layout.
func decodeMessage(data []byte) (Message, error) {
	var probe struct {
		Stage1 json.RawMessage `json:"stage1"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return Message{}, err
	}

	if len(probe.Stage1) == 0 {
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			return Message{}, err
		}
		return msg, nil
	}

	var legacy legacyMessage
	if err := json.Unmarshal(data, &legacy); err != nil {
		return Message{}, err
	}
	return normalizeLegacy(legacy), nil
}

// normalizeLegacy rebuilds the canonical session from the stage-keyed
// fields. The recorded letter labels are kept as stored so existing
// rankings stay resolvable; anonymity holds because the stored stage-2
// texts already reference only labels.
func normalizeLegacy(legacy legacyMessage) Message {
	session := &council.Session{
		Mode:      council.ModeCouncil,
		CreatedAt: legacy.Timestamp,
	}

	first := council.Round{Index: 0, Kind: council.RoundResponses}
	for _, r := range legacy.Stage1 {
		first.Responses = append(first.Responses, council.ParticipantResponse{
			Model:     r.Model,
			Content:   r.Response,
			Reasoning: r.Reasoning,
		})
	}
	session.Rounds = append(session.Rounds, first)

	if len(legacy.Stage2) > 0 || len(legacy.LabelToModel) > 0 {
		second := council.Round{
			Index:    1,
			Kind:     council.RoundRankings,
			LabelMap: legacy.LabelToModel,
		}
		for _, r := range legacy.Stage2 {
			second.Responses = append(second.Responses, council.ParticipantResponse{
				Model:   r.Model,
				Content: r.Ranking,
				Ranking: r.Parsed,
			})
		}
		second.Standings = legacyStandings(legacy.Aggregate, legacy.LabelToModel)
		session.Rounds = append(session.Rounds, second)
	}

	if legacy.Stage3 != nil {
		session.Synthesis = &council.Synthesis{
			Model:     legacy.Stage3.Model,
			Content:   legacy.Stage3.Response,
			Reasoning: legacy.Stage3.Reasoning,
		}
	}

	content := legacy.Content
	if content == "" && session.Synthesis != nil {
		content = session.Synthesis.Content
	}
	return Message{
		Role:      legacy.Role,
		Content:   content,
		Session:   session,
		CreatedAt: legacy.Timestamp,
	}
}

func legacyStandings(aggregates []legacyAggregate, labelToModel map[string]string) []ranking.Standing {
	if len(aggregates) == 0 {
		return nil
	}
	standings := make([]ranking.Standing, 0, len(aggregates))
	for _, a := range aggregates {
		standings = append(standings, ranking.Standing{
			Label:    a.Label,
			Model:    labelToModel[a.Label],
			MeanRank: a.AverageRank,
			Reviews:  a.RankingsCount,
		})
	}
	sort.SliceStable(standings, func(i, j int) bool {
		if standings[i].MeanRank != standings[j].MeanRank {
			return standings[i].MeanRank < standings[j].MeanRank
		}
		return standings[i].Reviews > standings[j].Reviews
	})
	return standings
}
