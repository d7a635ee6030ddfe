package ranking

import (
	"sort"

	"github.com/synod-dev/synod/internal/label"
)

// Standing is one participant's aggregate position across all reviewers.
type Standing struct {
	// Label is the participant's opaque label for the round.
	Label string `json:"label"`
	// Model is the participant's real identity.
	Model string `json:"model"`
	// MeanRank is the average 1-based position assigned by the reviewers
	// that ranked this participant. Zero when Reviews is zero.
	MeanRank float64 `json:"mean_rank"`
	// Reviews is the number of reviewers that ranked this participant.
	Reviews int `json:"reviews"`
}

// Aggregate computes cross-reviewer standings from parsed rankings.
//
// For each participant it averages the 1-based positions assigned by the
// reviewers that ranked it. The final order is ascending mean rank; ties
// break toward the participant with more reviews; participants nobody
// ranked sort after all ranked ones, in the label map's identity order.
// The result is invariant under reviewer permutation.
func Aggregate(rankings [][]string, labels *label.Map) []Standing {
	positions := make(map[string][]int)
	for _, ranking := range rankings {
		for i, l := range ranking {
			positions[l] = append(positions[l], i+1)
		}
	}

	var ranked, unranked []Standing
	for _, l := range labels.Labels() {
		model, _ := labels.ModelFor(l)
		s := Standing{Label: l, Model: model}

		if ps := positions[l]; len(ps) > 0 {
			sum := 0
			for _, p := range ps {
				sum += p
			}
			s.MeanRank = float64(sum) / float64(len(ps))
			s.Reviews = len(ps)
			ranked = append(ranked, s)
		} else {
			unranked = append(unranked, s)
		}
	}

	// Stable sort preserves identity order among exact ties, keeping the
	// outcome deterministic across runs.
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].MeanRank != ranked[j].MeanRank {
			return ranked[i].MeanRank < ranked[j].MeanRank
		}
		return ranked[i].Reviews > ranked[j].Reviews
	})

	return append(ranked, unranked...)
}
