package ranking

import (
	"math/rand"
	"reflect"
	"testing"

	"github.com/synod-dev/synod/internal/label"
)

var known = []string{"Response 01", "Response 02", "Response 03"}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "marker with numbered list",
			text: "Each response has merits.\n\nFINAL RANKING:\n1. Response 02\n2. Response 01\n3. Response 03\n",
			want: []string{"Response 02", "Response 01", "Response 03"},
		},
		{
			name: "marker with plain list",
			text: "FINAL RANKING:\nResponse 03\nResponse 01\n",
			want: []string{"Response 03", "Response 01"},
		},
		{
			name: "marker inline prose",
			text: "Final ranking: I would put Response 01 first, then Response 03, and last Response 02.",
			want: []string{"Response 01", "Response 03", "Response 02"},
		},
		{
			name: "labels before marker are ignored",
			text: "Response 03 was weak. FINAL RANKING: Response 01, Response 02",
			want: []string{"Response 01", "Response 02"},
		},
		{
			name: "no marker falls back to first appearance",
			text: "I liked Response 02 more than Response 01. Response 02 was thorough.",
			want: []string{"Response 02", "Response 01"},
		},
		{
			name: "duplicates deduplicated",
			text: "FINAL RANKING: Response 01, Response 01, Response 02",
			want: []string{"Response 01", "Response 02"},
		},
		{
			// Case mapping must not shift the marker position: "ß"
			// uppercases to the two-byte "SS".
			name: "width-changing runes before the marker",
			text: "Größenmaßstäbe wurden verglichen.\n\nfinal ranking:\nResponse 02\nResponse 01\n",
			want: []string{"Response 02", "Response 01"},
		},
		{
			name: "no labels at all",
			text: "I refuse to rank these.",
			want: nil,
		},
		{
			name: "empty text",
			text: "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.text, known)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseIsIdempotent(t *testing.T) {
	text := "FINAL RANKING:\n1. Response 03\n2. Response 02\n3. Response 01"
	first := Parse(text, known)
	second := Parse(text, known)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Parse() not idempotent: %v != %v", first, second)
	}
}

func TestParsePrefixLabels(t *testing.T) {
	// "Response 10" must not match inside "Response 100".
	wide := []string{"Response 10", "Response 100"}
	got := Parse("FINAL RANKING: Response 100, Response 10", wide)
	want := []string{"Response 100", "Response 10"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Parse() = %v, want %v", got, want)
	}
}

func mustMap(t *testing.T, models ...string) *label.Map {
	t.Helper()
	m, err := label.New(models)
	if err != nil {
		t.Fatalf("label.New() error = %v", err)
	}
	return m
}

func TestAggregate(t *testing.T) {
	labels := mustMap(t, "model-a", "model-b", "model-c")

	rankings := [][]string{
		{"Response 01", "Response 02", "Response 03"},
		{"Response 02", "Response 01", "Response 03"},
		{"Response 01", "Response 03", "Response 02"},
	}

	got := Aggregate(rankings, labels)
	if len(got) != 3 {
		t.Fatalf("got %d standings, want 3", len(got))
	}

	// means: 01 -> (1+2+1)/3 = 1.33, 02 -> (2+1+3)/3 = 2, 03 -> (3+3+2)/3 = 2.67
	if got[0].Label != "Response 01" || got[1].Label != "Response 02" || got[2].Label != "Response 03" {
		t.Errorf("order = [%s %s %s], want [01 02 03]", got[0].Label, got[1].Label, got[2].Label)
	}
	if got[0].Model != "model-a" {
		t.Errorf("Model = %q, want model-a", got[0].Model)
	}
	if got[1].MeanRank != 2.0 || got[1].Reviews != 3 {
		t.Errorf("Response 02 mean/reviews = %v/%d, want 2/3", got[1].MeanRank, got[1].Reviews)
	}
}

func TestAggregateReviewerPermutationInvariance(t *testing.T) {
	labels := mustMap(t, "a", "b", "c", "d")
	rankings := [][]string{
		{"Response 01", "Response 02", "Response 03", "Response 04"},
		{"Response 02", "Response 03", "Response 01", "Response 04"},
		{"Response 03", "Response 01", "Response 02", "Response 04"},
		{"Response 04", "Response 02", "Response 01", "Response 03"},
	}

	want := Aggregate(rankings, labels)

	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 10; trial++ {
		shuffled := make([][]string, len(rankings))
		copy(shuffled, rankings)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		if got := Aggregate(shuffled, labels); !reflect.DeepEqual(got, want) {
			t.Fatalf("trial %d: aggregate changed under reviewer permutation:\n got %v\nwant %v", trial, got, want)
		}
	}
}

func TestAggregateTieBrokenByReviewCount(t *testing.T) {
	labels := mustMap(t, "a", "b")
	// Both end up with mean rank 1, but 02 was ranked by two reviewers.
	rankings := [][]string{
		{"Response 02"},
		{"Response 02"},
		{"Response 01"},
	}

	got := Aggregate(rankings, labels)
	if got[0].Label != "Response 02" {
		t.Errorf("tie should break toward more reviews, got %q first", got[0].Label)
	}
}

func TestAggregateZeroReviewParticipantsSortLast(t *testing.T) {
	labels := mustMap(t, "a", "b", "c")
	// Only 02 is ever ranked; 01 and 03 must follow in identity order.
	rankings := [][]string{{"Response 02"}, {"Response 02"}}

	got := Aggregate(rankings, labels)
	wantOrder := []string{"Response 02", "Response 01", "Response 03"}
	for i, s := range got {
		if s.Label != wantOrder[i] {
			t.Errorf("standings[%d] = %q, want %q", i, s.Label, wantOrder[i])
		}
	}
	if got[1].Reviews != 0 || got[1].MeanRank != 0 {
		t.Errorf("zero-review standing carries reviews=%d mean=%v, want 0/0", got[1].Reviews, got[1].MeanRank)
	}
}

func TestAggregateEmptyRankings(t *testing.T) {
	labels := mustMap(t, "a", "b")
	got := Aggregate(nil, labels)
	if len(got) != 2 {
		t.Fatalf("got %d standings, want 2", len(got))
	}
	// All unranked: identity order.
	if got[0].Label != "Response 01" || got[1].Label != "Response 02" {
		t.Errorf("order = [%s %s], want identity order", got[0].Label, got[1].Label)
	}
}
