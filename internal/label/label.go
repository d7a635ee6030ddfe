// Package label assigns stable opaque labels to the participants of a
// peer-review round. Labels follow the zero-padded ordinal scheme
// "Response 01", "Response 02", ..., which scales past any fixed alphabet.
// A Map is immutable once created: the label/identity bijection for a round
// never changes after assignment.
package label

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/synod-dev/synod/internal/errors"
)

// Prefix is the visible prefix of every generated label.
const Prefix = "Response"

// Format renders the opaque label for a zero-based participant index.
func Format(index int) string {
	return fmt.Sprintf("%s %02d", Prefix, index+1)
}

// Map is a per-round bijection between opaque labels and model identities.
// All accessors return copies; the underlying maps are never exposed.
type Map struct {
	byLabel map[string]string
	byModel map[string]string
	ordered []string // labels in assignment order
}

// New assigns a label to each model identity in the given order.
// Identities must be unique; duplicates are a precondition violation.
func New(models []string) (*Map, error) {
	m := &Map{
		byLabel: make(map[string]string, len(models)),
		byModel: make(map[string]string, len(models)),
		ordered: make([]string, 0, len(models)),
	}
	for i, model := range models {
		if _, dup := m.byModel[model]; dup {
			return nil, fmt.Errorf("%w: duplicate participant %q", errors.ErrInvalidInput, model)
		}
		l := Format(i)
		m.byLabel[l] = model
		m.byModel[model] = l
		m.ordered = append(m.ordered, l)
	}
	return m, nil
}

// FromStored reconstructs a Map from a persisted label→model mapping,
// including legacy single-letter maps ("Response A"). Assignment order is
// recovered by the ordinal in the label; non-ordinal labels sort lexically
// after the ordinal ones. Zero padding alone is not enough: "Response 100"
// sorts lexically before "Response 99".
func FromStored(byLabel map[string]string) *Map {
	m := &Map{
		byLabel: make(map[string]string, len(byLabel)),
		byModel: make(map[string]string, len(byLabel)),
		ordered: make([]string, 0, len(byLabel)),
	}
	for l, model := range byLabel {
		m.byLabel[l] = model
		m.byModel[model] = l
		m.ordered = append(m.ordered, l)
	}
	sort.Slice(m.ordered, func(i, j int) bool {
		a, b := m.ordered[i], m.ordered[j]
		an, aok := ordinalOf(a)
		bn, bok := ordinalOf(b)
		switch {
		case aok && bok:
			return an < bn
		case aok != bok:
			return aok
		default:
			return a < b
		}
	})
	return m
}

// ordinalOf extracts the numeric ordinal from a generated label.
func ordinalOf(label string) (int, bool) {
	rest, ok := strings.CutPrefix(label, Prefix+" ")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Len returns the number of participants in the round.
func (m *Map) Len() int { return len(m.ordered) }

// Labels returns the labels in assignment order.
func (m *Map) Labels() []string {
	out := make([]string, len(m.ordered))
	copy(out, m.ordered)
	return out
}

// Models returns the model identities in assignment order.
func (m *Map) Models() []string {
	out := make([]string, 0, len(m.ordered))
	for _, l := range m.ordered {
		out = append(out, m.byLabel[l])
	}
	return out
}

// ModelFor resolves a label to its model identity.
func (m *Map) ModelFor(label string) (string, bool) {
	model, ok := m.byLabel[label]
	return model, ok
}

// LabelFor resolves a model identity to its label.
func (m *Map) LabelFor(model string) (string, bool) {
	l, ok := m.byModel[model]
	return l, ok
}

// ToWire returns a copy of the label→model mapping for events and storage.
func (m *Map) ToWire() map[string]string {
	out := make(map[string]string, len(m.byLabel))
	for l, model := range m.byLabel {
		out[l] = model
	}
	return out
}
