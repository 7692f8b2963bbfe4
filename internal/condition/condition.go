// Package condition implements the condition-match engine, evaluating a
// disjunction of conjunctions of per-channel predicates against the
// sample stream.
package condition

import "github.com/ClusterCockpit/decoderuntime/pkg/decoderapi"

// Engine holds the per-instance state the condition engine needs
// across chunks: pin history for edge detection and skip counters for
// in-flight `skip(n)` terms.
type Engine struct {
	pinHistory []byte
	skip       map[skipKey]int
	pending    decoderapi.ConditionList
}

type skipKey struct {
	set  int
	term int
}

// New creates an Engine for a decoder with numChannels declared
// channels, seeded with initialPins (or all-zero if nil): pin history
// holds the declared initial pins at the first sample a decoder sees.
func New(numChannels int, initialPins []byte) *Engine {
	hist := make([]byte, numChannels)
	copy(hist, initialPins)
	return &Engine{pinHistory: hist, skip: make(map[skipKey]int)}
}

// PinHistory returns the previous sample's pin values.
func (e *Engine) PinHistory() []byte { return e.pinHistory }

// Rebuild installs a new pending condition list and resets every
// `skip` term's counter, as happens on every API-v2 wait() call.
func (e *Engine) Rebuild(list decoderapi.ConditionList) {
	e.pending = list
	e.skip = make(map[skipKey]int)
}

// PendingIsTrivial reports whether the pending condition list is
// empty/nil, in which case it matches immediately without consuming a
// sample.
func (e *Engine) PendingIsTrivial() bool {
	return len(e.pending) == 0
}

// Step evaluates the pending condition list against one sample,
// advancing pin history and skip counters, and returns the
// per-term-set match_array plus whether any term-set matched.
func (e *Engine) Step(sample decoderapi.Sample) (matchArray []bool, anyMatch bool) {
	matchArray = make([]bool, len(e.pending))
	for si, set := range e.pending {
		matchArray[si] = e.termSetMatches(si, set, sample.Pins)
		if matchArray[si] {
			anyMatch = true
		}
	}
	copy(e.pinHistory, sample.Pins)
	return matchArray, anyMatch
}

// termSetMatches evaluates every term in set against pins. Every term
// is evaluated (no AND short-circuit) so that `skip` terms in a
// term-set that also carries other, currently-false terms still
// advance their counter every sample.
func (e *Engine) termSetMatches(setIdx int, set decoderapi.TermSet, pins []byte) bool {
	all := true
	for ti, term := range set {
		if !e.termMatches(setIdx, ti, term, pins) {
			all = false
		}
	}
	return all
}

func (e *Engine) termMatches(setIdx, termIdx int, term decoderapi.Term, pins []byte) bool {
	switch term.Type {
	case decoderapi.High:
		return pins[term.Channel] == 1
	case decoderapi.Low:
		return pins[term.Channel] == 0
	case decoderapi.Rising:
		return e.pinHistory[term.Channel] == 0 && pins[term.Channel] == 1
	case decoderapi.Falling:
		return e.pinHistory[term.Channel] == 1 && pins[term.Channel] == 0
	case decoderapi.EitherEdge:
		return e.pinHistory[term.Channel] != pins[term.Channel]
	case decoderapi.NoEdge:
		return e.pinHistory[term.Channel] == pins[term.Channel]
	case decoderapi.Skip:
		key := skipKey{set: setIdx, term: termIdx}
		already := e.skip[key]
		// Check "already skipped == requested" *before* incrementing, so
		// skip(0) matches on the current sample.
		if already >= term.Count {
			return true
		}
		e.skip[key] = already + 1
		return false
	default:
		return false
	}
}
