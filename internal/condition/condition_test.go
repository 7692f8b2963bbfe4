package condition

import (
	"testing"

	"github.com/ClusterCockpit/decoderuntime/pkg/decoderapi"
	"github.com/stretchr/testify/require"
)

func step(t *testing.T, e *Engine, pins ...byte) ([]bool, bool) {
	t.Helper()
	return e.Step(decoderapi.Sample{Pins: pins})
}

// S1: a rising-edge condition on channel 0, fed one sample at a time.
func TestEngine_RisingEdge(t *testing.T) {
	e := New(1, nil)
	e.Rebuild(decoderapi.ConditionList{{{Channel: 0, Type: decoderapi.Rising}}})

	_, match := step(t, e, 0)
	require.False(t, match)
	_, match = step(t, e, 0)
	require.False(t, match)
	_, match = step(t, e, 1)
	require.True(t, match, "0 -> 1 must match a rising-edge term")
	_, match = step(t, e, 1)
	require.False(t, match, "1 -> 1 must not re-match")
}

// Boundary property 12: skip(0) matches on the current sample.
func TestEngine_SkipZeroMatchesImmediately(t *testing.T) {
	e := New(1, nil)
	e.Rebuild(decoderapi.ConditionList{{{Type: decoderapi.Skip, Count: 0}}})
	_, match := step(t, e, 0)
	require.True(t, match)
}

// S4: skip(10) matches exactly when the counter has advanced 10 times.
func TestEngine_SkipN(t *testing.T) {
	e := New(1, nil)
	e.Rebuild(decoderapi.ConditionList{{{Type: decoderapi.Skip, Count: 10}}})
	for i := 0; i < 10; i++ {
		_, match := step(t, e, 0)
		require.False(t, match, "skip(10) must not match before the 11th sample")
	}
	_, match := step(t, e, 0)
	require.True(t, match)
}

// S5: OR of AND — pin history (1,0), next sample (0,0): term-set 0
// {ch0 high, ch1 low} fails (ch0 now low); term-set 1 {ch0 falling}
// succeeds.
func TestEngine_OrOfAnd(t *testing.T) {
	e := New(2, []byte{1, 0})
	e.Rebuild(decoderapi.ConditionList{
		{{Channel: 0, Type: decoderapi.High}, {Channel: 1, Type: decoderapi.Low}},
		{{Channel: 0, Type: decoderapi.Falling}},
	})
	matchArray, anyMatch := step(t, e, 0, 0)
	require.True(t, anyMatch)
	require.Equal(t, []bool{false, true}, matchArray)
}

// A skip term inside a term-set alongside another, always-true sibling
// must still advance its counter every sample it is evaluated against
// (no AND short-circuit) and only match once the count is reached.
func TestEngine_SkipAdvancesAlongsideSibling(t *testing.T) {
	e := New(1, nil)
	e.Rebuild(decoderapi.ConditionList{
		{{Channel: 0, Type: decoderapi.Low}, {Type: decoderapi.Skip, Count: 2}},
	})
	_, match := step(t, e, 0)
	require.False(t, match)
	_, match = step(t, e, 0)
	require.False(t, match)
	_, match = step(t, e, 0)
	require.True(t, match, "skip(2) matches on the 3rd sample once Low keeps holding")
}

func TestEngine_EmptyConditionListIsTrivial(t *testing.T) {
	e := New(1, nil)
	require.True(t, e.PendingIsTrivial())
	e.Rebuild(decoderapi.ConditionList{{{Channel: 0, Type: decoderapi.High}}})
	require.False(t, e.PendingIsTrivial())
}
