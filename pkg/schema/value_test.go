package schema

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOptionValue_RoundTrip(t *testing.T) {
	s := NewStringValue("uart")
	got, ok := s.AsString()
	require.True(t, ok)
	require.Equal(t, "uart", got)

	i := NewInt64Value(1<<62 + 7)
	gi, ok := i.AsInt64()
	require.True(t, ok)
	require.Equal(t, int64(1<<62+7), gi, "int64 values must round-trip exactly, not via float64")

	f := NewFloat64Value(3.5)
	gf, ok := f.AsFloat64()
	require.True(t, ok)
	require.Equal(t, 3.5, gf)
}

func TestOptionValue_SameKind(t *testing.T) {
	require.True(t, NewStringValue("a").SameKind(NewStringValue("b")))
	require.False(t, NewStringValue("a").SameKind(NewInt64Value(1)))
}

func TestOptionValue_WrongKindAccessorsFail(t *testing.T) {
	v := NewStringValue("x")
	_, ok := v.AsInt64()
	require.False(t, ok)
	_, ok = v.AsFloat64()
	require.False(t, ok)
}
