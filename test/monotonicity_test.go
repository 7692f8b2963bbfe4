// Package test holds cross-package scenario and property tests for the
// runtime as a whole.
package test

import (
	"testing"

	"github.com/ClusterCockpit/decoderuntime/internal/registry"
	"github.com/ClusterCockpit/decoderuntime/internal/session"
	"github.com/ClusterCockpit/decoderuntime/internal/vmbridge"
	"github.com/ClusterCockpit/decoderuntime/pkg/schema"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T) *session.Session {
	t.Helper()
	reg := registry.New(vmbridge.New())
	return session.New(1, reg, nil)
}

// S6: sample chunks must be delivered to session_send in strictly
// monotone, gap-free order.
func TestSession_SendRejectsNonMonotoneChunk(t *testing.T) {
	s := newTestSession(t)
	require.Nil(t, s.ConfigSet("NUM_CHANNELS", 8))
	require.Nil(t, s.ConfigSet("UNITSIZE", 1))
	require.Nil(t, s.Start())

	require.Nil(t, s.Send(0, make([]byte, 4), 1))
	// The first chunk covered samples [0,4); the next call must start at 4.
	err := s.Send(5, make([]byte, 4), 1)
	require.NotNil(t, err)
	require.Equal(t, schema.ArgError, err.Kind)

	require.Nil(t, s.Send(4, make([]byte, 4), 1), "the correctly continued chunk must still be accepted")
}

// Testable property 7: config_set(K,V); config_get(K) == V.
func TestSession_ConfigRoundTrip(t *testing.T) {
	s := newTestSession(t)
	require.Nil(t, s.ConfigSet("SAMPLERATE", 2_000_000))
	v, ok := s.ConfigGet("SAMPLERATE")
	require.True(t, ok)
	require.Equal(t, uint64(2_000_000), v)

	_, ok = s.ConfigGet("UNSET_KEY")
	require.False(t, ok)
}

func TestSession_ConfigSetAfterStartFails(t *testing.T) {
	s := newTestSession(t)
	require.Nil(t, s.ConfigSet("NUM_CHANNELS", 8))
	require.Nil(t, s.ConfigSet("UNITSIZE", 1))
	require.Nil(t, s.Start())

	err := s.ConfigSet("SAMPLERATE", 1)
	require.NotNil(t, err)
	require.Equal(t, schema.ArgError, err.Kind)
}

func TestSession_DestroySucceedsTwice(t *testing.T) {
	s := newTestSession(t)
	require.Nil(t, s.ConfigSet("NUM_CHANNELS", 8))
	require.Nil(t, s.ConfigSet("UNITSIZE", 1))
	require.Nil(t, s.Start())
	require.NotPanics(t, func() {
		s.Destroy()
		s.Destroy()
	})
}
