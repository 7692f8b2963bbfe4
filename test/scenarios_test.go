package test

import (
	"sync"
	"testing"

	"github.com/ClusterCockpit/decoderuntime/internal/registry"
	"github.com/ClusterCockpit/decoderuntime/internal/session"
	"github.com/ClusterCockpit/decoderuntime/internal/vmbridge"
	"github.com/ClusterCockpit/decoderuntime/pkg/schema"
	"github.com/stretchr/testify/require"
)

// S1: one required channel, API v2, wait({0: rising}). Pushing
// [0,0,1,1,0,1] as two chunks of length 3 must match at samplenum 2,
// then again at samplenum 5.
func TestScenario_S1_EdgeDetection(t *testing.T) {
	reg := registry.New(vmbridge.New())
	dec, verr := reg.Load("edge", edgeDecoderSource)
	require.Nil(t, verr)
	require.Equal(t, schema.APIv2, dec.APIVersion)

	s := session.New(1, reg, nil)
	var mu sync.Mutex
	var matches []uint64
	s.OnAnnotation(func(a schema.Annotation) {
		mu.Lock()
		matches = append(matches, a.Start)
		mu.Unlock()
	})

	require.Nil(t, s.ConfigSet("NUM_CHANNELS", 1))
	require.Nil(t, s.ConfigSet("UNITSIZE", 1))
	in, verr := s.NewInstance(dec.ID, "")
	require.Nil(t, verr)
	require.Nil(t, in.SetChannelMap(map[string]int{"a": 0}))
	require.Nil(t, s.Start())

	require.Nil(t, s.Send(0, []byte{0, 0, 1}, 1))
	require.Nil(t, s.Send(3, []byte{1, 0, 1}, 1))

	s.TerminateReset()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []uint64{2, 5}, matches)
}

// S3 (graph half): stack(parent, child) must list child in parent's
// ChildIDs, and unstack(child) must remove it from them again (the
// parent/child half of testable property 8; the session root list
// itself is not inspected here) — the instance-graph bookkeeping that
// put(protocol) cascades rely on.
func TestScenario_S3_Stack(t *testing.T) {
	reg := registry.New(vmbridge.New())
	_, verr := reg.Load("echo", echoV1DecoderSource)
	require.Nil(t, verr)

	s := session.New(1, reg, nil)
	require.Nil(t, s.ConfigSet("NUM_CHANNELS", 1))
	require.Nil(t, s.ConfigSet("UNITSIZE", 1))

	parent, verr := s.NewInstance("echo", "parent")
	require.Nil(t, verr)
	require.Nil(t, parent.SetChannelMap(map[string]int{"a": 0}))

	child, verr := s.NewInstance("echo", "child")
	require.Nil(t, verr)
	require.Nil(t, child.SetChannelMap(map[string]int{"a": 0}))

	require.Nil(t, s.Stack("parent", "child"))

	snap := s.Snapshot()
	var sawChildUnderParent bool
	for _, is := range snap {
		if is.InstID == "parent" {
			require.Contains(t, is.ChildIDs, "child")
			sawChildUnderParent = true
		}
	}
	require.True(t, sawChildUnderParent)

	require.Nil(t, s.Unstack("child"))
	snap = s.Snapshot()
	for _, is := range snap {
		if is.InstID == "parent" {
			require.NotContains(t, is.ChildIDs, "child")
		}
	}
}
