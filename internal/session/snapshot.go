package session

import "github.com/ClusterCockpit/decoderuntime/internal/instance"

// InstanceSnapshot is one read-only view of an instance's position in
// the graph, for introspection tooling.
type InstanceSnapshot struct {
	InstID     string
	DecoderID  string
	State      string
	ParentID   string
	ChildIDs   []string
}

// Snapshot returns a point-in-time view of every instance in the
// session, the way a host debugging tool would need.
func (s *Session) Snapshot() []InstanceSnapshot {
	s.mu.Lock()
	all := make([]*instance.Instance, 0, len(s.all))
	for _, in := range s.all {
		all = append(all, in)
	}
	s.mu.Unlock()

	out := make([]InstanceSnapshot, 0, len(all))
	for _, in := range all {
		snap := InstanceSnapshot{
			InstID:    in.InstID,
			DecoderID: in.Dec.ID,
			State:     in.State().String(),
		}
		if in.Parent != nil {
			snap.ParentID = in.Parent.InstID
		}
		for _, c := range in.Children {
			snap.ChildIDs = append(snap.ChildIDs, c.InstID)
		}
		out = append(out, snap)
	}
	return out
}
