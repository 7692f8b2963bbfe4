// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package runtime is the top-level container: the registry, search
// paths, session list and session-id counter live in a Runtime value
// created at initialization and threaded explicitly through every
// public call, rather than as module-global state, which also makes
// the single-VM-lock invariant explicit at the call site.
package runtime

import (
	"context"
	"sync"

	"github.com/ClusterCockpit/decoderuntime/internal/dconfig"
	"github.com/ClusterCockpit/decoderuntime/internal/registry"
	"github.com/ClusterCockpit/decoderuntime/internal/session"
	"github.com/ClusterCockpit/decoderuntime/internal/vmbridge"
	"github.com/ClusterCockpit/decoderuntime/pkg/rlog"
	"github.com/ClusterCockpit/decoderuntime/pkg/schema"
	"github.com/prometheus/client_golang/prometheus"
)

// Runtime owns the one process-wide Bridge (the global VM lock), the
// decoder registry, and every live session.
type Runtime struct {
	Registry *registry.Registry

	promReg prometheus.Registerer

	mu            sync.Mutex
	sessions      map[uint64]*session.Session
	nextSessionID uint64
}

// New creates a Runtime wrapping reg. promReg, if non-nil, is used to
// register each session's Prometheus counters; pass nil to skip
// registration (e.g. in tests): counters are still kept, but exposed to
// no registry.
func New(reg *registry.Registry, promReg prometheus.Registerer) *Runtime {
	return &Runtime{
		Registry: reg,
		promReg:  promReg,
		sessions: make(map[uint64]*session.Session),
	}
}

// NewFromConfig builds a Runtime plus its Bridge/Registry from a
// loaded dconfig.Config, adding every configured search path.
func NewFromConfig(cfg *dconfig.Config, promReg prometheus.Registerer) *Runtime {
	rlog.SetLogLevel(cfg.LogLevel)
	reg := registry.New(vmbridge.New())
	for _, p := range cfg.SearchPaths {
		reg.SearchPathAdd(p)
	}
	return New(reg, promReg)
}

// WatchSearchPaths wires registry hot-reload to ctx's cancellation.
func (rt *Runtime) WatchSearchPaths(ctx context.Context, load registry.SourceLoader) error {
	return rt.Registry.WatchSearchPaths(ctx, load)
}

// SessionNew allocates a fresh Session with a monotonically increasing
// id (session_new).
func (rt *Runtime) SessionNew() *session.Session {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.nextSessionID++
	id := rt.nextSessionID
	s := session.New(id, rt.Registry, session.NewMetrics(rt.promReg, id))
	rt.sessions[id] = s
	return s
}

// SessionDestroy tears down and forgets session id (session_destroy).
func (rt *Runtime) SessionDestroy(id uint64) *schema.Error {
	rt.mu.Lock()
	s, ok := rt.sessions[id]
	if ok {
		delete(rt.sessions, id)
	}
	rt.mu.Unlock()
	if !ok {
		return schema.NewArgError("runtime: unknown session %d", id)
	}
	s.Destroy()
	return nil
}

// Sessions returns every live session id, for diagnostics.
func (rt *Runtime) Sessions() []uint64 {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	ids := make([]uint64, 0, len(rt.sessions))
	for id := range rt.sessions {
		ids = append(ids, id)
	}
	return ids
}
