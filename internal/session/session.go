// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package session is the container holding a set of instance roots
// plus host callbacks, and driving start/send/terminate across the
// whole instance graph.
package session

import (
	"fmt"
	"sync"

	"github.com/ClusterCockpit/decoderuntime/internal/instance"
	"github.com/ClusterCockpit/decoderuntime/internal/registry"
	"github.com/ClusterCockpit/decoderuntime/internal/router"
	"github.com/ClusterCockpit/decoderuntime/pkg/rlog"
	"github.com/ClusterCockpit/decoderuntime/pkg/schema"
)

// Session is one acquisition session: a forest of decoder instances
// fed from a single, strictly monotone sample stream.
type Session struct {
	ID       uint64
	registry *registry.Registry
	router   *router.Table
	metrics  *Metrics

	mu            sync.Mutex
	numChannels   uint64
	unitsize      uint64
	samplerate    uint64
	configIsSet   map[string]bool
	metadataExtra map[string]schema.OptionValue

	started         bool
	destroyed       bool
	nextAbsSamplenum uint64
	haveNextExpected bool

	all      map[string]*instance.Instance
	roots    []*instance.Instance
	instSeq  int
}

// New creates a session bound to reg (for resolving decoder ids at
// instance_new) and collector (nil is fine; counters are then created
// without being registered anywhere).
func New(id uint64, reg *registry.Registry, collector *Metrics) *Session {
	if collector == nil {
		collector = NewMetrics(nil, id)
	}
	return &Session{
		ID:            id,
		registry:      reg,
		router:        router.New(),
		metrics:       collector,
		configIsSet:   make(map[string]bool),
		metadataExtra: make(map[string]schema.OptionValue),
		all:           make(map[string]*instance.Instance),
	}
}

// OnAnnotation/OnBinary/OnMetadata register the session's host callback
// table. Call before Start.
func (s *Session) OnAnnotation(fn func(schema.Annotation)) { s.router.OnAnnotation = fn }
func (s *Session) OnBinary(fn func(schema.Binary))         { s.router.OnBinary = fn }
func (s *Session) OnMetadata(fn func(schema.Metadata))     { s.router.OnMetadata = fn }

// ConfigSet implements session_config_set for NUM_CHANNELS, UNITSIZE
// and SAMPLERATE.
func (s *Session) ConfigSet(key string, value uint64) *schema.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return schema.NewArgError("session %d: config_set: session already started", s.ID)
	}
	switch key {
	case "NUM_CHANNELS":
		s.numChannels = value
	case "UNITSIZE":
		s.unitsize = value
	case "SAMPLERATE":
		s.samplerate = value
	default:
		return schema.NewArgError("session %d: config_set: unknown key %q", s.ID, key)
	}
	s.configIsSet[key] = true
	return nil
}

// ConfigGet implements session_config_get: config_set(K,V) followed by
// config_get(K) returns V.
func (s *Session) ConfigGet(key string) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.configIsSet[key] {
		return 0, false
	}
	switch key {
	case "NUM_CHANNELS":
		return s.numChannels, true
	case "UNITSIZE":
		return s.unitsize, true
	case "SAMPLERATE":
		return s.samplerate, true
	default:
		return 0, false
	}
}

// MetadataSet stores a free-form metadata key forwarded to decoders at
// start (metadata_set).
func (s *Session) MetadataSet(key string, value schema.OptionValue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadataExtra[key] = value
}

// NewInstance allocates a fresh root instance of decoder id; every
// instance belongs to exactly one session. instID, if empty, is
// auto-generated as "<id>-N".
func (s *Session) NewInstance(decoderID, instID string) (*instance.Instance, *schema.Error) {
	dec, ok := s.registry.Get(decoderID)
	if !ok {
		return nil, schema.NewArgError("session %d: unknown decoder id %q", s.ID, decoderID)
	}
	class, ok := s.registry.ClassFor(decoderID)
	if !ok {
		return nil, schema.NewArgError("session %d: decoder %q has no loaded class", s.ID, decoderID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil, schema.NewArgError("session %d: instance_new: session already started", s.ID)
	}
	if instID == "" {
		s.instSeq++
		instID = fmt.Sprintf("%s-%d", decoderID, s.instSeq)
	}
	if _, exists := s.all[instID]; exists {
		return nil, schema.NewArgError("session %d: instance id %q already in use", s.ID, instID)
	}

	in := instance.New(instID, dec, class, s.router)
	in.SetMetrics(s.metrics)
	s.all[instID] = in
	s.roots = append(s.roots, in)
	return in, nil
}

// Stack implements stack(parent, child): detaches child from the
// session roots (if present) and appends it to parent's children,
// rejecting unknown instances and cycles.
func (s *Session) Stack(parentID, childID string) *schema.Error {
	s.mu.Lock()
	defer s.mu.Unlock()

	parent, ok := s.all[parentID]
	if !ok {
		return schema.NewArgError("session %d: stack: unknown parent %q", s.ID, parentID)
	}
	child, ok := s.all[childID]
	if !ok {
		return schema.NewArgError("session %d: stack: unknown child %q", s.ID, childID)
	}
	if wouldCycle(parent, child) {
		return schema.NewArgError("session %d: stack: %q -> %q would create a cycle", s.ID, parentID, childID)
	}

	s.removeRoot(child)
	child.Parent = parent
	parent.Children = append(parent.Children, child)
	return nil
}

// Unstack reverses Stack: detaches child from its parent and restores
// it as a session root.
func (s *Session) Unstack(childID string) *schema.Error {
	s.mu.Lock()
	defer s.mu.Unlock()

	child, ok := s.all[childID]
	if !ok {
		return schema.NewArgError("session %d: unstack: unknown instance %q", s.ID, childID)
	}
	if child.Parent == nil {
		return nil
	}
	parent := child.Parent
	for i, c := range parent.Children {
		if c == child {
			parent.Children = append(parent.Children[:i], parent.Children[i+1:]...)
			break
		}
	}
	child.Parent = nil
	s.roots = append(s.roots, child)
	return nil
}

func wouldCycle(parent, child *instance.Instance) bool {
	if parent == child {
		return true
	}
	for p := parent; p != nil; p = p.Parent {
		if p == child {
			return true
		}
	}
	return false
}

func (s *Session) removeRoot(in *instance.Instance) {
	for i, r := range s.roots {
		if r == in {
			s.roots = append(s.roots[:i], s.roots[i+1:]...)
			return
		}
	}
}

// Start validates NUM_CHANNELS/UNITSIZE were configured and recursively
// starts every root instance.
func (s *Session) Start() *schema.Error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return schema.NewArgError("session %d: already started", s.ID)
	}
	if !s.configIsSet["NUM_CHANNELS"] || !s.configIsSet["UNITSIZE"] {
		s.mu.Unlock()
		return schema.NewArgError("session %d: start: NUM_CHANNELS and UNITSIZE must be set first", s.ID)
	}
	numChannels, unitsize, samplerate := s.numChannels, s.unitsize, s.samplerate
	roots := append([]*instance.Instance(nil), s.roots...)
	s.started = true
	s.mu.Unlock()

	for _, root := range roots {
		if err := root.Start(int(numChannels), int(unitsize), samplerate); err != nil {
			return toSchemaError(err)
		}
	}
	return nil
}

// Send implements session_send: feeds one contiguous chunk to every
// root instance, in root-insertion order, enforcing strictly-monotone,
// gap-free chunk ordering.
func (s *Session) Send(start uint64, data []byte, unitsize int) *schema.Error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return schema.NewArgError("session %d: send: session not started", s.ID)
	}
	if s.haveNextExpected && start != s.nextAbsSamplenum {
		s.mu.Unlock()
		return schema.NewArgError(
			"session %d: send: start %d does not continue previous chunk (expected %d)",
			s.ID, start, s.nextAbsSamplenum)
	}
	if unitsize <= 0 {
		s.mu.Unlock()
		return schema.NewArgError("session %d: send: unitsize must be positive", s.ID)
	}
	roots := append([]*instance.Instance(nil), s.roots...)
	s.mu.Unlock()

	n := len(data) / unitsize
	end := start + uint64(n)

	for _, root := range roots {
		if root.Terminated() {
			continue
		}
		if err := root.Decode(start, end, data, unitsize); err != nil {
			return toSchemaError(err)
		}
	}

	s.mu.Lock()
	s.nextAbsSamplenum = end
	s.haveNextExpected = true
	s.mu.Unlock()
	return nil
}

// TerminateReset recursively terminate_resets every root, called at
// session end.
func (s *Session) TerminateReset() {
	s.mu.Lock()
	roots := append([]*instance.Instance(nil), s.roots...)
	s.mu.Unlock()
	for _, root := range roots {
		root.TerminateReset()
	}
}

// Destroy tears down every instance; safe to call even if instances are
// already Terminated, and idempotent across repeated calls.
func (s *Session) Destroy() {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	roots := append([]*instance.Instance(nil), s.roots...)
	s.destroyed = true
	s.roots = nil
	s.all = make(map[string]*instance.Instance)
	s.mu.Unlock()

	for _, root := range roots {
		root.TerminateReset()
		root.Free()
	}
	rlog.Infow("session: destroyed", rlog.Session(s.ID))
}

func toSchemaError(err error) *schema.Error {
	if err == nil {
		return nil
	}
	if se, ok := err.(*schema.Error); ok {
		return se
	}
	return schema.NewGeneric("%s", err)
}
