// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package registry loads, validates and catalogs decoder plug-ins.
package registry

import (
	"sync"

	"github.com/ClusterCockpit/decoderuntime/internal/vmbridge"
	"github.com/ClusterCockpit/decoderuntime/pkg/decoderapi"
	"github.com/ClusterCockpit/decoderuntime/pkg/rlog"
	"github.com/ClusterCockpit/decoderuntime/pkg/schema"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// entry is the backing store's value; the authoritative reference is
// in Registry.byID, the LRU cache below only accelerates decoder_get.
type entry struct {
	dec   *schema.Decoder
	class *vmbridge.Class
}

// Registry is the registry entry catalog. It is safe for concurrent use.
type Registry struct {
	bridge *vmbridge.Bridge

	mu         sync.RWMutex
	byID       map[string]*entry
	loadOrder  []string // decoder ids, in decoder_load order
	modules    map[string]string // module name -> decoder id, for idempotent reload
	searchPath []string

	// cache accelerates repeated decoder_get lookups; sized well above
	// any realistic decoder catalog so it never evicts a live entry in
	// practice; byID remains the single source of truth regardless.
	cache *lru.Cache[string, *entry]

	// loadGroup collapses concurrent decoder_load calls for the same
	// module name into one VM import.
	loadGroup singleflight.Group
}

// New creates an empty Registry bound to bridge.
func New(bridge *vmbridge.Bridge) *Registry {
	cache, err := lru.New[string, *entry](4096)
	if err != nil {
		// Only returns an error for a non-positive size, which 4096
		// never is.
		panic(err)
	}
	return &Registry{
		bridge:  bridge,
		byID:    make(map[string]*entry),
		modules: make(map[string]string),
		cache:   cache,
	}
}

// SearchPathAdd prepends path to the module search list. The search list itself has no semantic effect on Load (which
// takes source directly); it is consulted by WatchSearchPaths and by
// hosts resolving a bare module name to a source file.
func (r *Registry) SearchPathAdd(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.searchPath = append([]string{path}, r.searchPath...)
}

// SearchPaths returns the current search path list, most-recently-added
// first.
func (r *Registry) SearchPaths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.searchPath))
	copy(out, r.searchPath)
	return out
}

// Load imports moduleName's source, validates its declared shapes and
// catalogs it (decoder_load). Load is idempotent: a
// second call for the same moduleName returns the already-loaded
// decoder without re-evaluating the source, and concurrent calls for
// the same moduleName collapse into a single VM import.
func (r *Registry) Load(moduleName, source string) (*schema.Decoder, *schema.Error) {
	r.mu.RLock()
	if id, ok := r.modules[moduleName]; ok {
		d := r.byID[id].dec
		r.mu.RUnlock()
		return d, nil
	}
	r.mu.RUnlock()

	v, err, _ := r.loadGroup.Do(moduleName, func() (interface{}, error) {
		// Re-check under the singleflight key: another caller may have
		// finished loading it while we queued.
		r.mu.RLock()
		if id, ok := r.modules[moduleName]; ok {
			d := r.byID[id].dec
			r.mu.RUnlock()
			return d, nil
		}
		r.mu.RUnlock()

		class, meta, verr := r.bridge.Load(moduleName, source)
		if verr != nil {
			return nil, verr
		}

		if verr := validateMetadata(meta); verr != nil {
			return nil, verr
		}

		dec := metaToDecoder(moduleName, meta)

		r.mu.Lock()
		r.byID[dec.ID] = &entry{dec: dec, class: class}
		r.loadOrder = append(r.loadOrder, dec.ID)
		r.modules[moduleName] = dec.ID
		r.mu.Unlock()
		r.cache.Remove(dec.ID)

		rlog.Infow("registry: loaded decoder", rlog.Decoder(dec.ID), rlog.Module(moduleName), rlog.Field{Key: "api", Value: dec.APIVersion})
		return dec, nil
	})
	if err != nil {
		if se, ok := err.(*schema.Error); ok {
			return nil, se
		}
		return nil, schema.NewGeneric("%s", err)
	}
	return v.(*schema.Decoder), nil
}

// List returns every loaded decoder, in decoder_load order: decoder_list
// iterates stably in load order.
func (r *Registry) List() []*schema.Decoder {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*schema.Decoder, 0, len(r.loadOrder))
	for _, id := range r.loadOrder {
		out = append(out, r.byID[id].dec)
	}
	return out
}

// Get looks up a decoder by id (decoder_get).
func (r *Registry) Get(id string) (*schema.Decoder, bool) {
	if e, ok := r.cache.Get(id); ok {
		return e.dec, true
	}
	r.mu.RLock()
	e, ok := r.byID[id]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	r.cache.Add(id, e)
	return e.dec, true
}

// ClassFor returns the VM-side class object for id, used by
// internal/instance to construct new VM instances.
func (r *Registry) ClassFor(id string) (*vmbridge.Class, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return e.class, true
}

// Unload removes id from the catalog (decoder_unload). The caller is
// responsible for having already torn down every session that
// references id; Unload frees the registry entry and itself only touches
// registry bookkeeping, never session state, to avoid a dependency
// cycle between the registry and the session manager.
func (r *Registry) Unload(id string) *schema.Error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok {
		return schema.NewArgError("unload: unknown decoder id %q", id)
	}
	delete(r.byID, id)
	delete(r.modules, e.dec.ModuleName)
	r.cache.Remove(id)
	for i, lid := range r.loadOrder {
		if lid == id {
			r.loadOrder = append(r.loadOrder[:i], r.loadOrder[i+1:]...)
			break
		}
	}
	rlog.Infow("registry: unloaded decoder", rlog.Decoder(id))
	return nil
}

// Reload forces re-evaluation of moduleName's source even if it was
// already loaded, unlike Load's idempotent fast path. Used by
// WatchSearchPaths to pick up on-disk changes. Callers are responsible
// for having torn down any session referencing the previous decoder id
// if the reload changes it, exactly as for Unload.
func (r *Registry) Reload(moduleName, source string) (*schema.Decoder, *schema.Error) {
	r.mu.Lock()
	if id, ok := r.modules[moduleName]; ok {
		delete(r.byID, id)
		delete(r.modules, moduleName)
		r.cache.Remove(id)
		for i, lid := range r.loadOrder {
			if lid == id {
				r.loadOrder = append(r.loadOrder[:i], r.loadOrder[i+1:]...)
				break
			}
		}
	}
	r.mu.Unlock()
	return r.Load(moduleName, source)
}

func metaToDecoder(moduleName string, meta decoderapi.Metadata) *schema.Decoder {
	apiVersion := schema.APIv1
	if meta.APIVersion == 2 {
		apiVersion = schema.APIv2
	}
	return &schema.Decoder{
		ID:               meta.ID,
		Name:             meta.Name,
		LongName:         meta.LongName,
		Description:      meta.Desc,
		License:          meta.License,
		Inputs:           meta.Inputs,
		Outputs:          meta.Outputs,
		Tags:             meta.Tags,
		Channels:         meta.Channels,
		OptionalChannels: meta.OptionalChannels,
		Options:          meta.Options,
		Annotations:      meta.Annotations,
		AnnotationRows:   meta.AnnotationRows,
		Binary:           meta.Binary,
		APIVersion:       apiVersion,
		InitialPins:      meta.InitialPins,
		ModuleName:       moduleName,
	}
}

