// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package vmbridge is the stable façade over the embedded VM: decoder
// plug-ins are ordinary Go source, "loaded" by Use/Eval'ing them into a
// fresh *interp.Interpreter, with the plug-in's exported symbols
// resolved the same way yaegi resolves any evaluated package's
// top-level declarations.
package vmbridge

import (
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/ClusterCockpit/decoderuntime/pkg/decoderapi"
	"github.com/ClusterCockpit/decoderuntime/pkg/rlog"
	"github.com/ClusterCockpit/decoderuntime/pkg/schema"
	"github.com/traefik/yaegi/interp"
)

// Bridge is the process-wide VM lock: all VM calls are serialized by
// one global lock. A single Bridge is shared by every registry and
// every session in a process.
type Bridge struct {
	mu      sync.Mutex
	limiter *rlog.Limiter
}

// New creates a Bridge. Every interpreter this bridge creates is given
// only the symbol table from Exports (decoderapi and schema); no other
// packages are registered.
func New() *Bridge {
	return &Bridge{limiter: rlog.NewLimiter(1, 3)}
}

// Class is the VM-side class object: a loaded decoder module plus
// the constructor the runtime calls once per instance_new.
type Class struct {
	ModuleName string
	interp     *interp.Interpreter
	newFunc    func() decoderapi.Decoder
	bridge     *Bridge
}

// Load imports a decoder plug-in module by evaluating its Go source,
// the VM-level equivalent of decoder_load. source must
// declare `package main`, a `var Meta decoderapi.Metadata`, a decoder
// type satisfying decoderapi.DecoderV1 or decoderapi.DecoderV2, and a
// `func New() decoderapi.Decoder` constructor. Every borrowed
// interpreter is released (discarded) on every exit path: Load either
// returns a live *Class, or nothing survives it.
func (b *Bridge) Load(moduleName, source string) (*Class, decoderapi.Metadata, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	i := interp.New(interp.Options{})
	if err := i.Use(Exports()); err != nil {
		return nil, decoderapi.Metadata{}, schema.NewVmError(
			fmt.Sprintf("module %q: registering decoderapi symbols", moduleName), "", err)
	}

	if _, err := i.Eval(source); err != nil {
		return nil, decoderapi.Metadata{}, schema.NewVmError(
			fmt.Sprintf("module %q: evaluating source", moduleName), "", err)
	}

	metaVal, err := i.Eval("Meta")
	if err != nil {
		return nil, decoderapi.Metadata{}, schema.NewVmError(
			fmt.Sprintf("module %q: missing var Meta decoderapi.Metadata", moduleName), "", err)
	}
	meta, ok := metaVal.Interface().(decoderapi.Metadata)
	if !ok {
		return nil, decoderapi.Metadata{}, schema.NewVmError(
			fmt.Sprintf("module %q: Meta has wrong type", moduleName), "", nil)
	}

	ctorVal, err := i.Eval("New")
	if err != nil {
		return nil, decoderapi.Metadata{}, schema.NewVmError(
			fmt.Sprintf("module %q: missing func New() decoderapi.Decoder", moduleName), "", err)
	}
	ctor, ok := ctorVal.Interface().(func() decoderapi.Decoder)
	if !ok {
		return nil, decoderapi.Metadata{}, schema.NewVmError(
			fmt.Sprintf("module %q: New has wrong signature", moduleName), "", nil)
	}

	return &Class{ModuleName: moduleName, interp: i, newFunc: ctor, bridge: b}, meta, nil
}

// NewInstance calls the class's constructor under the bridge lock,
// recovering and translating any panic into a VmError.
func (c *Class) NewInstance() (dec decoderapi.Decoder, err *schema.Error) {
	c.bridge.mu.Lock()
	defer c.bridge.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = schema.NewVmError(fmt.Sprintf("module %q: constructing instance: %v", c.ModuleName, r), string(debug.Stack()), nil)
		}
	}()
	dec = c.newFunc()
	return dec, nil
}

// Call invokes fn under the bridge's global VM lock, translating a
// panic raised by interpreted decoder code into a *schema.Error with
// Kind VmError and a captured traceback: a VM exception inside decode
// kills the instance's task rather than the process.
// instKey rate-limits the resulting CRIT log line per instance.
func (c *Class) Call(instKey string, fn func() error) *schema.Error {
	c.bridge.mu.Lock()
	defer c.bridge.mu.Unlock()
	return c.Guard(instKey, fn)
}

// Lock and Unlock give internal/instance's API-v2 worker direct control
// over the bridge's global VM lock. An API-v2 decoder's DecodeV2 call
// lives for the whole instance lifetime and spends most of it blocked
// on new samples — holding the lock for that entire
// span, the way a single Call would, serializes every other instance's
// VM entry behind one decoder's idle wait. The worker instead acquires
// the lock only while interpreted code is actually running and releases
// it for the duration of each blocking wait (see internal/instance/exec.go).
func (c *Class) Lock()   { c.bridge.mu.Lock() }
func (c *Class) Unlock() { c.bridge.mu.Unlock() }

// ForgetInstance drops the rate-limiter state CritLimited accumulated
// for instKey. Called once an instance is freed, so a long-running
// process that churns through many short-lived instances doesn't grow
// the bridge's limiter map without bound.
func (c *Class) ForgetInstance(instKey string) {
	c.bridge.limiter.Forget(instKey)
}

// Guard runs fn and translates a panic into a *schema.Error, without
// taking the bridge lock itself. Callers that already hold the lock
// (directly via Lock/Unlock, as the API-v2 worker does) call this
// instead of Call to avoid double-locking.
func (c *Class) Guard(instKey string, fn func() error) *schema.Error {
	var callErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				tb := string(debug.Stack())
				c.bridge.limiter.CritLimited(instKey, fmt.Sprintf("vmbridge: panic in %s: %v", c.ModuleName, r))
				callErr = schema.NewVmError(fmt.Sprintf("%v", r), tb, nil)
			}
		}()
		callErr = fn()
	}()

	if callErr == nil {
		return nil
	}
	if e, ok := callErr.(*schema.Error); ok {
		return e
	}
	return schema.NewVmError(callErr.Error(), "", callErr)
}
