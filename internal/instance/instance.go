// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package instance implements one running decoder —
// its options, channel map, pin history, output ports, stacked
// children and (for API-v2 decoders) its cooperative execution
// context.
package instance

import (
	"fmt"
	"sync"

	"github.com/ClusterCockpit/decoderuntime/internal/condition"
	"github.com/ClusterCockpit/decoderuntime/internal/router"
	"github.com/ClusterCockpit/decoderuntime/internal/sampleview"
	"github.com/ClusterCockpit/decoderuntime/internal/vmbridge"
	"github.com/ClusterCockpit/decoderuntime/pkg/decoderapi"
	"github.com/ClusterCockpit/decoderuntime/pkg/rlog"
	"github.com/ClusterCockpit/decoderuntime/pkg/schema"
)

// State is the API-v2 execution state machine. API-v1
// instances only ever observe StateFresh and StateTerminated, since
// they have no suspension points and Decode does not mark them running.
type State int

const (
	StateFresh State = iota
	StateRunning
	StateWaitingForSamples
	StateTerminated
)

// Metrics is the narrow hook internal/session injects so instances can
// report activity to the session's Prometheus collectors without
// internal/instance importing internal/session (which would cycle).
type Metrics interface {
	ChunksDecoded()
	ConditionsEvaluated(n int)
	AnnotationEmitted()
	BinaryEmitted()
	VmErrorOccurred()
}

type noopMetrics struct{}

func (noopMetrics) ChunksDecoded()            {}
func (noopMetrics) ConditionsEvaluated(int)   {}
func (noopMetrics) AnnotationEmitted()        {}
func (noopMetrics) BinaryEmitted()            {}
func (noopMetrics) VmErrorOccurred()          {}

// OutputPort is one output_id a decoder registered via ctx.Register
// (one of an instance's declared output ports).
type OutputPort struct {
	ID         int
	Type       decoderapi.OutputType
	ProtocolID string
}

// Instance is one running decoder configuration.
type Instance struct {
	InstID string
	Dec    *schema.Decoder

	class *vmbridge.Class
	vmObj decoderapi.Decoder
	ctx   *decoderapi.Context

	OptionValues map[string]schema.OptionValue
	// ChannelMap[i] is the host channel index for decoder-declared
	// channel i, or -1 if i is an unwired optional channel.
	ChannelMap []int

	DataNumChannels int
	DataUnitsize    int
	DataSamplerate  uint64

	engine *condition.Engine

	router *router.Table
	metrics Metrics

	mu          sync.Mutex
	state       State
	absCur      uint64
	absCurValid bool
	outputPorts []OutputPort
	Parent      *Instance
	Children    []*Instance

	exec *workerExec // non-nil only for API-v2 instances
}

// New creates a fresh, unstarted instance of dec, backed by class,
// delivering output through rt.
func New(instID string, dec *schema.Decoder, class *vmbridge.Class, rt *router.Table) *Instance {
	in := &Instance{
		InstID:       instID,
		Dec:          dec,
		class:        class,
		router:       rt,
		metrics:      noopMetrics{},
		OptionValues: map[string]schema.OptionValue{},
	}
	in.ChannelMap = make([]int, dec.NumChannels())
	for i := range in.ChannelMap {
		in.ChannelMap[i] = -1
	}
	return in
}

// SetMetrics installs the session's metrics sink; called once by
// internal/session at instance_new.
func (in *Instance) SetMetrics(m Metrics) {
	if m == nil {
		m = noopMetrics{}
	}
	in.metrics = m
}

// SetOptions applies typed option overrides.
// Unknown keys warn; a value whose ValueKind differs from the
// declared default's is fatal.
func (in *Instance) SetOptions(values map[string]schema.OptionValue) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	for id, v := range values {
		def, ok := in.Dec.OptionByID(id)
		if !ok {
			rlog.Warnw("instance: option_set: unknown option ignored", rlog.Instance(in.InstID), rlog.Field{Key: "option", Value: id})
			continue
		}
		if !def.Default.SameKind(v) {
			return schema.NewArgError(
				"instance %q: option %q expects %s, got %s",
				in.InstID, id, def.Default.Kind(), v.Kind())
		}
		in.OptionValues[id] = v
	}
	return nil
}

// SetChannelMap replaces the entire channel map by name (channel_set_all).
// Every required channel must be named.
func (in *Instance) SetChannelMap(byName map[string]int) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	for _, c := range in.Dec.Channels {
		hostCh, ok := byName[c.ID]
		if !ok {
			return schema.NewArgError("instance %q: channel_set_all: missing required channel %q", in.InstID, c.ID)
		}
		in.ChannelMap[in.Dec.ChannelIndex(c.ID)] = hostCh
	}
	for _, c := range in.Dec.OptionalChannels {
		if hostCh, ok := byName[c.ID]; ok {
			in.ChannelMap[in.Dec.ChannelIndex(c.ID)] = hostCh
		}
	}
	return nil
}

// Start validates the channel map, builds the initial pin history,
// calls the decoder's start entrypoint and recursively starts every
// child.
func (in *Instance) Start(dataNumChannels, dataUnitsize int, dataSamplerate uint64) error {
	in.mu.Lock()
	for i, c := range in.Dec.Channels {
		if in.ChannelMap[i] < 0 || in.ChannelMap[i] >= dataNumChannels {
			in.mu.Unlock()
			return schema.NewArgError("instance %q: required channel %q not bound", in.InstID, c.ID)
		}
	}
	in.DataNumChannels = dataNumChannels
	in.DataUnitsize = dataUnitsize
	in.DataSamplerate = dataSamplerate
	in.engine = condition.New(in.Dec.NumChannels(), in.Dec.InitialPins)

	vmObj, verr := in.class.NewInstance()
	if verr != nil {
		in.mu.Unlock()
		in.metrics.VmErrorOccurred()
		return verr
	}
	in.vmObj = vmObj
	in.ctx = decoderapi.NewContext(in.put, in.register, in.waitAPIv2)
	in.ctx.Options = in.OptionValues
	in.ctx.NumChannels = dataNumChannels
	in.ctx.Unitsize = dataUnitsize
	in.ctx.Samplerate = dataSamplerate
	if in.Dec.APIVersion == schema.APIv2 {
		in.exec = newWorkerExec(in.class)
	}
	in.mu.Unlock()

	if verr := in.class.Call(in.InstID, func() error { return in.vmObj.Start(in.ctx) }); verr != nil {
		in.metrics.VmErrorOccurred()
		return verr
	}

	for _, child := range in.Children {
		if err := child.Start(dataNumChannels, dataUnitsize, dataSamplerate); err != nil {
			return err
		}
	}
	return nil
}

// Decode dispatches decode(inst, start, end, buf, unitsize),
// API-dispatched to the push or pull execution model.
func (in *Instance) Decode(start, end uint64, buf []byte, unitsize int) error {
	in.mu.Lock()
	if in.state == StateTerminated {
		in.mu.Unlock()
		return schema.NewArgError("instance %q: decode called after terminate_reset", in.InstID)
	}
	if in.absCurValid && start != in.absCur {
		in.mu.Unlock()
		return schema.NewArgError("instance %q: decode: start %d != expected %d", in.InstID, start, in.absCur)
	}
	if end < start {
		in.mu.Unlock()
		return schema.NewArgError("instance %q: decode: end %d < start %d", in.InstID, end, start)
	}
	apiVersion := in.Dec.APIVersion
	in.mu.Unlock()

	in.metrics.ChunksDecoded()

	var err error
	if apiVersion == schema.APIv2 {
		err = in.decodeV2(start, end, buf, unitsize)
	} else {
		err = in.decodeV1(start, end, buf, unitsize)
	}

	if err != nil {
		in.mu.Lock()
		in.state = StateTerminated
		in.mu.Unlock()
		in.metrics.VmErrorOccurred()
		return err
	}

	in.mu.Lock()
	in.absCur = end
	in.absCurValid = true
	in.mu.Unlock()
	return nil
}

func (in *Instance) decodeV1(start, end uint64, buf []byte, unitsize int) error {
	view := sampleview.New(buf, unitsize, start, in.ChannelMap)
	dec, ok := in.vmObj.(decoderapi.DecoderV1)
	if !ok {
		return schema.NewArgError("instance %q: decoder does not implement DecoderV1", in.InstID)
	}
	return in.class.Call(in.InstID, func() error {
		return dec.DecodeV1(in.ctx, start, end, view)
	}).AsError()
}

func (in *Instance) decodeV2(start, end uint64, buf []byte, unitsize int) error {
	dec, ok := in.vmObj.(decoderapi.DecoderV2)
	if !ok {
		return schema.NewArgError("instance %q: decoder does not implement DecoderV2", in.InstID)
	}

	in.mu.Lock()
	first := in.state == StateFresh
	in.state = StateRunning
	in.mu.Unlock()

	if first {
		in.exec.spawn(in.InstID, func() error { return dec.DecodeV2(in.ctx) })
	}

	return in.exec.deliver(buf, start, end, unitsize, in.ChannelMap)
}

// waitAPIv2 is ctx.Wait's bound implementation for an API-v2 instance.
// It runs on the worker goroutine, between the VM lock being released
// and reacquired around each blocking span (see exec.go), and delegates
// to the exec's own condition-variable handshake with the calling
// (session_send) thread.
func (in *Instance) waitAPIv2(conds decoderapi.ConditionList) ([]byte, []bool, error) {
	return in.exec.wait(in, conds)
}

// DecodeProtocol feeds a protocol-object payload produced by this
// instance's parent to this instance's decode entrypoint, satisfying
// router.Decodable for stacked children. It runs inline on the parent's
// put() call, which already holds the VM lock, so it uses Guard rather
// than Call.
func (in *Instance) DecodeProtocol(start, end uint64, obj *schema.ProtocolObject) error {
	in.mu.Lock()
	if in.state == StateTerminated {
		in.mu.Unlock()
		return schema.NewArgError("instance %q: decode called after terminate_reset", in.InstID)
	}
	in.mu.Unlock()

	in.metrics.ChunksDecoded()

	dec, ok := in.vmObj.(decoderapi.DecoderProtocol)
	if !ok {
		return schema.NewArgError("instance %q: stacked decoder does not implement DecoderProtocol", in.InstID)
	}
	err := in.class.Guard(in.InstID, func() error {
		return dec.DecodeProtocol(in.ctx, start, end, obj)
	}).AsError()

	if err != nil {
		in.mu.Lock()
		in.state = StateTerminated
		in.mu.Unlock()
		in.metrics.VmErrorOccurred()
	}
	return err
}

// TerminateReset marks the instance terminated and drops its execution
// context (terminate_reset), stopping and joining an API-v2 worker,
// then recurses into children. The decoder is not called to flush: no
// decoder entrypoint runs as part of termination. Per the stricter
// reading of the no-put-after-terminate question, no put() is honored
// once an instance is terminated (see DESIGN.md).
func (in *Instance) TerminateReset() {
	in.mu.Lock()
	alreadyDone := in.state == StateTerminated
	in.state = StateTerminated
	exec := in.exec
	in.mu.Unlock()

	if !alreadyDone && exec != nil {
		exec.terminate()
	}
	for _, child := range in.Children {
		child.TerminateReset()
	}
}

// Free recursively frees children and releases this instance's VM
// object (free).
func (in *Instance) Free() {
	for _, child := range in.Children {
		child.Free()
	}
	in.mu.Lock()
	in.Children = nil
	in.vmObj = nil
	in.mu.Unlock()
	if in.class != nil {
		in.class.ForgetInstance(in.InstID)
	}
}

// Terminated reports whether this instance has reached StateTerminated.
func (in *Instance) Terminated() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.state == StateTerminated
}

// State returns the instance's current execution state.
func (in *Instance) State() State {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.state
}

func (s State) String() string {
	switch s {
	case StateFresh:
		return "Fresh"
	case StateRunning:
		return "Running"
	case StateWaitingForSamples:
		return "WaitingForSamples"
	case StateTerminated:
		return "Terminated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}
