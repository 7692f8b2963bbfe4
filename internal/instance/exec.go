package instance

import (
	"sync"

	"github.com/ClusterCockpit/decoderuntime/internal/sampleview"
	"github.com/ClusterCockpit/decoderuntime/internal/vmbridge"
	"github.com/ClusterCockpit/decoderuntime/pkg/decoderapi"
	"github.com/ClusterCockpit/decoderuntime/pkg/schema"
)

// errTerminated is returned from the worker handshake once an instance
// has been terminate_reset: no further put()/wait() activity is
// honored past termination (see DESIGN.md).
var errTerminated = schema.NewArgError("instance: terminated")

// workerExec is the API-v2 cooperative handshake: one dedicated worker
// goroutine per root stack, coordinated with the calling thread via two
// condition variables (new samples available, chunk handled) sharing
// one mutex. One workerExec is created for every API-v2 instance at
// Start and lives for the instance's lifetime; only a root's is ever
// spawned, since stacked children are fed through DecodeProtocol.
type workerExec struct {
	class            *vmbridge.Class
	wg               sync.WaitGroup
	mu               sync.Mutex
	newSamplesCond   *sync.Cond
	chunkHandledCond *sync.Cond

	buf        []byte
	start, end uint64
	unitsize   int
	channelMap []int
	view       *sampleview.View

	hasChunk   bool // deliver() has handed over a chunk the worker hasn't started consuming
	chunkDone  bool // worker exhausted the current chunk or the task finished
	terminated bool
	workerErr  error
}

func newWorkerExec(class *vmbridge.Class) *workerExec {
	w := &workerExec{class: class}
	w.newSamplesCond = sync.NewCond(&w.mu)
	w.chunkHandledCond = sync.NewCond(&w.mu)
	return w
}

// spawn starts the decoder's DecodeV2 entrypoint on its own goroutine,
// holding the VM lock for as long as interpreted code is actually
// running. DecodeV2 lives for the whole instance lifetime and spends
// most of it blocked inside wait(); wait() releases the VM lock around
// each blocking span (see below) so a stalled API-v2 instance never
// starves the rest of the process's VM entry points. Called exactly
// once, on the instance's first Decode call.
func (w *workerExec) spawn(instKey string, fn func() error) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.class.Lock()
		verr := w.class.Guard(instKey, fn)
		w.class.Unlock()

		w.mu.Lock()
		w.terminated = true
		w.workerErr = verr.AsError()
		w.chunkDone = true
		w.chunkHandledCond.Signal()
		w.newSamplesCond.Signal()
		w.mu.Unlock()
	}()
}

// deliver hands one chunk to the worker and blocks session_send until
// the worker has either run out of samples or suspended again on a
// fresh wait.
func (w *workerExec) deliver(buf []byte, start, end uint64, unitsize int, channelMap []int) error {
	w.mu.Lock()
	if w.terminated {
		w.mu.Unlock()
		return errTerminated
	}

	w.buf = buf
	w.start = start
	w.end = end
	w.unitsize = unitsize
	w.channelMap = channelMap
	w.hasChunk = true
	w.chunkDone = false
	w.newSamplesCond.Signal()

	for !w.chunkDone {
		w.chunkHandledCond.Wait()
	}
	err := w.workerErr
	w.workerErr = nil
	w.mu.Unlock()
	return err
}

// terminate wakes a worker blocked in either condition variable so it
// can observe w.terminated and unwind, then blocks until the worker
// goroutine has actually exited. Used by Instance.TerminateReset, so
// that once it returns, the worker can no longer race with the caller
// to populate callback-visible state (annotations, binaries, matches).
func (w *workerExec) terminate() {
	w.mu.Lock()
	w.terminated = true
	w.newSamplesCond.Signal()
	w.chunkHandledCond.Signal()
	w.mu.Unlock()
	w.wg.Wait()
}

// wait runs on the worker goroutine (inside the decoder's DecodeV2
// call) and implements wait(conds): rebuild the pending condition list,
// then step samples — pulling a fresh chunk from the caller via the
// condition-variable handshake whenever the current one runs out —
// until a term-set matches.
func (w *workerExec) wait(in *Instance, conds decoderapi.ConditionList) ([]byte, []bool, error) {
	w.mu.Lock()

	in.engine.Rebuild(conds)
	if in.engine.PendingIsTrivial() {
		pins := append([]byte(nil), in.engine.PinHistory()...)
		w.mu.Unlock()
		return pins, nil, nil
	}

	for {
		if w.terminated {
			w.mu.Unlock()
			return nil, nil, errTerminated
		}

		var sample decoderapi.Sample
		ok := false
		if w.view != nil {
			sample, ok = w.view.Next()
		}

		if !ok {
			// A chunk may already be waiting (deliver() ran before this
			// was first called, or before the previous view ran dry was
			// even consulted) — only declare the current chunk handled
			// and block for a new one when there genuinely isn't one yet.
			// Latching chunkDone unconditionally here would mark a chunk
			// "done" before it was ever stepped, letting deliver() return
			// to the caller while this goroutine is still mid-decode.
			if !w.hasChunk {
				w.chunkDone = true
				w.chunkHandledCond.Signal()

				// Drop the VM lock for the blocking span itself: nothing
				// below is interpreted code, so no other instance's VM
				// entry needs to wait on it while this one sits idle.
				w.class.Unlock()
				for !w.hasChunk && !w.terminated {
					w.newSamplesCond.Wait()
				}
				w.class.Lock()

				if w.terminated {
					w.mu.Unlock()
					return nil, nil, errTerminated
				}
			}
			w.view = sampleview.New(w.buf, w.unitsize, w.start, w.channelMap)
			w.hasChunk = false
			continue
		}

		matchArray, anyMatch := in.engine.Step(sample)
		in.metrics.ConditionsEvaluated(len(matchArray))
		if anyMatch {
			in.ctx.Samplenum = sample.Samplenum
			w.mu.Unlock()
			return sample.Pins, matchArray, nil
		}
	}
}
