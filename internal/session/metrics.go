package session

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics implements instance.Metrics, translating per-instance
// activity into session-scoped Prometheus counters, exposed via a
// registry the host owns — this package never starts its own HTTP
// listener. Every session shares one set of CounterVecs, labeled by
// session id, rather than each registering its own fixed-name Counters:
// a host that keeps one long-lived Registerer across many session_new
// calls would otherwise hit MustRegister's duplicate-registration panic
// on the second session.
type Metrics struct {
	chunksDecoded       prometheus.Counter
	conditionsEvaluated prometheus.Counter
	annotationsEmitted  prometheus.Counter
	binariesEmitted     prometheus.Counter
	vmErrors            prometheus.Counter
}

var (
	vecsOnce               sync.Once
	chunksDecodedVec       *prometheus.CounterVec
	conditionsEvaluatedVec *prometheus.CounterVec
	annotationsEmittedVec  *prometheus.CounterVec
	binariesEmittedVec     *prometheus.CounterVec
	vmErrorsVec            *prometheus.CounterVec
)

func initVecs() {
	vecsOnce.Do(func() {
		chunksDecodedVec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "decoderuntime_chunks_decoded_total",
			Help: "Number of decode() calls dispatched to any instance.",
		}, []string{"session"})
		conditionsEvaluatedVec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "decoderuntime_conditions_evaluated_total",
			Help: "Number of condition term-sets evaluated across all wait() calls.",
		}, []string{"session"})
		annotationsEmittedVec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "decoderuntime_annotations_emitted_total",
			Help: "Number of annotation events delivered to host callbacks.",
		}, []string{"session"})
		binariesEmittedVec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "decoderuntime_binaries_emitted_total",
			Help: "Number of binary events delivered to host callbacks.",
		}, []string{"session"})
		vmErrorsVec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "decoderuntime_vm_errors_total",
			Help: "Number of VM panics translated into VmError and terminated instances.",
		}, []string{"session"})
	})
}

// registerVec registers vec against reg, tolerating a previous
// registration of the identically-shaped vec (e.g. by an earlier
// session sharing the same Registerer) and reusing that instance
// instead of panicking.
func registerVec(reg prometheus.Registerer, vec *prometheus.CounterVec) *prometheus.CounterVec {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(*prometheus.CounterVec)
		}
		panic(err)
	}
	return vec
}

// NewMetrics builds this session's labeled counter handles, registering
// the shared CounterVecs against reg on first use (nil reg skips
// registration entirely, e.g. for short-lived test sessions).
func NewMetrics(reg prometheus.Registerer, sessionID uint64) *Metrics {
	initVecs()
	label := fmt.Sprintf("%d", sessionID)

	cd, ce, ae, be, ve := chunksDecodedVec, conditionsEvaluatedVec, annotationsEmittedVec, binariesEmittedVec, vmErrorsVec
	if reg != nil {
		cd = registerVec(reg, chunksDecodedVec)
		ce = registerVec(reg, conditionsEvaluatedVec)
		ae = registerVec(reg, annotationsEmittedVec)
		be = registerVec(reg, binariesEmittedVec)
		ve = registerVec(reg, vmErrorsVec)
	}

	return &Metrics{
		chunksDecoded:       cd.WithLabelValues(label),
		conditionsEvaluated: ce.WithLabelValues(label),
		annotationsEmitted:  ae.WithLabelValues(label),
		binariesEmitted:     be.WithLabelValues(label),
		vmErrors:            ve.WithLabelValues(label),
	}
}

func (m *Metrics) ChunksDecoded()            { m.chunksDecoded.Inc() }
func (m *Metrics) ConditionsEvaluated(n int) { m.conditionsEvaluated.Add(float64(n)) }
func (m *Metrics) AnnotationEmitted()        { m.annotationsEmitted.Inc() }
func (m *Metrics) BinaryEmitted()            { m.binariesEmitted.Inc() }
func (m *Metrics) VmErrorOccurred()          { m.vmErrors.Inc() }
