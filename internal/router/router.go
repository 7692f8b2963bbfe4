// Package router routes a decoder's put() output either to a host
// callback (annotation/binary/metadata) or recursively to every stacked
// child's decode entrypoint (protocol object).
package router

import (
	"github.com/ClusterCockpit/decoderuntime/pkg/rlog"
	"github.com/ClusterCockpit/decoderuntime/pkg/schema"
)

// Decodable is the narrow view of internal/instance.Instance the
// router needs to recurse into stacked children, kept this small to
// avoid an import cycle between internal/router and internal/instance.
// Decode feeds a root instance raw logic samples; DecodeProtocol feeds
// a stacked child the opaque payload its parent put() as a protocol
// object, forwarded verbatim to each child's decode entrypoint.
type Decodable interface {
	Decode(start, end uint64, buf []byte, unitsize int) error
	DecodeProtocol(start, end uint64, obj *schema.ProtocolObject) error
}

// Table is the per-session output-type callback table: a table keyed
// by output type, where registering a callback replaces any previous
// one. One Table is owned by exactly one session.
type Table struct {
	OnAnnotation func(schema.Annotation)
	OnBinary     func(schema.Binary)
	OnMetadata   func(schema.Metadata)
}

// New returns an empty Table; every callback is nil until set.
func New() *Table { return &Table{} }

// DeliverAnnotation routes an annotation event to the host callback, if
// registered.
func (t *Table) DeliverAnnotation(a schema.Annotation) {
	if t.OnAnnotation != nil {
		t.OnAnnotation(a)
	}
}

// DeliverBinary routes a binary event to the host callback, if
// registered.
func (t *Table) DeliverBinary(b schema.Binary) {
	if t.OnBinary != nil {
		t.OnBinary(b)
	}
}

// DeliverMetadata routes a metadata event to the host callback, if
// registered.
func (t *Table) DeliverMetadata(m schema.Metadata) {
	if t.OnMetadata != nil {
		t.OnMetadata(m)
	}
}

// DeliverProtocolObject forwards a protocol-object payload to every
// stacked child's decode entrypoint, synchronously and in order:
// children within a stack run inline with their parent. An error from
// one child aborts delivery to the remaining children and propagates
// to the producer's put() call as a runtime error.
func DeliverProtocolObject(children []Decodable, start, end uint64, obj *schema.ProtocolObject) error {
	for _, child := range children {
		if err := child.DecodeProtocol(start, end, obj); err != nil {
			return err
		}
	}
	return nil
}

// LogDroppedPut logs a put() that was not delivered (a malformed
// payload or an unknown output_id). Logging does not affect the
// instance, which keeps running; whether the caller of put also gets an
// error is decided by put itself.
func LogDroppedPut(instID string, reason string) {
	rlog.Warnw("router: dropping put()", rlog.Instance(instID), rlog.Field{Key: "reason", Value: reason})
}
