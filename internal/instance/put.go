package instance

import (
	"github.com/ClusterCockpit/decoderuntime/internal/router"
	"github.com/ClusterCockpit/decoderuntime/pkg/decoderapi"
	"github.com/ClusterCockpit/decoderuntime/pkg/schema"
)

// register is bound into this instance's Context as ctx.Register; it
// assigns dense, never-reused output-port ids in registration order.
func (in *Instance) register(outputType decoderapi.OutputType, protocolID string) int {
	in.mu.Lock()
	defer in.mu.Unlock()
	id := len(in.outputPorts)
	in.outputPorts = append(in.outputPorts, OutputPort{ID: id, Type: outputType, ProtocolID: protocolID})
	return id
}

// put is bound into this instance's Context as ctx.Put and dispatches
// on the output port's declared type. A put on a terminated instance is
// rejected with an error and delivers nothing. A malformed payload is
// fatal-for-the-call but not for the instance; an unrecognized
// output_id or a VM-raised error from a stacked child is fatal for the
// call and propagates to the caller.
func (in *Instance) put(start, end uint64, outputID int, payload interface{}) error {
	in.mu.Lock()
	if in.state == StateTerminated {
		in.mu.Unlock()
		return schema.NewArgError("instance %q: put after terminate_reset", in.InstID)
	}
	if outputID < 0 || outputID >= len(in.outputPorts) {
		in.mu.Unlock()
		router.LogDroppedPut(in.InstID, "unknown output_id")
		return schema.NewArgError("instance %q: put: unknown output_id %d", in.InstID, outputID)
	}
	port := in.outputPorts[outputID]
	children := append([]*Instance(nil), in.Children...)
	rt := in.router
	in.mu.Unlock()

	switch port.Type {
	case decoderapi.OutputAnnotation:
		a, ok := payload.(decoderapi.AnnotationPut)
		if !ok {
			router.LogDroppedPut(in.InstID, "annotation payload has wrong shape")
			return nil
		}
		if a.Class < 0 || a.Class >= len(in.Dec.Annotations) {
			router.LogDroppedPut(in.InstID, "annotation class out of range")
			return nil
		}
		rt.DeliverAnnotation(schema.Annotation{
			InstID: in.InstID, Start: start, End: end, Class: a.Class, Strings: a.Texts,
		})
		in.metrics.AnnotationEmitted()
		return nil

	case decoderapi.OutputBinary:
		b, ok := payload.(decoderapi.BinaryPut)
		if !ok {
			router.LogDroppedPut(in.InstID, "binary payload has wrong shape")
			return nil
		}
		if b.Class < 0 || b.Class >= len(in.Dec.Binary) {
			router.LogDroppedPut(in.InstID, "binary class out of range")
			return nil
		}
		rt.DeliverBinary(schema.Binary{InstID: in.InstID, Start: start, End: end, Class: b.Class, Data: b.Data})
		in.metrics.BinaryEmitted()
		return nil

	case decoderapi.OutputMetadata:
		m, ok := payload.(decoderapi.MetadataPut)
		if !ok {
			router.LogDroppedPut(in.InstID, "metadata payload has wrong shape")
			return nil
		}
		rt.DeliverMetadata(schema.Metadata{InstID: in.InstID, Key: m.Key, Value: m.Value})
		return nil

	case decoderapi.OutputProtocol:
		obj, ok := payload.(*schema.ProtocolObject)
		if !ok {
			router.LogDroppedPut(in.InstID, "protocol payload has wrong shape")
			return nil
		}
		decodables := make([]router.Decodable, len(children))
		for i, c := range children {
			decodables[i] = c
		}
		return router.DeliverProtocolObject(decodables, start, end, obj)

	default:
		router.LogDroppedPut(in.InstID, "output port has unknown type")
		return schema.NewArgError("instance %q: put: output %d has unknown type", in.InstID, outputID)
	}
}
