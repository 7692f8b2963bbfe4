package vmbridge

import (
	"reflect"

	"github.com/ClusterCockpit/decoderuntime/pkg/decoderapi"
	"github.com/ClusterCockpit/decoderuntime/pkg/schema"
	"github.com/traefik/yaegi/interp"
)

const decoderapiPath = "github.com/ClusterCockpit/decoderuntime/pkg/decoderapi/decoderapi"
const schemaPath = "github.com/ClusterCockpit/decoderuntime/pkg/schema/schema"

// Exports builds the yaegi symbol table that lets interpreted decoder
// source `import "github.com/ClusterCockpit/decoderuntime/pkg/decoderapi"`
// like any compiled package. Hand-written rather than generated by
// yaegi's `extract` tool since decoderapi is small and stable; a larger
// surface would warrant go:generate-ing this with yaegi's own
// extract command, the way the upstream yaegi stdlib symbol tables are
// produced.
func Exports() interp.Exports {
	return interp.Exports{
		decoderapiPath: {
			"Metadata":         reflect.ValueOf((*decoderapi.Metadata)(nil)),
			"OutputType":       reflect.ValueOf((*decoderapi.OutputType)(nil)),
			"OutputAnnotation": reflect.ValueOf(decoderapi.OutputAnnotation),
			"OutputProtocol":   reflect.ValueOf(decoderapi.OutputProtocol),
			"OutputBinary":     reflect.ValueOf(decoderapi.OutputBinary),
			"OutputMetadata":   reflect.ValueOf(decoderapi.OutputMetadata),
			"Sample":           reflect.ValueOf((*decoderapi.Sample)(nil)),
			"SampleIterator":   reflect.ValueOf((*decoderapi.SampleIterator)(nil)),
			"TermType":         reflect.ValueOf((*decoderapi.TermType)(nil)),
			"High":             reflect.ValueOf(decoderapi.High),
			"Low":              reflect.ValueOf(decoderapi.Low),
			"Rising":           reflect.ValueOf(decoderapi.Rising),
			"Falling":          reflect.ValueOf(decoderapi.Falling),
			"EitherEdge":       reflect.ValueOf(decoderapi.EitherEdge),
			"NoEdge":           reflect.ValueOf(decoderapi.NoEdge),
			"Skip":             reflect.ValueOf(decoderapi.Skip),
			"Term":             reflect.ValueOf((*decoderapi.Term)(nil)),
			"TermSet":          reflect.ValueOf((*decoderapi.TermSet)(nil)),
			"ConditionList":    reflect.ValueOf((*decoderapi.ConditionList)(nil)),
			"Context":          reflect.ValueOf((*decoderapi.Context)(nil)),
			"Decoder":          reflect.ValueOf((*decoderapi.Decoder)(nil)),
			"DecoderV1":        reflect.ValueOf((*decoderapi.DecoderV1)(nil)),
			"DecoderV2":        reflect.ValueOf((*decoderapi.DecoderV2)(nil)),
			"DecoderProtocol":  reflect.ValueOf((*decoderapi.DecoderProtocol)(nil)),
			"AnnotationPut":    reflect.ValueOf((*decoderapi.AnnotationPut)(nil)),
			"BinaryPut":        reflect.ValueOf((*decoderapi.BinaryPut)(nil)),
			"MetadataPut":      reflect.ValueOf((*decoderapi.MetadataPut)(nil)),
		},
		schemaPath: {
			"ChannelDef":      reflect.ValueOf((*schema.ChannelDef)(nil)),
			"OptionDef":       reflect.ValueOf((*schema.OptionDef)(nil)),
			"AnnotationClass": reflect.ValueOf((*schema.AnnotationClass)(nil)),
			"AnnotationRow":   reflect.ValueOf((*schema.AnnotationRow)(nil)),
			"BinaryClass":     reflect.ValueOf((*schema.BinaryClass)(nil)),
			"OptionValue":     reflect.ValueOf((*schema.OptionValue)(nil)),
			"NewStringValue":  reflect.ValueOf(schema.NewStringValue),
			"NewInt64Value":   reflect.ValueOf(schema.NewInt64Value),
			"NewFloat64Value": reflect.ValueOf(schema.NewFloat64Value),
		},
	}
}
