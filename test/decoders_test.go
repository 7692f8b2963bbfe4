package test

const edgeDecoderSource = `
package main

import (
	"github.com/ClusterCockpit/decoderuntime/pkg/decoderapi"
	"github.com/ClusterCockpit/decoderuntime/pkg/schema"
)

var Meta = decoderapi.Metadata{
	APIVersion: 2,
	ID:         "edge",
	Name:       "edge",
	Channels:    []schema.ChannelDef{{ID: "a", Name: "A"}},
	Annotations: []schema.AnnotationClass{{Short: "edge", Long: "rising edge detected"}},
}

type edgeDecoder struct {
	annPort int
}

func (d *edgeDecoder) Start(ctx *decoderapi.Context) error {
	d.annPort = ctx.Register(decoderapi.OutputAnnotation, "")
	return nil
}

func (d *edgeDecoder) DecodeV2(ctx *decoderapi.Context) error {
	for {
		_, err := ctx.Wait(decoderapi.ConditionList{
			{{Channel: 0, Type: decoderapi.Rising}},
		})
		if err != nil {
			return err
		}
		ctx.Put(ctx.Samplenum, ctx.Samplenum+1, d.annPort, decoderapi.AnnotationPut{
			Class: 0,
			Texts: []string{"edge"},
		})
	}
}

func New() decoderapi.Decoder {
	return &edgeDecoder{}
}
`

const echoV1DecoderSource = `
package main

import (
	"github.com/ClusterCockpit/decoderuntime/pkg/decoderapi"
	"github.com/ClusterCockpit/decoderuntime/pkg/schema"
)

var Meta = decoderapi.Metadata{
	APIVersion: 1,
	ID:         "echo",
	Name:       "echo",
	Channels:    []schema.ChannelDef{{ID: "a", Name: "A"}},
	Annotations: []schema.AnnotationClass{{Short: "sample", Long: "one sample observed"}},
}

type echoDecoder struct {
	annPort int
}

func (d *echoDecoder) Start(ctx *decoderapi.Context) error {
	d.annPort = ctx.Register(decoderapi.OutputAnnotation, "")
	return nil
}

func (d *echoDecoder) DecodeV1(ctx *decoderapi.Context, start, end uint64, data decoderapi.SampleIterator) error {
	for {
		s, ok := data.Next()
		if !ok {
			return nil
		}
		ctx.Put(s.Samplenum, s.Samplenum+1, d.annPort, decoderapi.AnnotationPut{
			Class: 0,
			Texts: []string{"sample"},
		})
	}
}

func New() decoderapi.Decoder {
	return &echoDecoder{}
}
`
