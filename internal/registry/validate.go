package registry

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/ClusterCockpit/decoderuntime/pkg/decoderapi"
	"github.com/ClusterCockpit/decoderuntime/pkg/schema"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// manifestSchemaSrc validates the shape of a decoder's declared
// channels/options/annotations/binary classes with
// santhosh-tekuri/jsonschema before trusting them: decoder_load must
// reject a manifest whose attributes don't match their declared shapes.
const manifestSchemaSrc = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id", "name", "channels", "options", "annotations", "binary"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "name": {"type": "string", "minLength": 1},
    "apiVersion": {"type": "integer", "enum": [1, 2]},
    "channels": {"type": "array", "items": {"$ref": "#/definitions/channel"}},
    "optionalChannels": {"type": "array", "items": {"$ref": "#/definitions/channel"}},
    "options": {"type": "array", "items": {"$ref": "#/definitions/option"}},
    "annotations": {"type": "array", "items": {"$ref": "#/definitions/annotation"}},
    "binary": {"type": "array", "items": {"$ref": "#/definitions/binary"}}
  },
  "definitions": {
    "channel": {
      "type": "object",
      "required": ["id", "name"],
      "properties": {
        "id": {"type": "string", "minLength": 1},
        "name": {"type": "string", "minLength": 1},
        "desc": {"type": "string"}
      }
    },
    "option": {
      "type": "object",
      "required": ["id"],
      "properties": {
        "id": {"type": "string", "minLength": 1},
        "desc": {"type": "string"}
      }
    },
    "annotation": {
      "type": "object",
      "required": ["short", "long"],
      "properties": {
        "short": {"type": "string", "minLength": 1},
        "long": {"type": "string"}
      }
    },
    "binary": {
      "type": "object",
      "required": ["id", "desc"],
      "properties": {
        "id": {"type": "string", "minLength": 1},
        "desc": {"type": "string"}
      }
    }
  }
}`

var (
	manifestSchemaOnce sync.Once
	manifestSchema     *jsonschema.Schema
	manifestSchemaErr  error
)

func compiledManifestSchema() (*jsonschema.Schema, error) {
	manifestSchemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource("decoder-manifest.json", bytes.NewReader([]byte(manifestSchemaSrc))); err != nil {
			manifestSchemaErr = err
			return
		}
		manifestSchema, manifestSchemaErr = c.Compile("decoder-manifest.json")
	})
	return manifestSchema, manifestSchemaErr
}

// manifestJSON is the subset of decoderapi.Metadata the JSON Schema
// above checks; Go's own type system already guarantees field types
// (string/[]T/etc), so the schema's job is structural: are required
// fields present and non-empty, are nested records shaped correctly.
type manifestJSON struct {
	ID               string                    `json:"id"`
	Name             string                    `json:"name"`
	APIVersion       int                       `json:"apiVersion"`
	Channels         []schema.ChannelDef       `json:"channels"`
	OptionalChannels []schema.ChannelDef       `json:"optionalChannels"`
	Options          []schema.OptionDef        `json:"options"`
	Annotations      []schema.AnnotationClass  `json:"annotations"`
	Binary           []schema.BinaryClass      `json:"binary"`
}

// validateMetadata fails with ArgError on any malformed attribute,
// leaking nothing: the *vmbridge.Class built from a failed Load is
// simply discarded by the caller, never stored.
func validateMetadata(meta decoderapi.Metadata) *schema.Error {
	s, err := compiledManifestSchema()
	if err != nil {
		return schema.NewGeneric("registry: compiling manifest schema: %s", err)
	}

	mj := manifestJSON{
		ID:               meta.ID,
		Name:             meta.Name,
		APIVersion:       meta.APIVersion,
		Channels:         meta.Channels,
		OptionalChannels: meta.OptionalChannels,
		Options:          meta.Options,
		Annotations:      meta.Annotations,
		Binary:           meta.Binary,
	}
	if mj.APIVersion == 0 {
		mj.APIVersion = 1
	}

	raw, err := json.Marshal(mj)
	if err != nil {
		return schema.NewArgError("decoder_load: marshalling manifest for validation: %s", err)
	}

	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return schema.NewArgError("decoder_load: unmarshalling manifest for validation: %s", err)
	}

	if err := s.Validate(doc); err != nil {
		return schema.NewArgError("decoder_load: manifest for %q failed validation: %s", meta.ID, err)
	}

	for i, o := range meta.Options {
		if o.Default.Kind() == schema.KindUnknown {
			return schema.NewArgError("decoder_load: option %q (index %d) has no typed default", o.ID, i)
		}
	}

	return nil
}
