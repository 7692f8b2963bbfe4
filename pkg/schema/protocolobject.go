package schema

import "google.golang.org/protobuf/types/known/structpb"

// ProtocolObject is the concrete envelope for a protocol-object output
// port: a typed shape so stacked decoders have something to
// pattern-match on instead of a bare interface{}.
type ProtocolObject struct {
	ProtocolID string
	Fields     *structpb.Struct
}

// NewProtocolObject builds a ProtocolObject from plain Go values,
// returning structpb.NewStruct's error for values structpb cannot
// represent.
func NewProtocolObject(protocolID string, fields map[string]interface{}) (*ProtocolObject, error) {
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	return &ProtocolObject{ProtocolID: protocolID, Fields: s}, nil
}

// Annotation is the canonical record delivered to the host annotation
// callback.
type Annotation struct {
	InstID  string
	Start   uint64
	End     uint64
	Class   int
	Strings []string
}

// Binary is the canonical record delivered to the host binary callback.
type Binary struct {
	InstID string
	Start  uint64
	End    uint64
	Class  int
	Data   []byte
}

// Metadata is the canonical record delivered to the host metadata
// callback.
type Metadata struct {
	InstID string
	Key    string
	Value  OptionValue
}
