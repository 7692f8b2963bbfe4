// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package schema holds the data model shared by the decoder registry,
// the decoder instance graph and the session container: decoder
// manifests, option/metadata values and the runtime's error taxonomy.
package schema

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// ValueKind is the typed union used for option defaults, option
// overrides and session metadata values.
type ValueKind int

const (
	KindUnknown ValueKind = iota
	KindString
	KindInt64
	KindFloat64
)

func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "float64"
	default:
		return "unknown"
	}
}

// OptionValue is a string|int64|float64 tagged union. It is backed by
// structpb.Value so it marshals the same way a
// protobuf-carried option would, rather than reinventing a sum type.
type OptionValue struct {
	kind ValueKind
	pb   *structpb.Value
	i64  int64
}

func NewStringValue(s string) OptionValue {
	return OptionValue{kind: KindString, pb: structpb.NewStringValue(s)}
}

func NewInt64Value(i int64) OptionValue {
	// structpb only has float64; keep the int64 alongside for exact
	// round-tripping, since an int64 option or metadata value must come
	// back bit-for-bit and float64 cannot hold every int64.
	return OptionValue{kind: KindInt64, pb: structpb.NewNumberValue(float64(i)), i64: i}
}

func NewFloat64Value(f float64) OptionValue {
	return OptionValue{kind: KindFloat64, pb: structpb.NewNumberValue(f)}
}

func (v OptionValue) Kind() ValueKind { return v.kind }

func (v OptionValue) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.pb.GetStringValue(), true
}

func (v OptionValue) AsInt64() (int64, bool) {
	if v.kind != KindInt64 {
		return 0, false
	}
	return v.i64, true
}

func (v OptionValue) AsFloat64() (float64, bool) {
	if v.kind != KindFloat64 {
		return 0, false
	}
	return v.pb.GetNumberValue(), true
}

func (v OptionValue) String() string {
	switch v.kind {
	case KindString:
		s, _ := v.AsString()
		return s
	case KindInt64:
		return fmt.Sprintf("%d", v.i64)
	case KindFloat64:
		f, _ := v.AsFloat64()
		return fmt.Sprintf("%g", f)
	default:
		return "<unset>"
	}
}

// SameKind reports whether v and other carry the same ValueKind; used to
// reject option overrides whose type doesn't match the declared default.
func (v OptionValue) SameKind(other OptionValue) bool {
	return v.kind == other.kind
}
