package router

import (
	"testing"

	"github.com/ClusterCockpit/decoderuntime/pkg/schema"
	"github.com/stretchr/testify/require"
)

type fakeDecodable struct {
	decodeCalls   int
	protocolCalls int
	err           error
}

func (f *fakeDecodable) Decode(start, end uint64, buf []byte, unitsize int) error {
	f.decodeCalls++
	return f.err
}

func (f *fakeDecodable) DecodeProtocol(start, end uint64, obj *schema.ProtocolObject) error {
	f.protocolCalls++
	return f.err
}

func TestTable_DeliverAnnotation(t *testing.T) {
	tbl := New()
	var got schema.Annotation
	tbl.OnAnnotation = func(a schema.Annotation) { got = a }
	tbl.DeliverAnnotation(schema.Annotation{InstID: "x-1", Class: 2, Strings: []string{"hi"}})
	require.Equal(t, "x-1", got.InstID)
	require.Equal(t, 2, got.Class)
}

func TestTable_DeliverWithoutCallbackIsNoop(t *testing.T) {
	tbl := New()
	require.NotPanics(t, func() {
		tbl.DeliverAnnotation(schema.Annotation{})
		tbl.DeliverBinary(schema.Binary{})
		tbl.DeliverMetadata(schema.Metadata{})
	})
}

func TestDeliverProtocolObject_StopsOnFirstError(t *testing.T) {
	obj, err := schema.NewProtocolObject("uart", nil)
	require.NoError(t, err)

	a := &fakeDecodable{err: errBoom}
	b := &fakeDecodable{}
	err = DeliverProtocolObject([]Decodable{a, b}, 0, 10, obj)
	require.ErrorIs(t, err, errBoom)
	require.Equal(t, 1, a.protocolCalls)
	require.Equal(t, 0, b.protocolCalls, "delivery must stop at the first erroring child")
}

func TestDeliverProtocolObject_AllChildrenRunInOrder(t *testing.T) {
	obj, err := schema.NewProtocolObject("uart", nil)
	require.NoError(t, err)

	a := &fakeDecodable{}
	b := &fakeDecodable{}
	err = DeliverProtocolObject([]Decodable{a, b}, 0, 10, obj)
	require.NoError(t, err)
	require.Equal(t, 1, a.protocolCalls)
	require.Equal(t, 1, b.protocolCalls)
}

var errBoom = schema.NewGeneric("boom")
