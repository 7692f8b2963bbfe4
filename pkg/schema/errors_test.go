package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestError_KindOf(t *testing.T) {
	require.Equal(t, Ok, KindOf(nil))
	require.Equal(t, ArgError, KindOf(NewArgError("bad %s", "value")))
	require.Equal(t, Generic, KindOf(errors.New("plain")))
}

func TestError_AsErrorNilIsUntyped(t *testing.T) {
	var e *Error
	var err error = e.AsError()
	require.Nil(t, err, "AsError must return a literal nil, not an interface wrapping a nil *Error")
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	e := NewVmError("panic", "traceback", cause)
	require.ErrorIs(t, e, cause)
}
