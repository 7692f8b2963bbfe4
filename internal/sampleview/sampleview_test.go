package sampleview

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestView_Iteration(t *testing.T) {
	// unitsize 1, channel 0 = host bit 0, channel 1 = host bit 2
	buf := []byte{0b001, 0b101, 0b100}
	v := New(buf, 1, 10, []int{0, 2})
	require.Equal(t, 3, v.Len())

	s, ok := v.Next()
	require.True(t, ok)
	require.Equal(t, uint64(10), s.Samplenum)
	require.Equal(t, []byte{1, 0}, s.Pins)

	s, ok = v.Next()
	require.True(t, ok)
	require.Equal(t, uint64(11), s.Samplenum)
	require.Equal(t, []byte{1, 1}, s.Pins)

	s, ok = v.Next()
	require.True(t, ok)
	require.Equal(t, uint64(12), s.Samplenum)
	require.Equal(t, []byte{0, 1}, s.Pins)

	_, ok = v.Next()
	require.False(t, ok, "iterator must be finite")
}

func TestView_UnwiredOptionalChannel(t *testing.T) {
	buf := []byte{0xff}
	v := New(buf, 1, 0, []int{0, -1})
	s, ok := v.Next()
	require.True(t, ok)
	require.Equal(t, byte(1), s.Pins[0])
	require.Equal(t, byte(0xff), s.Pins[1], "unwired optional channels read as sentinel 0xff")
}

func TestView_MultiByteUnitsizeLittleEndian(t *testing.T) {
	// unitsize 2, channel 8 lives in the second byte's bit 0.
	buf := []byte{0x00, 0x01}
	v := New(buf, 2, 0, []int{8})
	s, ok := v.Next()
	require.True(t, ok)
	require.Equal(t, byte(1), s.Pins[0])
}
