// Package sampleview presents one chunk of bit-packed samples as a
// lazy, finite, non-restartable sequence of
// (absolute_samplenum, per-channel-byte-vector) pairs, honoring a
// per-instance channel map.
package sampleview

import "github.com/ClusterCockpit/decoderuntime/pkg/decoderapi"

// View iterates one chunk's worth of samples for one decoder instance.
type View struct {
	buf        []byte
	unitsize   int
	channelMap []int // index: declared decoder channel, value: host channel or -1
	start      uint64
	n          int
	pos        int
}

// New builds a View over buf (len(buf) must be a multiple of unitsize)
// starting at absolute sample number start, remapped through
// channelMap (index = decoder-declared channel order, value = host
// channel index, or -1 for an unwired optional channel).
func New(buf []byte, unitsize int, start uint64, channelMap []int) *View {
	n := 0
	if unitsize > 0 {
		n = len(buf) / unitsize
	}
	return &View{
		buf:        buf,
		unitsize:   unitsize,
		channelMap: channelMap,
		start:      start,
		n:          n,
	}
}

// Len returns the number of samples this View will yield in total.
func (v *View) Len() int { return v.n }

// Next yields the next sample, or ok == false once the chunk is
// exhausted. The iterator is finite and non-restartable.
func (v *View) Next() (decoderapi.Sample, bool) {
	if v.pos >= v.n {
		return decoderapi.Sample{}, false
	}

	raw := v.buf[v.pos*v.unitsize : (v.pos+1)*v.unitsize]
	word := littleEndianWord(raw)

	pins := make([]byte, len(v.channelMap))
	for i, hostCh := range v.channelMap {
		if hostCh < 0 {
			pins[i] = 0xff
			continue
		}
		pins[i] = byte((word >> uint(hostCh)) & 1)
	}

	s := decoderapi.Sample{Samplenum: v.start + uint64(v.pos), Pins: pins}
	v.pos++
	return s, true
}

func littleEndianWord(raw []byte) uint64 {
	var w uint64
	for i, b := range raw {
		w |= uint64(b) << uint(8*i)
	}
	return w
}
