package wav

import (
	"encoding/binary"
	"math"
)

// SampleAt returns the value of a sine wave at sample index out of total samples.
//
// Time is normalized over the segment, so t = index/total lies in [0, 1). The
// result is amplitude*sin(2*pi*frequency*t), rounded to the nearest integer and
// clamped to the signed range of bitDepth. total must be non-zero.
func SampleAt(amplitude, frequency float64, index, total uint32, bitDepth uint16) int32 {
	t := float64(index) / float64(total)
	omega := frequency * 2 * math.Pi
	return clampSample(math.Round(amplitude*math.Sin(omega*t)), bitDepth)
}

// clampSample restricts v to the range of a signed integer of bitDepth bits.
func clampSample(v float64, bitDepth uint16) int32 {
	if math.IsNaN(v) {
		return 0
	}
	hi := math.Ldexp(1, int(bitDepth)-1) - 1
	lo := -hi - 1
	if v > hi {
		return int32(hi)
	}
	if v < lo {
		return int32(lo)
	}
	return int32(v)
}

// putSample encodes a sample little-endian into buf, which must be bitDepth/8 bytes long.
// 8-bit WAV samples are unsigned with a midpoint of 128.
func putSample(buf []byte, v int32, bitDepth uint16) {
	switch bitDepth {
	case 8:
		buf[0] = byte(v + 128)
	case 16:
		binary.LittleEndian.PutUint16(buf, uint16(int16(v)))
	case 24:
		buf[0] = byte(v)
		buf[1] = byte(v >> 8)
		buf[2] = byte(v >> 16)
	case 32:
		binary.LittleEndian.PutUint32(buf, uint32(v))
	}
}
