package io

import (
	"encoding/binary"
	"math"
)

// Int16sToLE serializes src into dst as little-endian 16-bit words, growing dst
// when its capacity is short. The returned slice has len 2*len(src).
func Int16sToLE(dst []byte, src []int16) []byte {
	dst = ensureLen(dst, 2*len(src))
	for i, v := range src {
		binary.LittleEndian.PutUint16(dst[2*i:], uint16(v))
	}
	return dst
}

// Int64sToLE is the 64-bit counterpart of Int16sToLE, used for timestamps.
func Int64sToLE(dst []byte, src []int64) []byte {
	dst = ensureLen(dst, 8*len(src))
	for i, v := range src {
		binary.LittleEndian.PutUint64(dst[8*i:], uint64(v))
	}
	return dst
}

func Float32sToLE(dst []byte, src []float32) []byte {
	dst = ensureLen(dst, 4*len(src))
	for i, v := range src {
		binary.LittleEndian.PutUint32(dst[4*i:], math.Float32bits(v))
	}
	return dst
}

func LEToInt16s(dst []int16, src []byte) []int16 {
	n := len(src) / 2
	if cap(dst) < n {
		dst = make([]int16, n)
	}
	dst = dst[:n]
	for i := range dst {
		dst[i] = int16(binary.LittleEndian.Uint16(src[2*i:]))
	}
	return dst
}

func LEToInt64s(dst []int64, src []byte) []int64 {
	n := len(src) / 8
	if cap(dst) < n {
		dst = make([]int64, n)
	}
	dst = dst[:n]
	for i := range dst {
		dst[i] = int64(binary.LittleEndian.Uint64(src[8*i:]))
	}
	return dst
}

func ToInt16(b []byte) int16 {
	return int16(binary.LittleEndian.Uint16(b))
}

func ToUInt16(b []byte) uint16 {
	return binary.LittleEndian.Uint16(b)
}

func ToUInt32(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}

func ToInt64(b []byte) int64 {
	return int64(binary.LittleEndian.Uint64(b))
}

func ensureLen(b []byte, n int) []byte {
	if cap(b) < n {
		return make([]byte, n)
	}
	return b[:n]
}
