package gpuscan

import (
	"math"

	"github.com/gogpu/gpuscan/gpucore"
)

// Element is the set of element types the engine can filter and compact.
// Every element occupies one 32-bit device word.
type Element interface {
	~int32 | ~uint32 | ~float32
}

// kindOf reports how kernels must interpret the bits of T.
func kindOf[T Element]() gpucore.ElementKind {
	var one, zero T = 1, 0
	if one/2 != 0 {
		return gpucore.KindFloat32
	}
	if zero-one < 0 {
		return gpucore.KindInt32
	}
	return gpucore.KindUint32
}

func bitsOf[T Element](v T, kind gpucore.ElementKind) uint32 {
	switch kind {
	case gpucore.KindFloat32:
		return math.Float32bits(float32(v))
	case gpucore.KindInt32:
		return uint32(int32(v))
	default:
		return uint32(v)
	}
}

func fromBits[T Element](w uint32, kind gpucore.ElementKind) T {
	switch kind {
	case gpucore.KindFloat32:
		return T(math.Float32frombits(w))
	case gpucore.KindInt32:
		return T(int32(w))
	default:
		return T(w)
	}
}

func toWords[T Element](xs []T) []uint32 {
	kind := kindOf[T]()
	out := make([]uint32, len(xs))
	for i, v := range xs {
		out[i] = bitsOf(v, kind)
	}
	return out
}

func fromWords[T Element](ws []uint32) []T {
	kind := kindOf[T]()
	out := make([]T, len(ws))
	for i, w := range ws {
		out[i] = fromBits[T](w, kind)
	}
	return out
}
