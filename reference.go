package gpuscan

// Sequential implementations of the engine operations. They define the
// expected results and serve as the comparison path for device runs.

// ReferenceScan returns the exclusive prefix sum of xs.
func ReferenceScan(xs []int32) []int32 {
	out := make([]int32, len(xs))
	var sum int32
	for i, v := range xs {
		out[i] = sum
		sum += v
	}
	return out
}

// ReferenceScanInclusive returns the inclusive prefix sum of xs.
func ReferenceScanInclusive(xs []int32) []int32 {
	out := make([]int32, len(xs))
	var sum int32
	for i, v := range xs {
		sum += v
		out[i] = sum
	}
	return out
}

// ReferenceFilter returns the selection mask of pred over xs.
func ReferenceFilter[T Element](xs []T, pred Predicate[T]) Mask {
	out := make(Mask, len(xs))
	for i, v := range xs {
		if pred.Eval(v) {
			out[i] = 1
		}
	}
	return out
}

// ReferenceCompact returns the elements of xs satisfying pred, in order.
func ReferenceCompact[T Element](xs []T, pred Predicate[T]) []T {
	out := []T{}
	for _, v := range xs {
		if pred.Eval(v) {
			out = append(out, v)
		}
	}
	return out
}
