package gpuscan

import (
	"fmt"

	"github.com/gogpu/gpuscan/gpucore"
)

// Predicate selects elements by comparing them with a constant.
// It is plain data: the filter kernel receives Op and the bits of Value
// as uniforms, so new comparisons need no new kernel.
type Predicate[T Element] struct {
	Op    gpucore.CompareOp
	Value T
}

// GreaterThan selects x > v.
func GreaterThan[T Element](v T) Predicate[T] {
	return Predicate[T]{Op: gpucore.OpGreaterThan, Value: v}
}

// GreaterOrEqual selects x >= v.
func GreaterOrEqual[T Element](v T) Predicate[T] {
	return Predicate[T]{Op: gpucore.OpGreaterOrEqual, Value: v}
}

// LessThan selects x < v.
func LessThan[T Element](v T) Predicate[T] {
	return Predicate[T]{Op: gpucore.OpLessThan, Value: v}
}

// LessOrEqual selects x <= v.
func LessOrEqual[T Element](v T) Predicate[T] {
	return Predicate[T]{Op: gpucore.OpLessOrEqual, Value: v}
}

// Equal selects x == v.
func Equal[T Element](v T) Predicate[T] {
	return Predicate[T]{Op: gpucore.OpEqual, Value: v}
}

// NotEqual selects x != v.
func NotEqual[T Element](v T) Predicate[T] {
	return Predicate[T]{Op: gpucore.OpNotEqual, Value: v}
}

// Eval applies the predicate on the host with the same semantics as the
// filter kernel. NaN only satisfies NotEqual.
func (p Predicate[T]) Eval(x T) bool {
	switch p.Op {
	case gpucore.OpGreaterThan:
		return x > p.Value
	case gpucore.OpGreaterOrEqual:
		return x >= p.Value
	case gpucore.OpLessThan:
		return x < p.Value
	case gpucore.OpLessOrEqual:
		return x <= p.Value
	case gpucore.OpEqual:
		return x == p.Value
	case gpucore.OpNotEqual:
		return x != p.Value
	}
	return false
}

var opSymbols = map[gpucore.CompareOp]string{
	gpucore.OpGreaterThan:    ">",
	gpucore.OpGreaterOrEqual: ">=",
	gpucore.OpLessThan:       "<",
	gpucore.OpLessOrEqual:    "<=",
	gpucore.OpEqual:          "==",
	gpucore.OpNotEqual:       "!=",
}

// String returns e.g. "x > 5".
func (p Predicate[T]) String() string {
	sym, ok := opSymbols[p.Op]
	if !ok {
		sym = p.Op.String()
	}
	return fmt.Sprintf("x %s %v", sym, p.Value)
}

func (p Predicate[T]) validate() error {
	if !p.Op.Valid() {
		return &ConfigError{Field: "predicate op", Value: p.Op, Reason: "unknown comparison"}
	}
	return nil
}

// params returns the filter uniforms for n elements.
func (p Predicate[T]) params(n int) gpucore.Params {
	kind := kindOf[T]()
	return gpucore.Params{
		N:       uint32(n),
		Op:      p.Op,
		Operand: bitsOf(p.Value, kind),
		Kind:    kind,
	}
}
