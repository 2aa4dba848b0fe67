package ir

import "fmt"

// ElemType identifies the scalar element type of a tensor value.
// The numeric values are stable and small enough to be carried as the
// dtype attribute on allocation instructions.
type ElemType int8

const (
	F32 ElemType = iota
	F64
	I8
	I16
	I32
	I64
	U8
	Bool
)

var elemNames = map[ElemType]string{
	F32:  "f32",
	F64:  "f64",
	I8:   "i8",
	I16:  "i16",
	I32:  "i32",
	I64:  "i64",
	U8:   "u8",
	Bool: "bool",
}

var elemWidths = map[ElemType]uint64{
	F32:  4,
	F64:  8,
	I8:   1,
	I16:  2,
	I32:  4,
	I64:  8,
	U8:   1,
	Bool: 1,
}

func (e ElemType) String() string {
	if s, ok := elemNames[e]; ok {
		return s
	}
	return fmt.Sprintf("elemtype(%d)", int8(e))
}

// Width returns the element size in bytes.
func (e ElemType) Width() uint64 {
	return elemWidths[e]
}

// ParseElemType maps a source-level type name back to its ElemType.
func ParseElemType(s string) (ElemType, bool) {
	for e, name := range elemNames {
		if name == s {
			return e, true
		}
	}
	return 0, false
}

// TensorType describes a tensor-shaped value. Sizes and Strides are nil
// when the shape was never profiled or cannot be known statically.
type TensorType struct {
	Elem    ElemType
	Sizes   []int64
	Strides []int64
}

// Numel returns the total element count, or false when the shape is not
// fully concrete.
func (t *TensorType) Numel() (int64, bool) {
	if t.Sizes == nil {
		return 0, false
	}
	n := int64(1)
	for _, d := range t.Sizes {
		if d < 0 {
			return 0, false
		}
		n *= d
	}
	return n, true
}

// StorageSize returns the byte size needed to hold the tensor densely,
// or false when the element count is not statically known.
func (t *TensorType) StorageSize() (uint64, bool) {
	n, ok := t.Numel()
	if !ok {
		return 0, false
	}
	return uint64(n) * t.Elem.Width(), true
}

// ConcreteSizes returns the dimension sizes recorded for an allocation
// instruction. A missing or zero-led shape collapses to [0], matching the
// behavior for shapes clobbered by in-place mutation.
func (t *TensorType) ConcreteSizes() []int64 {
	if len(t.Sizes) > 0 && t.Sizes[0] != 0 {
		return append([]int64(nil), t.Sizes...)
	}
	return []int64{0}
}

// ConcreteStrides returns the recorded strides, or contiguous row-major
// strides derived from sizes when none were profiled.
func (t *TensorType) ConcreteStrides() []int64 {
	if len(t.Strides) > 0 && t.Strides[0] != 0 {
		return append([]int64(nil), t.Strides...)
	}
	return ContiguousStrides(t.ConcreteSizes())
}

// ContiguousStrides computes default row-major strides for sizes.
func ContiguousStrides(sizes []int64) []int64 {
	strides := make([]int64, len(sizes))
	stride := int64(1)
	for i := len(sizes) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= sizes[i]
	}
	return strides
}

func (t *TensorType) String() string {
	s := t.Elem.String()
	if t.Sizes != nil {
		s += formatDims(t.Sizes)
	}
	if t.Strides != nil {
		s += "@" + formatDims(t.Strides)
	}
	return s
}

func formatDims(dims []int64) string {
	s := "["
	for i, d := range dims {
		if i > 0 {
			s += ","
		}
		s += fmt.Sprintf("%d", d)
	}
	return s + "]"
}
