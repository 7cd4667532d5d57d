package npy

import "fmt"

// Array is a dense row-major n-dimensional array.
type Array[T Number] struct {
	Shape []int
	Data  []T
}

// NewArray allocates a zero-filled array.
func NewArray[T Number](shape ...int) *Array[T] {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return &Array[T]{Shape: append([]int(nil), shape...), Data: make([]T, n)}
}

// FromSlice wraps data in an array with the given shape.
// The slice is not copied.
func FromSlice[T Number](data []T, shape ...int) (*Array[T], error) {
	n := 1
	for _, d := range shape {
		if d < 0 {
			return nil, fmt.Errorf("%w: negative dimension in %v", ErrShape, shape)
		}
		n *= d
	}
	if n != len(data) {
		return nil, fmt.Errorf("%w: %d elements do not fit shape %v", ErrShape, len(data), shape)
	}
	return &Array[T]{Shape: append([]int(nil), shape...), Data: data}, nil
}

// Vector wraps data as a 1-d array.
func Vector[T Number](data []T) *Array[T] {
	return &Array[T]{Shape: []int{len(data)}, Data: data}
}

// NDim returns the number of dimensions.
func (a *Array[T]) NDim() int { return len(a.Shape) }

// Len returns the first dimension, or 0 for a scalar.
func (a *Array[T]) Len() int {
	if len(a.Shape) == 0 {
		return 0
	}
	return a.Shape[0]
}

// Size returns the total number of elements.
func (a *Array[T]) Size() int { return len(a.Data) }

// RowSize returns the number of elements per first-axis entry.
func (a *Array[T]) RowSize() int {
	if a.Len() == 0 {
		return 0
	}
	return len(a.Data) / a.Len()
}

// Row returns the elements of row i. The returned slice aliases the array.
func (a *Array[T]) Row(i int) []T {
	rs := a.RowSize()
	return a.Data[i*rs : (i+1)*rs]
}

// At returns the element at the given index.
func (a *Array[T]) At(idx ...int) T {
	off := 0
	for i, d := range a.Shape {
		off = off*d + idx[i]
	}
	return a.Data[off]
}

// Reshape returns an array sharing the data with a new shape.
func (a *Array[T]) Reshape(shape ...int) (*Array[T], error) {
	return FromSlice(a.Data, shape...)
}

// Clone returns a deep copy.
func (a *Array[T]) Clone() *Array[T] {
	out := &Array[T]{Shape: append([]int(nil), a.Shape...), Data: make([]T, len(a.Data))}
	copy(out.Data, a.Data)
	return out
}

// Header returns the header that Write emits for a.
func (a *Array[T]) Header() Header {
	return Header{Descr: DescrOf[T](), Shape: append([]int(nil), a.Shape...)}
}

// Cast converts every element to U.
func Cast[U, T Number](a *Array[T]) *Array[U] {
	out := &Array[U]{Shape: append([]int(nil), a.Shape...), Data: make([]U, len(a.Data))}
	for i, v := range a.Data {
		out.Data[i] = U(v)
	}
	return out
}

// Squeeze drops every dimension of size 1. The data is shared.
func (a *Array[T]) Squeeze() *Array[T] {
	shape := make([]int, 0, len(a.Shape))
	for _, d := range a.Shape {
		if d != 1 {
			shape = append(shape, d)
		}
	}
	return &Array[T]{Shape: shape, Data: a.Data}
}
