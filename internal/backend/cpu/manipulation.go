package cpu

import (
	"fmt"

	"github.com/spindle-ml/spindle/internal/parallel"
	"github.com/spindle-ml/spindle/internal/tensor"
)

// Chunk splits x into n equal parts along the specified dimension.
// The dimension size must be divisible by n.
// Supports negative dim indexing (-1 = last dimension).
func (b *Backend) Chunk(x *tensor.RawTensor, n, dim int) []*tensor.RawTensor {
	if n <= 0 {
		panic(fmt.Sprintf("chunk: n must be positive, got %d", n))
	}

	dim = normalizeDim("chunk", dim, len(x.Shape()))
	dimSize := x.Shape()[dim]
	if dimSize%n != 0 {
		panic(fmt.Sprintf("chunk: dimension %d size %d not divisible by %d", dim, dimSize, n))
	}

	sizes := make([]int, n)
	for i := range sizes {
		sizes[i] = dimSize / n
	}
	return b.SplitWithSizes(x, sizes, dim)
}

// Split splits x into pieces of the given size along dim.
// The last piece may be smaller if the dimension is not divisible.
func (b *Backend) Split(x *tensor.RawTensor, size, dim int) []*tensor.RawTensor {
	if size <= 0 {
		panic(fmt.Sprintf("split: size must be positive, got %d", size))
	}

	dim = normalizeDim("split", dim, len(x.Shape()))
	dimSize := x.Shape()[dim]

	var sizes []int
	for remaining := dimSize; remaining > 0; remaining -= size {
		sizes = append(sizes, min(size, remaining))
	}
	return b.SplitWithSizes(x, sizes, dim)
}

// SplitWithSizes splits x along dim into pieces of the given sizes.
// The sizes must sum to the dimension size.
func (b *Backend) SplitWithSizes(x *tensor.RawTensor, sizes []int, dim int) []*tensor.RawTensor {
	dim = normalizeDim("split_with_sizes", dim, len(x.Shape()))
	shape := x.Shape()
	dimSize := shape[dim]

	total := 0
	for i, s := range sizes {
		if s <= 0 {
			panic(fmt.Sprintf("split_with_sizes: size %d at index %d must be positive", s, i))
		}
		total += s
	}
	if total != dimSize {
		panic(fmt.Sprintf("split_with_sizes: sizes sum to %d, dimension %d has size %d", total, dim, dimSize))
	}

	// outer × dimSize × inner element layout around the split dimension.
	outer, inner := 1, 1
	for d := 0; d < dim; d++ {
		outer *= shape[d]
	}
	for d := dim + 1; d < len(shape); d++ {
		inner *= shape[d]
	}

	es := x.DType().Size()
	src := x.Data()

	results := make([]*tensor.RawTensor, len(sizes))
	off := 0
	for i, s := range sizes {
		outShape := shape.Clone()
		outShape[dim] = s

		piece, err := tensor.NewRaw(outShape, x.DType(), b.device)
		if err != nil {
			panic(fmt.Sprintf("split_with_sizes: %v", err))
		}
		dst := piece.Data()

		rowBytes := s * inner * es
		parallel.For(outer, func(o int) {
			srcStart := (o*dimSize + off) * inner * es
			copy(dst[o*rowBytes:(o+1)*rowBytes], src[srcStart:srcStart+rowBytes])
		}, b.par)

		results[i] = piece
		off += s
	}
	return results
}

// TensorSplit splits x into the requested number of sections along dim.
// Unlike Chunk, uneven splits are allowed: the first dimSize%sections
// pieces get one extra element.
func (b *Backend) TensorSplit(x *tensor.RawTensor, sections, dim int) []*tensor.RawTensor {
	if sections <= 0 {
		panic(fmt.Sprintf("tensor_split: sections must be positive, got %d", sections))
	}

	dim = normalizeDim("tensor_split", dim, len(x.Shape()))
	dimSize := x.Shape()[dim]

	base := dimSize / sections
	extra := dimSize % sections
	sizes := make([]int, sections)
	for i := range sizes {
		sizes[i] = base
		if i < extra {
			sizes[i]++
		}
	}
	return b.SplitWithSizes(x, sizes, dim)
}

// Hsplit splits x into sections along dimension 1 (columns).
func (b *Backend) Hsplit(x *tensor.RawTensor, sections int) []*tensor.RawTensor {
	if len(x.Shape()) < 2 {
		panic("hsplit: tensor must have at least 2 dimensions")
	}
	return b.Chunk(x, sections, 1)
}

// Vsplit splits x into sections along dimension 0 (rows).
func (b *Backend) Vsplit(x *tensor.RawTensor, sections int) []*tensor.RawTensor {
	return b.Chunk(x, sections, 0)
}

// Dsplit splits x into sections along dimension 2 (depth).
func (b *Backend) Dsplit(x *tensor.RawTensor, sections int) []*tensor.RawTensor {
	if len(x.Shape()) < 3 {
		panic("dsplit: tensor must have at least 3 dimensions")
	}
	return b.Chunk(x, sections, 2)
}

// Unbind removes dim and returns every slice along it.
func (b *Backend) Unbind(x *tensor.RawTensor, dim int) []*tensor.RawTensor {
	dim = normalizeDim("unbind", dim, len(x.Shape()))
	shape := x.Shape()

	sizes := make([]int, shape[dim])
	for i := range sizes {
		sizes[i] = 1
	}
	pieces := b.SplitWithSizes(x, sizes, dim)

	// Squeeze the split dimension away.
	outShape := make(tensor.Shape, 0, len(shape)-1)
	for d, s := range shape {
		if d != dim {
			outShape = append(outShape, s)
		}
	}
	results := make([]*tensor.RawTensor, len(pieces))
	for i, p := range pieces {
		squeezed, err := p.View(outShape)
		if err != nil {
			panic(fmt.Sprintf("unbind: %v", err))
		}
		results[i] = squeezed
	}
	return results
}

// Reshape returns a fresh tensor with the same data and a new shape.
// Unlike View this always copies.
func (b *Backend) Reshape(x *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	if newShape.NumElements() != x.NumElements() {
		panic(fmt.Sprintf("reshape: shape %v has %d elements, tensor has %d",
			newShape, newShape.NumElements(), x.NumElements()))
	}
	result, err := tensor.NewRaw(newShape, x.DType(), b.device)
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	copy(result.Data()[:result.ByteSize()], x.Data()[:x.ByteSize()])
	return result
}

// Transpose swaps two dimensions, copying data into a fresh tensor.
func (b *Backend) Transpose(x *tensor.RawTensor, dim0, dim1 int) *tensor.RawTensor {
	shape := x.Shape()
	ndim := len(shape)
	dim0 = normalizeDim("transpose", dim0, ndim)
	dim1 = normalizeDim("transpose", dim1, ndim)

	outShape := shape.Clone()
	outShape[dim0], outShape[dim1] = outShape[dim1], outShape[dim0]

	result, err := tensor.NewRaw(outShape, x.DType(), b.device)
	if err != nil {
		panic(fmt.Sprintf("transpose: %v", err))
	}

	es := x.DType().Size()
	srcStrides := x.Shape().ComputeStrides()
	outStrides := outShape.ComputeStrides()
	src := x.Data()
	dst := result.Data()

	parallel.For(result.NumElements(), func(i int) {
		// Decompose the output linear index, swap the two dims back,
		// and recompose the source linear index.
		rem := i
		srcIdx := 0
		for d := 0; d < ndim; d++ {
			coord := rem / outStrides[d]
			rem %= outStrides[d]
			sd := d
			if d == dim0 {
				sd = dim1
			} else if d == dim1 {
				sd = dim0
			}
			srcIdx += coord * srcStrides[sd]
		}
		copy(dst[i*es:(i+1)*es], src[srcIdx*es:(srcIdx+1)*es])
	}, b.par)

	return result
}

// normalizeDim resolves negative dims and bounds-checks the result.
func normalizeDim(op string, dim, ndim int) int {
	if dim < 0 {
		dim = ndim + dim
	}
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("%s: dimension %d out of range for %dD tensor", op, dim, ndim))
	}
	return dim
}
