package models

import (
	"errors"
	"fmt"
)

// ErrInvalidDimensions is returned for descriptors with the wrong number of
// dimensions or a non-positive extent.
var ErrInvalidDimensions = errors.New("invalid volume dimensions")

// VolumeDescriptor describes the layout of a headerless binary volume.
type VolumeDescriptor struct {
	// Dimensions holds the extents as x, y and optionally z.
	Dimensions []int

	ElementType ElementType
	ByteOrder   ByteOrder
	MemoryOrder MemoryOrder
}

// Validate checks the dimension count, the extents and the element type.
func (d VolumeDescriptor) Validate() error {
	if n := len(d.Dimensions); n != 2 && n != 3 {
		return fmt.Errorf("%w: need 2 or 3 dimensions, got %d", ErrInvalidDimensions, n)
	}
	for i, v := range d.Dimensions {
		if v <= 0 {
			return fmt.Errorf("%w: dimension %d is %d", ErrInvalidDimensions, i, v)
		}
	}
	if !d.ElementType.Valid() {
		return fmt.Errorf("unsupported element type %v", d.ElementType)
	}
	return nil
}

// Shape returns the dimensions in array index order: (x, y[, z]) for
// column-major storage and ([z,] y, x) for row-major storage. In both cases
// x is the fastest varying axis on disk.
func (d VolumeDescriptor) Shape() []int {
	shape := make([]int, len(d.Dimensions))
	if d.MemoryOrder == ColumnMajor {
		copy(shape, d.Dimensions)
		return shape
	}
	for i, v := range d.Dimensions {
		shape[len(shape)-1-i] = v
	}
	return shape
}

// BytesPerElement returns the sample width in bytes.
func (d VolumeDescriptor) BytesPerElement() int {
	return d.ElementType.Size()
}

// ExpectedBytes is the exact file size a volume with this layout must have.
func (d VolumeDescriptor) ExpectedBytes() int64 {
	n := int64(d.BytesPerElement())
	for _, v := range d.Dimensions {
		n *= int64(v)
	}
	return n
}

// Product multiplies the entries of a shape.
func Product(shape []int) int64 {
	n := int64(1)
	for _, v := range shape {
		n *= int64(v)
	}
	return n
}
