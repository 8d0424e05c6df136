package models

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Volume represents a 2D or 3D image held in memory
type Volume struct {
	// Dims are the extents along x, y and z. A 2D image has Dims[2] == 1.
	Dims [3]int

	// NDims is 2 or 3
	NDims int

	// Components is the number of values per voxel (1 for scalar, 3 for RGB)
	Components int

	// Type is the scalar type of every component
	Type ElementType

	// Spacing is the physical size of each voxel
	Spacing [3]float64

	// Origin is the physical position of the first voxel
	Origin [3]float64

	// Data holds the samples with x varying fastest, then y, then z.
	// Components are interleaved and every value is little-endian.
	Data []byte
}

// NewVolume allocates a zeroed volume. dims must hold 2 or 3 positive extents.
func NewVolume(dims []int, t ElementType, components int) (*Volume, error) {
	if len(dims) != 2 && len(dims) != 3 {
		return nil, fmt.Errorf("%w: need 2 or 3 dimensions, got %d", ErrInvalidDimensions, len(dims))
	}
	if components < 1 {
		return nil, fmt.Errorf("invalid component count %d", components)
	}
	if !t.Valid() {
		return nil, fmt.Errorf("unsupported element type %v", t)
	}
	v := &Volume{
		Dims:       [3]int{1, 1, 1},
		NDims:      len(dims),
		Components: components,
		Type:       t,
		Spacing:    [3]float64{1, 1, 1},
	}
	for i, d := range dims {
		if d <= 0 {
			return nil, fmt.Errorf("%w: dimension %d is %d", ErrInvalidDimensions, i, d)
		}
		v.Dims[i] = d
	}
	v.Data = make([]byte, v.NumSamples()*t.Size())
	return v, nil
}

// Extent returns the first NDims entries of Dims.
func (v *Volume) Extent() []int {
	out := make([]int, v.NDims)
	copy(out, v.Dims[:v.NDims])
	return out
}

// NumVoxels is the number of voxels.
func (v *Volume) NumVoxels() int {
	return v.Dims[0] * v.Dims[1] * v.Dims[2]
}

// NumSamples is the number of stored values (voxels times components).
func (v *Volume) NumSamples() int {
	return v.NumVoxels() * v.Components
}

// Index returns the sample index of component c at voxel (x, y, z).
func (v *Volume) Index(x, y, z, c int) int {
	return ((z*v.Dims[1]+y)*v.Dims[0]+x)*v.Components + c
}

// At returns sample i as a float64.
func (v *Volume) At(i int) float64 {
	size := v.Type.Size()
	b := v.Data[i*size : (i+1)*size]
	switch v.Type {
	case Int8:
		return float64(int8(b[0]))
	case Uint8:
		return float64(b[0])
	case Int16:
		return float64(int16(binary.LittleEndian.Uint16(b)))
	case Uint16:
		return float64(binary.LittleEndian.Uint16(b))
	case Int32:
		return float64(int32(binary.LittleEndian.Uint32(b)))
	case Uint32:
		return float64(binary.LittleEndian.Uint32(b))
	case Float32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case Float64:
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	}
	return 0
}

// Set stores val into sample i. Integer types truncate toward zero and
// saturate at the limits of the type.
func (v *Volume) Set(i int, val float64) {
	size := v.Type.Size()
	b := v.Data[i*size : (i+1)*size]
	switch v.Type {
	case Int8:
		b[0] = byte(int8(clamp(val, math.MinInt8, math.MaxInt8)))
	case Uint8:
		b[0] = uint8(clamp(val, 0, math.MaxUint8))
	case Int16:
		binary.LittleEndian.PutUint16(b, uint16(int16(clamp(val, math.MinInt16, math.MaxInt16))))
	case Uint16:
		binary.LittleEndian.PutUint16(b, uint16(clamp(val, 0, math.MaxUint16)))
	case Int32:
		binary.LittleEndian.PutUint32(b, uint32(int32(clamp(val, math.MinInt32, math.MaxInt32))))
	case Uint32:
		binary.LittleEndian.PutUint32(b, uint32(clamp(val, 0, math.MaxUint32)))
	case Float32:
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(val)))
	case Float64:
		binary.LittleEndian.PutUint64(b, math.Float64bits(val))
	}
}

func clamp(val, lo, hi float64) float64 {
	if math.IsNaN(val) {
		return 0
	}
	return math.Max(lo, math.Min(hi, math.Trunc(val)))
}

// Float64s returns a copy of all samples converted to float64.
func (v *Volume) Float64s() []float64 {
	out := make([]float64, v.NumSamples())
	for i := range out {
		out[i] = v.At(i)
	}
	return out
}

// ShallowCopy makes v describe the same samples as src. The sample buffer is
// shared, not copied.
func (v *Volume) ShallowCopy(src *Volume) {
	*v = *src
}

// DeepCopy makes v an independent copy of src.
func (v *Volume) DeepCopy(src *Volume) {
	*v = *src
	v.Data = make([]byte, len(src.Data))
	copy(v.Data, src.Data)
}

// SameGeometry reports whether two volumes have identical extents and component counts.
func (v *Volume) SameGeometry(o *Volume) bool {
	return v.Dims == o.Dims && v.Components == o.Components
}
