// Package resample reads headerless sample data while subsampling it to
// fit a target size, so very large volumes can be previewed.
package resample

import (
	"fmt"
	"io"
	"os"

	"volumeio/internal/models"
	"volumeio/pkg/progress"
)

// DefaultTargetShape bounds resampled volumes.
var DefaultTargetShape = []int{512, 512, 512}

// Reader subsamples a binary array file.
type Reader struct {
	Path string

	// HeaderLength is the number of bytes before the first sample.
	HeaderLength int64

	BytesPerElement int
	ElementType     models.ElementType
	ByteOrder       models.ByteOrder
	MemoryOrder     models.MemoryOrder

	// StoredShape is the array shape in index order, as given by MemoryOrder.
	StoredShape []int

	// TargetShape bounds the output extents along x, y and z.
	TargetShape []int

	Progress progress.Sink
}

// Dims converts the stored shape to x, y[, z] extents.
func (r *Reader) Dims() []int {
	dims := make([]int, len(r.StoredShape))
	if r.MemoryOrder == models.ColumnMajor {
		copy(dims, r.StoredShape)
		return dims
	}
	for i, v := range r.StoredShape {
		dims[len(dims)-1-i] = v
	}
	return dims
}

// Strides returns the integer step along each axis.
func (r *Reader) Strides() []int {
	dims := r.Dims()
	target := r.TargetShape
	if len(target) == 0 {
		target = DefaultTargetShape
	}
	strides := make([]int, len(dims))
	for i, d := range dims {
		t := d
		if i < len(target) && target[i] > 0 {
			t = target[i]
		}
		strides[i] = (d + t - 1) / t
		if strides[i] < 1 {
			strides[i] = 1
		}
	}
	return strides
}

// Resampled reports whether reading will drop samples.
func (r *Reader) Resampled() bool {
	target := r.TargetShape
	if len(target) == 0 {
		target = DefaultTargetShape
	}
	if len(target) > len(r.StoredShape) {
		target = target[:len(r.StoredShape)]
	}
	return IsResampled(r.StoredShape, target)
}

// IsResampled reports whether a native shape is larger than a target shape.
func IsResampled(native, target []int) bool {
	return models.Product(native) > models.Product(target)
}

// Read loads every stride-th sample along each axis. The output spacing
// equals the stride so physical extents are preserved.
func (r *Reader) Read() (*models.Volume, error) {
	if r.ElementType.Size() != r.BytesPerElement {
		return nil, fmt.Errorf("element type %v does not have %d bytes per element", r.ElementType, r.BytesPerElement)
	}
	dims := r.Dims()
	if len(dims) != 2 && len(dims) != 3 {
		return nil, fmt.Errorf("%w: need 2 or 3 dimensions, got %d", models.ErrInvalidDimensions, len(dims))
	}
	strides := r.Strides()

	out := make([]int, len(dims))
	for i := range dims {
		out[i] = (dims[i] + strides[i] - 1) / strides[i]
	}
	vol, err := models.NewVolume(out, r.ElementType, 1)
	if err != nil {
		return nil, err
	}
	for i, s := range strides {
		vol.Spacing[i] = float64(s)
	}

	f, err := os.Open(r.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	nx, ny := dims[0], dims[1]
	sx, sy := strides[0], strides[1]
	sz := 1
	if len(strides) == 3 {
		sz = strides[2]
	}
	bpe := r.BytesPerElement
	plane := make([]byte, nx*ny*bpe)
	scaled := progress.Scaled{Sink: r.Progress, Lo: 0, Hi: 80}

	dst := 0
	for oz := 0; oz < vol.Dims[2]; oz++ {
		z := oz * sz
		off := r.HeaderLength + int64(z)*int64(len(plane))
		if _, err := f.ReadAt(plane, off); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, fmt.Errorf("reading plane %d of %s: %w", z, r.Path, err)
		}
		for y := 0; y < ny; y += sy {
			row := plane[y*nx*bpe : (y+1)*nx*bpe]
			for x := 0; x < nx; x += sx {
				copy(vol.Data[dst:dst+bpe], row[x*bpe:(x+1)*bpe])
				dst += bpe
			}
		}
		scaled.Fraction(float64(oz+1) / float64(vol.Dims[2]))
	}

	if r.ByteOrder == models.BigEndian && bpe > 1 {
		for i := 0; i < len(vol.Data); i += bpe {
			b := vol.Data[i : i+bpe]
			for l, h := 0, bpe-1; l < h; l, h = l+1, h-1 {
				b[l], b[h] = b[h], b[l]
			}
		}
	}
	return vol, nil
}
