package resample

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"volumeio/internal/models"
)

func TestIsResampledBoundaries(t *testing.T) {
	target := []int{4, 5, 6} // product 120
	tests := []struct {
		name   string
		native []int
		want   bool
	}{
		{"equal", []int{6, 5, 4}, false},
		{"one more", []int{121}, true},
		{"one less", []int{7, 17}, false},
		{"much larger", []int{100, 100, 100}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsResampled(tt.native, target); got != tt.want {
				t.Errorf("IsResampled(%v) = %v, want %v", tt.native, got, tt.want)
			}
		})
	}
}

func TestReadSubsamples(t *testing.T) {
	// x=6, y=4, z=3 uint16 big-endian, value = x + 10*y + 100*z
	nx, ny, nz := 6, 4, 3
	header := []byte("HDR!")
	data := make([]byte, nx*ny*nz*2)
	for z := 0; z < nz; z++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				i := (z*ny+y)*nx + x
				binary.BigEndian.PutUint16(data[i*2:], uint16(x+10*y+100*z))
			}
		}
	}
	path := filepath.Join(t.TempDir(), "vol.bin")
	if err := os.WriteFile(path, append(header, data...), 0644); err != nil {
		t.Fatal(err)
	}

	r := &Reader{
		Path:            path,
		HeaderLength:    int64(len(header)),
		BytesPerElement: 2,
		ElementType:     models.Uint16,
		ByteOrder:       models.BigEndian,
		MemoryOrder:     models.RowMajor,
		StoredShape:     []int{nz, ny, nx},
		TargetShape:     []int{3, 2, 2},
	}
	if !r.Resampled() {
		t.Error("Expected resampling to be reported")
	}

	vol, err := r.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if vol.Dims != [3]int{3, 2, 2} {
		t.Fatalf("Expected dims [3 2 2], got %v", vol.Dims)
	}
	if vol.Spacing != [3]float64{2, 2, 2} {
		t.Errorf("Expected spacing [2 2 2], got %v", vol.Spacing)
	}
	for z := 0; z < 2; z++ {
		for y := 0; y < 2; y++ {
			for x := 0; x < 3; x++ {
				want := float64(2*x + 10*2*y + 100*2*z)
				if got := vol.At(vol.Index(x, y, z, 0)); got != want {
					t.Errorf("(%d,%d,%d): expected %v, got %v", x, y, z, want, got)
				}
			}
		}
	}
}

func TestReadWithoutSubsampling(t *testing.T) {
	path := filepath.Join(t.TempDir(), "small.raw")
	if err := os.WriteFile(path, []byte{1, 2, 3, 4, 5, 6}, 0644); err != nil {
		t.Fatal(err)
	}
	r := &Reader{
		Path:            path,
		BytesPerElement: 1,
		ElementType:     models.Uint8,
		MemoryOrder:     models.ColumnMajor,
		StoredShape:     []int{3, 2},
	}
	if r.Resampled() {
		t.Error("Small volume should not be resampled")
	}
	vol, err := r.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if vol.Dims != [3]int{3, 2, 1} || vol.At(5) != 6 {
		t.Errorf("Unexpected volume %v %v", vol.Dims, vol.Float64s())
	}
}

func TestReadTruncatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.raw")
	if err := os.WriteFile(path, []byte{1, 2, 3}, 0644); err != nil {
		t.Fatal(err)
	}
	r := &Reader{
		Path:            path,
		BytesPerElement: 1,
		ElementType:     models.Uint8,
		StoredShape:     []int{2, 2},
	}
	if _, err := r.Read(); err == nil {
		t.Error("Expected error for truncated file")
	}
}
