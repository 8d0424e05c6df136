package metaimage

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"volumeio/internal/models"
)

func TestHeaderFormat(t *testing.T) {
	h := NewHeader([]int{4, 5, 6}, models.Uint16, "vol.raw")
	h.ByteOrderMSB = true
	h.ElementSpacing = []float64{0.5, 1, 2.25}

	want := "NDims = 3\n" +
		"DimSize = 4 5 6\n" +
		"ElementSpacing = 0.5 1 2.25\n" +
		"Position = 0 0 0\n" +
		"ElementType = MET_USHORT\n" +
		"ElementByteOrderMSB = True\n" +
		"HeaderSize = 0\n" +
		"ElementDataFile = vol.raw"
	if got := h.Format(); got != want {
		t.Errorf("Unexpected header:\n%s\nwant:\n%s", got, want)
	}
}

func TestParseHeader(t *testing.T) {
	text := "ObjectType = Image\r\n" +
		"NDims = 2\n" +
		"DimSize = 3 2\n" +
		"ElementSize = 2 2\n" +
		"Offset = 1 -1\n" +
		"BinaryDataByteOrderMSB = false\n" +
		"ElementType = MET_SHORT\n" +
		"ElementDataFile = LOCAL\n" +
		"trailing-binary"

	h, err := ParseHeader(strings.NewReader(text))
	if err != nil {
		t.Fatalf("ParseHeader failed: %v", err)
	}
	if h.NDims != 2 || h.DimSize[0] != 3 || h.DimSize[1] != 2 {
		t.Errorf("Unexpected dims %d %v", h.NDims, h.DimSize)
	}
	if h.ElementSpacing[0] != 2 || h.Position[1] != -1 {
		t.Errorf("Unexpected spacing %v or position %v", h.ElementSpacing, h.Position)
	}
	if h.ElementType != models.Int16 {
		t.Errorf("Expected MET_SHORT, got %v", h.ElementType)
	}
	if want := int64(len(text) - len("trailing-binary")); h.Length != want {
		t.Errorf("Expected header length %d, got %d", want, h.Length)
	}
}

func TestParseHeaderErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		want error
	}{
		{"no dims", "ElementType = MET_UCHAR\nElementDataFile = a.raw", ErrMissingField},
		{"no type", "NDims = 2\nDimSize = 2 2\nElementDataFile = a.raw", ErrMissingField},
		{"bad type", "NDims = 2\nDimSize = 2 2\nElementType = MET_LONG_LONG\nElementDataFile = a.raw", ErrUnsupportedElementType},
		{"no file", "NDims = 2\nDimSize = 2 2\nElementType = MET_UCHAR\n", ErrMissingField},
		{"list", "NDims = 2\nDimSize = 2 2\nElementType = MET_UCHAR\nElementDataFile = LIST", ErrUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseHeader(strings.NewReader(tt.text))
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func testVolume(t *testing.T, dims []int, typ models.ElementType) *models.Volume {
	t.Helper()
	vol, err := models.NewVolume(dims, typ, 1)
	if err != nil {
		t.Fatalf("NewVolume failed: %v", err)
	}
	for i := 0; i < vol.NumSamples(); i++ {
		vol.Set(i, float64(i%120))
	}
	vol.Spacing = [3]float64{0.5, 0.5, 2}
	return vol
}

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		file string
		dims []int
		typ  models.ElementType
		opts WriteOptions
	}{
		{"mhd uint8 3d", "a.mhd", []int{4, 3, 2}, models.Uint8, WriteOptions{}},
		{"mha int16 2d", "b.mha", []int{7, 5}, models.Int16, WriteOptions{}},
		{"mha float compressed", "c.mha", []int{3, 3, 3}, models.Float32, WriteOptions{Compress: true}},
		{"mhd uint16 compressed", "d.mhd", []int{8, 2, 2}, models.Uint16, WriteOptions{Compress: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vol := testVolume(t, tt.dims, tt.typ)
			path := filepath.Join(dir, tt.file)
			if err := Write(path, vol, tt.opts); err != nil {
				t.Fatalf("Write failed: %v", err)
			}
			got, err := Read(path)
			if err != nil {
				t.Fatalf("Read failed: %v", err)
			}
			if got.Dims != vol.Dims || got.NDims != vol.NDims || got.Type != vol.Type {
				t.Fatalf("Geometry mismatch: got %v/%d/%v want %v/%d/%v",
					got.Dims, got.NDims, got.Type, vol.Dims, vol.NDims, vol.Type)
			}
			if got.Spacing[0] != 0.5 {
				t.Errorf("Expected spacing 0.5, got %v", got.Spacing[0])
			}
			for i := 0; i < vol.NumSamples(); i++ {
				if got.At(i) != vol.At(i) {
					t.Fatalf("Sample %d: expected %v, got %v", i, vol.At(i), got.At(i))
				}
			}
		})
	}
}

func TestReadBigEndian(t *testing.T) {
	dir := t.TempDir()
	raw := make([]byte, 2*3*2)
	for i := 0; i < 6; i++ {
		binary.BigEndian.PutUint16(raw[i*2:], uint16(1000+i))
	}
	if err := os.WriteFile(filepath.Join(dir, "be.raw"), raw, 0644); err != nil {
		t.Fatal(err)
	}
	h := NewHeader([]int{3, 2}, models.Uint16, "be.raw")
	h.ByteOrderMSB = true
	if err := os.WriteFile(filepath.Join(dir, "be.mhd"), []byte(h.Format()), 0644); err != nil {
		t.Fatal(err)
	}

	vol, err := Read(filepath.Join(dir, "be.mhd"))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	for i := 0; i < 6; i++ {
		if vol.At(i) != float64(1000+i) {
			t.Errorf("Sample %d: expected %d, got %v", i, 1000+i, vol.At(i))
		}
	}
}

func TestReadTrailingDataWithNegativeHeaderSize(t *testing.T) {
	dir := t.TempDir()
	raw := append([]byte("JUNKHEADER"), 1, 2, 3, 4)
	if err := os.WriteFile(filepath.Join(dir, "t.raw"), raw, 0644); err != nil {
		t.Fatal(err)
	}
	h := NewHeader([]int{2, 2}, models.Uint8, "t.raw")
	h.HeaderSize = -1
	if err := os.WriteFile(filepath.Join(dir, "t.mhd"), []byte(h.Format()), 0644); err != nil {
		t.Fatal(err)
	}

	vol, err := Read(filepath.Join(dir, "t.mhd"))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if vol.At(0) != 1 || vol.At(3) != 4 {
		t.Errorf("Unexpected samples %v", vol.Float64s())
	}
}

func TestReadShortData(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "s.raw"), []byte{1, 2, 3}, 0644); err != nil {
		t.Fatal(err)
	}
	h := NewHeader([]int{2, 2}, models.Uint8, "s.raw")
	if err := os.WriteFile(filepath.Join(dir, "s.mhd"), []byte(h.Format()), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Read(filepath.Join(dir, "s.mhd"))
	if !errors.Is(err, ErrDataSize) {
		t.Errorf("Expected ErrDataSize, got %v", err)
	}
}
