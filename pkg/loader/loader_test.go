package loader

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/tiff"

	"volumeio/internal/models"
	"volumeio/pkg/metaimage"
	"volumeio/pkg/npy"
	"volumeio/pkg/rawimport"
)

func testCreator() *Creator {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return NewCreator(l)
}

func rampVolume(t *testing.T, dims []int, typ models.ElementType) *models.Volume {
	t.Helper()
	vol, err := models.NewVolume(dims, typ, 1)
	if err != nil {
		t.Fatalf("NewVolume failed: %v", err)
	}
	for i := 0; i < vol.NumSamples(); i++ {
		vol.Set(i, float64(i%200))
	}
	return vol
}

type recorder struct {
	mu     sync.Mutex
	values []int
}

func (r *recorder) Report(p int) {
	r.mu.Lock()
	r.values = append(r.values, p)
	r.mu.Unlock()
}

func checkProgress(t *testing.T, values []int) {
	t.Helper()
	if len(values) == 0 || values[0] != 10 || values[len(values)-1] != 100 {
		t.Fatalf("Expected progress from 10 to 100, got %v", values)
	}
	for i := 1; i < len(values); i++ {
		if values[i] <= values[i-1] {
			t.Fatalf("Expected increasing progress, got %v", values)
		}
	}
}

func TestCreateMetaImageConvertsToNumpy(t *testing.T) {
	dir := t.TempDir()
	tmp := t.TempDir()
	src := rampVolume(t, []int{4, 3, 2}, models.Uint16)
	path := filepath.Join(dir, "scan.mha")
	if err := metaimage.Write(path, src, metaimage.WriteOptions{}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	var out models.Volume
	var meta models.ImportMetadata
	rec := &recorder{}
	err := testCreator().Create(context.Background(), []string{path}, &out, &meta, Options{TempFolder: tmp, Progress: rec})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	checkProgress(t, rec.values)

	if out.Dims != src.Dims || out.Type != models.Uint16 {
		t.Errorf("Expected dims %v uint16, got %v %v", src.Dims, out.Dims, out.Type)
	}
	if meta.FileType != models.FileTypeMetaImage || meta.BitDepth != "16" {
		t.Errorf("Unexpected metadata %+v", meta)
	}
	want := filepath.Join(tmp, "scan.npy")
	if meta.NumpyFile != want {
		t.Errorf("Expected numpy file %s, got %s", want, meta.NumpyFile)
	}
	if meta.IsBigEndian == nil || *meta.IsBigEndian {
		t.Errorf("Expected little-endian recorded, got %v", meta.IsBigEndian)
	}
	if meta.HeaderLength%64 != 0 {
		t.Errorf("Expected header length aligned to 64, got %d", meta.HeaderLength)
	}

	back, _, err := npy.Read(want)
	if err != nil {
		t.Fatalf("Reading converted file failed: %v", err)
	}
	if string(back.Data) != string(src.Data) {
		t.Error("Converted numpy samples differ from source")
	}
}

func TestCreateNumpy(t *testing.T) {
	dir := t.TempDir()
	src := rampVolume(t, []int{6, 5, 4}, models.Uint8)
	path := filepath.Join(dir, "vol.npy")
	if _, err := npy.Write(path, src); err != nil {
		t.Fatalf("npy.Write failed: %v", err)
	}

	var out models.Volume
	var meta models.ImportMetadata
	if err := testCreator().Create(context.Background(), []string{path}, &out, &meta, Options{}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if out.Dims != [3]int{6, 5, 4} {
		t.Errorf("Expected dims [6 5 4], got %v", out.Dims)
	}
	if meta.FileType != models.FileTypeNumpy || meta.Resampled || meta.BitDepth != "8" {
		t.Errorf("Unexpected metadata %+v", meta)
	}
	if meta.IsBigEndian != nil {
		t.Errorf("Expected no byte order for uint8, got %v", *meta.IsBigEndian)
	}
	if meta.MemoryOrder != models.ColumnMajor {
		t.Errorf("Expected Fortran order recorded")
	}
}

func TestCreateNumpyResampled(t *testing.T) {
	dir := t.TempDir()
	src := rampVolume(t, []int{8, 8, 8}, models.Int16)
	path := filepath.Join(dir, "big.npy")
	if _, err := npy.Write(path, src); err != nil {
		t.Fatalf("npy.Write failed: %v", err)
	}

	var out models.Volume
	var meta models.ImportMetadata
	err := testCreator().Create(context.Background(), []string{path}, &out, &meta,
		Options{Resample: true, TargetShape: []int{4, 4, 4}})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if out.Dims != [3]int{4, 4, 4} {
		t.Errorf("Expected dims [4 4 4], got %v", out.Dims)
	}
	if !meta.Resampled {
		t.Error("Expected resampled metadata")
	}
	if got, want := out.At(out.Index(1, 0, 0, 0)), src.At(src.Index(2, 0, 0, 0)); got != want {
		t.Errorf("Expected sample %v, got %v", want, got)
	}
}

func writeSlices(t *testing.T, dir string, n int) []string {
	t.Helper()
	var files []string
	for z := 0; z < n; z++ {
		img := image.NewGray(image.Rect(0, 0, 3, 2))
		img.SetGray(2, 1, color.Gray{Y: uint8(10 + z)})
		path := filepath.Join(dir, "slice"+string(rune('a'+z))+".tif")
		f, err := os.Create(path)
		if err != nil {
			t.Fatal(err)
		}
		if err := tiff.Encode(f, img, nil); err != nil {
			t.Fatal(err)
		}
		f.Close()
		files = append(files, path)
	}
	return files
}

func TestCreateTIFFStack(t *testing.T) {
	dir := t.TempDir()
	files := writeSlices(t, dir, 3)

	var out models.Volume
	var meta models.ImportMetadata
	err := testCreator().Create(context.Background(), files, &out, &meta, Options{ConvertNumpy: true, Workers: 2})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if out.Dims != [3]int{3, 2, 3} {
		t.Errorf("Expected dims [3 2 3], got %v", out.Dims)
	}
	if got := out.At(out.Index(2, 1, 2, 0)); got != 12 {
		t.Errorf("Expected 12, got %v", got)
	}
	if meta.FileType != models.FileTypeTIFF {
		t.Errorf("Expected tiff file type, got %q", meta.FileType)
	}
	if want := filepath.Join(dir, "slicea.npy"); meta.NumpyFile != want {
		t.Errorf("Expected numpy file %s, got %s", want, meta.NumpyFile)
	}
	if _, err := os.Stat(meta.NumpyFile); err != nil {
		t.Errorf("Expected converted file on disk: %v", err)
	}
}

func TestCreateTIFFStackWithoutConversion(t *testing.T) {
	dir := t.TempDir()
	files := writeSlices(t, dir, 2)

	var out models.Volume
	var meta models.ImportMetadata
	if err := testCreator().Create(context.Background(), files, &out, &meta, Options{}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if meta.NumpyFile != "" {
		t.Errorf("Expected no numpy conversion, got %s", meta.NumpyFile)
	}
}

func TestCreateMultipleFilesMustBeTIFF(t *testing.T) {
	dir := t.TempDir()
	files := writeSlices(t, dir, 1)
	other := filepath.Join(dir, "notes.raw")
	if err := os.WriteFile(other, []byte("plain text"), 0644); err != nil {
		t.Fatal(err)
	}

	var out models.Volume
	err := testCreator().Create(context.Background(), append(files, other), &out, nil, Options{})
	if err == nil || !strings.Contains(err.Error(), "not TIFF") {
		t.Errorf("Expected non-TIFF error, got %v", err)
	}
}

func TestCreateRaw(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cube.raw")
	data := make([]byte, 1000)
	for i := range data {
		data[i] = byte(i)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	d := models.VolumeDescriptor{Dimensions: []int{10, 10, 10}, ElementType: models.Uint8}

	var out models.Volume
	var meta models.ImportMetadata
	if err := testCreator().Create(context.Background(), []string{path}, &out, &meta, Options{Descriptor: &d}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if meta.FileType != models.FileTypeRaw || meta.BitDepth != "8" {
		t.Errorf("Unexpected metadata %+v", meta)
	}
	if out.At(out.Index(9, 9, 9, 0)) != float64(data[999]) {
		t.Errorf("Expected last sample %d, got %v", data[999], out.At(out.Index(9, 9, 9, 0)))
	}

	// a second load reuses the recorded layout
	var again models.Volume
	if err := testCreator().Create(context.Background(), []string{path}, &again, &meta, Options{}); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if again.Dims != out.Dims {
		t.Errorf("Expected dims %v on reload, got %v", out.Dims, again.Dims)
	}
}

func TestCreateRawNeedsDescriptor(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cube.raw")
	if err := os.WriteFile(path, make([]byte, 8), 0644); err != nil {
		t.Fatal(err)
	}
	var out models.Volume
	err := testCreator().Create(context.Background(), []string{path}, &out, &models.ImportMetadata{}, Options{})
	if !errors.Is(err, rawimport.ErrDescriptorRequired) {
		t.Errorf("Expected ErrDescriptorRequired, got %v", err)
	}
}

func TestCreateUnsupported(t *testing.T) {
	var out models.Volume
	err := testCreator().Create(context.Background(), []string{"image.png"}, &out, nil, Options{})
	var ue *UnsupportedFormatError
	if !errors.As(err, &ue) {
		t.Fatalf("Expected UnsupportedFormatError, got %v", err)
	}
	if !strings.Contains(ue.Error(), ".mhd, .mha, .npy, .tif") {
		t.Errorf("Expected accepted formats in message, got %q", ue.Error())
	}
}

func TestCreateNoFiles(t *testing.T) {
	var out models.Volume
	if err := testCreator().Create(context.Background(), nil, &out, nil, Options{}); !errors.Is(err, ErrNoFiles) {
		t.Errorf("Expected ErrNoFiles, got %v", err)
	}
}

func TestNumpyPath(t *testing.T) {
	got, err := NumpyPath("/data/scan.mhd", "/tmp/work")
	if err != nil || got != "/tmp/work/scan.npy" {
		t.Errorf("Expected /tmp/work/scan.npy, got %s (%v)", got, err)
	}
	got, err = NumpyPath("/data/scan.mhd", "")
	if err != nil || got != "/data/scan.npy" {
		t.Errorf("Expected /data/scan.npy, got %s (%v)", got, err)
	}
}
