package tiffstack

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/tiff"

	"volumeio/internal/models"
)

func writeTIFF(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create %s: %v", path, err)
	}
	defer f.Close()
	if err := tiff.Encode(f, img, nil); err != nil {
		t.Fatalf("Failed to encode %s: %v", path, err)
	}
}

func TestLoadGray16Stack(t *testing.T) {
	dir := t.TempDir()
	var files []string
	for z := 0; z < 4; z++ {
		img := image.NewGray16(image.Rect(0, 0, 5, 3))
		for y := 0; y < 3; y++ {
			for x := 0; x < 5; x++ {
				img.SetGray16(x, y, color.Gray16{Y: uint16(1000*z + 10*y + x)})
			}
		}
		path := filepath.Join(dir, fmt.Sprintf("slice_%03d.tif", z))
		writeTIFF(t, path, img)
		files = append(files, path)
	}

	vol, err := Load(context.Background(), files, Options{Workers: 2})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if vol.Dims != [3]int{5, 3, 4} || vol.NDims != 3 {
		t.Fatalf("Unexpected dims %v/%d", vol.Dims, vol.NDims)
	}
	if vol.Type != models.Uint16 {
		t.Errorf("Expected uint16, got %v", vol.Type)
	}
	if got := vol.At(vol.Index(4, 2, 3, 0)); got != 3024 {
		t.Errorf("Expected 3024, got %v", got)
	}
}

func TestLoadSingleGraySlice(t *testing.T) {
	dir := t.TempDir()
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	img.SetGray(1, 2, color.Gray{Y: 77})
	path := filepath.Join(dir, "one.tiff")
	writeTIFF(t, path, img)

	vol, err := Load(context.Background(), []string{path}, Options{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if vol.NDims != 2 || vol.Type != models.Uint8 {
		t.Errorf("Expected 2D uint8, got %d/%v", vol.NDims, vol.Type)
	}
	if vol.At(vol.Index(1, 2, 0, 0)) != 77 {
		t.Errorf("Expected 77, got %v", vol.At(vol.Index(1, 2, 0, 0)))
	}
}

func TestLoadRejectsNonTIFF(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "a.tif")
	writeTIFF(t, good, image.NewGray(image.Rect(0, 0, 2, 2)))
	bad := filepath.Join(dir, "b.tif")
	if err := os.WriteFile(bad, []byte("\x89PNG\r\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(context.Background(), []string{good, bad}, Options{})
	if !errors.Is(err, ErrNotTIFF) {
		t.Errorf("Expected ErrNotTIFF, got %v", err)
	}
}

func TestLoadRejectsMixedSizes(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.tif")
	b := filepath.Join(dir, "b.tif")
	writeTIFF(t, a, image.NewGray(image.Rect(0, 0, 2, 2)))
	writeTIFF(t, b, image.NewGray(image.Rect(0, 0, 3, 2)))

	_, err := Load(context.Background(), []string{a, b}, Options{})
	if !errors.Is(err, ErrSliceSize) {
		t.Errorf("Expected ErrSliceSize, got %v", err)
	}
}

func TestLoadNoFiles(t *testing.T) {
	if _, err := Load(context.Background(), nil, Options{}); !errors.Is(err, ErrNoFiles) {
		t.Errorf("Expected ErrNoFiles, got %v", err)
	}
}
