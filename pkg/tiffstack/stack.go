// Package tiffstack assembles a volume from a sequence of TIFF slices.
package tiffstack

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"runtime"
	"sync/atomic"

	"golang.org/x/image/tiff"
	"golang.org/x/sync/errgroup"

	"volumeio/internal/models"
	"volumeio/pkg/progress"
)

var (
	// ErrNotTIFF is returned for a file without a TIFF signature.
	ErrNotTIFF = errors.New("tiffstack: file is not TIFF formatted")
	// ErrSliceSize is returned when slices differ in size.
	ErrSliceSize = errors.New("tiffstack: slices differ in size")
	// ErrNoFiles is returned for an empty file list.
	ErrNoFiles = errors.New("tiffstack: no files")
)

// Options configure Load.
type Options struct {
	// Workers bounds the number of slices decoded at once. Zero uses all CPUs.
	Workers int

	Progress progress.Sink
}

// IsTIFF reports whether the file at path starts with a TIFF signature.
func IsTIFF(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()
	var sig [4]byte
	if _, err := io.ReadFull(f, sig[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}
	return bytes.Equal(sig[:], []byte("II*\x00")) || bytes.Equal(sig[:], []byte("MM\x00*")), nil
}

// Load decodes files in order as consecutive z slices. A single file gives a
// 2D volume. Gray16 slices give a uint16 volume; every other color model is
// stored as 8-bit gray.
func Load(ctx context.Context, files []string, opts Options) (*models.Volume, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	for _, f := range files {
		ok, err := IsTIFF(f)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotTIFF, f)
		}
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	slices := make([]image.Image, len(files))
	scaled := progress.Scaled{Sink: opts.Progress, Lo: 0, Hi: 80}
	var done atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, name := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			img, err := decode(name)
			if err != nil {
				return err
			}
			slices[i] = img
			scaled.Fraction(float64(done.Add(1)) / float64(len(files)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return assemble(files, slices)
}

func decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := tiff.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return img, nil
}

func assemble(files []string, slices []image.Image) (*models.Volume, error) {
	bounds := slices[0].Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	typ := models.Uint8
	if _, ok := slices[0].(*image.Gray16); ok {
		typ = models.Uint16
	}

	dims := []int{w, h}
	if len(slices) > 1 {
		dims = append(dims, len(slices))
	}
	vol, err := models.NewVolume(dims, typ, 1)
	if err != nil {
		return nil, err
	}

	for z, img := range slices {
		b := img.Bounds()
		if b.Dx() != w || b.Dy() != h {
			return nil, fmt.Errorf("%w: %s is %dx%d, expected %dx%d", ErrSliceSize, files[z], b.Dx(), b.Dy(), w, h)
		}
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				i := vol.Index(x, y, z, 0)
				c := img.At(b.Min.X+x, b.Min.Y+y)
				if typ == models.Uint16 {
					vol.Set(i, float64(color.Gray16Model.Convert(c).(color.Gray16).Y))
				} else {
					vol.Set(i, float64(color.GrayModel.Convert(c).(color.Gray).Y))
				}
			}
		}
	}
	return vol, nil
}
